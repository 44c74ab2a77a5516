// Package commands implements the modelkit companion CLI.
package commands

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tipai/modelkit/pkg/artifact"
	"github.com/tipai/modelkit/pkg/catalog"
	"github.com/tipai/modelkit/pkg/download"
	"github.com/tipai/modelkit/pkg/ledger"
	"github.com/tipai/modelkit/pkg/logging"
	"github.com/tipai/modelkit/pkg/session"
)

// dataRoot is the default directory holding artifacts and the ledger.
var dataRoot string

// NewRootCmd creates the modelkit root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "modelkit",
		Short:         "Manage and chat with on-device language models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataRoot, "data-root", defaultDataRoot(),
		"directory holding model artifacts and download state")
	rootCmd.AddCommand(
		newListCmd(),
		newPullCmd(),
		newChatCmd(),
		newInspectCmd(),
		newRemoveCmd(),
	)
	return rootCmd
}

func defaultDataRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".modelkit")
	}
	return filepath.Join(home, ".modelkit")
}

// app bundles the wired-up library components behind the CLI.
type app struct {
	log         logging.Logger
	store       *artifact.Store
	ledger      *ledger.Ledger
	ledgerStore *ledger.BadgerStore
	registry    *catalog.Registry
	coordinator *download.Coordinator
	sessions    *session.Manager
}

// newApp wires the library against the data root: a Badger-backed ledger, the
// built-in catalog, and the HTTP transfer engine.
func newApp() (*app, error) {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	store := artifact.NewStore(filepath.Join(dataRoot, "models"))
	ledgerStore, err := ledger.OpenBadgerStore(filepath.Join(dataRoot, "ledger"))
	if err != nil {
		return nil, err
	}

	lg := ledger.New(logging.ForComponent(log, "ledger"), ledgerStore)
	registry := catalog.NewRegistry(catalog.Default())
	registry.RefreshFromLedger(lg.ReadAll())

	coordinator := download.NewCoordinator(
		logging.ForComponent(log, "download"),
		store,
		lg,
		registry,
		download.NewHTTPEngine(logging.ForComponent(log, "transfer"), nil),
	)
	sessions := session.NewManager(
		logging.ForComponent(log, "session"),
		store,
		registry,
		nil,
	)

	return &app{
		log:         log,
		store:       store,
		ledger:      lg,
		ledgerStore: ledgerStore,
		registry:    registry,
		coordinator: coordinator,
		sessions:    sessions,
	}, nil
}

// close releases the app's durable resources.
func (a *app) close() {
	if err := a.ledgerStore.Close(); err != nil {
		a.log.Warnf("Error closing ledger store: %v", err)
	}
}
