package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog models and their download state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSIZE")
			for _, model := range app.registry.List() {
				status := "not downloaded"
				size := "-"
				switch {
				case model.IsDownloaded:
					status = "downloaded"
					size = units.HumanSize(float64(app.store.Size(model)))
				case model.DownloadProgress > 0:
					status = fmt.Sprintf("partial (%.0f%%)", model.DownloadProgress*100)
					size = units.HumanSize(float64(app.store.Size(model)))
				case !model.Downloadable():
					status = "unavailable"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", model.ID, model.Name, status, size)
			}
			return w.Flush()
		},
	}
}
