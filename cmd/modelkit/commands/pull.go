package commands

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull MODEL_ID",
		Short: "Download a model artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			task, err := app.coordinator.Start(args[0])
			if err != nil {
				return err
			}

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)
			defer signal.Stop(interrupt)

			var eg errgroup.Group
			eg.Go(func() error {
				ticker := time.NewTicker(500 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-task.Done():
						fmt.Fprintln(cmd.OutOrStdout())
						return task.Err()
					case <-interrupt:
						app.coordinator.Cancel()
					case <-ticker.C:
						written, expected := task.Bytes()
						if expected > 0 {
							fmt.Fprintf(cmd.OutOrStdout(), "\rDownloaded %s / %s (%.0f%%)",
								units.HumanSize(float64(written)),
								units.HumanSize(float64(expected)),
								task.Progress()*100)
						} else {
							fmt.Fprintf(cmd.OutOrStdout(), "\rDownloaded %s",
								units.HumanSize(float64(written)))
						}
					}
				}
			})
			return eg.Wait()
		},
	}
}
