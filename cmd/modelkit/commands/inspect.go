package commands

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect MODEL_ID",
		Short: "Show GGUF metadata for a downloaded model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			model, err := app.registry.Get(args[0])
			if err != nil {
				return err
			}
			info, err := app.store.Inspect(model)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Name:         %s\n", model.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "Architecture: %s\n", info.Architecture)
			fmt.Fprintf(cmd.OutOrStdout(), "Parameters:   %s\n", info.Parameters)
			fmt.Fprintf(cmd.OutOrStdout(), "Quantization: %s\n", info.Quantization)
			fmt.Fprintf(cmd.OutOrStdout(), "Size:         %s\n", units.HumanSize(float64(info.Size)))
			return nil
		},
	}
}
