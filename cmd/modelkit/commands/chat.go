package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat MODEL_ID",
		Short: "Chat with a downloaded model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			sess, err := app.sessions.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			fmt.Fprintf(cmd.OutOrStdout(), "Chatting with %s. Empty line quits.\n", sess.Model().Name)
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(cmd.OutOrStdout(), "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				input := strings.TrimSpace(scanner.Text())
				if input == "" {
					return nil
				}

				chunks, err := sess.Send(cmd.Context(), input)
				if err != nil {
					return err
				}
				for chunk := range chunks {
					if chunk.Err != nil {
						return chunk.Err
					}
					fmt.Fprint(cmd.OutOrStdout(), chunk.Text)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
		},
	}
}
