package main

import (
	"fmt"
	"os"

	"github.com/tipai/modelkit/cmd/modelkit/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
