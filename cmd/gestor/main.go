package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "gestor",
		Short:         "Financial and administrative back office",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "gestor.yaml", "configuration file")

	root.AddCommand(
		serveCmd(&configPath),
		mcpCmd(&configPath),
		mergeCmd(&configPath),
		nextOrderCmd(&configPath),
		configCmd(&configPath),
	)
	return root
}
