package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dusk-indust/gestor/internal/api"
	"github.com/dusk-indust/gestor/internal/config"
	"github.com/dusk-indust/gestor/internal/mcptools"
	"github.com/spf13/cobra"
)

func serveCmd(configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			return api.NewServer(a.apiDeps()).Run(ctx, addr, a.cfg.Server.ShutdownTimeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func mcpCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return mcptools.Run(ctx, a.mcpService())
		},
	}
}

func mergeCmd(configPath *string) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "merge URL...",
		Short: "Merge PDFs from URLs into one file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.merger.Merge(cmd.Context(), args)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, res.PDF, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			for _, s := range res.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %s\n", s.URL, s.Reason)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pages from %d documents\n", output, res.Pages, res.Merged)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "boletos.pdf", "output file")
	return cmd
}

func nextOrderCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "next-order",
		Short: "Print the next service order number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.orders.Next(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func configCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.WriteDefaults(*configPath, force); err != nil {
				if !force && errors.Is(err, os.ErrExist) {
					return fmt.Errorf("%s exists; use --force to overwrite", *configPath)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", *configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
