package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/activeobjects-uk/nanoclaw/internal/adapters/linear"
	"github.com/activeobjects-uk/nanoclaw/internal/logging"
	"github.com/activeobjects-uk/nanoclaw/internal/tools"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the Linear tools over MCP stdio",
		Long: `Runs the Linear tool server on stdin/stdout for an agent process.
Stdout carries the protocol, so logging is silenced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Suppress()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireCredentials(false); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := tools.New(linear.NewClient(cfg.Linear.APIKey),
				tools.WithWorkspaceDir(cfg.Linear.WorkspaceDir),
				tools.WithVersion(version),
			)
			return server.RunStdio(ctx)
		},
	}
}
