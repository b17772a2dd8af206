package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/activeobjects-uk/nanoclaw/internal/adapters/linear"
	"github.com/activeobjects-uk/nanoclaw/internal/channel"
	"github.com/activeobjects-uk/nanoclaw/internal/config"
	"github.com/activeobjects-uk/nanoclaw/internal/gateway"
	"github.com/activeobjects-uk/nanoclaw/internal/logging"
	"github.com/activeobjects-uk/nanoclaw/internal/store"
	"github.com/activeobjects-uk/nanoclaw/internal/tools"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the Linear channel",
		Long: `Connects to Linear as the configured account, then polls the issues assigned
to it. New assignments and new comments are stored for the router and, when
the gateway is enabled, streamed to websocket subscribers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireCredentials(true); err != nil {
				return err
			}
			if err := logging.Init(cfg.Logging); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			defer func() { _ = logging.Close() }()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					logging.Info("shutdown signal received")
					cancel()
				case <-ctx.Done():
				}
			}()

			return runChannel(ctx, cfg)
		},
	}
}

// runChannel wires the store, the Linear client, the channel and the
// optional gateway, and blocks until ctx is cancelled or the gateway fails.
func runChannel(ctx context.Context, cfg *config.Config) error {
	log := logging.WithComponent("nanoclaw")

	st, err := store.Open(cfg.Store.Driver, cfg.Store.DBPath())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	client := linear.NewClient(cfg.Linear.APIKey)
	scheduler := channel.NewCronScheduler(logging.WithComponent("scheduler"))
	defer scheduler.Stop()

	emitters := channel.Emitters{store.NewSink(st)}

	// The tool server is mounted before the channel exists, so its comment
	// hook resolves the channel lazily.
	var ch *channel.Channel
	var gw *gateway.Server
	if cfg.Gateway.Enabled {
		opts := []gateway.ServerOption{gateway.WithVersion(version)}
		if cfg.Gateway.MCP {
			toolServer := tools.New(client,
				tools.WithWorkspaceDir(cfg.Linear.WorkspaceDir),
				tools.WithCommentHook(func(id string) { ch.TrackBotComment(id) }),
				tools.WithVersion(version),
				tools.WithLogger(logging.WithComponent("tools")),
			)
			opts = append(opts, gateway.WithMCPHandler(toolServer.HTTPHandler()))
		}
		gw = gateway.NewServer(cfg.Gateway, opts...)
		emitters = append(emitters, gw.Hub())
	}

	ch = channel.New(channel.Config{
		UserID:       cfg.Linear.UserID,
		PollInterval: cfg.Linear.PollInterval,
	}, channel.NewLinearTracker(client), st, emitters,
		channel.WithLogger(logging.WithComponent("linear-channel")),
		channel.WithScheduler(scheduler),
		channel.WithAllowedUsers(cfg.Linear.AllowedUsers),
		channel.WithAssistantName(cfg.AssistantName),
	)

	gwErr := make(chan error, 1)
	if gw != nil {
		gw.SetStatusSource(ch)
		gw.SetReplier(ch)
	}

	if err := ch.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = ch.Disconnect() }()

	if gw != nil {
		go func() { gwErr <- gw.Start(ctx) }()
	}

	log.Info("nanoclaw running",
		"assistant", cfg.AssistantName,
		"poll_interval", cfg.Linear.PollInterval,
		"gateway", cfg.Gateway.Enabled,
	)

	select {
	case <-ctx.Done():
		log.Info("nanoclaw stopping")
		if gw != nil {
			if err := <-gwErr; err != nil {
				log.Warn("gateway shutdown error", "error", err)
			}
		}
		return nil
	case err := <-gwErr:
		return err
	}
}
