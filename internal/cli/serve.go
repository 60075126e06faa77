package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/voxhall/voxhall/internal/config"
	"github.com/voxhall/voxhall/internal/logger"
	"github.com/voxhall/voxhall/internal/metrics"
	"github.com/voxhall/voxhall/pkg/gateway"
	"github.com/voxhall/voxhall/pkg/interaction"
	"github.com/voxhall/voxhall/pkg/registry"
	"github.com/voxhall/voxhall/pkg/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interaction daemon",
	Long: `Run the interaction daemon in the foreground.
Depending on configuration this serves the signed webhook endpoint, holds a
gateway session, or both, and optionally keeps the command registry synced.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logFile := cfg.Logging.File
	if logFile == "" {
		logFile = filepath.Join(cfg.DataDir, "voxhall.log")
	}
	appLogger, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      logFile,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Close()
	zl := appLogger.GetZerolog()

	m := metrics.NewMetrics()

	dispatcher, err := interaction.NewDispatcher(interaction.DispatcherConfig{
		Handler:        defaultHandler(zl),
		DeadlineBudget: time.Duration(cfg.Interaction.DeadlineBudgetMs) * time.Millisecond,
		Logger:         zl,
		Metrics:        m,
	})
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var webhookServer *webhook.Server
	if cfg.Webhook.Enabled {
		verifier, err := webhook.NewVerifier(cfg.App.PublicKey)
		if err != nil {
			return fmt.Errorf("failed to create verifier: %w", err)
		}

		webhookServer, err = webhook.NewServer(webhook.ServerOptions{
			Host: cfg.Webhook.Host,
			Port: cfg.Webhook.Port,
			Path: cfg.Webhook.Path,
		}, verifier, dispatcher, m, zl)
		if err != nil {
			return fmt.Errorf("failed to create webhook server: %w", err)
		}

		// Start blocks in ListenAndServe until shutdown
		go func() {
			if err := webhookServer.Start(); err != nil {
				zl.Error().Err(err).Msg("Webhook server failed")
				cancel()
			}
		}()
	}

	var session *gateway.Session
	if cfg.Gateway.Enabled {
		callbacks, err := gateway.NewCallbackClient(cfg.App.APIBase, m, zl)
		if err != nil {
			return fmt.Errorf("failed to create callback client: %w", err)
		}

		session, err = gateway.NewSession(gateway.SessionConfig{
			URL:        cfg.Gateway.URL,
			Token:      cfg.App.BotToken,
			Dispatcher: dispatcher,
			Callbacks:  callbacks,
			Logger:     zl,
			Metrics:    m,
		})
		if err != nil {
			return fmt.Errorf("failed to create gateway session: %w", err)
		}

		if err := session.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect gateway session: %w", err)
		}
		go func() {
			if err := session.Run(ctx); err != nil {
				zl.Error().Err(err).Msg("Gateway session ended")
			}
		}()
	}

	syncer, watcher, err := startRegistrySync(ctx, cfg, m, zl)
	if err != nil {
		return err
	}

	zl.Info().
		Bool("webhook", cfg.Webhook.Enabled).
		Bool("gateway", cfg.Gateway.Enabled).
		Int("deadlineBudgetMs", cfg.Interaction.DeadlineBudgetMs).
		Msg("Voxhall started")

	// Block until a shutdown signal arrives
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		zl.Info().Str("signal", sig.String()).Msg("Shutting down")
	case <-ctx.Done():
	}

	cancel()
	if watcher != nil {
		watcher.Stop()
	}
	if syncer != nil {
		syncer.Stop()
	}
	if session != nil {
		session.Close()
	}
	if webhookServer != nil {
		if err := webhookServer.Stop(); err != nil {
			zl.Error().Err(err).Msg("Webhook server shutdown failed")
		}
	}

	zl.Info().Msg("Voxhall stopped")
	return nil
}

// defaultHandler acknowledges every command so nothing times out when no
// application handler is registered
func defaultHandler(zl zerolog.Logger) interaction.EventHandler {
	return func(event interaction.Event) {
		zl.Info().
			Str("command", event.CommandName()).
			Str("interactionId", event.Payload.ID).
			Msg("Command received")
		event.Ack.Acknowledge(false)
	}
}

// startRegistrySync wires the optional scheduled sync and definitions watcher
func startRegistrySync(ctx context.Context, cfg *config.Config, m *metrics.Metrics, zl zerolog.Logger) (*registry.Syncer, *registry.Watcher, error) {
	if cfg.Commands.SyncSchedule == "" && !cfg.Commands.Watch {
		return nil, nil, nil
	}

	client, err := registry.NewClient(registry.ClientConfig{
		APIBase: cfg.App.APIBase,
		AppID:   cfg.App.ID,
		Token:   cfg.App.BotToken,
		Logger:  zl,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create registry client: %w", err)
	}

	syncer, err := registry.NewSyncer(registry.SyncerConfig{
		Dir:     cfg.Commands.Dir,
		GuildID: cfg.Commands.GuildID,
		Client:  client,
		Loader:  registry.NewLoader(zl),
		Logger:  zl,
		Metrics: m,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create syncer: %w", err)
	}

	if cfg.Commands.SyncSchedule != "" {
		if err := syncer.StartSchedule(cfg.Commands.SyncSchedule); err != nil {
			return nil, nil, err
		}
	}

	var watcher *registry.Watcher
	if cfg.Commands.Watch {
		watcher, err = registry.NewWatcher(registry.WatcherConfig{
			Dir: cfg.Commands.Dir,
			OnChange: func() {
				if err := syncer.SyncOnce(ctx); err != nil {
					zl.Error().Err(err).Msg("Definitions resync failed")
				}
			},
			Logger: zl,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create definitions watcher: %w", err)
		}
		if err := watcher.Start(); err != nil {
			return nil, nil, err
		}
	}

	return syncer, watcher, nil
}
