package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voxhall/voxhall/internal/config"
	"github.com/voxhall/voxhall/internal/logger"
	"github.com/voxhall/voxhall/pkg/registry"
)

var syncGuildID string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push local command definitions to the registry",
	Long: `Load every command definition from the configured directory, validate
it, and replace the remote command set in one call. Commands no longer
defined locally are removed from the registry.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncGuildID, "guild", "", "sync the guild-scoped command set instead of the global one")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.App.ID == "" || cfg.App.BotToken == "" {
		return fmt.Errorf("app.id and app.bot_token must be configured")
	}
	if _, err := os.Stat(cfg.Commands.Dir); err != nil {
		return fmt.Errorf("definitions directory not found: %s", cfg.Commands.Dir)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	appLogger, err := logger.New(logger.Config{
		Level:     level,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Close()
	zl := appLogger.GetZerolog()

	client, err := registry.NewClient(registry.ClientConfig{
		APIBase: cfg.App.APIBase,
		AppID:   cfg.App.ID,
		Token:   cfg.App.BotToken,
		Logger:  zl,
	})
	if err != nil {
		return fmt.Errorf("failed to create registry client: %w", err)
	}

	guildID := syncGuildID
	if guildID == "" {
		guildID = cfg.Commands.GuildID
	}

	syncer, err := registry.NewSyncer(registry.SyncerConfig{
		Dir:     cfg.Commands.Dir,
		GuildID: guildID,
		Client:  client,
		Loader:  registry.NewLoader(zl),
		Logger:  zl,
	})
	if err != nil {
		return fmt.Errorf("failed to create syncer: %w", err)
	}

	return syncer.SyncOnce(cmd.Context())
}
