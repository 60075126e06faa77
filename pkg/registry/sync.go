package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/voxhall/voxhall/internal/metrics"
)

// SyncerConfig holds syncer configuration
type SyncerConfig struct {
	// Dir is the command definitions directory. Required.
	Dir string
	// GuildID scopes the sync; empty targets the global command set.
	GuildID string
	// Client talks to the remote registry. Required.
	Client *Client
	// Loader validates definition files. Required.
	Loader  *Loader
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Syncer reconciles the definitions directory against the remote
// registry. Each run loads every definition, validates it, and replaces
// the full remote command set in one call.
type Syncer struct {
	cfg    SyncerConfig
	logger zerolog.Logger
	cron   *cron.Cron
}

// NewSyncer creates a new syncer
func NewSyncer(cfg SyncerConfig) (*Syncer, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("definitions directory is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("registry client is required")
	}
	if cfg.Loader == nil {
		return nil, fmt.Errorf("definition loader is required")
	}

	return &Syncer{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "registry-syncer").Logger(),
	}, nil
}

// SyncOnce performs a single reconciliation run
func (s *Syncer) SyncOnce(ctx context.Context) error {
	startTime := time.Now()

	descriptors, err := s.cfg.Loader.LoadDir(s.cfg.Dir)
	if err != nil {
		s.countSync("error")
		return fmt.Errorf("failed to load definitions: %w", err)
	}

	commands, err := s.cfg.Client.ReplaceAll(ctx, s.cfg.GuildID, descriptors)
	if err != nil {
		s.countSync("error")
		return fmt.Errorf("failed to replace command set: %w", err)
	}

	s.countSync("ok")
	s.logger.Info().
		Int("commands", len(commands)).
		Dur("duration", time.Since(startTime)).
		Msg("Registry synced")

	return nil
}

// StartSchedule runs SyncOnce on a 5-field cron schedule until Stop is
// called. Failed runs are logged and counted; the schedule keeps going.
func (s *Syncer) StartSchedule(expr string) error {
	if s.cron != nil {
		return fmt.Errorf("schedule already started")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid sync schedule: %w", err)
	}

	s.cron = cron.New()
	s.cron.Schedule(schedule, cron.FuncJob(func() {
		if err := s.SyncOnce(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("Scheduled sync failed")
		}
	}))
	s.cron.Start()

	s.logger.Info().Str("schedule", expr).Msg("Sync schedule started")
	return nil
}

// Stop halts the sync schedule, waiting for a running job to finish
func (s *Syncer) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

func (s *Syncer) countSync(status string) {
	if s.cfg.Metrics == nil {
		return
	}
	s.cfg.Metrics.CommandSyncsTotal.WithLabelValues(status).Inc()
}
