package interaction

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxhall/voxhall/internal/metrics"
)

// Dispatcher classifies inbound interaction payloads and routes them to the
// application, producing exactly one response envelope per payload. Both
// delivery adapters (webhook and gateway) share a single dispatcher so the
// state machine exists in one place.
type Dispatcher struct {
	handler EventHandler
	budget  time.Duration
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// DispatcherConfig holds dispatcher configuration
type DispatcherConfig struct {
	// Handler receives command invocation events. Required.
	Handler EventHandler
	// DeadlineBudget bounds how long the application has to commit before a
	// deferred ack is sent on its behalf. Defaults to DefaultDeadlineBudget.
	DeadlineBudget time.Duration
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("event handler is required")
	}
	if cfg.DeadlineBudget <= 0 {
		cfg.DeadlineBudget = DefaultDeadlineBudget
	}

	return &Dispatcher{
		handler: cfg.Handler,
		budget:  cfg.DeadlineBudget,
		logger:  cfg.Logger.With().Str("component", "dispatcher").Logger(),
		metrics: cfg.Metrics,
	}, nil
}

// DeadlineBudget returns the configured deadline budget
func (d *Dispatcher) DeadlineBudget() time.Duration {
	return d.budget
}

// Handle routes one payload to its response envelope. Probes resolve
// synchronously; command invocations resolve when the application commits
// or the deadline fires, whichever comes first. Unknown kinds fail and the
// payload must not be retried.
func (d *Dispatcher) Handle(ctx context.Context, payload Payload) (Envelope, error) {
	switch payload.Kind {
	case KindProbe:
		d.logger.Debug().Str("interactionId", payload.ID).Msg("Probe received")
		d.countResponse(EnvelopePong)
		return Envelope{Kind: EnvelopePong}, nil

	case KindCommandInvocation:
		return d.handleCommand(ctx, payload)

	default:
		return Envelope{}, fmt.Errorf("%w: %d", ErrUnknownInteractionKind, payload.Kind)
	}
}

// handleCommand runs the acknowledgment race for a command invocation
func (d *Dispatcher) handleCommand(ctx context.Context, payload Payload) (Envelope, error) {
	race := newAckRace(d.budget)
	if d.metrics != nil {
		race.onLateReply = d.metrics.LateRepliesTotal.Inc
	}

	event := Event{
		Payload: payload,
		Ack:     &AckHandle{race: race},
	}

	// Fire-and-forget: the application signals back through the handle, not
	// through the handler's return.
	go d.emit(event)

	select {
	case env := <-race.result:
		if env.Kind == EnvelopeDeferredAck && race.wasTimeout() {
			d.logger.Debug().
				Str("interactionId", payload.ID).
				Str("command", event.CommandName()).
				Dur("budget", d.budget).
				Msg("Deadline expired, sending deferred ack")
			if d.metrics != nil {
				d.metrics.DeadlineExpiredTotal.Inc()
			}
		}
		d.countResponse(env.Kind)
		return env, nil

	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

// emit invokes the application handler, shielding the race from panics. A
// panicking handler still gets a deferred ack from the deadline timer.
func (d *Dispatcher) emit(event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Interface("panic", r).
				Str("interactionId", event.Payload.ID).
				Str("command", event.CommandName()).
				Msg("Panic in event handler")
		}
	}()

	d.handler(event)
}

func (d *Dispatcher) countResponse(kind EnvelopeKind) {
	if d.metrics == nil {
		return
	}
	d.metrics.ResponsesTotal.WithLabelValues(kind.String()).Inc()
}
