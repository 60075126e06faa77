package interaction

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/voxhall/internal/metrics"
)

func testDispatcher(t *testing.T, handler EventHandler, budget time.Duration) *Dispatcher {
	t.Helper()

	d, err := NewDispatcher(DispatcherConfig{
		Handler:        handler,
		DeadlineBudget: budget,
		Logger:         zerolog.New(os.Stdout).Level(zerolog.Disabled),
		Metrics:        metrics.NewMetrics(),
	})
	require.NoError(t, err)
	return d
}

func TestNewDispatcherRequiresHandler(t *testing.T) {
	_, err := NewDispatcher(DispatcherConfig{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "event handler is required")
}

func TestNewDispatcherDefaultBudget(t *testing.T) {
	d := testDispatcher(t, func(Event) {}, 0)
	assert.Equal(t, DefaultDeadlineBudget, d.DeadlineBudget())
}

func TestHandleProbe(t *testing.T) {
	d := testDispatcher(t, func(Event) {
		t.Error("probe must not reach the event handler")
	}, time.Hour)

	start := time.Now()
	env, err := d.Handle(context.Background(), Payload{Kind: KindProbe, ID: "1"})

	require.NoError(t, err)
	assert.Equal(t, EnvelopePong, env.Kind)
	// Probes resolve synchronously regardless of the configured deadline
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestHandleUnknownKind(t *testing.T) {
	d := testDispatcher(t, func(Event) {}, 250*time.Millisecond)

	_, err := d.Handle(context.Background(), Payload{Kind: PayloadKind(99), ID: "1"})
	assert.ErrorIs(t, err, ErrUnknownInteractionKind)
}

func TestHandleCommandReply(t *testing.T) {
	payload := Payload{
		Kind:  KindCommandInvocation,
		ID:    "42",
		Token: "tok",
		Data:  &CommandData{Name: "greet"},
	}

	d := testDispatcher(t, func(event Event) {
		assert.Equal(t, "greet", event.CommandName())
		assert.Equal(t, "42", event.Payload.ID)
		time.Sleep(50 * time.Millisecond)
		ok := event.Ack.Reply(Body{"content": "hi"}, false)
		assert.True(t, ok)
	}, 250*time.Millisecond)

	start := time.Now()
	env, err := d.Handle(context.Background(), payload)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, EnvelopeReply, env.Kind)
	assert.Equal(t, "hi", env.Body["content"])
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestHandleCommandDeadline(t *testing.T) {
	d := testDispatcher(t, func(Event) {
		// Application never commits
	}, 80*time.Millisecond)

	payload := Payload{Kind: KindCommandInvocation, ID: "1", Data: &CommandData{Name: "slow"}}

	start := time.Now()
	env, err := d.Handle(context.Background(), payload)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, EnvelopeDeferredAck, env.Kind)
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
}

func TestHandleCommandSlowHandlerStillAcked(t *testing.T) {
	released := make(chan struct{})
	d := testDispatcher(t, func(event Event) {
		// Handler keeps working well past the budget
		<-released
		ok := event.Ack.Reply(Body{"content": "done"}, false)
		assert.False(t, ok)
	}, 50*time.Millisecond)

	payload := Payload{Kind: KindCommandInvocation, ID: "1", Data: &CommandData{Name: "work"}}

	env, err := d.Handle(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, EnvelopeDeferredAck, env.Kind)

	close(released)
	time.Sleep(20 * time.Millisecond)
}

func TestHandleCommandPanicInHandler(t *testing.T) {
	d := testDispatcher(t, func(Event) {
		panic("handler exploded")
	}, 50*time.Millisecond)

	payload := Payload{Kind: KindCommandInvocation, ID: "1", Data: &CommandData{Name: "boom"}}

	env, err := d.Handle(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, EnvelopeDeferredAck, env.Kind)
}

func TestHandleCommandAcknowledge(t *testing.T) {
	d := testDispatcher(t, func(event Event) {
		event.Ack.Acknowledge(true)
	}, 250*time.Millisecond)

	payload := Payload{Kind: KindCommandInvocation, ID: "1", Data: &CommandData{Name: "later"}}

	env, err := d.Handle(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, EnvelopeDeferredAckSilent, env.Kind)
}

func TestHandleContextCancelled(t *testing.T) {
	d := testDispatcher(t, func(Event) {}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	payload := Payload{Kind: KindCommandInvocation, ID: "1", Data: &CommandData{Name: "x"}}
	_, err := d.Handle(ctx, payload)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandleProducesExactlyOneEnvelope(t *testing.T) {
	// The handler commits just as the deadline fires; whatever wins, Handle
	// must return exactly one envelope and never hang
	for i := 0; i < 20; i++ {
		d := testDispatcher(t, func(event Event) {
			time.Sleep(10 * time.Millisecond)
			event.Ack.Reply(Body{"content": "photo finish"}, false)
		}, 10*time.Millisecond)

		payload := Payload{Kind: KindCommandInvocation, ID: "1", Data: &CommandData{Name: "tie"}}

		env, err := d.Handle(context.Background(), payload)
		require.NoError(t, err)
		assert.Contains(t, []EnvelopeKind{EnvelopeDeferredAck, EnvelopeReply}, env.Kind)
	}
}
