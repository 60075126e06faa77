package interaction

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyBeforeDeadline(t *testing.T) {
	race := newAckRace(250 * time.Millisecond)
	handle := &AckHandle{race: race}

	start := time.Now()

	go func() {
		time.Sleep(50 * time.Millisecond)
		ok := handle.Reply(Body{"content": "hi"}, false)
		assert.True(t, ok)
	}()

	env := <-race.result
	elapsed := time.Since(start)

	assert.Equal(t, EnvelopeReply, env.Kind)
	assert.Equal(t, "hi", env.Body["content"])

	// The race must resolve as soon as the reply commits, not wait out the budget
	assert.Less(t, elapsed, 200*time.Millisecond)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestDeadlineExpiresWithoutCommit(t *testing.T) {
	race := newAckRace(100 * time.Millisecond)
	handle := &AckHandle{race: race}

	start := time.Now()
	env := <-race.result
	elapsed := time.Since(start)

	assert.Equal(t, EnvelopeDeferredAck, env.Kind)
	assert.True(t, handle.TimedOut())

	// Delivered at the deadline, not sooner
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestReplyAfterDeadlineRejected(t *testing.T) {
	race := newAckRace(30 * time.Millisecond)
	handle := &AckHandle{race: race}

	env := <-race.result
	require.Equal(t, EnvelopeDeferredAck, env.Kind)

	// Late reply must fail without altering the result
	ok := handle.Reply(Body{"content": "too late"}, false)
	assert.False(t, ok)

	select {
	case extra := <-race.result:
		t.Fatalf("second envelope produced: %+v", extra)
	default:
	}
}

func TestAcknowledgeAfterDeadlineInert(t *testing.T) {
	race := newAckRace(30 * time.Millisecond)
	handle := &AckHandle{race: race}

	env := <-race.result
	require.Equal(t, EnvelopeDeferredAck, env.Kind)

	// Must not panic, error, or produce a second envelope
	handle.Acknowledge(true)

	select {
	case extra := <-race.result:
		t.Fatalf("second envelope produced: %+v", extra)
	default:
	}
}

func TestAcknowledgeSilent(t *testing.T) {
	race := newAckRace(250 * time.Millisecond)
	handle := &AckHandle{race: race}

	handle.Acknowledge(true)

	env := <-race.result
	assert.Equal(t, EnvelopeDeferredAckSilent, env.Kind)
	assert.False(t, handle.TimedOut())
}

func TestAcknowledgeLoud(t *testing.T) {
	race := newAckRace(250 * time.Millisecond)
	handle := &AckHandle{race: race}

	handle.Acknowledge(false)

	env := <-race.result
	assert.Equal(t, EnvelopeDeferredAck, env.Kind)
}

func TestReplySilent(t *testing.T) {
	race := newAckRace(250 * time.Millisecond)
	handle := &AckHandle{race: race}

	ok := handle.Reply(Body{"content": "secret"}, true)
	assert.True(t, ok)

	env := <-race.result
	assert.Equal(t, EnvelopeReplySilent, env.Kind)
	assert.Equal(t, "secret", env.Body["content"])
}

func TestDuplicateCommitsAreNoOps(t *testing.T) {
	race := newAckRace(250 * time.Millisecond)
	handle := &AckHandle{race: race}

	handle.Acknowledge(true)

	// Second acknowledge is a silent no-op, second reply reports failure
	handle.Acknowledge(false)
	ok := handle.Reply(Body{"content": "late"}, false)
	assert.False(t, ok)

	env := <-race.result
	assert.Equal(t, EnvelopeDeferredAckSilent, env.Kind)

	select {
	case extra := <-race.result:
		t.Fatalf("second envelope produced: %+v", extra)
	default:
	}
}

func TestReplyAfterReplyRejected(t *testing.T) {
	race := newAckRace(250 * time.Millisecond)
	handle := &AckHandle{race: race}

	assert.True(t, handle.Reply(Body{"content": "first"}, false))
	assert.False(t, handle.Reply(Body{"content": "second"}, false))

	env := <-race.result
	assert.Equal(t, "first", env.Body["content"])
}

func TestConcurrentCommitsProduceOneEnvelope(t *testing.T) {
	// Hammer the race from many goroutines; exactly one envelope may appear
	for i := 0; i < 50; i++ {
		race := newAckRace(5 * time.Millisecond)
		handle := &AckHandle{race: race}

		var wg sync.WaitGroup
		for j := 0; j < 8; j++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				if n%2 == 0 {
					handle.Acknowledge(n%4 == 0)
				} else {
					handle.Reply(Body{"content": "race"}, false)
				}
			}(j)
		}
		wg.Wait()

		// Let the timer fire if nothing committed (it cannot here, but the
		// timer path must not double-settle either way)
		time.Sleep(10 * time.Millisecond)

		count := 0
	drain:
		for {
			select {
			case <-race.result:
				count++
			default:
				break drain
			}
		}
		require.Equal(t, 1, count, "iteration %d", i)
	}
}

func TestLateReplyCallback(t *testing.T) {
	race := newAckRace(20 * time.Millisecond)
	calls := 0
	race.onLateReply = func() { calls++ }
	handle := &AckHandle{race: race}

	<-race.result

	handle.Reply(Body{"content": "late"}, false)
	handle.Reply(Body{"content": "later"}, true)

	assert.Equal(t, 2, calls)
}

func TestTimerCancelledOnCommit(t *testing.T) {
	race := newAckRace(30 * time.Millisecond)
	handle := &AckHandle{race: race}

	require.True(t, handle.Reply(Body{"content": "fast"}, false))
	<-race.result

	// Give the would-be timer a chance to misbehave
	time.Sleep(60 * time.Millisecond)

	assert.False(t, handle.TimedOut())
	select {
	case extra := <-race.result:
		t.Fatalf("timer settled after commit: %+v", extra)
	default:
	}
}

func TestZeroBudgetFallsBackToDefault(t *testing.T) {
	race := newAckRace(0)
	handle := &AckHandle{race: race}

	// The default budget leaves plenty of room for an immediate commit
	assert.True(t, handle.Reply(Body{"content": "hi"}, false))
}
