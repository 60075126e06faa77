package interaction

import (
	"sync"
	"time"
)

// DefaultDeadlineBudget is how long the race waits for the application
// before sending a deferred ack on its behalf.
const DefaultDeadlineBudget = 250 * time.Millisecond

// ackRace races the deadline timer against the application's commit. The
// buffered result channel is the one-shot settlement slot: whoever settles
// first wins and the loser's attempt is discarded. The mutex makes the
// timed-out flag and the settlement decision atomic with respect to each
// other, so a reply landing just as the timer fires cannot observe success
// while the deferred ack goes out.
type ackRace struct {
	result chan Envelope
	timer  *time.Timer

	// onLateReply is invoked for each reply rejected after the deadline
	onLateReply func()

	mu       sync.Mutex
	settled  bool
	timedOut bool
}

func newAckRace(budget time.Duration) *ackRace {
	if budget <= 0 {
		budget = DefaultDeadlineBudget
	}
	r := &ackRace{
		result: make(chan Envelope, 1),
	}
	r.timer = time.AfterFunc(budget, r.deadlineExpired)
	return r
}

// deadlineExpired fires once, at the deadline budget, unless an earlier
// commit stopped the timer.
func (r *ackRace) deadlineExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settled {
		return
	}
	r.timedOut = true
	r.settleLocked(Envelope{Kind: EnvelopeDeferredAck})
}

// settleLocked resolves the race. Must hold r.mu; must only be called once.
func (r *ackRace) settleLocked(env Envelope) {
	r.settled = true
	r.result <- env
	r.timer.Stop()
}

// AckHandle is the capability given to the application for one specific
// interaction. Whichever of Acknowledge, Reply, or the deadline timer
// commits first determines the response; everything after is inert.
//
// Acknowledge after the deadline is a silent no-op rather than an error:
// the deferred ack the timer already sent is the same initial response the
// late Acknowledge asked for, so there is nothing for the caller to act on.
// Reply after the deadline returns false because the caller must switch to
// the follow-up delivery path for its content.
type AckHandle struct {
	race *ackRace
}

// Acknowledge commits to deliver the real content later. A no-op if the
// race has already resolved.
func (h *AckHandle) Acknowledge(silent bool) {
	r := h.race
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settled || r.timedOut {
		return
	}

	kind := EnvelopeDeferredAck
	if silent {
		kind = EnvelopeDeferredAckSilent
	}
	r.settleLocked(Envelope{Kind: kind})
}

// Reply commits immediate content. Returns false if the deadline has
// already fired or another commit won, in which case the content was not
// used and must be delivered out of band.
func (h *AckHandle) Reply(body Body, silent bool) bool {
	r := h.race
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settled || r.timedOut {
		if r.timedOut && r.onLateReply != nil {
			r.onLateReply()
		}
		return false
	}

	kind := EnvelopeReply
	if silent {
		kind = EnvelopeReplySilent
	}
	r.settleLocked(Envelope{Kind: kind, Body: body})
	return true
}

// TimedOut reports whether the deadline fired before any commit
func (h *AckHandle) TimedOut() bool {
	return h.race.wasTimeout()
}

func (r *ackRace) wasTimeout() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timedOut
}
