package interaction

import (
	"encoding/json"
)

// PayloadKind identifies what an inbound interaction payload represents
type PayloadKind int

const (
	// KindProbe is a liveness probe from the platform
	KindProbe PayloadKind = 1
	// KindCommandInvocation is a command invocation requiring a response
	KindCommandInvocation PayloadKind = 2
)

// String returns a stable label for the payload kind
func (k PayloadKind) String() string {
	switch k {
	case KindProbe:
		return "probe"
	case KindCommandInvocation:
		return "command"
	default:
		return "unknown"
	}
}

// EnvelopeKind identifies the response produced for an interaction
type EnvelopeKind int

const (
	// EnvelopePong answers a liveness probe
	EnvelopePong EnvelopeKind = iota + 1
	// EnvelopeDeferredAck commits to deliver the real content later
	EnvelopeDeferredAck
	// EnvelopeDeferredAckSilent is a deferred ack visible only to the invoker
	EnvelopeDeferredAckSilent
	// EnvelopeReply carries immediate content
	EnvelopeReply
	// EnvelopeReplySilent carries immediate content visible only to the invoker
	EnvelopeReplySilent
)

// String returns a stable label for the envelope kind
func (k EnvelopeKind) String() string {
	switch k {
	case EnvelopePong:
		return "pong"
	case EnvelopeDeferredAck:
		return "deferred_ack"
	case EnvelopeDeferredAckSilent:
		return "deferred_ack_silent"
	case EnvelopeReply:
		return "reply"
	case EnvelopeReplySilent:
		return "reply_silent"
	default:
		return "unknown"
	}
}

// Wire response type codes expected by the platform
const (
	wireTypePong        = 1
	wireTypeReply       = 4
	wireTypeDeferredAck = 5
)

// flagEphemeral marks a response as visible only to the invoking user
const flagEphemeral = 1 << 6

// Payload is a single inbound interaction event. Immutable once received.
type Payload struct {
	Kind  PayloadKind  `json:"type"`
	ID    string       `json:"id"`
	Token string       `json:"token"`
	Data  *CommandData `json:"data,omitempty"`
}

// CommandData carries the invoked command name and its resolved option values.
// Present only for command invocations.
type CommandData struct {
	Name    string        `json:"name"`
	Options []OptionValue `json:"options,omitempty"`
}

// OptionValue is a resolved command option. Subcommand options nest their
// children under Options instead of carrying a Value.
type OptionValue struct {
	Name    string        `json:"name"`
	Value   interface{}   `json:"value,omitempty"`
	Options []OptionValue `json:"options,omitempty"`
}

// Body is the application-supplied content of a reply envelope
type Body map[string]interface{}

// Envelope is the single outbound value produced per interaction.
// Exactly one envelope is produced for every payload handled.
type Envelope struct {
	Kind EnvelopeKind
	Body Body
}

// Silent reports whether the envelope is only visible to the invoker
func (e Envelope) Silent() bool {
	return e.Kind == EnvelopeDeferredAckSilent || e.Kind == EnvelopeReplySilent
}

// wireEnvelope is the JSON shape the platform expects
type wireEnvelope struct {
	Type int             `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON serializes the envelope to the platform wire format. Silent
// variants are expressed through the ephemeral flag on the data object.
func (e Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{}

	switch e.Kind {
	case EnvelopePong:
		w.Type = wireTypePong
	case EnvelopeDeferredAck, EnvelopeDeferredAckSilent:
		w.Type = wireTypeDeferredAck
	case EnvelopeReply, EnvelopeReplySilent:
		w.Type = wireTypeReply
	default:
		return nil, ErrUnknownEnvelopeKind
	}

	data := make(map[string]interface{}, len(e.Body)+1)
	for k, v := range e.Body {
		data[k] = v
	}
	if e.Silent() {
		data["flags"] = flagEphemeral
	}

	if len(data) > 0 {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		w.Data = raw
	}

	return json.Marshal(w)
}

// Event is handed to the application for each command invocation. The Ack
// handle is valid only until the acknowledgment race resolves.
type Event struct {
	Payload Payload
	Ack     *AckHandle
}

// CommandName returns the invoked command name, or "" for non-command events
func (e Event) CommandName() string {
	if e.Payload.Data == nil {
		return ""
	}
	return e.Payload.Data.Name
}

// EventHandler receives command invocation events. The dispatcher invokes it
// on its own goroutine and does not wait for it to return; the handler
// signals back exclusively through the event's Ack handle.
type EventHandler func(event Event)
