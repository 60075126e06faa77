package interaction

import "errors"

var (
	// ErrUnknownInteractionKind indicates a payload whose kind is neither a
	// probe nor a command invocation. Fatal for that single interaction;
	// the payload must not be retried.
	ErrUnknownInteractionKind = errors.New("unknown interaction kind")

	// ErrUnknownEnvelopeKind indicates an envelope that cannot be serialized
	ErrUnknownEnvelopeKind = errors.New("unknown envelope kind")
)
