package queue

import "errors"

// Errors returned by queue operations. Encode/decode failures wrap both the
// sentinel and the serializer's cause, so callers can classify with
// errors.Is and still see what went wrong.
var (
	// ErrClosed indicates an operation on a closed queue.
	ErrClosed = errors.New("eventq: queue closed")

	// ErrMissingSlot indicates the metadata points at a slot that is not
	// in storage. This is a violated invariant, never an empty queue, and
	// is surfaced rather than masked so data loss cannot hide.
	ErrMissingSlot = errors.New("eventq: slot missing from storage")

	// ErrCorruptMetadata indicates the metadata record exists but does not
	// decode, e.g. the name collides with an incompatible structure.
	ErrCorruptMetadata = errors.New("eventq: corrupted metadata record")

	// ErrSequenceExhausted indicates the 64-bit sequence space ran out.
	// Wrapping around could alias a live slot, so this is fatal.
	ErrSequenceExhausted = errors.New("eventq: sequence space exhausted")

	// ErrEncode wraps a payload serialization failure. Nothing was written.
	ErrEncode = errors.New("eventq: encode payload")

	// ErrDecode wraps a payload deserialization failure. The element stays
	// queued for a later attempt.
	ErrDecode = errors.New("eventq: decode payload")
)
