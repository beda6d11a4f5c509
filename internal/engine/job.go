// Package engine implements the job processing core for StickerNest's AI
// generation pipeline.
//
// Architecture:
//
//	Transport (Redis Streams) → Processor (one per queue) → Handler → collaborators
//
// A Processor owns a fixed number of concurrency slots for one named queue.
// Each slot runs a sequential claim → handle → resolve loop; slots never
// share jobs. Handlers report incremental progress through a Reporter, which
// forwards updates to the transport without ever blocking generation work.
//
// A Registry owns the lifecycle of every processor in the hosting process.
// It is an explicit object constructed at startup, not package state, so
// tests can build and tear down isolated worker sets.
package engine

import (
	"encoding/json"
	"time"
)

// Job status values written to the transport's status record.
// Transitions are monotonic: pending → in_progress → {succeeded, failed}.
// A requeued job returns to pending; succeeded and failed are terminal.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
)

// Envelope is one unit of work as it arrives from the transport.
// The payload stays opaque until the owning processor decodes it into the
// queue's concrete payload type.
type Envelope struct {
	// ID uniquely identifies the job, assigned at enqueue time.
	ID string

	// Queue is the named queue this envelope was claimed from.
	Queue string

	// Kind is the producer-declared job kind (e.g. "video.generate").
	Kind string

	// Data is the raw handler-specific payload.
	Data json.RawMessage

	// Attempt counts failed processing attempts so far. Starts at 0 and is
	// incremented by the processor each time the handler raises.
	Attempt int

	// MessageID is the transport-specific message identifier used for ack.
	MessageID string

	// EnqueuedAt is when the producer submitted the job.
	EnqueuedAt time.Time
}

// Payload is implemented by each job-kind payload type. The processor is
// generic over the payload, so a handler only ever sees its own shape.
type Payload interface {
	Kind() string
}

// Job is a claimed envelope with its payload decoded.
type Job[P Payload] struct {
	Envelope

	// Payload is the decoded, queue-specific payload.
	Payload P
}

// AuxOutcome records whether the handler's secondary persistence step
// (e.g. saving an asset record) succeeded. A degraded outcome never fails
// the job; it only means the optional linked record is absent.
type AuxOutcome struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// AuxOK reports that secondary persistence completed.
func AuxOK() AuxOutcome {
	return AuxOutcome{OK: true}
}

// AuxDegraded reports that secondary persistence failed with the given
// reason. The primary result is still valid.
func AuxDegraded(reason string) AuxOutcome {
	return AuxOutcome{Reason: reason}
}

// Result is the terminal value of a successful handler invocation.
// Primary is required; Aux separates the success/degraded distinction into
// a first-class value instead of an implicit side effect of swallowed errors.
type Result[R any] struct {
	Primary R          `json:"primary"`
	Aux     AuxOutcome `json:"aux"`
}
