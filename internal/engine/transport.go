package engine

import "context"

// Transport is the engine's view of the queue backend. The primary
// implementation is the Redis Streams transport in internal/queue; tests use
// in-memory fakes. Mutual exclusion of claims is the transport's job, not
// the engine's.
type Transport interface {
	// Claim blocks until a job is available on the queue, the block timeout
	// elapses (nil envelope, nil error), or the context is cancelled.
	Claim(ctx context.Context, queue string) (*Envelope, error)

	// Ack removes a successfully processed envelope from the queue.
	Ack(ctx context.Context, env *Envelope) error

	// RequeueOrDeadLetter resolves a failed envelope: below the queue's
	// attempt limit it is scheduled for redelivery, at or above it the
	// envelope moves to the dead-letter stream. A failed job is never
	// silently dropped.
	RequeueOrDeadLetter(ctx context.Context, env *Envelope, cause error) error

	// PublishProgress forwards a progress update to any subscribers.
	// Best effort: failures must not affect job outcome.
	PublishProgress(ctx context.Context, jobID string, percent int, message string) error

	// SetJobStatus records the job's current status plus optional fields.
	SetJobStatus(ctx context.Context, jobID, status string, extra map[string]any) error
}
