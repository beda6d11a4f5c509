package engine

import "context"

// Handler processes jobs of one payload type. Implementations must follow
// the execution contract:
//
//  1. Perform the primary domain operation; if it fails, return the error
//     and let the processor apply failure policy.
//  2. Report progress at meaningful milestones via the Reporter.
//  3. Absorb secondary-persistence failures locally and return a successful
//     Result with a degraded AuxOutcome instead of an error.
//
// Only a non-nil error counts as a job failure.
type Handler[P Payload, R any] interface {
	Handle(ctx context.Context, job *Job[P], progress *Reporter) (*Result[R], error)
}

// HandlerFunc adapts a plain function to a Handler.
type HandlerFunc[P Payload, R any] func(ctx context.Context, job *Job[P], progress *Reporter) (*Result[R], error)

func (f HandlerFunc[P, R]) Handle(ctx context.Context, job *Job[P], progress *Reporter) (*Result[R], error) {
	return f(ctx, job, progress)
}
