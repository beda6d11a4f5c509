package engine

import (
	"context"
	"encoding/json"
	"sync"
)

// testPayload is the payload type used across the engine tests.
type testPayload struct {
	Value string `json:"value"`
}

func (testPayload) Kind() string { return "test.job" }

type testResult struct {
	Echo string `json:"echo"`
}

// statusWrite records one SetJobStatus call.
type statusWrite struct {
	jobID  string
	status string
	extra  map[string]any
}

// fakeTransport hands out a fixed set of envelopes, then blocks claims until
// the context is cancelled, like a real transport waiting on an empty queue.
type fakeTransport struct {
	mu         sync.Mutex
	jobs       []*Envelope
	next       int
	acked      []*Envelope
	requeued   []*Envelope
	statuses   []statusWrite
	progress   []Update
	publishErr error
}

func newFakeTransport(n int) *fakeTransport {
	t := &fakeTransport{}
	for i := 0; i < n; i++ {
		t.jobs = append(t.jobs, &Envelope{
			ID:        "job-" + string(rune('a'+i)),
			Queue:     "ai:image",
			Kind:      "test.job",
			Data:      json.RawMessage(`{"value":"v"}`),
			MessageID: "msg-" + string(rune('a'+i)),
		})
	}
	return t
}

func (f *fakeTransport) Claim(ctx context.Context, queue string) (*Envelope, error) {
	f.mu.Lock()
	if f.next < len(f.jobs) {
		env := *f.jobs[f.next]
		f.next++
		f.mu.Unlock()
		return &env, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeTransport) Ack(ctx context.Context, env *Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, env)
	return nil
}

func (f *fakeTransport) RequeueOrDeadLetter(ctx context.Context, env *Envelope, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := *env
	f.requeued = append(f.requeued, &snapshot)
	return nil
}

func (f *fakeTransport) PublishProgress(ctx context.Context, jobID string, percent int, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, Update{Percent: percent, Message: message})
	return f.publishErr
}

func (f *fakeTransport) SetJobStatus(ctx context.Context, jobID, status string, extra map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, statusWrite{jobID: jobID, status: status, extra: extra})
	return nil
}

func (f *fakeTransport) ackedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.acked)
}

func (f *fakeTransport) requeuedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requeued)
}

func (f *fakeTransport) resolvedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.acked) + len(f.requeued)
}

func (f *fakeTransport) statusHistory(jobID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.statuses {
		if s.jobID == jobID {
			out = append(out, s.status)
		}
	}
	return out
}

var _ Transport = (*fakeTransport)(nil)
