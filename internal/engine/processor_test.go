package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func okHandler(delay time.Duration) HandlerFunc[testPayload, testResult] {
	return func(ctx context.Context, job *Job[testPayload], progress *Reporter) (*Result[testResult], error) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return &Result[testResult]{Primary: testResult{Echo: job.Payload.Value}, Aux: AuxOK()}, nil
	}
}

func TestProcessorConcurrencyCap(t *testing.T) {
	transport := newFakeTransport(5)

	var inFlight, maxInFlight int32
	handler := HandlerFunc[testPayload, testResult](func(ctx context.Context, job *Job[testPayload], progress *Reporter) (*Result[testResult], error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			max := atomic.LoadInt32(&maxInFlight)
			if n <= max || atomic.CompareAndSwapInt32(&maxInFlight, max, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &Result[testResult]{Aux: AuxOK()}, nil
	})

	proc := NewProcessor[testPayload, testResult](transport, "ai:image", handler, Options{Concurrency: 2})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := proc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer proc.Stop()

	waitFor(t, 5*time.Second, func() bool { return transport.resolvedCount() == 5 })

	if got := atomic.LoadInt32(&maxInFlight); got > 2 {
		t.Errorf("max in-flight handlers = %d, want <= 2", got)
	}
	if transport.ackedCount() != 5 {
		t.Errorf("acked = %d, want 5", transport.ackedCount())
	}
}

func TestProcessorGenerationFailureIncrementsAttemptOnce(t *testing.T) {
	transport := newFakeTransport(1)

	handler := HandlerFunc[testPayload, testResult](func(ctx context.Context, job *Job[testPayload], progress *Reporter) (*Result[testResult], error) {
		return nil, errors.New("provider unavailable")
	})

	proc := NewProcessor[testPayload, testResult](transport, "ai:image", handler, Options{Concurrency: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := proc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer proc.Stop()

	waitFor(t, 5*time.Second, func() bool { return transport.requeuedCount() == 1 })

	transport.mu.Lock()
	env := transport.requeued[0]
	transport.mu.Unlock()
	if env.Attempt != 1 {
		t.Errorf("attempt after one failure = %d, want 1", env.Attempt)
	}
	if transport.ackedCount() != 0 {
		t.Errorf("failed job was acked, want requeue-or-dead-letter only")
	}
}

func TestProcessorDegradedSuccessIsNotAFailure(t *testing.T) {
	transport := newFakeTransport(1)

	handler := HandlerFunc[testPayload, testResult](func(ctx context.Context, job *Job[testPayload], progress *Reporter) (*Result[testResult], error) {
		return &Result[testResult]{
			Primary: testResult{Echo: "https://cdn.example/video.mp4"},
			Aux:     AuxDegraded("duplicate id"),
		}, nil
	})

	proc := NewProcessor[testPayload, testResult](transport, "ai:video", handler, Options{Concurrency: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := proc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer proc.Stop()

	waitFor(t, 5*time.Second, func() bool { return transport.ackedCount() == 1 })

	if transport.requeuedCount() != 0 {
		t.Errorf("degraded success was requeued, want ack")
	}
	history := transport.statusHistory("job-a")
	if len(history) == 0 || history[len(history)-1] != StatusSucceeded {
		t.Errorf("status history = %v, want terminal %q", history, StatusSucceeded)
	}

	transport.mu.Lock()
	var degradedReason any
	for _, s := range transport.statuses {
		if s.status == StatusSucceeded && s.extra != nil {
			degradedReason = s.extra["aux_degraded"]
		}
	}
	transport.mu.Unlock()
	if degradedReason != "duplicate id" {
		t.Errorf("aux_degraded = %v, want %q", degradedReason, "duplicate id")
	}
}

func TestProcessorNonMonotonicProgressDoesNotCrash(t *testing.T) {
	transport := newFakeTransport(1)

	handler := HandlerFunc[testPayload, testResult](func(ctx context.Context, job *Job[testPayload], progress *Reporter) (*Result[testResult], error) {
		progress.Report(80, "almost there")
		progress.Report(10, "actually not")
		progress.Report(100, "done")
		return &Result[testResult]{Aux: AuxOK()}, nil
	})

	proc := NewProcessor[testPayload, testResult](transport, "ai:image", handler, Options{Concurrency: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := proc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer proc.Stop()

	waitFor(t, 5*time.Second, func() bool { return transport.ackedCount() == 1 })
}

func TestProcessorProgressFailureDoesNotFailJob(t *testing.T) {
	transport := newFakeTransport(1)
	transport.publishErr = errors.New("pubsub down")

	handler := HandlerFunc[testPayload, testResult](func(ctx context.Context, job *Job[testPayload], progress *Reporter) (*Result[testResult], error) {
		progress.Report(50, "halfway")
		return &Result[testResult]{Aux: AuxOK()}, nil
	})

	proc := NewProcessor[testPayload, testResult](transport, "ai:image", handler, Options{Concurrency: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := proc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer proc.Stop()

	waitFor(t, 5*time.Second, func() bool { return transport.ackedCount() == 1 })
	if transport.requeuedCount() != 0 {
		t.Error("progress failure escalated to job failure")
	}
}

func TestProcessorHandlerPanicBecomesFailure(t *testing.T) {
	transport := newFakeTransport(1)

	handler := HandlerFunc[testPayload, testResult](func(ctx context.Context, job *Job[testPayload], progress *Reporter) (*Result[testResult], error) {
		panic("corrupt model weights")
	})

	proc := NewProcessor[testPayload, testResult](transport, "ai:image", handler, Options{Concurrency: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := proc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer proc.Stop()

	waitFor(t, 5*time.Second, func() bool { return transport.requeuedCount() == 1 })
	if transport.ackedCount() != 0 {
		t.Error("panicking handler was acked")
	}
}

func TestProcessorTimeoutFailsStuckHandler(t *testing.T) {
	transport := newFakeTransport(1)

	handler := HandlerFunc[testPayload, testResult](func(ctx context.Context, job *Job[testPayload], progress *Reporter) (*Result[testResult], error) {
		<-ctx.Done()
		return nil, fmt.Errorf("generation interrupted: %w", ctx.Err())
	})

	proc := NewProcessor[testPayload, testResult](transport, "ai:video", handler, Options{Concurrency: 1, Timeout: 30 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := proc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer proc.Stop()

	waitFor(t, 5*time.Second, func() bool { return transport.requeuedCount() == 1 })
}

func TestProcessorStartIsIdempotent(t *testing.T) {
	transport := newFakeTransport(0)
	proc := NewProcessor[testPayload, testResult](transport, "ai:image", okHandler(0), Options{Concurrency: 2})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := proc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := proc.Start(ctx); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if !proc.Running() {
		t.Fatal("processor not running after Start")
	}

	cancel()
	proc.Stop()
	if proc.Running() {
		t.Error("processor still running after Stop")
	}
}

func TestProcessorMalformedPayloadFails(t *testing.T) {
	transport := newFakeTransport(1)
	transport.jobs[0].Data = []byte(`{"value":`)

	proc := NewProcessor[testPayload, testResult](transport, "ai:image", okHandler(0), Options{Concurrency: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := proc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer proc.Stop()

	waitFor(t, 5*time.Second, func() bool { return transport.requeuedCount() == 1 })
}
