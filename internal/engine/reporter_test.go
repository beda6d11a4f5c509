package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestReporterDropsOldestUnderPressure(t *testing.T) {
	// No forwarder attached: the buffer fills and Report has to shed.
	r := &Reporter{updates: make(chan Update, reporterBuffer)}

	for i := 0; i < reporterBuffer+4; i++ {
		r.Report(i, "step")
	}

	var got []int
	for {
		select {
		case u := <-r.updates:
			got = append(got, u.Percent)
			continue
		default:
		}
		break
	}

	if len(got) != reporterBuffer {
		t.Fatalf("buffered updates = %d, want %d", len(got), reporterBuffer)
	}
	if got[0] != 4 {
		t.Errorf("oldest surviving update = %d, want 4 (0..3 dropped)", got[0])
	}
	if got[len(got)-1] != reporterBuffer+3 {
		t.Errorf("newest update = %d, want %d", got[len(got)-1], reporterBuffer+3)
	}
}

func TestReporterNeverBlocksHandler(t *testing.T) {
	gate := make(chan struct{})
	bt := &blockingTransport{gate: gate}

	r := newReporter(context.Background(), bt, "job-x", zap.NewNop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			r.Report(i, "frame")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Report blocked the handler while the transport was stuck")
	}

	close(gate)
	r.close()
}

func TestReporterPublishErrorIsSwallowed(t *testing.T) {
	transport := newFakeTransport(0)
	transport.publishErr = errors.New("pubsub down")

	r := newReporter(context.Background(), transport, "job-x", zap.NewNop())
	r.Report(25, "warming up")
	r.close()

	transport.mu.Lock()
	forwarded := len(transport.progress)
	transport.mu.Unlock()
	if forwarded != 1 {
		t.Errorf("forwarded updates = %d, want 1", forwarded)
	}
}

func TestReporterCloseDrainsPending(t *testing.T) {
	transport := newFakeTransport(0)

	r := newReporter(context.Background(), transport, "job-x", zap.NewNop())
	r.Report(10, "start")
	r.Report(60, "rendering")
	r.Report(100, "done")
	r.close()

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if len(transport.progress) != 3 {
		t.Fatalf("forwarded updates = %d, want 3", len(transport.progress))
	}
	if last := transport.progress[2]; last.Percent != 100 {
		t.Errorf("last forwarded percent = %d, want 100", last.Percent)
	}
}

// blockingTransport wedges PublishProgress until the gate is closed.
type blockingTransport struct {
	fakeTransport
	gate <-chan struct{}
}

func (b *blockingTransport) PublishProgress(ctx context.Context, jobID string, percent int, message string) error {
	<-b.gate
	return nil
}
