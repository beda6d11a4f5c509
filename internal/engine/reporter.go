package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const reporterBuffer = 16

// progressLimit caps how fast updates are forwarded to the transport. A
// handler that reports every generated frame should not turn into a flood of
// pub/sub messages; excess updates are dropped, not queued.
var progressLimit = rate.Every(200 * time.Millisecond)

// Update is one progress report from a handler. Percent is expected to be
// monotonically non-decreasing within a job, but that is a handler contract;
// the engine never assumes or enforces it.
type Update struct {
	Percent int
	Message string
}

// Reporter is the progress side-channel handed to a handler for the duration
// of one job. Report never blocks the handler: updates go through a bounded
// buffer and the oldest pending update is dropped under pressure. A Reporter
// is only valid until Handle returns.
type Reporter struct {
	jobID   string
	updates chan Update
	done    chan struct{}
}

func newReporter(ctx context.Context, t Transport, jobID string, log *zap.Logger) *Reporter {
	r := &Reporter{
		jobID:   jobID,
		updates: make(chan Update, reporterBuffer),
		done:    make(chan struct{}),
	}
	go r.forward(ctx, t, log)
	return r
}

// Report queues a progress update. If the buffer is full the oldest pending
// update is discarded so the newest state wins.
func (r *Reporter) Report(percent int, message string) {
	u := Update{Percent: percent, Message: message}
	select {
	case r.updates <- u:
		return
	default:
	}
	select {
	case <-r.updates:
	default:
	}
	select {
	case r.updates <- u:
	default:
	}
}

// forward drains the buffer and pushes updates to the transport. Forwarding
// failures are logged and swallowed; they never reach the handler or the job
// outcome.
func (r *Reporter) forward(ctx context.Context, t Transport, log *zap.Logger) {
	defer close(r.done)
	limiter := rate.NewLimiter(progressLimit, reporterBuffer)
	for u := range r.updates {
		if !limiter.Allow() {
			continue
		}
		if err := t.PublishProgress(ctx, r.jobID, u.Percent, u.Message); err != nil {
			log.Warn("progress forward failed",
				zap.String("job", r.jobID),
				zap.Int("percent", u.Percent),
				zap.Error(err))
		}
	}
}

// close stops the forwarder after draining pending updates. Called by the
// processor once the handler has returned.
func (r *Reporter) close() {
	close(r.updates)
	<-r.done
}
