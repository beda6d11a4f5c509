package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hkcm91/StickerNestV3-sub013/internal/metrics"
)

const (
	claimBackoffBase = time.Second
	claimBackoffMax  = 30 * time.Second
)

// Runnable is the non-generic surface of a Processor, used by the Registry.
type Runnable interface {
	// Queue returns the named queue this processor consumes.
	Queue() string

	// Start launches the claim loops. Idempotent: a second call on a running
	// processor is a no-op.
	Start(ctx context.Context) error

	// Running reports whether the claim loops have been started.
	Running() bool

	// Stop cancels the claim loops and waits for in-flight jobs to resolve.
	Stop()
}

// Options configures a Processor.
type Options struct {
	// Concurrency is the hard cap on simultaneous handler invocations for
	// this queue. Values below 1 are treated as 1. Generation-heavy kinds
	// run at 1; lighter kinds at small positive numbers.
	Concurrency int

	// Timeout bounds one handler invocation. Zero disables the wrapper and
	// a stuck handler occupies its slot until the process stops.
	Timeout time.Duration

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Processor drives bounded-concurrency consumption of one named queue.
// It is generic over the payload and result types so each handler only
// receives its own payload shape.
type Processor[P Payload, R any] struct {
	transport   Transport
	queue       string
	handler     Handler[P, R]
	concurrency int
	timeout     time.Duration
	log         *zap.Logger
	metrics     *metrics.Metrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewProcessor creates a processor for the given queue and handler.
func NewProcessor[P Payload, R any](transport Transport, queue string, handler Handler[P, R], opts Options) *Processor[P, R] {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Processor[P, R]{
		transport:   transport,
		queue:       queue,
		handler:     handler,
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
		log:         opts.Logger.With(zap.String("queue", queue)),
		metrics:     opts.Metrics,
	}
}

func (p *Processor[P, R]) Queue() string {
	return p.queue
}

func (p *Processor[P, R]) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start launches exactly Concurrency slot loops. Calling Start on a running
// processor does not add loops.
func (p *Processor[P, R]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, runCtx := errgroup.WithContext(runCtx)
	for i := 0; i < p.concurrency; i++ {
		slot := i
		group.Go(func() error {
			p.runSlot(runCtx, slot)
			return nil
		})
	}

	p.cancel = cancel
	p.group = group
	p.running = true
	p.log.Info("processor started", zap.Int("concurrency", p.concurrency))
	return nil
}

// Stop cancels the slot loops and blocks until in-flight jobs have resolved.
func (p *Processor[P, R]) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.cancel()
	_ = p.group.Wait()
	p.running = false
	p.log.Info("processor stopped")
}

// runSlot is one sequential claim → handle → resolve loop. Claim errors back
// off exponentially; an empty claim retries immediately because the
// transport already blocked for its poll window.
func (p *Processor[P, R]) runSlot(ctx context.Context, slot int) {
	log := p.log.With(zap.Int("slot", slot))
	backoff := claimBackoffBase

	for {
		if ctx.Err() != nil {
			return
		}

		env, err := p.transport.Claim(ctx, p.queue)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("claim failed", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			if backoff > claimBackoffMax {
				backoff = claimBackoffMax
			}
			continue
		}
		backoff = claimBackoffBase

		if env == nil {
			continue
		}
		p.process(ctx, env, log)
	}
}

// process runs one claimed envelope through the handler and resolves it.
func (p *Processor[P, R]) process(ctx context.Context, env *Envelope, log *zap.Logger) {
	start := time.Now()
	log = log.With(zap.String("job", env.ID), zap.Int("attempt", env.Attempt))
	log.Info("job claimed", zap.String("kind", env.Kind))

	p.metrics.JobStarted(p.queue)

	if err := p.transport.SetJobStatus(ctx, env.ID, StatusInProgress, nil); err != nil {
		log.Warn("status update failed", zap.Error(err))
	}

	var payload P
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		p.fail(ctx, env, fmt.Errorf("decode %s payload: %w", env.Kind, err), log)
		p.metrics.JobFinished(p.queue, "failed", time.Since(start).Seconds())
		return
	}

	reporter := newReporter(ctx, p.transport, env.ID, log)
	job := &Job[P]{Envelope: *env, Payload: payload}

	handleCtx := ctx
	cancel := func() {}
	if p.timeout > 0 {
		handleCtx, cancel = context.WithTimeout(ctx, p.timeout)
	}
	res, err := p.invoke(handleCtx, job, reporter)
	cancel()
	reporter.close()

	if err != nil {
		p.fail(ctx, env, err, log)
		p.metrics.JobFinished(p.queue, "failed", time.Since(start).Seconds())
		return
	}

	extra := map[string]any{}
	outcome := "succeeded"
	if res != nil {
		if encoded, merr := json.Marshal(res); merr == nil {
			extra["result"] = string(encoded)
		}
		if !res.Aux.OK {
			outcome = "degraded"
			extra["aux_degraded"] = res.Aux.Reason
			log.Warn("job succeeded with degraded aux outcome", zap.String("reason", res.Aux.Reason))
		}
	}
	if serr := p.transport.SetJobStatus(ctx, env.ID, StatusSucceeded, extra); serr != nil {
		log.Warn("status update failed", zap.Error(serr))
	}
	if aerr := p.transport.Ack(ctx, env); aerr != nil {
		log.Error("ack failed", zap.Error(aerr))
	}
	p.metrics.JobFinished(p.queue, outcome, time.Since(start).Seconds())
	log.Info("job succeeded", zap.Duration("elapsed", time.Since(start)))
}

// invoke calls the handler, converting a panic into a job failure so one bad
// payload cannot take down the slot loop.
func (p *Processor[P, R]) invoke(ctx context.Context, job *Job[P], reporter *Reporter) (res *Result[R], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return p.handler.Handle(ctx, job, reporter)
}

// fail increments the attempt count and hands the envelope to the
// transport's requeue-or-dead-letter policy.
func (p *Processor[P, R]) fail(ctx context.Context, env *Envelope, cause error, log *zap.Logger) {
	env.Attempt++
	log.Error("job failed", zap.Error(cause), zap.Int("attempt", env.Attempt))
	if err := p.transport.RequeueOrDeadLetter(ctx, env, cause); err != nil {
		// The message stays pending on the stream, so redelivery will still
		// happen; nothing is dropped.
		log.Error("requeue failed", zap.Error(err))
	}
}

var _ Runnable = (*Processor[noPayload, struct{}])(nil)

// noPayload exists only for the interface assertion above.
type noPayload struct{}

func (noPayload) Kind() string { return "" }
