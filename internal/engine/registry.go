package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrProcessorStarted is returned when registering over a queue whose
// processor is already consuming.
var ErrProcessorStarted = errors.New("processor already started")

// Registry is the process-wide table of queue name → processor. It is built
// once at startup and passed explicitly to whatever needs to register or
// start processors; there is no ambient global instance.
type Registry struct {
	mu    sync.Mutex
	procs map[string]Runnable
	log   *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		procs: make(map[string]Runnable),
		log:   log,
	}
}

// Register inserts proc under its queue name. Registering the same name
// again replaces the previous processor as long as it has not started;
// afterwards the conflict is surfaced here rather than at runtime.
func (r *Registry) Register(proc Runnable) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := proc.Queue()
	if existing, ok := r.procs[name]; ok {
		if existing.Running() {
			return fmt.Errorf("queue %q: %w", name, ErrProcessorStarted)
		}
		r.log.Debug("replacing registered processor", zap.String("queue", name))
	}
	r.procs[name] = proc
	return nil
}

// StartAll begins consumption on every registered processor. Idempotent:
// processors that are already running are left alone, so calling StartAll
// twice never doubles the claim loops.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, proc := range r.procs {
		if err := proc.Start(ctx); err != nil {
			return fmt.Errorf("start processor for %q: %w", name, err)
		}
	}
	r.log.Info("processors started", zap.Int("count", len(r.procs)))
	return nil
}

// Stop stops every running processor and waits for in-flight jobs to drain.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, proc := range r.procs {
		proc.Stop()
	}
}

// Queues returns the registered queue names, sorted.
func (r *Registry) Queues() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.procs))
	for name := range r.procs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
