// Package queue provides the Redis Streams queue transport for the job
// engine.
//
// Design:
//
//   - Redis Streams with consumer groups give reliable claim/ack semantics
//     and let multiple worker processes share a queue.
//   - Failed jobs below the attempt limit go into a per-queue retry ZSET
//     scored by their due time; a sweeper moves due members back onto the
//     stream. At or above the limit they move to a dead-letter stream.
//   - Progress updates are published on Pub/Sub so the canvas UI can
//     subscribe per job; the latest percent is also mirrored into the
//     job's status hash.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hkcm91/StickerNestV3-sub013/internal/engine"
)

const (
	defaultGroup       = "stickernest-workers"
	defaultBlockMs     = 5000
	defaultMaxAttempts = 3
)

// Config holds transport configuration.
type Config struct {
	URL           string
	Password      string
	ConsumerGroup string
	BlockMs       int

	// DefaultMaxAttempts applies to queues without an explicit entry in
	// MaxAttempts. A job whose attempt count reaches the limit is
	// dead-lettered instead of requeued.
	DefaultMaxAttempts int
	MaxAttempts        map[string]int
}

// Transport implements engine.Transport on Redis Streams.
type Transport struct {
	client      *redis.Client
	workerID    string
	group       string
	block       time.Duration
	defaultMax  int
	maxAttempts map[string]int
	log         *zap.Logger

	mu     sync.Mutex
	queues []string
}

// New creates a transport; call Connect before use.
func New(cfg Config, log *zap.Logger) *Transport {
	if cfg.ConsumerGroup == "" {
		cfg.ConsumerGroup = defaultGroup
	}
	if cfg.BlockMs == 0 {
		cfg.BlockMs = defaultBlockMs
	}
	if cfg.DefaultMaxAttempts == 0 {
		cfg.DefaultMaxAttempts = defaultMaxAttempts
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{
		workerID:    fmt.Sprintf("nest-%s", uuid.New().String()[:8]),
		group:       cfg.ConsumerGroup,
		block:       time.Duration(cfg.BlockMs) * time.Millisecond,
		defaultMax:  cfg.DefaultMaxAttempts,
		maxAttempts: cfg.MaxAttempts,
		log:         log,
	}
}

// Connect establishes and verifies the Redis connection.
func (t *Transport) Connect(ctx context.Context, url, password string) error {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	t.client = redis.NewClient(opts)
	if err := t.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	return nil
}

// EnsureGroups creates the consumer group on every queue this worker will
// consume, tolerating groups that already exist.
func (t *Transport) EnsureGroups(ctx context.Context, queues []string) error {
	for _, q := range queues {
		err := t.client.XGroupCreateMkStream(ctx, q, t.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("create consumer group for %s: %w", q, err)
		}
	}
	t.mu.Lock()
	t.queues = append([]string(nil), queues...)
	t.mu.Unlock()
	return nil
}

// Enqueue submits a new job and returns its ID. Producers normally live in
// the web tier; the CLI uses this for manual submission.
func (t *Transport) Enqueue(ctx context.Context, queueName, kind string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	id := uuid.NewString()
	err = t.client.XAdd(ctx, &redis.XAddArgs{
		Stream: queueName,
		Values: map[string]any{
			"jobId":      id,
			"kind":       kind,
			"payload":    string(data),
			"attempt":    0,
			"enqueuedAt": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return "", fmt.Errorf("enqueue on %s: %w", queueName, err)
	}

	if serr := t.SetJobStatus(ctx, id, engine.StatusPending, map[string]any{"queue": queueName}); serr != nil {
		t.log.Warn("status write failed on enqueue", zap.String("job", id), zap.Error(serr))
	}
	return id, nil
}

// Claim reads the next available envelope from the queue via XREADGROUP.
// Returns (nil, nil) when the block timeout elapses with no job.
func (t *Transport) Claim(ctx context.Context, queueName string) (*engine.Envelope, error) {
	streams, err := t.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    t.group,
		Consumer: t.workerID,
		Streams:  []string{queueName, ">"},
		Count:    1,
		Block:    t.block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read from %s: %w", queueName, err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}
	return parseMessage(queueName, streams[0].Messages[0])
}

func parseMessage(queueName string, msg redis.XMessage) (*engine.Envelope, error) {
	env := &engine.Envelope{
		Queue:     queueName,
		MessageID: msg.ID,
	}
	if id, ok := msg.Values["jobId"].(string); ok {
		env.ID = id
	}
	if kind, ok := msg.Values["kind"].(string); ok {
		env.Kind = kind
	}
	if raw, ok := msg.Values["payload"].(string); ok {
		env.Data = json.RawMessage(raw)
	}
	if a, ok := msg.Values["attempt"].(string); ok {
		if n, err := strconv.Atoi(a); err == nil {
			env.Attempt = n
		}
	}
	if ts, ok := msg.Values["enqueuedAt"].(string); ok {
		if at, err := time.Parse(time.RFC3339, ts); err == nil {
			env.EnqueuedAt = at
		}
	}
	if env.ID == "" {
		return nil, fmt.Errorf("message %s on %s has no jobId", msg.ID, queueName)
	}
	return env, nil
}

// Ack removes a processed message from the pending entries list.
func (t *Transport) Ack(ctx context.Context, env *engine.Envelope) error {
	return t.client.XAck(ctx, env.Queue, t.group, env.MessageID).Err()
}

// maxFor returns the attempt limit for a queue.
func (t *Transport) maxFor(queueName string) int {
	if n, ok := t.maxAttempts[queueName]; ok && n > 0 {
		return n
	}
	return t.defaultMax
}

// WorkerID returns this worker's unique consumer name.
func (t *Transport) WorkerID() string {
	return t.workerID
}

// Close releases the Redis connection.
func (t *Transport) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}

var _ engine.Transport = (*Transport)(nil)
