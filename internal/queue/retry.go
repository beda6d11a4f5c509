package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hkcm91/StickerNestV3-sub013/internal/engine"
)

const (
	retryBaseDelay = 2 * time.Second
	retryMaxDelay  = 5 * time.Minute
	sweepBatch     = 10
)

// retryEntry is the serialized form of a requeued envelope in the retry ZSET.
type retryEntry struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt string          `json:"enqueuedAt"`
	LastError  string          `json:"lastError"`
}

func retryKey(queueName string) string {
	return "retry:" + queueName
}

func dlqKey(queueName string) string {
	return "dlq:" + queueName
}

// retryDelay grows exponentially with the attempt count, plus jitter so a
// burst of failures doesn't come due at the same instant.
func retryDelay(attempt int) time.Duration {
	delay := retryBaseDelay << attempt
	if delay > retryMaxDelay || delay <= 0 {
		delay = retryMaxDelay
	}
	return delay + time.Duration(rand.Int63n(int64(retryBaseDelay)))
}

// RequeueOrDeadLetter resolves a failed envelope. Below the queue's attempt
// limit the envelope is scheduled for redelivery through the retry ZSET;
// otherwise it moves to the dead-letter stream. Either way the original
// message is acked so it doesn't linger in the pending entries list.
func (t *Transport) RequeueOrDeadLetter(ctx context.Context, env *engine.Envelope, cause error) error {
	limit := t.maxFor(env.Queue)

	if env.Attempt < limit {
		return t.requeue(ctx, env, cause)
	}
	return t.deadLetter(ctx, env, cause)
}

func (t *Transport) requeue(ctx context.Context, env *engine.Envelope, cause error) error {
	entry := retryEntry{
		ID:         env.ID,
		Kind:       env.Kind,
		Payload:    env.Data,
		Attempt:    env.Attempt,
		EnqueuedAt: env.EnqueuedAt.UTC().Format(time.RFC3339),
		LastError:  cause.Error(),
	}
	member, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal retry entry: %w", err)
	}

	delay := retryDelay(env.Attempt)
	dueAt := time.Now().Add(delay)
	if err := t.client.ZAdd(ctx, retryKey(env.Queue), redis.Z{
		Score:  float64(dueAt.Unix()),
		Member: string(member),
	}).Err(); err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}

	if serr := t.SetJobStatus(ctx, env.ID, engine.StatusPending, map[string]any{
		"last_error": cause.Error(),
		"attempt":    env.Attempt,
		"retry_at":   dueAt.UTC().Format(time.RFC3339),
	}); serr != nil {
		t.log.Warn("status write failed on requeue", zap.String("job", env.ID), zap.Error(serr))
	}

	t.log.Info("job scheduled for retry",
		zap.String("job", env.ID),
		zap.String("queue", env.Queue),
		zap.Int("attempt", env.Attempt),
		zap.Duration("delay", delay))
	return t.Ack(ctx, env)
}

func (t *Transport) deadLetter(ctx context.Context, env *engine.Envelope, cause error) error {
	fields := map[string]any{
		"jobId":          env.ID,
		"kind":           env.Kind,
		"payload":        string(env.Data),
		"attempt":        env.Attempt,
		"reason":         cause.Error(),
		"original_queue": env.Queue,
		"worker_id":      t.workerID,
		"moved_at":       time.Now().UTC().Format(time.RFC3339),
	}
	if err := t.client.XAdd(ctx, &redis.XAddArgs{
		Stream: dlqKey(env.Queue),
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("move to dead letter: %w", err)
	}

	if serr := t.SetJobStatus(ctx, env.ID, engine.StatusFailed, map[string]any{
		"error":    cause.Error(),
		"attempts": env.Attempt,
	}); serr != nil {
		t.log.Warn("status write failed on dead letter", zap.String("job", env.ID), zap.Error(serr))
	}

	t.log.Warn("job dead-lettered",
		zap.String("job", env.ID),
		zap.String("queue", env.Queue),
		zap.Int("attempt", env.Attempt),
		zap.Error(cause))
	return t.Ack(ctx, env)
}

// StartRetrySweeper schedules periodic sweeps that move due retry entries
// back onto their streams. Returns the cron scheduler so the caller can
// stop it at shutdown.
func (t *Transport) StartRetrySweeper() *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc("@every 2s", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		t.sweepRetries(ctx)
	})
	if err != nil {
		// "@every" with a constant interval cannot fail to parse.
		t.log.Error("retry sweeper schedule rejected", zap.Error(err))
		return c
	}
	c.Start()
	return c
}

func (t *Transport) sweepRetries(ctx context.Context) {
	t.mu.Lock()
	queues := append([]string(nil), t.queues...)
	t.mu.Unlock()

	now := time.Now().Unix()
	for _, q := range queues {
		members, err := t.client.ZRangeByScore(ctx, retryKey(q), &redis.ZRangeBy{
			Min:   "-inf",
			Max:   strconv.FormatInt(now, 10),
			Count: sweepBatch,
		}).Result()
		if err != nil && err != redis.Nil {
			t.log.Warn("retry sweep read failed", zap.String("queue", q), zap.Error(err))
			continue
		}

		for _, raw := range members {
			var entry retryEntry
			if err := json.Unmarshal([]byte(raw), &entry); err != nil {
				t.log.Warn("dropping malformed retry entry", zap.String("queue", q), zap.Error(err))
				t.client.ZRem(ctx, retryKey(q), raw)
				continue
			}

			if err := t.client.XAdd(ctx, &redis.XAddArgs{
				Stream: q,
				Values: map[string]any{
					"jobId":      entry.ID,
					"kind":       entry.Kind,
					"payload":    string(entry.Payload),
					"attempt":    entry.Attempt,
					"enqueuedAt": entry.EnqueuedAt,
				},
			}).Err(); err != nil {
				t.log.Warn("retry re-enqueue failed", zap.String("job", entry.ID), zap.Error(err))
				continue
			}
			t.client.ZRem(ctx, retryKey(q), raw)
			t.log.Info("retry released",
				zap.String("job", entry.ID),
				zap.String("queue", q),
				zap.Int("attempt", entry.Attempt))
		}
	}
}
