package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hkcm91/StickerNestV3-sub013/internal/engine"
)

// ProgressEvent is published on the job's Pub/Sub channel for each forwarded
// progress update. The canvas UI subscribes per job.
type ProgressEvent struct {
	Version   string `json:"version"`
	JobID     string `json:"jobId"`
	Percent   int    `json:"percent"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusKey(jobID string) string {
	return fmt.Sprintf("job:%s:status", jobID)
}

func progressChannel(jobID string) string {
	return fmt.Sprintf("progress:v1:%s", jobID)
}

// PublishProgress pushes a progress update to subscribers and mirrors the
// latest percent into the status hash. Best effort by contract.
func (t *Transport) PublishProgress(ctx context.Context, jobID string, percent int, message string) error {
	event := ProgressEvent{
		Version:   "1.0",
		JobID:     jobID,
		Percent:   percent,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	encoded, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}
	if err := t.client.Publish(ctx, progressChannel(jobID), encoded).Err(); err != nil {
		return err
	}
	return t.client.HSet(ctx, statusKey(jobID), "progress", percent).Err()
}

// SetJobStatus records the job's status plus optional fields. Terminal
// states are immutable: once a job reads succeeded or failed, further
// transitions are ignored.
func (t *Transport) SetJobStatus(ctx context.Context, jobID, status string, extra map[string]any) error {
	current, err := t.client.HGet(ctx, statusKey(jobID), "status").Result()
	if err == nil && isTerminal(current) && current != status {
		return nil
	}

	fields := map[string]any{
		"status":     status,
		"worker_id":  t.workerID,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		fields[k] = v
	}
	return t.client.HSet(ctx, statusKey(jobID), fields).Err()
}

// GetJobStatus returns the raw status hash for a job.
func (t *Transport) GetJobStatus(ctx context.Context, jobID string) (map[string]string, error) {
	return t.client.HGetAll(ctx, statusKey(jobID)).Result()
}

func isTerminal(status string) bool {
	return status == engine.StatusSucceeded || status == engine.StatusFailed
}
