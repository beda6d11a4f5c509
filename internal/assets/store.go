// Package assets persists records for generated artifacts. Writes here are
// the handlers' secondary persistence step: a failure is reported to the
// caller as an error and must never fail the job itself.
package assets

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateID is returned when a record with the same ID already exists.
var ErrDuplicateID = errors.New("record already exists")

// Asset is one generated artifact (image, video, widget bundle) linked to
// the job that produced it.
type Asset struct {
	ID        string
	JobID     string
	Kind      string
	URL       string
	CreatedAt time.Time
}

// Model is one trained LoRA model record.
type Model struct {
	ID        string
	JobID     string
	Name      string
	BaseModel string
	Handle    string
	CreatedAt time.Time
}

// Store persists asset and model records.
type Store interface {
	SaveAsset(ctx context.Context, a Asset) (string, error)
	SaveModel(ctx context.Context, m Model) (string, error)
}

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu     sync.Mutex
	assets map[string]Asset
	models map[string]Model
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assets: make(map[string]Asset),
		models: make(map[string]Model),
	}
}

func (s *MemoryStore) SaveAsset(ctx context.Context, a Asset) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, ok := s.assets[a.ID]; ok {
		return "", ErrDuplicateID
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.assets[a.ID] = a
	return a.ID, nil
}

func (s *MemoryStore) SaveModel(ctx context.Context, m Model) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if _, ok := s.models[m.ID]; ok {
		return "", ErrDuplicateID
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.models[m.ID] = m
	return m.ID, nil
}

var _ Store = (*MemoryStore)(nil)
