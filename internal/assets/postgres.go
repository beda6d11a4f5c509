package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS assets (
	id          TEXT PRIMARY KEY,
	job_id      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	url         TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS models (
	id          TEXT PRIMARY KEY,
	job_id      TEXT NOT NULL,
	name        TEXT NOT NULL,
	base_model  TEXT NOT NULL,
	handle      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// PostgresStore persists records in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects, verifies the connection, and bootstraps the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveAsset(ctx context.Context, a Asset) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assets (id, job_id, kind, url, created_at) VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.JobID, a.Kind, a.URL, a.CreatedAt)
	if err != nil {
		return "", translateErr(err)
	}
	return a.ID, nil
}

func (s *PostgresStore) SaveModel(ctx context.Context, m Model) (string, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO models (id, job_id, name, base_model, handle, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.JobID, m.Name, m.BaseModel, m.Handle, m.CreatedAt)
	if err != nil {
		return "", translateErr(err)
	}
	return m.ID, nil
}

// Close releases the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func translateErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
		return fmt.Errorf("%w: %s", ErrDuplicateID, pqErr.Detail)
	}
	return err
}

var _ Store = (*PostgresStore)(nil)
