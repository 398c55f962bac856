package queue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ProcessedStore records jobs that were already claimed by a worker.
type ProcessedStore struct {
	db execer
}

func NewProcessedStore(db execer) *ProcessedStore {
	if db == nil {
		panic("queue: database required")
	}
	return &ProcessedStore{db: db}
}

// Claim inserts the job id, returning false if another delivery already claimed it.
func (s *ProcessedStore) Claim(ctx context.Context, jobID string) (bool, error) {
	query := `
		INSERT INTO processed_jobs (job_id)
		VALUES ($1)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.db.Exec(ctx, query, jobID)
	if err != nil {
		return false, fmt.Errorf("queue: claim job: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
