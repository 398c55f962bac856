package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresWriter appends audit rows. Rows are never updated or deleted.
type PostgresWriter struct {
	db  execer
	now func() time.Time
}

func NewPostgresWriter(db execer) *PostgresWriter {
	if db == nil {
		return nil
	}
	return &PostgresWriter{db: db, now: time.Now}
}

// Append inserts the entry, assigning an id and timestamp when missing.
func (w *PostgresWriter) Append(ctx context.Context, e Entry) (uuid.UUID, error) {
	if w == nil {
		return uuid.Nil, errors.New("audit: writer not configured")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = w.now().UTC()
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return uuid.Nil, fmt.Errorf("audit: marshal metadata: %w", err)
	}
	query := `
		INSERT INTO dispatch_logs (
			id, site_id, recipient_phone, message_body, template_kind,
			status, related_id, metadata, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
	`
	if _, err := w.db.Exec(ctx, query, e.ID, e.SiteID, e.RecipientPhone, e.MessageBody, e.TemplateKind, string(e.Status), e.RelatedID, meta, e.CreatedAt); err != nil {
		return uuid.Nil, fmt.Errorf("audit: insert dispatch log: %w", err)
	}
	return e.ID, nil
}
