package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Filter narrows an audit query. SiteID is required.
type Filter struct {
	SiteID   string
	Statuses []Status
	Kinds    []string
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int

	// Oldest lists in (created_at, id) ascending order instead of newest first.
	Oldest bool
	// After resumes the listing strictly past this row.
	After *Cursor
}

// Cursor is the keyset position of one row. id breaks created_at ties.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// CursorOf returns the position of e.
func CursorOf(e Entry) *Cursor {
	return &Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
}

const maxPageSize = 500

// Reader queries audit rows for operators and the UI.
type Reader struct {
	db *sql.DB
}

func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// List returns matching rows for one site, newest first unless filter.Oldest.
func (r *Reader) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.SiteID == "" {
		return nil, fmt.Errorf("audit: site id required")
	}
	query := `
		SELECT id, site_id, recipient_phone, message_body, template_kind,
			status, related_id, metadata, created_at
		FROM dispatch_logs
		WHERE site_id = $1
	`
	args := []any{filter.SiteID}
	argIdx := 2

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		query += fmt.Sprintf(" AND status = ANY($%d)", argIdx)
		args = append(args, pq.Array(statuses))
		argIdx++
	}
	if len(filter.Kinds) > 0 {
		query += fmt.Sprintf(" AND template_kind = ANY($%d)", argIdx)
		args = append(args, pq.Array(filter.Kinds))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.Since)
		argIdx++
	}
	if !filter.Until.IsZero() {
		query += fmt.Sprintf(" AND created_at < $%d", argIdx)
		args = append(args, filter.Until)
		argIdx++
	}

	direction, cmp := "DESC", "<"
	if filter.Oldest {
		direction, cmp = "ASC", ">"
	}
	if filter.After != nil {
		query += fmt.Sprintf(" AND (created_at, id) %s ($%d, $%d)", cmp, argIdx, argIdx+1)
		args = append(args, filter.After.CreatedAt, filter.After.ID)
		argIdx += 2
	}
	query += fmt.Sprintf(" ORDER BY created_at %s, id %s", direction, direction)

	limit := filter.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query dispatch logs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var status string
		var relatedID sql.NullString
		var meta []byte
		if err := rows.Scan(&e.ID, &e.SiteID, &e.RecipientPhone, &e.MessageBody, &e.TemplateKind,
			&status, &relatedID, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan dispatch log: %w", err)
		}
		e.Status = Status(status)
		e.RelatedID = relatedID.String
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("audit: decode metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate dispatch logs: %w", err)
	}
	return entries, nil
}
