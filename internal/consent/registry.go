package consent

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	siteOptOutQuery = `
		SELECT 1 FROM opt_outs
		WHERE phone = ANY($1) AND site_id = $2
		LIMIT 1
	`
	globalOptOutQuery = `
		SELECT 1 FROM opt_outs
		WHERE phone = ANY($1)
		LIMIT 1
	`
)

// PostgresRegistry stores opt-out entries in the opt_outs table.
type PostgresRegistry struct {
	db querier
}

func NewPostgresRegistry(db querier) *PostgresRegistry {
	if db == nil {
		return nil
	}
	return &PostgresRegistry{db: db}
}

// IsOptedOut reports whether any of the phone representations has an opt-out
// entry. With ScopeSite only the given site's entries count.
func (r *PostgresRegistry) IsOptedOut(ctx context.Context, scope Scope, siteID string, phones []string) (bool, error) {
	if len(phones) == 0 {
		return false, nil
	}
	query := siteOptOutQuery
	args := []any{phones, siteID}
	if scope == ScopeGlobal {
		query = globalOptOutQuery
		args = args[:1]
	}
	var exists int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("consent: check opt-out: %w", err)
	}
	return true, nil
}

// Add records an opt-out for the site. Re-adding refreshes the source.
func (r *PostgresRegistry) Add(ctx context.Context, siteID, phone, source string) error {
	query := `
		INSERT INTO opt_outs (site_id, phone, source)
		VALUES ($1, $2, $3)
		ON CONFLICT (site_id, phone) DO UPDATE
		SET source = EXCLUDED.source,
			updated_at = now()
	`
	if _, err := r.db.Exec(ctx, query, siteID, phone, source); err != nil {
		return fmt.Errorf("consent: insert opt-out: %w", err)
	}
	return nil
}

// Remove deletes the site's opt-out entry for the phone.
func (r *PostgresRegistry) Remove(ctx context.Context, siteID, phone string) error {
	query := `
		DELETE FROM opt_outs
		WHERE site_id = $1 AND phone = $2
	`
	if _, err := r.db.Exec(ctx, query, siteID, phone); err != nil {
		return fmt.Errorf("consent: delete opt-out: %w", err)
	}
	return nil
}
