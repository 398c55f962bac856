// Package store reads the site-scoped reference records that message
// rendering joins against. Every query is filtered by site id.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a record does not exist for the site.
var ErrNotFound = errors.New("store: not found")

// Querier is the subset of pgx used by the stores; *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Business struct {
	SiteID       string
	Name         string
	Phone        string
	NotifyPhone  string
	NotifyEmail  string
	SenderNumber string
}

type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

// Parts returns the non-empty address components in display order.
func (a Address) Parts() []string {
	var parts []string
	for _, p := range []string{a.Street, a.City, a.State, a.Zip} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

type FleetType struct {
	ID   string
	Name string
}

type TimeSlot struct {
	ID        string
	Name      string
	StartTime string
	EndTime   string
}

// ReferenceStore reads business, address, fleet and slot records from Postgres.
type ReferenceStore struct {
	db Querier
}

func NewReferenceStore(db Querier) *ReferenceStore {
	if db == nil {
		return nil
	}
	return &ReferenceStore{db: db}
}

func (s *ReferenceStore) GetBusiness(ctx context.Context, siteID string) (*Business, error) {
	query := `
		SELECT site_id, name, COALESCE(phone, ''), COALESCE(notify_phone, ''), COALESCE(notify_email, ''), COALESCE(sender_number, '')
		FROM businesses
		WHERE site_id = $1
	`
	var b Business
	if err := s.db.QueryRow(ctx, query, siteID).Scan(&b.SiteID, &b.Name, &b.Phone, &b.NotifyPhone, &b.NotifyEmail, &b.SenderNumber); err != nil {
		return nil, wrapNotFound("get business", err)
	}
	return &b, nil
}

func (s *ReferenceStore) GetAddress(ctx context.Context, siteID string) (*Address, error) {
	query := `
		SELECT COALESCE(street, ''), COALESCE(city, ''), COALESCE(state, ''), COALESCE(zip, '')
		FROM business_addresses
		WHERE site_id = $1
	`
	var a Address
	if err := s.db.QueryRow(ctx, query, siteID).Scan(&a.Street, &a.City, &a.State, &a.Zip); err != nil {
		return nil, wrapNotFound("get address", err)
	}
	return &a, nil
}

func (s *ReferenceStore) GetFleetType(ctx context.Context, siteID, id string) (*FleetType, error) {
	query := `
		SELECT id, name
		FROM fleet_types
		WHERE site_id = $1 AND id = $2
	`
	var f FleetType
	if err := s.db.QueryRow(ctx, query, siteID, id).Scan(&f.ID, &f.Name); err != nil {
		return nil, wrapNotFound("get fleet type", err)
	}
	return &f, nil
}

func (s *ReferenceStore) GetTimeSlot(ctx context.Context, siteID, id string) (*TimeSlot, error) {
	query := `
		SELECT id, name, start_time, end_time
		FROM time_slots
		WHERE site_id = $1 AND id = $2
	`
	var ts TimeSlot
	if err := s.db.QueryRow(ctx, query, siteID, id).Scan(&ts.ID, &ts.Name, &ts.StartTime, &ts.EndTime); err != nil {
		return nil, wrapNotFound("get time slot", err)
	}
	return &ts, nil
}

// LookupSiteByNumber resolves the site that owns a sending number.
func (s *ReferenceStore) LookupSiteByNumber(ctx context.Context, number string) (string, error) {
	query := `
		SELECT site_id
		FROM businesses
		WHERE sender_number = $1
		LIMIT 1
	`
	var siteID string
	if err := s.db.QueryRow(ctx, query, number).Scan(&siteID); err != nil {
		return "", wrapNotFound("lookup site by number", err)
	}
	return siteID, nil
}

func wrapNotFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("store: %s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("store: %s: %w", op, err)
}
