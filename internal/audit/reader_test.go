package audit

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logColumns = []string{"id", "site_id", "recipient_phone", "message_body", "template_kind", "status", "related_id", "metadata", "created_at"}

func TestReaderListFiltersByStatusAndKind(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	until := since.Add(24 * time.Hour)
	created := since.Add(2 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("AND status = ANY($2) AND template_kind = ANY($3) AND created_at >= $4 AND created_at < $5 ORDER BY created_at DESC, id DESC LIMIT 50 OFFSET 100")).
		WithArgs("site-1", sqlmock.AnyArg(), sqlmock.AnyArg(), since, until).
		WillReturnRows(sqlmock.NewRows(logColumns).
			AddRow("0b8f1d6e-1f7a-4c47-9a57-6d3e2f1c9a10", "site-1", "+12055551212", "Hi Jane", "booking_confirmation",
				"FAILED", "booking-9", []byte(`{"provider":"twilio","attempts":3,"error":"twilio: status 429"}`), created))

	entries, err := NewReader(db).List(context.Background(), Filter{
		SiteID:   "site-1",
		Statuses: []Status{StatusFailed, StatusOptedOut},
		Kinds:    []string{"booking_confirmation"},
		Since:    since,
		Until:    until,
		Limit:    50,
		Offset:   100,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "0b8f1d6e-1f7a-4c47-9a57-6d3e2f1c9a10", e.ID.String())
	assert.Equal(t, StatusFailed, e.Status)
	assert.Equal(t, "booking-9", e.RelatedID)
	assert.Equal(t, 3, e.Metadata.Attempts)
	assert.Equal(t, "twilio: status 429", e.Metadata.Error)
	assert.Equal(t, created, e.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReaderListDefaultsAndNullRelatedID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE site_id = $1 ORDER BY created_at DESC, id DESC LIMIT 500")).
		WithArgs("site-2").
		WillReturnRows(sqlmock.NewRows(logColumns).
			AddRow("7d1c2b8e-52a4-4b7f-8c1e-0f9d7a6b5c43", "site-2", "", "", "campaign", "INVALID_PHONE", nil, []byte(`{}`), time.Now()))

	entries, err := NewReader(db).List(context.Background(), Filter{SiteID: "site-2"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].RelatedID)
	assert.Equal(t, StatusInvalidPhone, entries[0].Status)
}

func TestReaderListKeysetOldestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	after := Cursor{CreatedAt: since.Add(time.Hour), ID: uuid.MustParse("0b8f1d6e-1f7a-4c47-9a57-6d3e2f1c9a10")}

	mock.ExpectQuery(regexp.QuoteMeta("AND created_at >= $2 AND (created_at, id) > ($3, $4) ORDER BY created_at ASC, id ASC LIMIT 500")).
		WithArgs("site-1", since, after.CreatedAt, after.ID).
		WillReturnRows(sqlmock.NewRows(logColumns).
			AddRow("7d1c2b8e-52a4-4b7f-8c1e-0f9d7a6b5c43", "site-1", "+12055551212", "", "campaign", "SENT", nil, []byte(`{}`), after.CreatedAt))

	entries, err := NewReader(db).List(context.Background(), Filter{SiteID: "site-1", Since: since, Oldest: true, After: &after})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, after.CreatedAt, CursorOf(entries[0]).CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReaderListRequiresSite(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewReader(db).List(context.Background(), Filter{})
	assert.Error(t, err)
}
