package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/wolfman30/charter-notify/internal/archive"
	"github.com/wolfman30/charter-notify/internal/audit"
	"github.com/wolfman30/charter-notify/internal/dispatch"
	"github.com/wolfman30/charter-notify/internal/messaging/templates"
	"github.com/wolfman30/charter-notify/internal/queue"
	"github.com/wolfman30/charter-notify/internal/store"
	"github.com/wolfman30/charter-notify/internal/tenancy"
)

func siteRequest(method, target, site string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(tenancy.WithSiteID(req.Context(), site))
}

type rendered struct {
	siteID    string
	kind      templates.Kind
	to        string
	body      string
	relatedID string
}

type fakeNotifier struct {
	mu        sync.Mutex
	result    dispatch.Result
	owner     *dispatch.Result
	bookings  []dispatch.Booking
	kinds     []templates.Kind
	rendered  []rendered
	campaigns []dispatch.Campaign
}

func (f *fakeNotifier) DispatchBooking(_ context.Context, _ string, kind templates.Kind, booking dispatch.Booking) dispatch.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	f.bookings = append(f.bookings, booking)
	return f.result
}

func (f *fakeNotifier) BookingConfirmed(_ context.Context, _ string, booking dispatch.Booking) dispatch.BookingResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, templates.KindBookingConfirmation)
	f.bookings = append(f.bookings, booking)
	return dispatch.BookingResults{Customer: f.result, Owner: f.owner}
}

func (f *fakeNotifier) Campaign(_ context.Context, _ string, campaign dispatch.Campaign) []dispatch.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaigns = append(f.campaigns, campaign)
	out := make([]dispatch.Result, len(campaign.Recipients))
	for i, r := range campaign.Recipients {
		if r.Phone == "bad" {
			out[i] = dispatch.Result{Status: audit.StatusInvalidPhone, Code: dispatch.CodeInvalidRecipient}
			continue
		}
		out[i] = dispatch.Result{Success: true, Status: audit.StatusSent, Code: dispatch.CodeOK, Recipient: r.Phone}
	}
	return out
}

func (f *fakeNotifier) SendRendered(_ context.Context, siteID string, kind templates.Kind, to, body, relatedID string) dispatch.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rendered = append(f.rendered, rendered{siteID: siteID, kind: kind, to: to, body: body, relatedID: relatedID})
	return f.result
}

type fakePublisher struct {
	jobs []queue.Job
	err  error
}

func (f *fakePublisher) Enqueue(_ context.Context, job queue.Job) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, job)
	return "job-1", nil
}

type fakeLister struct {
	filter  audit.Filter
	entries []audit.Entry
	err     error
}

func (f *fakeLister) List(_ context.Context, filter audit.Filter) ([]audit.Entry, error) {
	f.filter = filter
	return f.entries, f.err
}

type fakeExporter struct {
	siteID string
	day    time.Time
	err    error
}

func (f *fakeExporter) ExportDay(_ context.Context, siteID string, day time.Time) (archive.ManifestEntry, error) {
	f.siteID = siteID
	f.day = day
	if f.err != nil {
		return archive.ManifestEntry{}, f.err
	}
	return archive.ManifestEntry{SiteID: siteID, Day: day.Format("2006-01-02"), S3Key: "k", Rows: 3}, nil
}

type consentCall struct {
	op     string
	siteID string
	phone  string
}

type fakeConsent struct {
	calls []consentCall
	err   error
}

func (f *fakeConsent) Add(_ context.Context, siteID, phone, _ string) error {
	f.calls = append(f.calls, consentCall{op: "add", siteID: siteID, phone: phone})
	return f.err
}

func (f *fakeConsent) Remove(_ context.Context, siteID, phone string) error {
	f.calls = append(f.calls, consentCall{op: "remove", siteID: siteID, phone: phone})
	return f.err
}

type fakeSites map[string]string

var errLookup = errors.New("db down")

func (f fakeSites) LookupSiteByNumber(_ context.Context, number string) (string, error) {
	if number == "+15550000000" {
		return "", errLookup
	}
	return lookupOrNotFound(f, number)
}

func lookupOrNotFound(m map[string]string, number string) (string, error) {
	if id, ok := m[number]; ok {
		return id, nil
	}
	return "", fmt.Errorf("lookup: %w", store.ErrNotFound)
}
