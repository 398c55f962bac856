package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/charter-notify/internal/archive"
	"github.com/wolfman30/charter-notify/internal/audit"
	"github.com/wolfman30/charter-notify/internal/dispatch"
	"github.com/wolfman30/charter-notify/internal/http/handlers"
	"github.com/wolfman30/charter-notify/internal/messaging/templates"
	"github.com/wolfman30/charter-notify/pkg/logging"
)

type stubNotifier struct{ sites []string }

func (s *stubNotifier) DispatchBooking(_ context.Context, siteID string, _ templates.Kind, _ dispatch.Booking) dispatch.Result {
	s.sites = append(s.sites, siteID)
	return dispatch.Result{Status: audit.StatusSent, Success: true}
}

func (s *stubNotifier) BookingConfirmed(_ context.Context, siteID string, _ dispatch.Booking) dispatch.BookingResults {
	s.sites = append(s.sites, siteID)
	return dispatch.BookingResults{Customer: dispatch.Result{Status: audit.StatusSent, Success: true}}
}

func (s *stubNotifier) Campaign(_ context.Context, siteID string, c dispatch.Campaign) []dispatch.Result {
	s.sites = append(s.sites, siteID)
	return make([]dispatch.Result, len(c.Recipients))
}

func (s *stubNotifier) SendRendered(_ context.Context, siteID string, _ templates.Kind, _, _, _ string) dispatch.Result {
	s.sites = append(s.sites, siteID)
	return dispatch.Result{Status: audit.StatusNotConfigured}
}

type stubLister struct{ siteID string }

func (s *stubLister) List(_ context.Context, f audit.Filter) ([]audit.Entry, error) {
	s.siteID = f.SiteID
	return nil, nil
}

type stubExporter struct{}

func (stubExporter) ExportDay(_ context.Context, siteID string, day time.Time) (archive.ManifestEntry, error) {
	return archive.ManifestEntry{SiteID: siteID, Day: day.Format("2006-01-02")}, nil
}

type stubConsent struct{ added int }

func (s *stubConsent) Add(context.Context, string, string, string) error { s.added++; return nil }
func (s *stubConsent) Remove(context.Context, string, string) error      { return nil }

type stubSites struct{}

func (stubSites) LookupSiteByNumber(context.Context, string) (string, error) { return "harbor", nil }

func newTestRouter(t *testing.T) (http.Handler, *stubNotifier, *stubLister, *stubConsent) {
	t.Helper()
	logger := logging.Default()
	notifier := &stubNotifier{}
	lister := &stubLister{}
	consent := &stubConsent{}
	cfg := &Config{
		Logger:   logger,
		Dispatch: handlers.NewDispatchHandler(notifier, nil, logger),
		Logs:     handlers.NewLogsHandler(lister, stubExporter{}, logger),
		Inbound:  handlers.NewInboundHandler(handlers.InboundConfig{Consent: consent, Sites: stubSites{}, Logger: logger}),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	}
	return New(cfg), notifier, lister, consent
}

func TestRouterHealthEndpoint(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _, _, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "# metrics")
}

func TestRouterSiteRoutesCarrySiteID(t *testing.T) {
	router, notifier, lister, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	body := `{"kind":"campaign","to":"5551234567","body":"hi"}`
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sites/harbor/dispatch", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []string{"harbor"}, notifier.sites)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sites/marina-2/logs", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "marina-2", lister.siteID)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sites/marina-2/logs/export?date=2024-06-01", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterTemplatesUnregisteredWithoutHandler(t *testing.T) {
	router, _, _, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sites/harbor/templates", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterInboundWebhook(t *testing.T) {
	router, _, _, consent := newTestRouter(t)
	form := url.Values{"From": {"+15551234567"}, "To": {"+15559998888"}, "Body": {"STOP"}}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/inbound", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, consent.added)
}
