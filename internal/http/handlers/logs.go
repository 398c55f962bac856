package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/charter-notify/internal/archive"
	"github.com/wolfman30/charter-notify/internal/audit"
	"github.com/wolfman30/charter-notify/pkg/logging"
)

// AuditLister reads audit rows.
type AuditLister interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
}

// Exporter writes one day of audit rows to object storage.
type Exporter interface {
	ExportDay(ctx context.Context, siteID string, day time.Time) (archive.ManifestEntry, error)
}

// LogsHandler serves the operator view of the dispatch audit log.
type LogsHandler struct {
	reader   AuditLister
	exporter Exporter
	logger   *logging.Logger
}

func NewLogsHandler(reader AuditLister, exporter Exporter, logger *logging.Logger) *LogsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogsHandler{reader: reader, exporter: exporter, logger: logger}
}

const defaultLogPageSize = 50

// List handles GET /v1/sites/{siteID}/logs.
//
// Query parameters: status and kind (comma separated), since and until
// (RFC 3339), limit and offset.
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLogFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.SiteID = siteID(r)

	entries, err := h.reader.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list audit rows failed", "site_id", filter.SiteID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load logs")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logs":   entries,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func parseLogFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{Limit: defaultLogPageSize}

	for _, raw := range splitCSV(q.Get("status")) {
		status := audit.Status(strings.ToUpper(raw))
		if !status.Valid() {
			return filter, errors.New("unknown status " + raw)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	filter.Kinds = splitCSV(q.Get("kind"))

	var err error
	if filter.Since, err = parseTimeParam(q.Get("since")); err != nil {
		return filter, errors.New("invalid since")
	}
	if filter.Until, err = parseTimeParam(q.Get("until")); err != nil {
		return filter, errors.New("invalid until")
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("invalid offset")
		}
		filter.Offset = n
	}
	return filter, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Export handles POST /v1/sites/{siteID}/logs/export?date=YYYY-MM-DD.
// The date defaults to yesterday (UTC).
func (h *LogsHandler) Export(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC().AddDate(0, 0, -1)
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	site := siteID(r)

	if h.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "audit export not configured")
		return
	}
	entry, err := h.exporter.ExportDay(r.Context(), site, day)
	if errors.Is(err, archive.ErrDisabled) {
		writeError(w, http.StatusServiceUnavailable, "audit export not configured")
		return
	}
	if err != nil {
		h.logger.Error("audit export failed", "site_id", site, "day", day.Format("2006-01-02"), "error", err)
		writeError(w, http.StatusBadGateway, "audit export failed")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
