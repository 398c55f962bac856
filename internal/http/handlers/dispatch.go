package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/wolfman30/charter-notify/internal/dispatch"
	"github.com/wolfman30/charter-notify/internal/messaging/templates"
	"github.com/wolfman30/charter-notify/internal/queue"
	"github.com/wolfman30/charter-notify/pkg/logging"
)

// Notifier is the dispatch surface the HTTP layer drives.
type Notifier interface {
	DispatchBooking(ctx context.Context, siteID string, kind templates.Kind, booking dispatch.Booking) dispatch.Result
	BookingConfirmed(ctx context.Context, siteID string, booking dispatch.Booking) dispatch.BookingResults
	Campaign(ctx context.Context, siteID string, campaign dispatch.Campaign) []dispatch.Result
	SendRendered(ctx context.Context, siteID string, kind templates.Kind, to, body, relatedID string) dispatch.Result
}

// JobPublisher queues work for the dispatch worker.
type JobPublisher interface {
	Enqueue(ctx context.Context, job queue.Job) (string, error)
}

// DispatchHandler serves single dispatches and campaigns.
type DispatchHandler struct {
	notifier  Notifier
	publisher JobPublisher
	logger    *logging.Logger
}

// NewDispatchHandler wires the handler. A nil publisher disables ?async=true.
func NewDispatchHandler(notifier Notifier, publisher JobPublisher, logger *logging.Logger) *DispatchHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DispatchHandler{notifier: notifier, publisher: publisher, logger: logger}
}

type dispatchRequest struct {
	Kind      string            `json:"kind"`
	Booking   *dispatch.Booking `json:"booking,omitempty"`
	To        string            `json:"to,omitempty"`
	Body      string            `json:"body,omitempty"`
	RelatedID string            `json:"related_id,omitempty"`
}

var jobTypeForKind = map[templates.Kind]queue.JobType{
	templates.KindBookingConfirmation: queue.JobBookingConfirmed,
	templates.KindCancellation:        queue.JobBookingCancelled,
	templates.KindReminder:            queue.JobReminder,
}

// Dispatch handles POST /v1/sites/{siteID}/dispatch.
//
// With a booking the site's template for kind is rendered from the booking;
// otherwise to and body are sent as given. The HTTP status is 200 for every
// terminal dispatch outcome; callers branch on the result's status field.
func (h *DispatchHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	kind, err := templates.ParseKind(strings.TrimSpace(req.Kind))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	site := siteID(r)

	if req.Booking == nil {
		if strings.TrimSpace(req.Body) == "" {
			writeError(w, http.StatusBadRequest, "booking or body required")
			return
		}
		res := h.notifier.SendRendered(r.Context(), site, kind, req.To, req.Body, req.RelatedID)
		writeJSON(w, http.StatusOK, viewOf(res))
		return
	}

	if queryBool(r, "async") {
		jobType, ok := jobTypeForKind[kind]
		if !ok {
			writeError(w, http.StatusBadRequest, "kind "+string(kind)+" cannot be queued")
			return
		}
		h.enqueue(w, r, queue.Job{Type: jobType, SiteID: site, Booking: req.Booking})
		return
	}

	if kind == templates.KindBookingConfirmation {
		out := h.notifier.BookingConfirmed(r.Context(), site, *req.Booking)
		resp := map[string]any{"customer": viewOf(out.Customer), "owner_emailed": out.OwnerEmailed}
		if out.Owner != nil {
			resp["owner"] = viewOf(*out.Owner)
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	res := h.notifier.DispatchBooking(r.Context(), site, kind, *req.Booking)
	writeJSON(w, http.StatusOK, viewOf(res))
}

type campaignResponse struct {
	CampaignID string       `json:"campaign_id"`
	Total      int          `json:"total"`
	Sent       int          `json:"sent"`
	Results    []resultView `json:"results"`
}

// Campaign handles POST /v1/sites/{siteID}/campaigns.
func (h *DispatchHandler) Campaign(w http.ResponseWriter, r *http.Request) {
	var campaign dispatch.Campaign
	if err := decodeJSON(w, r, &campaign); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if len(campaign.Recipients) == 0 {
		writeError(w, http.StatusBadRequest, "recipients required")
		return
	}
	site := siteID(r)

	if queryBool(r, "async") {
		h.enqueue(w, r, queue.Job{Type: queue.JobCampaign, SiteID: site, Campaign: &campaign})
		return
	}

	results := h.notifier.Campaign(r.Context(), site, campaign)
	resp := campaignResponse{CampaignID: campaign.ID, Total: len(results), Results: make([]resultView, 0, len(results))}
	for _, res := range results {
		if res.Success {
			resp.Sent++
		}
		resp.Results = append(resp.Results, viewOf(res))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *DispatchHandler) enqueue(w http.ResponseWriter, r *http.Request, job queue.Job) {
	if h.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "async dispatch not configured")
		return
	}
	id, err := h.publisher.Enqueue(r.Context(), job)
	if err != nil {
		h.logger.Error("enqueue dispatch job failed", "site_id", job.SiteID, "type", job.Type, "error", err)
		writeError(w, http.StatusBadGateway, "failed to queue job")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id, "status": "queued"})
}
