package handlers

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/charter-notify/internal/messaging"
	"github.com/wolfman30/charter-notify/internal/messaging/compliance"
	"github.com/wolfman30/charter-notify/internal/observability/metrics"
	"github.com/wolfman30/charter-notify/internal/store"
	"github.com/wolfman30/charter-notify/pkg/logging"
)

var inboundTracer = otel.Tracer("charter-notify.inbound")

// ConsentWriter mutates the opt-out registry.
type ConsentWriter interface {
	Add(ctx context.Context, siteID, phone, source string) error
	Remove(ctx context.Context, siteID, phone string) error
}

// SiteResolver maps a sending number to the site that owns it.
type SiteResolver interface {
	LookupSiteByNumber(ctx context.Context, number string) (string, error)
}

// InboundConfig wires the inbound consent webhook.
type InboundConfig struct {
	Consent ConsentWriter
	Sites   SiteResolver
	// WebhookSecret is the Twilio auth token used to verify X-Twilio-Signature.
	// Verification is skipped when empty.
	WebhookSecret string
	// PublicURL overrides the URL reconstructed from the request when verifying signatures.
	PublicURL string
	HelpReply string
	Metrics   *metrics.DispatchMetrics
	Logger    *logging.Logger
}

// InboundHandler applies STOP/START keywords from inbound SMS to the opt-out registry.
type InboundHandler struct {
	consent   ConsentWriter
	sites     SiteResolver
	detector  *compliance.Detector
	secret    string
	publicURL string
	helpReply string
	metrics   *metrics.DispatchMetrics
	logger    *logging.Logger
}

func NewInboundHandler(cfg InboundConfig) *InboundHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	help := strings.TrimSpace(cfg.HelpReply)
	if help == "" {
		help = "Reply STOP to opt out of messages or START to resubscribe."
	}
	return &InboundHandler{
		consent:   cfg.Consent,
		sites:     cfg.Sites,
		detector:  compliance.NewDetector(),
		secret:    cfg.WebhookSecret,
		publicURL: strings.TrimSpace(cfg.PublicURL),
		helpReply: help,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// TwilioInbound handles POST /webhooks/twilio/inbound.
func (h *InboundHandler) TwilioInbound(w http.ResponseWriter, r *http.Request) {
	ctx, span := inboundTracer.Start(r.Context(), "inbound.twilio")
	defer span.End()

	if h.secret != "" {
		webhookURL := h.publicURL
		if webhookURL == "" {
			webhookURL = messaging.AbsoluteURL(r)
		}
		if !messaging.ValidateTwilioSignature(r, h.secret, webhookURL) {
			h.logger.Warn("invalid twilio inbound signature")
			span.RecordError(errors.New("invalid twilio signature"))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	msg, err := messaging.ParseInbound(r)
	if err != nil {
		h.logger.Warn("invalid twilio inbound payload", "error", err)
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	action := h.detector.Classify(msg.Body)
	span.SetAttributes(
		attribute.String("charter.inbound.action", string(action)),
		attribute.String("charter.twilio.message_sid", msg.MessageSID),
	)
	if action == compliance.ActionNone {
		h.reply(w, "")
		return
	}
	if action == compliance.ActionHelp {
		h.metrics.ObserveInboundKeyword(string(action))
		h.reply(w, h.helpReply)
		return
	}

	to := messaging.NormalizeE164(msg.To)
	siteID, err := h.sites.LookupSiteByNumber(ctx, to)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.logger.Warn("inbound keyword for unknown number", "to", to, "action", action)
			h.reply(w, "")
			return
		}
		h.logger.Error("resolve site for inbound number failed", "to", to, "error", err)
		span.RecordError(err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	span.SetAttributes(attribute.String("charter.site_id", siteID))

	from, ok := messaging.NormalizePhone(msg.From)
	if !ok {
		from = messaging.NormalizeE164(msg.From)
	}
	logger := h.logger.WithSite(siteID)

	switch action {
	case compliance.ActionStop:
		err = h.consent.Add(ctx, siteID, from, "sms_stop")
	case compliance.ActionStart:
		err = h.consent.Remove(ctx, siteID, from)
	}
	if err != nil {
		// A 5xx makes the carrier redeliver the webhook.
		logger.Error("apply inbound consent change failed", "action", action, "error", err)
		span.RecordError(err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveInboundKeyword(string(action))
	logger.Info("inbound consent change applied", "action", action, "from", from)
	h.reply(w, "")
}

func (h *InboundHandler) reply(w http.ResponseWriter, message string) {
	body, err := xml.Marshal(twimlResponse{Message: message})
	if err != nil {
		body = []byte("<Response></Response>")
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(body)
}
