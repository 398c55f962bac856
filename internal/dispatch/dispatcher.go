package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/charter-notify/internal/audit"
	"github.com/wolfman30/charter-notify/internal/carrier"
	"github.com/wolfman30/charter-notify/internal/consent"
	"github.com/wolfman30/charter-notify/internal/messaging"
	"github.com/wolfman30/charter-notify/internal/messaging/templates"
	"github.com/wolfman30/charter-notify/internal/observability/metrics"
	"github.com/wolfman30/charter-notify/pkg/logging"
)

var tracer = otel.Tracer("charter.internal.dispatch")

const auditWriteTimeout = 5 * time.Second

// Request is one rendered message addressed to one raw recipient.
type Request struct {
	SiteID    string
	Kind      templates.Kind
	To        string
	Body      string
	From      string
	RelatedID string
}

// ConsentChecker decides whether a recipient is suppressed.
type ConsentChecker interface {
	Check(ctx context.Context, siteID, raw, normalized string) consent.Decision
}

// AuditWriter appends one audit row.
type AuditWriter interface {
	Append(ctx context.Context, entry audit.Entry) (uuid.UUID, error)
}

// Sender is satisfied by Dispatcher; callers above the core depend on it.
type Sender interface {
	Send(ctx context.Context, req Request) Result
}

// Dispatcher runs the dispatch state machine: configuration check,
// normalization, consent, carrier call and audit write, in that order.
type Dispatcher struct {
	carrier carrier.Carrier
	consent ConsentChecker
	audit   AuditWriter
	metrics *metrics.DispatchMetrics
	logger  *logging.Logger
}

// NewDispatcher wires the dispatcher. A nil carrier makes every dispatch
// NOT_CONFIGURED; a nil consent checker allows every recipient.
func NewDispatcher(c carrier.Carrier, gate ConsentChecker, writer AuditWriter, m *metrics.DispatchMetrics, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{carrier: c, consent: gate, audit: writer, metrics: m, logger: logger}
}

var _ Sender = (*Dispatcher)(nil)

// Send performs one dispatch and always returns a terminal Result.
func (d *Dispatcher) Send(ctx context.Context, req Request) Result {
	ctx, span := tracer.Start(ctx, "dispatch.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("charter.site_id", req.SiteID),
		attribute.String("charter.kind", string(req.Kind)),
	)

	res, meta := d.attempt(ctx, req)
	res.Body = req.Body
	res.Success = res.Status == audit.StatusSent
	if res.Success {
		res.Code = CodeOK
	}

	logID, auditErr := d.record(ctx, req, res, meta)
	if auditErr != nil {
		res.AuditWarning = auditErr
	} else {
		res.LogID = &logID
	}

	span.SetAttributes(attribute.String("charter.status", string(res.Status)))
	if !res.Success {
		span.SetStatus(codes.Error, string(res.Code))
	}
	d.metrics.ObserveDispatch(string(req.Kind), string(res.Status))

	logger := d.logger.WithSite(req.SiteID)
	if res.Success {
		logger.Info("sms dispatched", "kind", req.Kind, "status", res.Status, "to", res.Recipient, "message_id", res.MessageID, "provider", res.Provider)
	} else {
		logger.Info("sms not dispatched", "kind", req.Kind, "status", res.Status, "to", res.Recipient, "reason", res.Reason)
	}
	return res
}

func (d *Dispatcher) attempt(ctx context.Context, req Request) (Result, audit.Metadata) {
	var meta audit.Metadata

	if d.carrier == nil {
		res := failure(audit.StatusNotConfigured, CodeConfigurationMissing, ErrConfigurationMissing, "sms carrier not configured")
		res.Recipient = req.To
		return res, meta
	}

	normalized, ok := messaging.NormalizePhone(req.To)
	if !ok {
		res := failure(audit.StatusInvalidPhone, CodeInvalidRecipient,
			fmt.Errorf("%w: %q", ErrInvalidRecipient, req.To), "invalid phone number")
		res.Recipient = req.To
		return res, meta
	}

	if d.consent != nil {
		decision := d.consent.Check(ctx, req.SiteID, req.To, normalized)
		if decision.LookupErr != nil {
			mode := consent.FailOpen
			if decision.Suppressed {
				mode = consent.FailClosed
			}
			d.metrics.ObserveConsentLookupError(string(mode))
		}
		if decision.Suppressed {
			err := ErrConsentSuppressed
			reason := "recipient opted out"
			if decision.LookupErr != nil {
				err = fmt.Errorf("%w: %w", ErrConsentSuppressed, decision.LookupErr)
				reason = "opt-out registry unavailable"
				meta.Error = decision.LookupErr.Error()
			}
			res := failure(audit.StatusOptedOut, CodeConsentSuppressed, err, reason)
			res.Recipient = normalized
			return res, meta
		}
	}

	started := time.Now()
	receipt, err := d.carrier.Send(ctx, carrier.Message{
		SiteID: req.SiteID,
		From:   req.From,
		To:     normalized,
		Body:   req.Body,
	})
	d.metrics.ObserveCarrierLatency(receipt.Provider, err == nil, time.Since(started).Seconds())
	meta.Provider = receipt.Provider
	meta.Attempts = receipt.Attempts

	if err != nil {
		meta.Error = err.Error()
		res := failure(audit.StatusFailed, CodeCarrierFailure, fmt.Errorf("%w: %w", ErrCarrierFailure, err), err.Error())
		res.Recipient = normalized
		res.Provider = receipt.Provider
		res.Attempts = receipt.Attempts
		return res, meta
	}

	meta.CarrierMessageID = receipt.MessageID
	return Result{
		Status:    audit.StatusSent,
		Recipient: normalized,
		MessageID: receipt.MessageID,
		Provider:  receipt.Provider,
		Attempts:  receipt.Attempts,
	}, meta
}

// record writes the audit row. Failures are returned as a warning only.
func (d *Dispatcher) record(ctx context.Context, req Request, res Result, meta audit.Metadata) (uuid.UUID, error) {
	if d.audit == nil {
		return uuid.Nil, fmt.Errorf("%w: writer not configured", ErrAuditWriteFailure)
	}
	// The row is written even when the caller's context is already done.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	id, err := d.audit.Append(writeCtx, audit.Entry{
		SiteID:         req.SiteID,
		RecipientPhone: res.Recipient,
		MessageBody:    req.Body,
		TemplateKind:   string(req.Kind),
		Status:         res.Status,
		RelatedID:      req.RelatedID,
		Metadata:       meta,
	})
	if err != nil {
		d.metrics.ObserveAuditWriteFailure(string(res.Status))
		d.logger.Warn("audit write failed",
			"site_id", req.SiteID,
			"kind", req.Kind,
			"status", res.Status,
			"error", err,
		)
		return uuid.Nil, fmt.Errorf("%w: %w", ErrAuditWriteFailure, err)
	}
	return id, nil
}
