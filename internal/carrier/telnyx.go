package carrier

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/charter-notify/internal/carrier/telnyx"
	"github.com/wolfman30/charter-notify/pkg/logging"
)

const ProviderTelnyx = "telnyx"

var telnyxTracer = otel.Tracer("charter.internal.carrier.telnyx")

// Telnyx adapts the Telnyx messaging client to Carrier.
type Telnyx struct {
	client    *telnyx.Client
	profileID string
	from      string
	logger    *logging.Logger
}

func NewTelnyx(client *telnyx.Client, profileID, defaultFrom string, logger *logging.Logger) *Telnyx {
	if logger == nil {
		logger = logging.Default()
	}
	return &Telnyx{client: client, profileID: profileID, from: defaultFrom, logger: logger}
}

var _ Carrier = (*Telnyx)(nil)

func (t *Telnyx) Send(ctx context.Context, msg Message) (Receipt, error) {
	receipt := Receipt{Provider: ProviderTelnyx, Attempts: 1}
	if t.client == nil {
		return receipt, fmt.Errorf("%w: telnyx client not configured", ErrNotAttempted)
	}
	if msg.From == "" {
		msg.From = t.from
	}
	if err := validate(msg); err != nil {
		return receipt, err
	}

	ctx, span := telnyxTracer.Start(ctx, "carrier.telnyx.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("charter.site_id", msg.SiteID),
		attribute.String("charter.to", msg.To),
		attribute.String("charter.from", msg.From),
	)

	resp, err := t.client.SendMessage(ctx, telnyx.SendMessageRequest{
		From:               msg.From,
		To:                 msg.To,
		Body:               msg.Body,
		MessagingProfileID: t.profileID,
	})
	if err != nil {
		span.RecordError(err)
		var apiErr *telnyx.APIError
		if errors.As(err, &apiErr) {
			return receipt, &Error{Provider: ProviderTelnyx, StatusCode: apiErr.StatusCode, Message: telnyxMessage(apiErr)}
		}
		return receipt, fmt.Errorf("carrier: %w", err)
	}
	receipt.MessageID = resp.ID
	span.SetAttributes(attribute.String("charter.message_id", resp.ID))
	t.logger.Debug("telnyx sms accepted", "site_id", msg.SiteID, "to", msg.To, "id", resp.ID, "provider_status", resp.Status)
	return receipt, nil
}

// telnyxMessage is the provider's own wording without the client's prefix.
func telnyxMessage(apiErr *telnyx.APIError) string {
	switch {
	case apiErr.Title != "" && apiErr.Detail != "":
		return apiErr.Title + ": " + apiErr.Detail
	case apiErr.Title != "":
		return apiErr.Title
	}
	return apiErr.Detail
}
