package carrier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/charter-notify/pkg/logging"
)

const (
	ProviderTwilio = "twilio"

	defaultTwilioBaseURL = "https://api.twilio.com/2010-04-01"
)

var twilioTracer = otel.Tracer("charter.internal.carrier.twilio")

// TwilioConfig configures the Twilio REST sender.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Twilio posts SMS messages using Twilio's Messages API. One call is one HTTP request.
type Twilio struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewTwilio(cfg TwilioConfig, logger *logging.Logger) *Twilio {
	if logger == nil {
		logger = logging.Default()
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultTwilioBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Twilio{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

var _ Carrier = (*Twilio)(nil)

func (t *Twilio) Send(ctx context.Context, msg Message) (Receipt, error) {
	receipt := Receipt{Provider: ProviderTwilio, Attempts: 1}
	if t.accountSID == "" || t.authToken == "" {
		return receipt, fmt.Errorf("%w: twilio credentials missing", ErrNotAttempted)
	}
	if msg.From == "" {
		msg.From = t.from
	}
	if err := validate(msg); err != nil {
		return receipt, err
	}

	ctx, span := twilioTracer.Start(ctx, "carrier.twilio.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("charter.site_id", msg.SiteID),
		attribute.String("charter.to", msg.To),
	)

	payload := url.Values{}
	payload.Set("To", msg.To)
	payload.Set("From", msg.From)
	payload.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return receipt, fmt.Errorf("twilio: build request: %w: %w", ErrNotAttempted, err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return receipt, fmt.Errorf("twilio: http error: %w", err)
	}
	defer resp.Body.Close()
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if readErr != nil {
		span.RecordError(readErr)
		return receipt, fmt.Errorf("twilio: read response (status %d): %w", resp.StatusCode, readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Provider: ProviderTwilio, StatusCode: resp.StatusCode, Message: formatTwilioError(body)}
		span.RecordError(apiErr)
		return receipt, apiErr
	}

	var parsed struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return receipt, fmt.Errorf("twilio: decode response: %w", err)
	}
	if parsed.SID == "" {
		return receipt, errors.New("twilio: response missing message sid")
	}
	receipt.MessageID = parsed.SID
	span.SetAttributes(attribute.String("charter.message_id", parsed.SID))
	t.logger.Debug("twilio sms accepted", "site_id", msg.SiteID, "to", msg.To, "sid", parsed.SID, "provider_status", parsed.Status)
	return receipt, nil
}

type twilioAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func formatTwilioError(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("code %d: %s", parsed.Code, parsed.Message)
		}
		return parsed.Message
	}
	return trimmed
}
