package carrier

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/charter-notify/internal/carrier/telnyx"
	"github.com/wolfman30/charter-notify/pkg/logging"
)

const (
	// ProviderAuto prefers Telnyx and fails over to Twilio.
	ProviderAuto = "auto"
)

// SelectionConfig captures the credentials and policy used to build a carrier.
type SelectionConfig struct {
	Preference       string
	TelnyxAPIKey     string
	TelnyxProfileID  string
	TelnyxFromNumber string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	Timeout          time.Duration
	MaxAttempts      int
	RetryBaseDelay   time.Duration

	// Base URL overrides for tests and sandboxes.
	TelnyxBaseURL string
	TwilioBaseURL string
}

// Build instantiates a carrier based on the preferred provider, wrapped in the
// retry policy. It returns the carrier, the provider that was selected, and a
// reason when no provider could be initialized. A nil carrier means dispatches
// are not configured.
func Build(cfg SelectionConfig, logger *logging.Logger) (Carrier, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	preference := strings.ToLower(strings.TrimSpace(cfg.Preference))
	if preference == "" {
		preference = ProviderAuto
	}

	missing := map[string]string{}
	var telnyxCarrier, twilioCarrier Carrier

	if cfg.TelnyxAPIKey != "" && cfg.TelnyxProfileID != "" {
		client, err := telnyx.New(telnyx.Config{
			APIKey:  cfg.TelnyxAPIKey,
			BaseURL: cfg.TelnyxBaseURL,
			Timeout: cfg.Timeout,
			Logger:  logger.Logger,
		})
		if err != nil {
			missing[ProviderTelnyx] = err.Error()
		} else {
			telnyxCarrier = NewTelnyx(client, cfg.TelnyxProfileID, cfg.TelnyxFromNumber, logger)
		}
	} else {
		var reasons []string
		if cfg.TelnyxAPIKey == "" {
			reasons = append(reasons, "TELNYX_API_KEY missing")
		}
		if cfg.TelnyxProfileID == "" {
			reasons = append(reasons, "TELNYX_MESSAGING_PROFILE_ID missing")
		}
		missing[ProviderTelnyx] = strings.Join(reasons, ", ")
	}

	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		twilioCarrier = NewTwilio(TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
			BaseURL:    cfg.TwilioBaseURL,
			Timeout:    cfg.Timeout,
		}, logger)
	} else {
		var reasons []string
		if cfg.TwilioAccountSID == "" {
			reasons = append(reasons, "TWILIO_ACCOUNT_SID missing")
		}
		if cfg.TwilioAuthToken == "" {
			reasons = append(reasons, "TWILIO_AUTH_TOKEN missing")
		}
		missing[ProviderTwilio] = strings.Join(reasons, ", ")
	}

	policy := Policy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.RetryBaseDelay, Timeout: cfg.Timeout}
	wrap := func(c Carrier) Carrier { return WithRetry(c, policy, logger) }

	if preference != ProviderAuto {
		if preference == ProviderTelnyx && telnyxCarrier != nil {
			return wrap(telnyxCarrier), ProviderTelnyx, ""
		}
		if preference == ProviderTwilio && twilioCarrier != nil {
			return wrap(twilioCarrier), ProviderTwilio, ""
		}
		reason := missing[preference]
		if reason == "" {
			reason = fmt.Sprintf("%s carrier not configured", preference)
		}
		return nil, "", reason
	}

	// Each provider retries on its own before failing over.
	if telnyxCarrier != nil && twilioCarrier != nil {
		return NewFailover(wrap(telnyxCarrier), wrap(twilioCarrier), logger), ProviderTelnyx + "+" + ProviderTwilio, ""
	}
	if telnyxCarrier != nil {
		return wrap(telnyxCarrier), ProviderTelnyx, ""
	}
	if twilioCarrier != nil {
		return wrap(twilioCarrier), ProviderTwilio, ""
	}

	var reasons []string
	for _, provider := range []string{ProviderTelnyx, ProviderTwilio} {
		if msg := missing[provider]; msg != "" {
			reasons = append(reasons, fmt.Sprintf("%s: %s", provider, msg))
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "no SMS providers configured")
	}
	return nil, "", strings.Join(reasons, "; ")
}
