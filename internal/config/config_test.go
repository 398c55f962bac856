package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("SMS_PROVIDER", "")
	t.Setenv("CONSENT_SCOPE", "")
	t.Setenv("CONSENT_FAIL_MODE", "")
	t.Setenv("CARRIER_TIMEOUT", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("EMAIL_PROVIDER", "")
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "auto", cfg.SMSProvider)
	assert.Equal(t, "site", cfg.ConsentScope)
	assert.Equal(t, "fail_closed", cfg.ConsentFailMode)
	assert.Equal(t, 10*time.Second, cfg.CarrierTimeout)
	assert.Equal(t, 3, cfg.CarrierMaxAttempts)
	assert.Equal(t, 4, cfg.CampaignConcurrency)
	assert.Nil(t, cfg.CORSAllowedOrigins)
	assert.Equal(t, "none", cfg.EmailProvider)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SMS_PROVIDER", " Twilio ")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("CONSENT_SCOPE", "GLOBAL")
	t.Setenv("CONSENT_FAIL_MODE", "fail_open")
	t.Setenv("CARRIER_TIMEOUT", "3s")
	t.Setenv("CARRIER_MAX_ATTEMPTS", "5")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("EMAIL_PROVIDER", "SES")
	t.Setenv("EMAIL_FROM", "bookings@charter.test")
	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "twilio", cfg.SMSProvider)
	assert.Equal(t, "AC123", cfg.TwilioAccountSID)
	assert.Equal(t, "global", cfg.ConsentScope)
	assert.Equal(t, "fail_open", cfg.ConsentFailMode)
	assert.Equal(t, 3*time.Second, cfg.CarrierTimeout)
	assert.Equal(t, 5, cfg.CarrierMaxAttempts)
	assert.True(t, cfg.RedisTLS)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "ses", cfg.EmailProvider)
	assert.Equal(t, "bookings@charter.test", cfg.EmailFrom)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CARRIER_TIMEOUT", "soon")
	t.Setenv("CARRIER_MAX_ATTEMPTS", "many")
	cfg := Load()
	assert.Equal(t, 10*time.Second, cfg.CarrierTimeout)
	assert.Equal(t, 3, cfg.CarrierMaxAttempts)
}
