package bootstrap

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/charter-notify/internal/audit"
	"github.com/wolfman30/charter-notify/internal/carrier"
	appconfig "github.com/wolfman30/charter-notify/internal/config"
	"github.com/wolfman30/charter-notify/internal/consent"
	"github.com/wolfman30/charter-notify/internal/dispatch"
	"github.com/wolfman30/charter-notify/internal/messaging/templates"
	"github.com/wolfman30/charter-notify/internal/notify"
	"github.com/wolfman30/charter-notify/internal/observability/metrics"
	"github.com/wolfman30/charter-notify/internal/store"
	"github.com/wolfman30/charter-notify/pkg/logging"
)

// BuildCarrier selects the SMS carrier from configuration. A nil carrier is
// returned with a reason when no provider has credentials.
func BuildCarrier(cfg *appconfig.Config, logger *logging.Logger) (carrier.Carrier, string, string) {
	if cfg == nil {
		return nil, "", "missing config"
	}
	return carrier.Build(carrier.SelectionConfig{
		Preference:       cfg.SMSProvider,
		TelnyxAPIKey:     cfg.TelnyxAPIKey,
		TelnyxProfileID:  cfg.TelnyxMessagingProfileID,
		TelnyxFromNumber: cfg.TelnyxFromNumber,
		TwilioAccountSID: cfg.TwilioAccountSID,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		TwilioFromNumber: cfg.TwilioFromNumber,
		Timeout:          cfg.CarrierTimeout,
		MaxAttempts:      cfg.CarrierMaxAttempts,
		RetryBaseDelay:   cfg.CarrierRetryBaseDelay,
	}, logger)
}

// Services is the dispatch stack shared by the API and the worker.
type Services struct {
	Provider   string
	Reference  *store.ReferenceStore
	Registry   *consent.PostgresRegistry
	Gate       *consent.Gate
	Templates  *templates.Store
	Dispatcher *dispatch.Dispatcher
	Notifier   *dispatch.Notifier
	Metrics    *metrics.DispatchMetrics
}

// BuildServices wires stores, consent, carrier and dispatch. db is required;
// redisClient may be nil, in which case only built-in templates are used.
func BuildServices(cfg *appconfig.Config, db store.Querier, redisClient *redis.Client, m *metrics.DispatchMetrics, logger *logging.Logger) (*Services, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if db == nil {
		return nil, errors.New("bootstrap: database is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	scope, err := consent.ParseScope(cfg.ConsentScope)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	failMode, err := consent.ParseFailMode(cfg.ConsentFailMode)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	svc := &Services{
		Reference: store.NewReferenceStore(db),
		Registry:  consent.NewPostgresRegistry(db),
		Templates: templates.NewStore(redisClient),
		Metrics:   m,
	}
	svc.Gate = consent.NewGate(svc.Registry, scope, failMode, logger)

	sms, provider, reason := BuildCarrier(cfg, logger)
	if sms == nil {
		logger.Warn("sms carrier not configured; dispatches will be recorded as NOT_CONFIGURED", "reason", reason)
	} else {
		logger.Info("sms carrier configured", "provider", provider)
	}
	svc.Provider = provider

	svc.Dispatcher = dispatch.NewDispatcher(sms, svc.Gate, audit.NewPostgresWriter(db), m, logger)
	svc.Notifier = dispatch.NewNotifier(
		svc.Dispatcher,
		dispatch.NewBuilder(svc.Reference, logger),
		svc.Templates,
		cfg.CampaignConcurrency,
		logger,
	)
	logger.Info("dispatch configured",
		"consent_scope", string(scope),
		"consent_fail_mode", string(failMode),
		"campaign_concurrency", cfg.CampaignConcurrency,
		"template_overrides", redisClient != nil,
	)
	return svc, nil
}

// BuildEmailSender selects the owner email provider. It returns nil when email
// is disabled or the chosen provider lacks credentials.
func BuildEmailSender(cfg *appconfig.Config, ses notify.SESAPI, logger *logging.Logger) notify.EmailSender {
	if cfg == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger); sender != nil {
			logger.Info("owner email configured", "provider", "sendgrid")
			return sender
		}
		logger.Warn("sendgrid selected but SENDGRID_API_KEY is empty; owner email disabled")
	case "ses":
		if sender := notify.NewSESSender(ses, notify.SESConfig{
			FromEmail:        cfg.EmailFrom,
			FromName:         cfg.EmailFromName,
			ConfigurationSet: cfg.SESConfigSet,
		}, logger); sender != nil {
			logger.Info("owner email configured", "provider", "ses")
			return sender
		}
		logger.Warn("ses selected but client or EMAIL_FROM missing; owner email disabled")
	case "log":
		return notify.NewLogSender(logger)
	case "", "none":
	default:
		logger.Warn("unknown EMAIL_PROVIDER; owner email disabled", "provider", cfg.EmailProvider)
	}
	return nil
}
