package carrier

import (
	"context"
	"errors"

	"github.com/wolfman30/charter-notify/pkg/logging"
)

// Failover attempts a primary send, then falls back to a secondary provider
// when the primary provably did not accept the message.
type Failover struct {
	primary   Carrier
	secondary Carrier
	logger    *logging.Logger
}

func NewFailover(primary, secondary Carrier, logger *logging.Logger) *Failover {
	if logger == nil {
		logger = logging.Default()
	}
	return &Failover{primary: primary, secondary: secondary, logger: logger}
}

var _ Carrier = (*Failover)(nil)

// Send tries the primary provider first. The returned receipt names the provider
// that produced the final outcome and counts attempts across both.
func (f *Failover) Send(ctx context.Context, msg Message) (Receipt, error) {
	if f == nil || f.primary == nil {
		return Receipt{}, errors.New("carrier: failover primary not configured")
	}
	receipt, err := f.primary.Send(ctx, msg)
	if err == nil || f.secondary == nil {
		return receipt, err
	}
	if ctx.Err() != nil {
		return receipt, err
	}
	if !NotSent(err) {
		f.logger.Warn("primary sms outcome unknown; not failing over",
			"provider", receipt.Provider,
			"site_id", msg.SiteID,
			"error", err,
			"to", msg.To,
		)
		return receipt, err
	}
	f.logger.Warn("primary sms send failed; attempting fallback",
		"provider", receipt.Provider,
		"site_id", msg.SiteID,
		"error", err,
		"to", msg.To,
	)
	fallback, fallbackErr := f.secondary.Send(ctx, msg)
	fallback.Attempts += receipt.Attempts
	if fallbackErr != nil {
		f.logger.Error("fallback sms send failed",
			"provider", fallback.Provider,
			"site_id", msg.SiteID,
			"error", fallbackErr,
			"to", msg.To,
		)
	}
	return fallback, fallbackErr
}
