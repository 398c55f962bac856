package carrier

import (
	"context"
	"math/rand"
	"time"

	"github.com/wolfman30/charter-notify/pkg/logging"
)

// Policy bounds one logical send: how many provider calls, how long each may
// take and how long to wait between them.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
}

// DefaultPolicy is three attempts with a 250ms base delay and a 10s per-call timeout.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Timeout:     10 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	return p
}

// backoff returns a jittered delay in [d/2, d) where d doubles per attempt.
func (p Policy) backoff(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// Retrying retries transient failures of the wrapped carrier.
type Retrying struct {
	next   Carrier
	policy Policy
	logger *logging.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func WithRetry(next Carrier, policy Policy, logger *logging.Logger) *Retrying {
	if logger == nil {
		logger = logging.Default()
	}
	return &Retrying{
		next:   next,
		policy: policy.normalized(),
		logger: logger,
		sleep:  sleepContext,
	}
}

var _ Carrier = (*Retrying)(nil)

// Send makes up to MaxAttempts calls. Receipt.Attempts reports how many were made.
func (r *Retrying) Send(ctx context.Context, msg Message) (Receipt, error) {
	var (
		receipt Receipt
		err     error
	)
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
		receipt, err = r.next.Send(attemptCtx, msg)
		cancel()
		receipt.Attempts = attempt
		if err == nil {
			return receipt, nil
		}
		if attempt == r.policy.MaxAttempts || ctx.Err() != nil || !IsTransient(err) {
			break
		}
		delay := r.policy.backoff(attempt)
		r.logger.Warn("sms send failed; retrying",
			"provider", receipt.Provider,
			"site_id", msg.SiteID,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			break
		}
	}
	return receipt, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
