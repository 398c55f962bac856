package carrier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCarrier struct {
	mu       sync.Mutex
	provider string
	errs     []error
	calls    int
}

func (s *scriptedCarrier) Send(ctx context.Context, msg Message) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	receipt := Receipt{Provider: s.provider, Attempts: 1}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return receipt, err
		}
	}
	receipt.MessageID = s.provider + "-msg"
	return receipt, nil
}

func dialErr() error {
	return fmt.Errorf("fake: http error: %w", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})
}

func noSleep(r *Retrying) *Retrying {
	r.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return r
}

func TestRetryingRecoversFromTransientErrors(t *testing.T) {
	next := &scriptedCarrier{provider: "fake", errs: []error{
		dialErr(),
		&Error{Provider: "fake", StatusCode: http.StatusTooManyRequests},
	}}
	r := noSleep(WithRetry(next, Policy{MaxAttempts: 3}, nil))

	receipt, err := r.Send(context.Background(), Message{To: "+1", From: "+2", Body: "x"})
	require.NoError(t, err)
	assert.Equal(t, "fake-msg", receipt.MessageID)
	assert.Equal(t, 3, receipt.Attempts)
	assert.Equal(t, 3, next.calls)
}

func TestRetryingStopsOnPermanentError(t *testing.T) {
	next := &scriptedCarrier{provider: "fake", errs: []error{
		&Error{Provider: "fake", StatusCode: http.StatusBadRequest},
	}}
	r := noSleep(WithRetry(next, Policy{MaxAttempts: 3}, nil))

	receipt, err := r.Send(context.Background(), Message{})
	require.Error(t, err)
	assert.Equal(t, 1, receipt.Attempts)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, "fake", receipt.Provider)
}

func TestRetryingDoesNotRepeatAmbiguousFailures(t *testing.T) {
	for name, err := range map[string]error{
		"server error": &Error{Provider: "fake", StatusCode: http.StatusBadGateway},
		"timeout":      fmt.Errorf("fake: http error: %w", context.DeadlineExceeded),
		"reset":        &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")},
	} {
		t.Run(name, func(t *testing.T) {
			next := &scriptedCarrier{provider: "fake", errs: []error{err}}
			receipt, sendErr := noSleep(WithRetry(next, Policy{MaxAttempts: 3}, nil)).Send(context.Background(), Message{})
			require.Error(t, sendErr)
			assert.Equal(t, 1, next.calls)
			assert.Equal(t, 1, receipt.Attempts)
		})
	}
}

func TestRetryingGivesUpAfterMaxAttempts(t *testing.T) {
	transient := &Error{Provider: "fake", StatusCode: http.StatusTooManyRequests}
	next := &scriptedCarrier{provider: "fake", errs: []error{transient, transient, transient, transient}}
	r := noSleep(WithRetry(next, Policy{MaxAttempts: 2}, nil))

	receipt, err := r.Send(context.Background(), Message{})
	require.Error(t, err)
	assert.Equal(t, 2, receipt.Attempts)
	assert.Equal(t, 2, next.calls)
}

func TestRetryingStopsWhenContextCancelled(t *testing.T) {
	transient := &Error{Provider: "fake", StatusCode: http.StatusTooManyRequests}
	next := &scriptedCarrier{provider: "fake", errs: []error{transient, transient}}
	ctx, cancel := context.WithCancel(context.Background())
	r := WithRetry(next, Policy{MaxAttempts: 5}, nil)
	r.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := r.Send(ctx, Message{})
	require.Error(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestBackoffStaysWithinBounds(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}.normalized()
	for attempt := 1; attempt <= 6; attempt++ {
		d := p.backoff(attempt)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(errors.New("carrier: to required")))
	assert.False(t, IsTransient(&Error{StatusCode: 500}))
	assert.False(t, IsTransient(&Error{StatusCode: 404}))
	assert.True(t, IsTransient(&Error{StatusCode: 429}))
	assert.True(t, IsTransient(dialErr()))
}

func TestNotSent(t *testing.T) {
	assert.False(t, NotSent(nil))
	assert.True(t, NotSent(validate(Message{})))
	assert.True(t, NotSent(dialErr()))
	assert.True(t, NotSent(&Error{StatusCode: 400}))
	assert.True(t, NotSent(&Error{StatusCode: 429}))
	assert.False(t, NotSent(&Error{StatusCode: 503}))
	assert.False(t, NotSent(context.DeadlineExceeded))
	assert.False(t, NotSent(errors.New("twilio: decode response")))
}

// stallingServer accepts every POST, counts it, then holds the response.
func stallingServer(t *testing.T, stall time.Duration) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var accepted atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accepted.Add(1)
		select {
		case <-time.After(stall):
		case <-r.Context().Done():
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SMlate","status":"queued"}`))
	}))
	t.Cleanup(server.Close)
	return server, &accepted
}

func TestBuiltCarrierDoesNotResendAfterTimeout(t *testing.T) {
	server, accepted := stallingServer(t, 150*time.Millisecond)

	sms, provider, _ := Build(SelectionConfig{
		Preference:       ProviderTwilio,
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "secret",
		TwilioFromNumber: "+15550001111",
		TwilioBaseURL:    server.URL,
		Timeout:          50 * time.Millisecond,
		MaxAttempts:      3,
		RetryBaseDelay:   time.Millisecond,
	}, nil)
	require.NotNil(t, sms)
	require.Equal(t, ProviderTwilio, provider)

	receipt, err := sms.Send(context.Background(), Message{To: "+15552223333", Body: "hi"})
	require.Error(t, err)
	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, 1, receipt.Attempts)
}

func TestBuiltCarrierDoesNotFailOverAfterTimeout(t *testing.T) {
	telnyxServer, telnyxAccepted := stallingServer(t, 150*time.Millisecond)
	twilioServer, twilioAccepted := stallingServer(t, 0)

	sms, provider, _ := Build(SelectionConfig{
		Preference:       ProviderAuto,
		TelnyxAPIKey:     "key",
		TelnyxProfileID:  "profile",
		TelnyxFromNumber: "+15550001111",
		TelnyxBaseURL:    telnyxServer.URL,
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "secret",
		TwilioFromNumber: "+15550001111",
		TwilioBaseURL:    twilioServer.URL,
		Timeout:          50 * time.Millisecond,
		MaxAttempts:      3,
		RetryBaseDelay:   time.Millisecond,
	}, nil)
	require.NotNil(t, sms)
	require.Equal(t, ProviderTelnyx+"+"+ProviderTwilio, provider)

	_, err := sms.Send(context.Background(), Message{To: "+15552223333", Body: "hi"})
	require.Error(t, err)
	assert.Equal(t, int32(1), telnyxAccepted.Load())
	assert.Zero(t, twilioAccepted.Load())
}

func TestBuiltCarrierRetriesRefusedConnections(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	closedURL := server.URL
	server.Close()

	sms, _, _ := Build(SelectionConfig{
		Preference:       ProviderTwilio,
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "secret",
		TwilioFromNumber: "+15550001111",
		TwilioBaseURL:    closedURL,
		Timeout:          time.Second,
		MaxAttempts:      3,
		RetryBaseDelay:   time.Millisecond,
	}, nil)
	require.NotNil(t, sms)

	receipt, err := sms.Send(context.Background(), Message{To: "+15552223333", Body: "hi"})
	require.Error(t, err)
	assert.True(t, NotSent(err))
	assert.Equal(t, 3, receipt.Attempts)
}

func TestFailoverUsesSecondaryWhenPrimaryNeverAccepted(t *testing.T) {
	primary := &scriptedCarrier{provider: "telnyx", errs: []error{&Error{Provider: "telnyx", StatusCode: 401}}}
	secondary := &scriptedCarrier{provider: "twilio"}

	receipt, err := NewFailover(primary, secondary, nil).Send(context.Background(), Message{})
	require.NoError(t, err)
	assert.Equal(t, "twilio", receipt.Provider)
	assert.Equal(t, "twilio-msg", receipt.MessageID)
	assert.Equal(t, 2, receipt.Attempts)
}

func TestFailoverSkipsSecondaryOnSuccess(t *testing.T) {
	primary := &scriptedCarrier{provider: "telnyx"}
	secondary := &scriptedCarrier{provider: "twilio"}

	receipt, err := NewFailover(primary, secondary, nil).Send(context.Background(), Message{})
	require.NoError(t, err)
	assert.Equal(t, "telnyx", receipt.Provider)
	assert.Zero(t, secondary.calls)
}

func TestFailoverKeepsAmbiguousPrimaryOutcome(t *testing.T) {
	for name, err := range map[string]error{
		"server error": &Error{Provider: "telnyx", StatusCode: 500},
		"timeout":      fmt.Errorf("telnyx: http error: %w", context.DeadlineExceeded),
	} {
		t.Run(name, func(t *testing.T) {
			primary := &scriptedCarrier{provider: "telnyx", errs: []error{err}}
			secondary := &scriptedCarrier{provider: "twilio"}

			receipt, sendErr := NewFailover(primary, secondary, nil).Send(context.Background(), Message{})
			require.ErrorIs(t, sendErr, err)
			assert.Equal(t, "telnyx", receipt.Provider)
			assert.Zero(t, secondary.calls)
		})
	}
}

func TestFailoverReturnsSecondaryError(t *testing.T) {
	primary := &scriptedCarrier{provider: "telnyx", errs: []error{dialErr()}}
	secondary := &scriptedCarrier{provider: "twilio", errs: []error{errors.New("also down")}}

	receipt, err := NewFailover(primary, secondary, nil).Send(context.Background(), Message{})
	require.EqualError(t, err, "also down")
	assert.Equal(t, "twilio", receipt.Provider)
}
