// Package carrier delivers rendered SMS messages through an external provider.
package carrier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Message is a single outbound SMS.
type Message struct {
	SiteID string
	From   string
	To     string
	Body   string
}

// Receipt describes a delivery attempt. Provider and Attempts are populated on
// failure as well so callers can record them.
type Receipt struct {
	MessageID string
	Provider  string
	Attempts  int
}

// Carrier sends a message and returns the provider's message id.
type Carrier interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// Error is a non-2xx response from a provider.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Temporary reports whether the provider explicitly refused the request for now.
// Only 429 qualifies: a 5xx may arrive after the provider queued the message.
func (e *Error) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// ErrNotAttempted marks a send rejected before any request left the process.
var ErrNotAttempted = errors.New("carrier: request not attempted")

// NotSent reports whether err proves the provider never accepted the message:
// it was rejected locally, the connection was never established, or the
// provider answered 4xx. Timeouts, resets after the write and 5xx responses
// are ambiguous and report false.
func NotSent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotAttempted) || isDialError(err) {
		return true
	}
	var carrierErr *Error
	if errors.As(err, &carrierErr) {
		return carrierErr.StatusCode >= 400 && carrierErr.StatusCode <= 499
	}
	return false
}

// IsTransient reports whether a failed call may be repeated without risking a
// duplicate text: the connection was never established, or the provider
// answered 429.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if isDialError(err) {
		return true
	}
	var carrierErr *Error
	if errors.As(err, &carrierErr) {
		return carrierErr.Temporary()
	}
	return false
}

// isDialError matches failures to open the connection, which happen before
// any request bytes are written.
func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func validate(msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("%w: to required", ErrNotAttempted)
	}
	if msg.From == "" {
		return fmt.Errorf("%w: from required", ErrNotAttempted)
	}
	if msg.Body == "" {
		return fmt.Errorf("%w: body required", ErrNotAttempted)
	}
	return nil
}
