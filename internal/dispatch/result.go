// Package dispatch renders, validates, consent-checks, sends and audits
// outbound notifications.
package dispatch

import (
	"errors"

	"github.com/google/uuid"

	"github.com/wolfman30/charter-notify/internal/audit"
)

var (
	ErrConfigurationMissing = errors.New("dispatch: sms carrier not configured")
	ErrInvalidRecipient     = errors.New("dispatch: invalid recipient phone")
	ErrConsentSuppressed    = errors.New("dispatch: recipient opted out")
	ErrCarrierFailure       = errors.New("dispatch: carrier send failed")
	// ErrAuditWriteFailure is only ever reported on Result.AuditWarning.
	ErrAuditWriteFailure = errors.New("dispatch: audit write failed")
)

// Code is the machine-readable reason attached to a Result.
type Code string

const (
	CodeOK                   Code = "ok"
	CodeConfigurationMissing Code = "configuration_missing"
	CodeInvalidRecipient     Code = "invalid_recipient"
	CodeConsentSuppressed    Code = "consent_suppressed"
	CodeCarrierFailure       Code = "carrier_failure"
)

// Result is the terminal outcome of one dispatch. Every call to Send produces
// exactly one Result; errors never cross the dispatch boundary any other way.
type Result struct {
	Success   bool         `json:"success"`
	Status    audit.Status `json:"status"`
	Code      Code         `json:"code"`
	Reason    string       `json:"reason,omitempty"`
	Recipient string       `json:"recipient"`
	Body      string       `json:"body"`
	MessageID string       `json:"message_id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Attempts  int          `json:"attempts,omitempty"`
	// LogID is nil when the audit row could not be written.
	LogID *uuid.UUID `json:"log_id,omitempty"`

	// Err wraps one of the sentinel errors for errors.Is checks.
	Err error `json:"-"`
	// AuditWarning is set when the audit row could not be written. It never
	// changes Status or Success.
	AuditWarning error `json:"-"`
}

func failure(status audit.Status, code Code, err error, reason string) Result {
	return Result{Status: status, Code: code, Err: err, Reason: reason}
}
