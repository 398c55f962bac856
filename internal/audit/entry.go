// Package audit records one immutable row per dispatch attempt.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Status is the terminal outcome of a dispatch attempt.
type Status string

const (
	StatusNotConfigured Status = "NOT_CONFIGURED"
	StatusInvalidPhone  Status = "INVALID_PHONE"
	StatusOptedOut      Status = "OPTED_OUT"
	StatusSent          Status = "SENT"
	StatusFailed        Status = "FAILED"
)

// Statuses lists every terminal status.
var Statuses = []Status{StatusNotConfigured, StatusInvalidPhone, StatusOptedOut, StatusSent, StatusFailed}

// Valid reports whether s is one of the terminal statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Metadata carries carrier details for the attempt.
type Metadata struct {
	CarrierMessageID string `json:"carrier_message_id,omitempty"`
	Provider         string `json:"provider,omitempty"`
	Attempts         int    `json:"attempts,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Entry is a single audit row.
type Entry struct {
	ID             uuid.UUID `json:"id"`
	SiteID         string    `json:"site_id"`
	RecipientPhone string    `json:"recipient_phone"`
	MessageBody    string    `json:"message_body"`
	TemplateKind   string    `json:"template_kind"`
	Status         Status    `json:"status"`
	RelatedID      string    `json:"related_id,omitempty"`
	Metadata       Metadata  `json:"metadata"`
	CreatedAt      time.Time `json:"created_at"`
}
