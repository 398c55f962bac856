// Package compliance classifies inbound carrier keywords that change a recipient's consent.
package compliance

import (
	"regexp"
	"strings"
)

// Action is the consent change requested by an inbound message.
type Action string

const (
	ActionNone  Action = "none"
	ActionStop  Action = "stop"
	ActionStart Action = "start"
	ActionHelp  Action = "help"
)

// Detector identifies STOP/START/HELP keywords in inbound messages.
type Detector struct {
	stopRegex  *regexp.Regexp
	startRegex *regexp.Regexp
	helpRegex  *regexp.Regexp
}

// NewDetector returns a keyword detector using the carrier-standard keyword lists.
func NewDetector() *Detector {
	return &Detector{
		stopRegex:  regexp.MustCompile(`(?i)^(?:please\s+)?(stop|stopall|unsubscribe|cancel|end|quit|optout)\b`),
		startRegex: regexp.MustCompile(`(?i)^(start|unstop|subscribe|yes)\b`),
		helpRegex:  regexp.MustCompile(`(?i)^(?:please\s+)?(help|info)\b`),
	}
}

// IsStop returns true when body contains a STOP keyword.
func (d *Detector) IsStop(body string) bool {
	if d == nil || d.stopRegex == nil {
		return false
	}
	return d.stopRegex.MatchString(strings.TrimSpace(body))
}

// IsStart returns true when body re-subscribes the sender.
func (d *Detector) IsStart(body string) bool {
	if d == nil || d.startRegex == nil {
		return false
	}
	return d.startRegex.MatchString(strings.TrimSpace(body))
}

// IsHelp returns true when body contains a HELP keyword.
func (d *Detector) IsHelp(body string) bool {
	if d == nil || d.helpRegex == nil {
		return false
	}
	return d.helpRegex.MatchString(strings.TrimSpace(body))
}

// Classify maps an inbound body to a single action. STOP wins over everything else.
func (d *Detector) Classify(body string) Action {
	switch {
	case d.IsStop(body):
		return ActionStop
	case d.IsStart(body):
		return ActionStart
	case d.IsHelp(body):
		return ActionHelp
	default:
		return ActionNone
	}
}
