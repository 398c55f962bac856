// Package consent decides whether a recipient has opted out of messages.
package consent

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/charter-notify/pkg/logging"
)

// Scope controls which opt-out entries apply to a dispatch.
type Scope string

const (
	// ScopeSite only honours opt-outs recorded for the dispatching site.
	ScopeSite Scope = "site"
	// ScopeGlobal honours an opt-out recorded by any site.
	ScopeGlobal Scope = "global"
)

// FailMode controls the decision when the registry cannot be read.
type FailMode string

const (
	// FailClosed suppresses the send when the lookup fails.
	FailClosed FailMode = "fail_closed"
	// FailOpen allows the send when the lookup fails.
	FailOpen FailMode = "fail_open"
)

// ParseScope maps configuration text to a Scope.
func ParseScope(raw string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ScopeSite:
		return ScopeSite, nil
	case ScopeGlobal:
		return ScopeGlobal, nil
	default:
		return "", fmt.Errorf("consent: unknown scope %q", raw)
	}
}

// ParseFailMode maps configuration text to a FailMode.
func ParseFailMode(raw string) (FailMode, error) {
	switch FailMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FailClosed:
		return FailClosed, nil
	case FailOpen:
		return FailOpen, nil
	default:
		return "", fmt.Errorf("consent: unknown fail mode %q", raw)
	}
}

// Registry is the read side of the opt-out registry.
type Registry interface {
	IsOptedOut(ctx context.Context, scope Scope, siteID string, phones []string) (bool, error)
}

// Decision is the outcome of a consent check.
type Decision struct {
	Suppressed bool
	// LookupErr is set when the registry failed and the fail mode decided the outcome.
	LookupErr error
}

// Gate checks recipients against the opt-out registry.
type Gate struct {
	registry Registry
	scope    Scope
	failMode FailMode
	logger   *logging.Logger
}

func NewGate(registry Registry, scope Scope, failMode FailMode, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Default()
	}
	if scope == "" {
		scope = ScopeSite
	}
	if failMode == "" {
		failMode = FailClosed
	}
	return &Gate{registry: registry, scope: scope, failMode: failMode, logger: logger}
}

// Check looks up both the raw and normalized phone. It never returns an error;
// registry failures resolve through the configured fail mode.
func (g *Gate) Check(ctx context.Context, siteID, raw, normalized string) Decision {
	if g == nil || g.registry == nil {
		return Decision{}
	}
	suppressed, err := g.registry.IsOptedOut(ctx, g.scope, siteID, Representations(raw, normalized))
	if err != nil {
		g.logger.Warn("consent lookup failed",
			"site_id", siteID,
			"fail_mode", string(g.failMode),
			"error", err,
		)
		return Decision{Suppressed: g.failMode == FailClosed, LookupErr: err}
	}
	return Decision{Suppressed: suppressed}
}

// Representations returns the distinct non-empty forms a phone may be stored under.
func Representations(raw, normalized string) []string {
	var out []string
	seen := map[string]bool{}
	for _, p := range []string{raw, strings.TrimSpace(raw), normalized} {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
