// Package tenancy carries the site (tenant) id through request contexts.
package tenancy

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidSiteID is returned for ids outside [A-Za-z0-9_-]{1,64}.
var ErrInvalidSiteID = errors.New("tenancy: invalid site id")

var siteIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ParseSiteID trims raw and checks it is usable as a tenant key, including as
// an S3 key segment and a Redis key suffix.
func ParseSiteID(raw string) (string, error) {
	siteID := strings.TrimSpace(raw)
	if !siteIDPattern.MatchString(siteID) {
		return "", ErrInvalidSiteID
	}
	return siteID, nil
}

type siteKey struct{}

// WithSiteID scopes ctx to one site.
func WithSiteID(ctx context.Context, siteID string) context.Context {
	return context.WithValue(ctx, siteKey{}, siteID)
}

// SiteIDFromContext returns the site the request is scoped to.
func SiteIDFromContext(ctx context.Context) (string, bool) {
	siteID, ok := ctx.Value(siteKey{}).(string)
	return siteID, ok && siteID != ""
}
