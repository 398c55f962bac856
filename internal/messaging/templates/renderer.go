// Package templates renders outbound message bodies from per-site templates.
package templates

import (
	"fmt"
	"regexp"
)

// Token names a placeholder that the context builder knows how to fill.
type Token string

const (
	TokenCustomerName  Token = "customer_name"
	TokenCustomerPhone Token = "customer_phone"
	TokenCustomerEmail Token = "customer_email"
	TokenBusinessName  Token = "business_name"
	TokenDate          Token = "date"
	TokenTimeSlot      Token = "time_slot"
	TokenBoatCount     Token = "boat_count"
	TokenBoatType      Token = "boat_type"
	TokenAddons        Token = "addons"
	TokenGuestCount    Token = "guest_count"
	TokenTotal         Token = "total"
	TokenLocation      Token = "location"
	TokenPaymentStatus Token = "payment_status"
)

// Vocabulary lists every token template authors may reference.
var Vocabulary = []Token{
	TokenCustomerName,
	TokenCustomerPhone,
	TokenCustomerEmail,
	TokenBusinessName,
	TokenDate,
	TokenTimeSlot,
	TokenBoatCount,
	TokenBoatType,
	TokenAddons,
	TokenGuestCount,
	TokenTotal,
	TokenLocation,
	TokenPaymentStatus,
}

var vocabularySet = func() map[Token]struct{} {
	set := make(map[Token]struct{}, len(Vocabulary))
	for _, tok := range Vocabulary {
		set[tok] = struct{}{}
	}
	return set
}()

// Known reports whether the token is part of the vocabulary.
func (t Token) Known() bool {
	_, ok := vocabularySet[t]
	return ok
}

// Context maps tokens to their rendered values for a single message.
// Only vocabulary tokens can be stored; a present key with an empty value
// still substitutes (as the empty string).
type Context struct {
	values map[Token]string
}

// NewContext returns an empty context.
func NewContext() Context {
	return Context{values: make(map[Token]string, len(Vocabulary))}
}

// Set stores a value, rejecting tokens outside the vocabulary.
func (c Context) Set(tok Token, value string) error {
	if !tok.Known() {
		return fmt.Errorf("templates: unknown token %q", tok)
	}
	c.values[tok] = value
	return nil
}

// Lookup returns the value for a token and whether it is present.
func (c Context) Lookup(tok Token) (string, bool) {
	if c.values == nil {
		return "", false
	}
	v, ok := c.values[tok]
	return v, ok
}

// Values returns a copy of the context as plain strings, for logging and JSON.
func (c Context) Values() map[string]string {
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[string(k)] = v
	}
	return out
}

// Clone returns an independent copy.
func (c Context) Clone() Context {
	out := NewContext()
	for k, v := range c.values {
		out.values[k] = v
	}
	return out
}

// ContextFromMap builds a context from caller-supplied values, ignoring keys
// outside the vocabulary. The ignored keys are returned so callers can report them.
func ContextFromMap(values map[string]string) (Context, []string) {
	ctx := NewContext()
	var ignored []string
	for k, v := range values {
		if err := ctx.Set(Token(k), v); err != nil {
			ignored = append(ignored, k)
		}
	}
	return ctx, ignored
}

var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render substitutes {{token}} placeholders. Placeholders whose token is not
// present in the context are left verbatim; substituted text is not rescanned.
func Render(tmpl string, ctx Context) string {
	if tmpl == "" {
		return ""
	}
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := match[2 : len(match)-2]
		if v, ok := ctx.Lookup(Token(name)); ok {
			return v
		}
		return match
	})
}
