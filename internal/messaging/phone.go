package messaging

import "strings"

// DefaultCountryCode is the dialing prefix assumed for bare national numbers.
const DefaultCountryCode = "1"

// NormalizePhone converts free-form input into a dialable E.164 string.
// It returns false when the input cannot be interpreted as a phone number.
//
//	"2055551212"         -> "+12055551212"
//	"1 (205) 555-1212"   -> "+12055551212"
//	"+44 20 7946 0958"   -> "+44 20 7946 0958" (already international, passed through)
//	"555-1212"           -> rejected
func NormalizePhone(raw string) (string, bool) {
	digits := sanitizePhone(raw)
	switch {
	case len(digits) == 10:
		return "+" + DefaultCountryCode + digits, true
	case len(digits) == 11 && strings.HasPrefix(digits, DefaultCountryCode):
		return "+" + digits, true
	case len(digits) > 10 && strings.HasPrefix(raw, "+"):
		return raw, true
	default:
		return "", false
	}
}

// NormalizeE164 is the lenient form used for inbound carrier numbers: it keeps the
// digits and prefixes a plus without validating length.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if normalized, ok := NormalizePhone(value); ok {
		return normalized
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

func sanitizePhone(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
