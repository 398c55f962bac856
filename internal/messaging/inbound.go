package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// InboundMessage is the subset of a Twilio inbound SMS webhook the consent flow needs.
type InboundMessage struct {
	MessageSID string
	AccountSID string
	From       string
	To         string
	Body       string
}

// ErrMissingInboundFields is returned when From or To is absent.
var ErrMissingInboundFields = errors.New("messaging: inbound webhook missing From/To")

// ParseInbound reads the form-encoded Twilio payload.
func ParseInbound(r *http.Request) (*InboundMessage, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("messaging: parse inbound form: %w", err)
	}
	msg := &InboundMessage{
		MessageSID: strings.TrimSpace(r.PostFormValue("MessageSid")),
		AccountSID: strings.TrimSpace(r.PostFormValue("AccountSid")),
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		Body:       r.PostFormValue("Body"),
	}
	if msg.From == "" || msg.To == "" {
		return nil, ErrMissingInboundFields
	}
	return msg, nil
}

// ValidateTwilioSignature checks X-Twilio-Signature against the public webhook URL and the posted form.
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" || authToken == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	expected := SignTwilioPayload(authToken, webhookURL, r.PostForm)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// SignTwilioPayload computes the base64 HMAC-SHA1 Twilio uses: URL followed by the sorted key/value pairs.
func SignTwilioPayload(authToken, webhookURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(webhookURL)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}

	h := hmac.New(sha1.New, []byte(authToken))
	h.Write([]byte(payload.String()))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// AbsoluteURL rebuilds the URL the carrier called, honouring proxy headers.
func AbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
