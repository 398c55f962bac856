package carrier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/charter-notify/internal/carrier/telnyx"
)

func TestTelnyxSendMapsResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":"tx-42","status":"queued"}}`))
	}))
	defer server.Close()

	client, err := telnyx.New(telnyx.Config{APIKey: "key", BaseURL: server.URL})
	require.NoError(t, err)
	sender := NewTelnyx(client, "profile", "+15550001111", nil)

	receipt, err := sender.Send(context.Background(), Message{To: "+15552223333", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "tx-42", receipt.MessageID)
	assert.Equal(t, ProviderTelnyx, receipt.Provider)
}

func TestTelnyxSendMapsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"errors":[{"title":"Rate limited","detail":"slow down"}]}`))
	}))
	defer server.Close()

	client, err := telnyx.New(telnyx.Config{APIKey: "key", BaseURL: server.URL})
	require.NoError(t, err)
	sender := NewTelnyx(client, "profile", "+15550001111", nil)

	_, err = sender.Send(context.Background(), Message{To: "+15552223333", Body: "hi"})
	var carrierErr *Error
	require.True(t, errors.As(err, &carrierErr))
	assert.Equal(t, http.StatusTooManyRequests, carrierErr.StatusCode)
	assert.True(t, IsTransient(err))
	assert.Equal(t, "telnyx: status 429: Rate limited: slow down", err.Error())
}
