package telnyx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "+15550001111", payload["from"])
		assert.Equal(t, "+15552223333", payload["to"])
		assert.Equal(t, "see you at the dock", payload["text"])
		assert.Equal(t, "profile-1", payload["messaging_profile_id"])

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":{"id":"msg_01","status":"queued","parts":1}}`))
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "key", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := client.SendMessage(context.Background(), SendMessageRequest{
		From:               "+15550001111",
		To:                 "+15552223333",
		Body:               "see you at the dock",
		MessagingProfileID: "profile-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_01", resp.ID)
	assert.Equal(t, "queued", resp.Status)
}

func TestSendMessageAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors":[{"title":"Invalid destination","detail":"not a mobile number"}]}`))
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.SendMessage(context.Background(), SendMessageRequest{From: "+1", To: "+2", Body: "hi"})
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "Invalid destination")
}

func TestSendMessageValidation(t *testing.T) {
	client, err := New(Config{APIKey: "key"})
	require.NoError(t, err)

	_, err = client.SendMessage(context.Background(), SendMessageRequest{To: "+15552223333", Body: "hi"})
	assert.Error(t, err)
	_, err = client.SendMessage(context.Background(), SendMessageRequest{From: "+1", To: "+2", Body: "  "})
	assert.Error(t, err)
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	client, err := New(Config{APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, client.baseURL)
}
