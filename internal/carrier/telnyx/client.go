// Package telnyx is a minimal client for the Telnyx v2 messaging API.
package telnyx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://api.telnyx.com/v2"
	defaultUserAgent = "charter-notify/0.1"
)

// Config controls how the client behaves.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
}

// Client wraps the Telnyx messaging endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("telnyx: API key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		userAgent:  userAgent,
	}, nil
}

// SendMessageRequest describes an outbound SMS.
type SendMessageRequest struct {
	From               string
	To                 string
	Body               string
	MessagingProfileID string
}

func (r SendMessageRequest) validate() error {
	if strings.TrimSpace(r.From) == "" || strings.TrimSpace(r.To) == "" {
		return errors.New("telnyx: from and to numbers required")
	}
	if strings.TrimSpace(r.Body) == "" {
		return errors.New("telnyx: body required")
	}
	return nil
}

// MessageResponse is the subset of the Telnyx message resource we use.
type MessageResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	From   struct {
		PhoneNumber string `json:"phone_number"`
	} `json:"from"`
	Parts int `json:"parts"`
}

// SendMessage issues a single send request. It does not retry.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*MessageResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(struct {
		From               string `json:"from"`
		To                 string `json:"to"`
		Text               string `json:"text"`
		MessagingProfileID string `json:"messaging_profile_id,omitempty"`
	}{
		From:               req.From,
		To:                 req.To,
		Text:               req.Body,
		MessagingProfileID: req.MessagingProfileID,
	})
	if err != nil {
		return nil, fmt.Errorf("telnyx: marshal send body: %w", err)
	}
	data, err := c.post(ctx, "/messages", body)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Data MessageResponse `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("telnyx: decode response: %w", err)
	}
	if wrapper.Data.ID == "" {
		return nil, errors.New("telnyx: response missing message id")
	}
	return &wrapper.Data, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+strings.TrimLeft(path, "/"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telnyx: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telnyx: http error: %w", err)
	}
	data, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("telnyx: read response: %w", readErr)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	apiErr := decodeAPIError(resp.StatusCode, data)
	c.logger.Warn("telnyx request rejected", "path", path, "status", resp.StatusCode, "error", apiErr)
	return nil, apiErr
}

// APIError is a non-2xx Telnyx response.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
}

func (e *APIError) Error() string {
	switch {
	case e.Title != "" && e.Detail != "":
		return fmt.Sprintf("telnyx: %s: %s (status=%d)", e.Title, e.Detail, e.StatusCode)
	case e.Title != "":
		return fmt.Sprintf("telnyx: %s (status=%d)", e.Title, e.StatusCode)
	case e.Detail != "":
		return fmt.Sprintf("telnyx: %s (status=%d)", e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("telnyx: http status %d", e.StatusCode)
}

func decodeAPIError(status int, body []byte) error {
	var parsed struct {
		Errors []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Errors) == 0 {
		return &APIError{StatusCode: status, Detail: strings.TrimSpace(string(body))}
	}
	return &APIError{StatusCode: status, Title: parsed.Errors[0].Title, Detail: parsed.Errors[0].Detail}
}
