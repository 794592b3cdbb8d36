package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pg-png/wwithai-foodcost-sentinel/pkg/api"
)

type HTTPClient struct {
	Client  *http.Client
	Retries int
	Timeout time.Duration
	Backoff time.Duration
	Logger  zerolog.Logger
}

func NewHTTPClient(retries int, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		Client: &http.Client{
			Timeout: timeout,
		},
		Retries: retries,
		Timeout: timeout,
		Backoff: 200 * time.Millisecond,
		Logger:  log.Logger,
	}
}

// PostJSON posts body with bearer auth when token is set. 5xx responses
// and transport errors are retried with exponential backoff.
func (c *HTTPClient) PostJSON(ctx context.Context, url, token string, body []byte) (*http.Response, error) {
	var resp *http.Response
	var err error

	for i := 0; i <= c.Retries; i++ {
		req, rErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if rErr != nil {
			return nil, rErr
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err = c.Client.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if i == c.Retries {
			break
		}
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		c.Logger.Warn().Err(err).Str("url", url).Int("attempt", i+1).Msg("HTTP request failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(1<<i) * c.Backoff):
		}
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after %d retries: %w", c.Retries, err)
	}
	return resp, nil // last response even if 5xx
}

// WebhookSink posts update instructions to the document store's update
// webhook.
type WebhookSink struct {
	URL    string
	Token  string
	Client *HTTPClient
}

// NewWebhookSink creates a sink with three retries.
func NewWebhookSink(url, token string) *WebhookSink {
	return &WebhookSink{URL: url, Token: token, Client: NewHTTPClient(3, 15*time.Second)}
}

type webhookPayload struct {
	Updates []api.UpdateInstruction `json:"updates"`
	SentAt  time.Time               `json:"sent_at"`
}

// Apply sends one batch of instructions.
func (s *WebhookSink) Apply(ctx context.Context, updates []api.UpdateInstruction) error {
	body, err := json.Marshal(webhookPayload{Updates: updates, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode updates: %w", err)
	}
	resp, err := s.Client.PostJSON(ctx, s.URL, s.Token, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("update webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
