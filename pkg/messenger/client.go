// Package messenger delivers finished reports over a messaging-gateway
// webhook. Delivery is fire-and-forget from the pipeline's perspective.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client defines report delivery.
type Client interface {
	// Deliver sends text to a destination. Returns false on failure;
	// callers do not treat a failed delivery as a pipeline error.
	Deliver(ctx context.Context, destination, text string) bool
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	webhookURL string
	token      string
	http       *http.Client
}

// NewClient creates a messaging-gateway client.
func NewClient(webhookURL, token string, opts ...Option) Client {
	c := &httpClient{
		webhookURL: webhookURL,
		token:      token,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type deliverRequest struct {
	Destination string `json:"destination"`
	Text        string `json:"text"`
}

func (c *httpClient) Deliver(ctx context.Context, destination, text string) bool {
	if err := c.deliver(ctx, destination, text); err != nil {
		zap.L().Warn("messenger: delivery failed",
			zap.String("destination", destination),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (c *httpClient) deliver(ctx context.Context, destination, text string) error {
	body, err := json.Marshal(deliverRequest{Destination: destination, Text: text})
	if err != nil {
		return eris.Wrap(err, "messenger: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "messenger: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "messenger: request failed")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eris.Errorf("messenger: unexpected status %d", resp.StatusCode)
	}
	return nil
}
