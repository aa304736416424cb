// Package judicial provides a client for the public judicial-records
// search API.
package judicial

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/vetta-research/dossier-cli/internal/resilience"
)

const defaultBaseURL = "https://api-publica.processos.jus.br"

// Client defines the judicial-records operations the pipeline consumes.
type Client interface {
	// Search looks up case records naming the given person or
	// organization as an involved party.
	Search(ctx context.Context, name string) (*Result, error)
}

// Record is one case record as returned by the API.
type Record struct {
	CaseNumber string    `json:"numero_processo"`
	Category   string    `json:"classe"`
	Subject    string    `json:"assunto"`
	Court      string    `json:"orgao"`
	Region     string    `json:"uf"`
	Role       string    `json:"papel"`
	StartDate  time.Time `json:"data_ajuizamento"`
	Movements  []string  `json:"movimentos,omitempty"`
}

// Result is the outcome of one search.
type Result struct {
	InvolvedParty string   `json:"parte_envolvida"`
	Records       []Record `json:"processos"`
	TotalCount    int      `json:"total"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a judicial-records client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchRequest struct {
	Name string `json:"nome"`
}

// retryDo executes a request with exponential backoff on transient
// failures. At most three attempts.
func (c *httpClient) retryDo(ctx context.Context, build func() (*http.Request, error)) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := build()
		if err != nil {
			return nil, 0, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts && resilience.IsTransient(err) {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "judicial: read response body")
		}

		if resilience.IsTransientHTTPStatus(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("judicial: status %d", resp.StatusCode)
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) Search(ctx context.Context, name string) (*Result, error) {
	payload, err := json.Marshal(searchRequest{Name: name})
	if err != nil {
		return nil, eris.Wrap(err, "judicial: marshal request")
	}

	respBody, statusCode, err := c.retryDo(ctx, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/partes/busca", bytes.NewReader(payload))
		if reqErr != nil {
			return nil, eris.Wrap(reqErr, "judicial: create request")
		}
		req.Header.Set("Authorization", "APIKey "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "judicial: request failed")
	}

	// The API returns 404 for names with no indexed cases. That is an
	// empty result, not a failure.
	if statusCode == http.StatusNotFound {
		return &Result{}, nil
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("judicial: unexpected status %d", statusCode)
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "judicial: unmarshal response")
	}
	return &result, nil
}
