// Package fetch retrieves page content for selected evidence sources,
// governed by an allow-listed domain set, a byte cap, a per-fetch timeout,
// and a process-wide rate limit.
package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Fetcher fetches a URL and returns its plain text.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) (string, error)
	Allowed(targetURL string) bool
}

// Config bounds the fetcher.
type Config struct {
	AllowedDomains []string
	MaxBytes       int64
	Timeout        time.Duration
	RatePerSecond  float64
}

// HTTPFetcher implements Fetcher over net/http.
type HTTPFetcher struct {
	client   *http.Client
	allowed  []string
	maxBytes int64
	limiter  *rate.Limiter
}

// New creates an HTTPFetcher from config, applying defaults for zero
// values.
func New(cfg Config) *HTTPFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 512 * 1024
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 5
	}

	allowed := make([]string, 0, len(cfg.AllowedDomains))
	for _, d := range cfg.AllowedDomains {
		allowed = append(allowed, strings.ToLower(strings.TrimSpace(d)))
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		allowed:  allowed,
		maxBytes: maxBytes,
		limiter:  rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

// Allowed reports whether the URL's host is on the allow list. An empty
// allow list permits everything.
func (f *HTTPFetcher) Allowed(targetURL string) bool {
	if len(f.allowed) == 0 {
		return true
	}
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range f.allowed {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Fetch retrieves a URL and strips it to plain text. Returns an error for
// disallowed URLs, HTTP failures, and empty pages; the caller treats any
// error as a degraded (skipped) fetch.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	if !f.Allowed(targetURL) {
		return "", eris.Errorf("fetch: domain not allow-listed: %s", targetURL)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "fetch: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; DossierBot/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "fetch: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", eris.Errorf("fetch: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", eris.Wrap(err, "fetch: read body")
	}

	text := stripHTML(string(body))
	if len(text) < 50 {
		return "", eris.New("fetch: empty page")
	}
	return text, nil
}

// stripHTML removes scripts/styles/nav/footer, strips tags, decodes
// entities, and collapses whitespace.
func stripHTML(html string) string {
	for _, tag := range []string{"script", "style", "nav", "footer"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		html = re.ReplaceAllString(html, "")
	}

	tagRe := regexp.MustCompile(`<[^>]+>`)
	html = tagRe.ReplaceAllString(html, " ")

	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	html = r.Replace(html)

	spaceRe := regexp.MustCompile(`[ \t]+`)
	html = spaceRe.ReplaceAllString(html, " ")

	nlRe := regexp.MustCompile(`\n{3,}`)
	html = nlRe.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}
