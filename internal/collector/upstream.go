package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// HTTPOptions configures a live upstream client.
type HTTPOptions struct {
	BaseURL  string
	APIKey   string
	ProxyURL string
	// Timeout bounds one request including reading the body.
	Timeout time.Duration
	// MinInterval is the cooldown after a successful fetch during which the
	// network is not called again.
	MinInterval time.Duration
	Now         func() time.Time
}

// upstream is the HTTP plumbing shared by live sources. Its cooldown clock
// belongs to this instance only.
type upstream struct {
	name        string
	baseURL     string
	apiKey      string
	apiKeyName  string
	client      *http.Client
	minInterval time.Duration
	now         func() time.Time

	mu          sync.Mutex
	lastSuccess time.Time
}

func newUpstream(name, apiKeyHeader string, opts HTTPOptions) *upstream {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if opts.ProxyURL != "" {
		if u, err := url.Parse(opts.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &upstream{
		name:        name,
		baseURL:     opts.BaseURL,
		apiKey:      opts.APIKey,
		apiKeyName:  apiKeyHeader,
		client:      &http.Client{Timeout: timeout, Transport: transport},
		minInterval: opts.MinInterval,
		now:         now,
	}
}

// checkCooldown fails with a rate-limit error while the minimum interval since
// the last successful fetch has not elapsed.
func (u *upstream) checkCooldown() error {
	if u.minInterval <= 0 {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.lastSuccess.IsZero() {
		return nil
	}
	if wait := u.minInterval - u.now().Sub(u.lastSuccess); wait > 0 {
		return rateLimitErr(u.name, 0, fmt.Errorf("%w (%s left)", errCooldown, wait.Round(time.Millisecond)))
	}
	return nil
}

func (u *upstream) markSuccess() {
	u.mu.Lock()
	u.lastSuccess = u.now()
	u.mu.Unlock()
}

// get performs one GET and classifies failures:
// transport errors and 5xx are transport, 429/418 are rate limits and any
// other non-200 status is a parse error (the request shape was rejected).
func (u *upstream) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := u.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, parseErr(u.name, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if u.apiKey != "" && u.apiKeyName != "" {
		req.Header.Set(u.apiKeyName, u.apiKey)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, transportErr(u.name, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr(u.name, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot:
		return nil, rateLimitErr(u.name, resp.StatusCode, fmt.Errorf("throttled, retry-after %q", resp.Header.Get("Retry-After")))
	case resp.StatusCode >= 500:
		return nil, transportErr(u.name, resp.StatusCode, errors.New(snippet(body)))
	default:
		return nil, parseErr(u.name, resp.StatusCode, errors.New(snippet(body)))
	}
}

func snippet(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
