// Package bypass talks to the external Cloudflare-bypass service. The
// service resolves anti-bot protected pages on a provider's behalf; when it
// is not configured or unreachable, providers that require it are disabled
// rather than failing hard.
package bypass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Request is the solve contract: URL in, resolved HTML and cookies out.
type Request struct {
	URL           string            `json:"url"`
	SessionParams map[string]string `json:"sessionParams,omitempty"`
}

type Response struct {
	HTML       string   `json:"html"`
	Cookies    []string `json:"cookies"`
	StatusCode int      `json:"statusCode"`
}

type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// New returns nil when no service URL is configured; callers treat a nil
// client as "bypass unavailable".
func New(serviceURL string, log *zap.Logger) *Client {
	serviceURL = strings.TrimRight(strings.TrimSpace(serviceURL), "/")
	if serviceURL == "" {
		return nil
	}
	return &Client{
		baseURL: serviceURL,
		http:    &http.Client{Timeout: 90 * time.Second},
		log:     log,
	}
}

// Solve asks the service to resolve target and returns the rendered HTML.
func (c *Client) Solve(ctx context.Context, target string, params map[string]string) (*Response, error) {
	body, err := json.Marshal(Request{URL: target, SessionParams: params})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/solve", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bypass service: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bypass service: HTTP %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("bypass service: decode: %w", err)
	}

	c.log.Debug("bypass solve",
		zap.String("url", target),
		zap.Int("status", out.StatusCode),
		zap.Int("cookies", len(out.Cookies)))

	return &out, nil
}

// Available probes the service health endpoint.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return resp.StatusCode == http.StatusOK
}
