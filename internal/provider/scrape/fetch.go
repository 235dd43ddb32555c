package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/renvik/mangarr/internal/bypass"
	"github.com/renvik/mangarr/internal/provider"
	"github.com/renvik/mangarr/internal/util"
)

// Fetcher turns a URL into a parsed document. The direct implementation
// talks HTTP; the bypass implementation round-trips through the external
// Cloudflare-bypass service.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (*goquery.Document, error)
}

type httpFetcher struct {
	providerID string
	client     *http.Client
}

// NewHTTPFetcher returns the direct fetcher for a provider.
func NewHTTPFetcher(providerID string, client *http.Client) Fetcher {
	return &httpFetcher{providerID: providerID, client: client}
}

func (f *httpFetcher) Fetch(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, provider.NewError(provider.KindNetwork, f.providerID, "fetch", err)
	}

	resp, err := util.DoWithRetry(f.client, req, 3, 500*time.Millisecond)
	if err != nil {
		return nil, provider.NewError(provider.KindNetwork, f.providerID, "fetch", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if kind, bad := classifyStatus(resp.StatusCode); bad {
		return nil, provider.NewError(kind, f.providerID, "fetch",
			fmt.Errorf("%s: HTTP %d", target, resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, provider.NewError(provider.KindParse, f.providerID, "fetch", err)
	}

	return doc, nil
}

type bypassFetcher struct {
	providerID string
	client     *bypass.Client
}

// NewBypassFetcher routes fetches through the bypass service.
func NewBypassFetcher(providerID string, client *bypass.Client) Fetcher {
	return &bypassFetcher{providerID: providerID, client: client}
}

func (f *bypassFetcher) Fetch(ctx context.Context, target string) (*goquery.Document, error) {
	resp, err := f.client.Solve(ctx, target, nil)
	if err != nil {
		return nil, provider.NewError(provider.KindNetwork, f.providerID, "bypass", err)
	}

	if kind, bad := classifyStatus(resp.StatusCode); bad {
		return nil, provider.NewError(kind, f.providerID, "bypass",
			fmt.Errorf("%s: HTTP %d", target, resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.HTML))
	if err != nil {
		return nil, provider.NewError(provider.KindParse, f.providerID, "bypass", err)
	}

	return doc, nil
}

func classifyStatus(code int) (provider.ErrorKind, bool) {
	switch {
	case code == http.StatusForbidden || code == http.StatusServiceUnavailable:
		return provider.KindCloudflareBlocked, true
	case code == http.StatusTooManyRequests:
		return provider.KindRateLimited, true
	case code >= 400:
		return provider.KindNetwork, true
	}
	return 0, false
}
