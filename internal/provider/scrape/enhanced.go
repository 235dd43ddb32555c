package scrape

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/renvik/mangarr/internal/provider"
	"github.com/renvik/mangarr/internal/provider/selector"
)

// Enhanced extends the generic scraper with multi-page chapter-list
// crawling, premium filtering and embedded-script JSON strategies.
type Enhanced struct {
	*Generic
}

func NewEnhanced(cfg provider.Config, fetch Fetcher, log *zap.Logger) *Enhanced {
	g := NewGeneric(cfg, fetch, log)
	g.embeddedJSON = true
	return &Enhanced{Generic: g}
}

// ListChapters follows the pagination selector across listing pages. The
// visited set guarantees termination on self-referential or looping
// pagination; MaxPages bounds the crawl either way.
func (e *Enhanced) ListChapters(ctx context.Context, extID string) ([]provider.Chapter, error) {
	start := resolveURL(e.cfg.BaseURL, extID)
	visited := map[string]bool{}

	var all []provider.Chapter
	current := start

	for current != "" && !visited[current] && len(visited) < e.cfg.MaxPages {
		visited[current] = true

		doc, err := e.fetch.Fetch(ctx, current)
		if err != nil {
			if len(all) == 0 {
				return nil, err
			}
			e.log.Warn("pagination fetch failed, keeping chapters collected so far",
				zap.String("url", current), zap.Error(err))
			break
		}

		chs, err := e.chaptersFromDoc(doc, current)
		if err != nil {
			if len(all) == 0 {
				return nil, err
			}
			break
		}
		all = append(all, chs...)

		current = e.nextPageURL(doc, current)
	}

	kept := all[:0]
	dropped := 0
	for _, c := range all {
		if c.Premium {
			dropped++
			continue
		}
		kept = append(kept, c)
	}
	if dropped > 0 {
		e.log.Debug("premium chapters filtered", zap.Int("count", dropped))
	}

	sortByNumber(kept)
	return kept, nil
}

// ListPages refuses paywalled chapter pages instead of returning a
// partial or watermarked set.
func (e *Enhanced) ListPages(ctx context.Context, ref provider.ChapterRef) ([]provider.Page, error) {
	doc, err := e.fetch.Fetch(ctx, ref.URL)
	if err != nil {
		return nil, err
	}

	if e.cfg.PremiumSelector != "" && doc.Find(e.cfg.PremiumSelector).Length() > 0 {
		return nil, provider.NewError(provider.KindPremiumContent, e.cfg.ID, "list_pages",
			fmt.Errorf("chapter %s is paywalled", ref.Label))
	}

	return e.pagesFromDoc(doc, ref)
}

// nextPageURL resolves the "next page" link, or "" when the crawl is done.
func (e *Enhanced) nextPageURL(doc *goquery.Document, current string) string {
	strategies := e.paginationStrategies()
	if len(strategies) == 0 {
		return ""
	}

	res, err := selector.Resolve(doc, strategies)
	if err != nil || len(res.Values) == 0 {
		return ""
	}

	return resolveURL(current, strings.TrimSpace(res.Values[0]))
}
