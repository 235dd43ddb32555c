// Package scrape implements the two provider variants driven by declarative
// selector configuration: a generic one-fetch-per-operation scraper and an
// enhanced variant that adds pagination crawling, premium filtering and
// embedded-script JSON extraction.
package scrape

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/renvik/mangarr/internal/provider"
	"github.com/renvik/mangarr/internal/provider/selector"
)

// Generic is the declarative scraper: one HTTP fetch plus selector
// resolution per operation.
type Generic struct {
	cfg   provider.Config
	fetch Fetcher
	log   *zap.Logger

	// Enhanced providers may use embedded-json strategies.
	embeddedJSON bool
}

func NewGeneric(cfg provider.Config, fetch Fetcher, log *zap.Logger) *Generic {
	return &Generic{
		cfg:   cfg,
		fetch: fetch,
		log:   log.With(zap.String("provider", cfg.ID)),
	}
}

func (g *Generic) ID() string    { return g.cfg.ID }
func (g *Generic) Name() string  { return g.cfg.Name }
func (g *Generic) Priority() int { return g.cfg.Priority }

func (g *Generic) Search(ctx context.Context, query string, page int) ([]provider.Manga, error) {
	if page < 1 {
		page = 1
	}
	target := g.cfg.SearchURL(url.QueryEscape(query), page)

	doc, err := g.fetch.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}

	res, err := selector.Resolve(doc, g.searchStrategies())
	if err != nil {
		return nil, provider.NewError(provider.KindParse, g.cfg.ID, "search", err)
	}

	var out []provider.Manga
	seen := map[string]bool{}

	res.Selection.Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		u := resolveURL(g.cfg.BaseURL, strings.TrimSpace(href))
		if u == "" || seen[u] {
			return
		}
		seen[u] = true

		title := strings.TrimSpace(a.Text())
		if title == "" {
			title, _ = a.Attr("title")
			title = strings.TrimSpace(title)
		}

		out = append(out, provider.Manga{
			Provider:   g.cfg.ID,
			ExternalID: externalID(u),
			URL:        u,
			Title:      title,
		})
	})

	g.log.Debug("search", zap.String("query", query), zap.Int("results", len(out)))
	return out, nil
}

func (g *Generic) FetchDetails(ctx context.Context, extID string) (*provider.Manga, error) {
	target := resolveURL(g.cfg.BaseURL, extID)

	doc, err := g.fetch.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}

	m := provider.Manga{
		Provider:   g.cfg.ID,
		ExternalID: extID,
		URL:        target,
	}

	for _, s := range g.cfg.Strategies {
		if m.Title == "" && s.TitleSelector != "" {
			m.Title = strings.TrimSpace(doc.Find(s.TitleSelector).First().Text())
		}
		if m.Author == "" && s.AuthorSelector != "" {
			m.Author = strings.TrimSpace(doc.Find(s.AuthorSelector).First().Text())
		}
		if m.Status == "" && s.StatusSelector != "" {
			m.Status = strings.TrimSpace(doc.Find(s.StatusSelector).First().Text())
		}
		if len(m.Genres) == 0 && s.GenreSelector != "" {
			doc.Find(s.GenreSelector).Each(func(_ int, n *goquery.Selection) {
				if t := strings.TrimSpace(n.Text()); t != "" {
					m.Genres = append(m.Genres, t)
				}
			})
		}
	}

	if m.Title == "" {
		m.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	return &m, nil
}

func (g *Generic) ListChapters(ctx context.Context, extID string) ([]provider.Chapter, error) {
	target := resolveURL(g.cfg.BaseURL, extID)

	doc, err := g.fetch.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}

	chs, err := g.chaptersFromDoc(doc, target)
	if err != nil {
		return nil, err
	}

	sortByNumber(chs)
	return chs, nil
}

func (g *Generic) ListPages(ctx context.Context, ref provider.ChapterRef) ([]provider.Page, error) {
	doc, err := g.fetch.Fetch(ctx, ref.URL)
	if err != nil {
		return nil, err
	}

	return g.pagesFromDoc(doc, ref)
}

// chaptersFromDoc runs the chapter strategies against one listing page.
func (g *Generic) chaptersFromDoc(doc *goquery.Document, pageURL string) ([]provider.Chapter, error) {
	res, err := selector.Resolve(doc, g.chapterStrategies())
	if err != nil {
		return nil, provider.NewError(provider.KindParse, g.cfg.ID, "list_chapters", err)
	}
	used := fmt.Sprintf("%s#%d", res.Kind, res.StrategyIndex)

	var out []provider.Chapter
	seen := map[string]bool{}

	appendChapter := func(u, title string, premium bool) {
		if u == "" || seen[u] {
			return
		}
		num, label, volume, ok := parseChapterNumber(u, title)
		if !ok {
			return
		}
		seen[u] = true

		if title == "" {
			title = "Chapter " + label
		}

		out = append(out, provider.Chapter{
			Number:       num,
			Label:        label,
			Title:        title,
			Volume:       volume,
			Language:     g.cfg.Language,
			URL:          u,
			Source:       g.cfg.ID,
			SelectorUsed: used,
			Premium:      premium,
		})
	}

	if res.Kind == provider.StrategyCSS {
		res.Selection.Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			u := resolveURL(pageURL, strings.TrimSpace(href))
			premium := g.nodeIsPremium(a)
			appendChapter(u, strings.TrimSpace(a.Text()), premium)
		})
	} else {
		for _, v := range res.Values {
			appendChapter(resolveURL(pageURL, v), "", false)
		}
	}

	return out, nil
}

func (g *Generic) pagesFromDoc(doc *goquery.Document, ref provider.ChapterRef) ([]provider.Page, error) {
	res, err := selector.Resolve(doc, g.pageStrategies())
	if err != nil {
		return nil, provider.NewError(provider.KindParse, g.cfg.ID, "list_pages", err)
	}

	var urls []string
	if res.Kind == provider.StrategyCSS {
		urls = pageURLs(res.Selection, ref.URL)
	} else {
		seen := map[string]bool{}
		for _, v := range res.Values {
			u := resolveURL(ref.URL, v)
			if u != "" && usableImageURL(u) && !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}

	if len(urls) == 0 {
		return nil, provider.NewError(provider.KindParse, g.cfg.ID, "list_pages",
			fmt.Errorf("no usable page images: %w", provider.ErrNoSelectorMatched))
	}

	pages := make([]provider.Page, len(urls))
	for i, u := range urls {
		pages[i] = provider.Page{Index: i + 1, URL: u}
	}

	g.log.Debug("pages resolved",
		zap.String("chapter", ref.Label),
		zap.Int("count", len(pages)))

	return pages, nil
}

func (g *Generic) nodeIsPremium(n *goquery.Selection) bool {
	sel := g.cfg.PremiumSelector
	if sel == "" {
		return false
	}
	return n.Is(sel) || n.Find(sel).Length() > 0 || n.Closest(sel).Length() > 0
}

func (g *Generic) searchStrategies() []selector.Strategy {
	var out []selector.Strategy
	for _, s := range g.cfg.Strategies {
		if s.Kind == provider.StrategyCSS && s.SearchSelector != "" {
			out = append(out, selector.Strategy{Kind: s.Kind, Selector: s.SearchSelector})
		}
	}
	return out
}

func (g *Generic) chapterStrategies() []selector.Strategy {
	var out []selector.Strategy
	for _, s := range g.cfg.Strategies {
		switch s.Kind {
		case provider.StrategyCSS:
			if s.ChapterSelector != "" {
				out = append(out, selector.Strategy{Kind: s.Kind, Selector: s.ChapterSelector})
			}
		case provider.StrategyEmbeddedJSON:
			if g.embeddedJSON && s.ChapterPath != "" {
				out = append(out, selector.Strategy{Kind: s.Kind, Pattern: s.ScriptPattern, Path: s.ChapterPath})
			}
		}
	}
	return out
}

func (g *Generic) pageStrategies() []selector.Strategy {
	var out []selector.Strategy
	for _, s := range g.cfg.Strategies {
		switch s.Kind {
		case provider.StrategyCSS:
			if s.PageSelector != "" {
				out = append(out, selector.Strategy{Kind: s.Kind, Selector: s.PageSelector})
			}
		case provider.StrategyEmbeddedJSON:
			if g.embeddedJSON && s.PagePath != "" {
				out = append(out, selector.Strategy{Kind: s.Kind, Pattern: s.ScriptPattern, Path: s.PagePath})
			}
		}
	}
	return out
}

func (g *Generic) paginationStrategies() []selector.Strategy {
	var out []selector.Strategy
	for _, s := range g.cfg.Strategies {
		if s.Kind == provider.StrategyCSS && s.PaginationSelector != "" {
			out = append(out, selector.Strategy{Kind: s.Kind, Selector: s.PaginationSelector, Attr: "href"})
		}
	}
	return out
}

func externalID(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	if parsed.Path == "" {
		return u
	}
	return parsed.Path
}

func sortByNumber(chs []provider.Chapter) {
	sort.SliceStable(chs, func(i, j int) bool {
		if chs[i].Number != chs[j].Number {
			return chs[i].Number < chs[j].Number
		}
		return chs[i].Label < chs[j].Label
	})
}
