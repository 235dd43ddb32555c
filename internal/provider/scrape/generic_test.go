package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/renvik/mangarr/internal/provider"
)

// fakeFetcher serves canned HTML per URL and counts fetches.
type fakeFetcher struct {
	pages   map[string]string
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, target string) (*goquery.Document, error) {
	f.fetched = append(f.fetched, target)
	html, ok := f.pages[target]
	if !ok {
		return nil, provider.NewError(provider.KindNetwork, "test", "fetch",
			fmt.Errorf("%s: HTTP 404", target))
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func genericConfig() provider.Config {
	c := provider.Config{
		ID:                "sitea",
		Name:              "Site A",
		BaseURL:           "https://sitea.example",
		SearchURLTemplate: "https://sitea.example/search?q={query}&page={page}",
		Priority:          10,
		Strategies: []provider.SelectorStrategy{
			{
				Kind:            provider.StrategyCSS,
				SearchSelector:  "div.results a.series",
				ChapterSelector: "ul.chapters a",
				PageSelector:    "div.reader img",
				TitleSelector:   "h1.series-title",
				AuthorSelector:  ".author",
				GenreSelector:   ".genres a",
			},
		},
	}
	if err := c.Validate(); err != nil {
		panic(err)
	}
	return c
}

func TestGenericSearch(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://sitea.example/search?q=one+piece&page=1": `
			<div class="results">
				<a class="series" href="/manga/one-piece">One Piece</a>
				<a class="series" href="/manga/one-piece">One Piece (dup)</a>
				<a class="series" href="/manga/one-punch">One Punch</a>
			</div>`,
	}}
	g := NewGeneric(genericConfig(), f, zap.NewNop())

	out, err := g.Search(context.Background(), "one piece", 1)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "sitea", out[0].Provider)
	assert.Equal(t, "/manga/one-piece", out[0].ExternalID)
	assert.Equal(t, "https://sitea.example/manga/one-piece", out[0].URL)
	assert.Equal(t, "One Piece", out[0].Title)
}

func TestGenericFetchDetails(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://sitea.example/manga/one-piece": `
			<h1 class="series-title">One Piece</h1>
			<span class="author">Eiichiro Oda</span>
			<div class="genres"><a>Action</a><a>Adventure</a></div>`,
	}}
	g := NewGeneric(genericConfig(), f, zap.NewNop())

	m, err := g.FetchDetails(context.Background(), "/manga/one-piece")
	require.NoError(t, err)

	assert.Equal(t, "One Piece", m.Title)
	assert.Equal(t, "Eiichiro Oda", m.Author)
	assert.Equal(t, []string{"Action", "Adventure"}, m.Genres)
}

func TestGenericListChapters(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://sitea.example/manga/one-piece": `
			<ul class="chapters">
				<a href="/manga/one-piece/chapter-3">Chapter 3</a>
				<a href="/manga/one-piece/chapter-1">Chapter 1</a>
				<a href="/manga/one-piece/chapter-2-5">Chapter 2-5</a>
				<a href="/about">About us</a>
			</ul>`,
	}}
	g := NewGeneric(genericConfig(), f, zap.NewNop())

	chs, err := g.ListChapters(context.Background(), "/manga/one-piece")
	require.NoError(t, err)
	require.Len(t, chs, 3, "non-chapter links are dropped")

	// Sorted ascending by number; dash sub-chapter parsed as 2.5.
	assert.Equal(t, "1", chs[0].Label)
	assert.Equal(t, "2.5", chs[1].Label)
	assert.Equal(t, "3", chs[2].Label)
	assert.Equal(t, 2.5, chs[1].Number)
	assert.Equal(t, "sitea", chs[0].Source)
	assert.Equal(t, "css#0", chs[0].SelectorUsed)
}

func TestGenericListChaptersNoMatch(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://sitea.example/manga/empty": `<p>no chapters here</p>`,
	}}
	g := NewGeneric(genericConfig(), f, zap.NewNop())

	_, err := g.ListChapters(context.Background(), "/manga/empty")
	require.Error(t, err)
	assert.Equal(t, provider.KindParse, provider.KindOf(err))
	assert.True(t, errors.Is(err, provider.ErrNoSelectorMatched))
}

func TestGenericListPages(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://sitea.example/manga/one-piece/chapter-1": `
			<div class="reader">
				<img src="/img/p1.jpg">
				<img data-src="/img/p2.png">
				<img src="/img/logo.png">
				<img src="/img/p3.webp">
			</div>`,
	}}
	g := NewGeneric(genericConfig(), f, zap.NewNop())

	ref := provider.ChapterRef{
		Provider: "sitea",
		Label:    "1",
		URL:      "https://sitea.example/manga/one-piece/chapter-1",
	}
	pages, err := g.ListPages(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, pages, 3, "logo image is filtered out")

	assert.Equal(t, 1, pages[0].Index)
	assert.Equal(t, "https://sitea.example/img/p1.jpg", pages[0].URL)
	assert.Equal(t, "https://sitea.example/img/p2.png", pages[1].URL)
	assert.Equal(t, "https://sitea.example/img/p3.webp", pages[2].URL)
}

func TestGenericListPagesNoImages(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://sitea.example/c/1": `<div class="reader"><img src="/img/banner.png"></div>`,
	}}
	g := NewGeneric(genericConfig(), f, zap.NewNop())

	_, err := g.ListPages(context.Background(), provider.ChapterRef{URL: "https://sitea.example/c/1"})
	require.Error(t, err)
	assert.Equal(t, provider.KindParse, provider.KindOf(err))
}

func TestGenericFetchErrorPassesThrough(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{}}
	g := NewGeneric(genericConfig(), f, zap.NewNop())

	_, err := g.ListChapters(context.Background(), "/manga/gone")
	require.Error(t, err)
	assert.Equal(t, provider.KindNetwork, provider.KindOf(err))
}

func TestClassifyStatus(t *testing.T) {
	kind, bad := classifyStatus(403)
	assert.True(t, bad)
	assert.Equal(t, provider.KindCloudflareBlocked, kind)

	kind, bad = classifyStatus(503)
	assert.True(t, bad)
	assert.Equal(t, provider.KindCloudflareBlocked, kind)

	kind, bad = classifyStatus(429)
	assert.True(t, bad)
	assert.Equal(t, provider.KindRateLimited, kind)

	kind, bad = classifyStatus(500)
	assert.True(t, bad)
	assert.Equal(t, provider.KindNetwork, kind)

	_, bad = classifyStatus(200)
	assert.False(t, bad)
}

func TestParseChapterNumber(t *testing.T) {
	cases := []struct {
		href, title string
		num         float64
		label       string
		volume      int
		ok          bool
	}{
		{"/manga/x/chapter-28", "", 28, "28", 0, true},
		{"/manga/x/chapter-28-5", "", 28.5, "28.5", 0, true},
		{"/manga/x/ch_007", "", 7, "7", 0, true},
		{"/manga/x/vol-3/ch-12", "", 12, "12", 3, true},
		{"/manga/x/extra", "28.5 - The Duel", 28.5, "28.5", 0, true},
		{"/manga/x/105.5", "", 105.5, "105.5", 0, true},
		{"/manga/x/about", "About the author", 0, "", 0, false},
	}

	for _, tc := range cases {
		num, label, volume, ok := parseChapterNumber(tc.href, tc.title)
		assert.Equal(t, tc.ok, ok, tc.href)
		if !tc.ok {
			continue
		}
		assert.Equal(t, tc.num, num, tc.href)
		assert.Equal(t, tc.label, label, tc.href)
		assert.Equal(t, tc.volume, volume, tc.href)
	}
}
