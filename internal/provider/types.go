package provider

import (
	"context"
	"path"
	"strings"
	"time"
)

// Manga is the normalized representation of a series as one provider knows it.
type Manga struct {
	Provider   string   `json:"provider"`
	ExternalID string   `json:"external_id"`
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	AltTitles  []string `json:"alt_titles,omitempty"`
	Author     string   `json:"author,omitempty"`
	Status     string   `json:"status,omitempty"`
	Genres     []string `json:"genres,omitempty"`
	Year       int      `json:"year,omitempty"`
}

// Chapter is one chapter candidate as extracted from a provider. Number is
// the decimal chapter number (28, 28.5, ...) and Label its canonical string
// form, which is what dedup groups on.
type Chapter struct {
	Number       float64    `json:"number"`
	Label        string     `json:"label"`
	Title        string     `json:"title,omitempty"`
	Language     string     `json:"language,omitempty"`
	Volume       int        `json:"volume,omitempty"`
	PageCount    int        `json:"page_count,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	URL          string     `json:"url"`
	Source       string     `json:"source,omitempty"`
	SelectorUsed string     `json:"selector_used,omitempty"`
	Premium      bool       `json:"-"`
}

// ChapterRef identifies one chapter for page listing and download.
type ChapterRef struct {
	Provider string `json:"provider"`
	MangaID  string `json:"manga_id"`
	Label    string `json:"label"`
	URL      string `json:"url"`
}

// Page is a single downloadable page image.
type Page struct {
	Index int
	URL   string
}

// Ext is the page image's file extension, query string stripped. Defaults
// to .jpg when the URL carries none.
func (p Page) Ext() string {
	u := p.URL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if ext := path.Ext(u); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".jpg"
}

// Provider is the capability every site integration exposes. Implementations
// must be safe for concurrent use; rate limiting and health gating happen
// above this interface.
type Provider interface {
	ID() string
	Name() string
	Priority() int

	Search(ctx context.Context, query string, page int) ([]Manga, error)
	FetchDetails(ctx context.Context, externalID string) (*Manga, error)
	ListChapters(ctx context.Context, externalID string) ([]Chapter, error)
	ListPages(ctx context.Context, ref ChapterRef) ([]Page, error)
}

// Ref returns the ChapterRef for c within manga m.
func (c Chapter) Ref(m Manga) ChapterRef {
	return ChapterRef{
		Provider: m.Provider,
		MangaID:  m.ExternalID,
		Label:    c.Label,
		URL:      c.URL,
	}
}
