package provider

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Variant kinds dispatched by the registry.
const (
	VariantGeneric  = "generic"
	VariantEnhanced = "enhanced"
)

// Strategy kinds understood by the selector resolver.
const (
	StrategyCSS          = "css"
	StrategyEmbeddedJSON = "embedded-json"
)

// SelectorStrategy is one declarative extraction rule. For css strategies the
// *Selector fields are goquery selectors; for embedded-json, ScriptPattern is
// a regex capturing an object literal inside an inline script and the *Path
// fields are dotted paths into the parsed JSON.
type SelectorStrategy struct {
	Kind string `json:"kind"`

	SearchSelector     string `json:"searchSelector,omitempty"`
	ChapterSelector    string `json:"chapterSelector,omitempty"`
	PageSelector       string `json:"pageSelector,omitempty"`
	PaginationSelector string `json:"paginationSelector,omitempty"`

	TitleSelector  string `json:"titleSelector,omitempty"`
	AuthorSelector string `json:"authorSelector,omitempty"`
	StatusSelector string `json:"statusSelector,omitempty"`
	GenreSelector  string `json:"genreSelector,omitempty"`

	ScriptPattern string `json:"scriptPattern,omitempty"`
	ChapterPath   string `json:"chapterPath,omitempty"`
	PagePath      string `json:"pagePath,omitempty"`
}

// Config is one provider's declarative configuration, loaded from a JSON file
// in the providers directory. Immutable after load; a reload replaces the
// whole value.
type Config struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	BaseURL           string             `json:"baseUrl"`
	SearchURLTemplate string             `json:"searchUrlTemplate"`
	Priority          int                `json:"priority"`
	RequiresBypass    bool               `json:"requiresBypass"`
	Variant           string             `json:"variant"`
	MaxPages          int                `json:"maxPages,omitempty"`
	PremiumSelector   string             `json:"premiumSelector,omitempty"`
	Language          string             `json:"language,omitempty"`
	Strategies        []SelectorStrategy `json:"selectorStrategies"`
}

// LoadConfig reads and validates a single provider config file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("provider config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("provider config %s: %w", path, err)
	}

	return &c, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("missing id")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("%s: missing baseUrl", c.ID)
	}
	if c.Variant == "" {
		c.Variant = VariantGeneric
	}
	if c.Variant != VariantGeneric && c.Variant != VariantEnhanced {
		return fmt.Errorf("%s: unknown variant %q", c.ID, c.Variant)
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("%s: no selector strategies", c.ID)
	}
	for i, s := range c.Strategies {
		switch s.Kind {
		case StrategyCSS:
		case StrategyEmbeddedJSON:
			if c.Variant != VariantEnhanced {
				return fmt.Errorf("%s: strategy %d: embedded-json requires the enhanced variant", c.ID, i)
			}
			if s.ScriptPattern == "" {
				return fmt.Errorf("%s: strategy %d: embedded-json without scriptPattern", c.ID, i)
			}
		default:
			return fmt.Errorf("%s: strategy %d: unknown kind %q", c.ID, i, s.Kind)
		}
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 1
	}
	if c.Name == "" {
		c.Name = c.ID
	}
	return nil
}

// SearchURL fills the query and page placeholders of the search template.
func (c *Config) SearchURL(query string, page int) string {
	u := strings.ReplaceAll(c.SearchURLTemplate, "{query}", query)
	u = strings.ReplaceAll(u, "{page}", fmt.Sprintf("%d", page))
	return u
}
