package provider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		ID:                "sitea",
		BaseURL:           "https://sitea.example",
		SearchURLTemplate: "https://sitea.example/search?q={query}&page={page}",
		Strategies: []SelectorStrategy{
			{Kind: StrategyCSS, ChapterSelector: "ul.chapters a"},
		},
	}
}

func TestValidateDefaults(t *testing.T) {
	c := validConfig()
	require.NoError(t, c.Validate())

	assert.Equal(t, VariantGeneric, c.Variant)
	assert.Equal(t, "sitea", c.Name)
	assert.Equal(t, 1, c.MaxPages)
}

func TestValidateRejectsMissingFields(t *testing.T) {
	c := validConfig()
	c.ID = ""
	assert.Error(t, c.Validate())

	c = validConfig()
	c.BaseURL = ""
	assert.Error(t, c.Validate())

	c = validConfig()
	c.Strategies = nil
	assert.Error(t, c.Validate())

	c = validConfig()
	c.Variant = "turbo"
	assert.Error(t, c.Validate())
}

func TestValidateEmbeddedJSONNeedsEnhanced(t *testing.T) {
	c := validConfig()
	c.Strategies = append(c.Strategies, SelectorStrategy{
		Kind:          StrategyEmbeddedJSON,
		ScriptPattern: `window\.__data = (\{.*\});`,
		ChapterPath:   "chapters.*.url",
	})

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enhanced")

	c.Variant = VariantEnhanced
	assert.NoError(t, c.Validate())
}

func TestValidateEmbeddedJSONNeedsPattern(t *testing.T) {
	c := validConfig()
	c.Variant = VariantEnhanced
	c.Strategies = []SelectorStrategy{{Kind: StrategyEmbeddedJSON}}

	assert.Error(t, c.Validate())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitea.json")

	raw := `{
		"id": "sitea",
		"name": "Site A",
		"baseUrl": "https://sitea.example",
		"searchUrlTemplate": "https://sitea.example/search?q={query}",
		"priority": 10,
		"variant": "generic",
		"selectorStrategies": [
			{"kind": "css", "chapterSelector": "ul.chapters a", "pageSelector": ".reader img"}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	c, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sitea", c.ID)
	assert.Equal(t, "Site A", c.Name)
	assert.Equal(t, 10, c.Priority)
	assert.Len(t, c.Strategies, 1)
}

func TestLoadConfigBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSearchURL(t *testing.T) {
	c := validConfig()
	assert.Equal(t,
		"https://sitea.example/search?q=one+piece&page=2",
		c.SearchURL("one+piece", 2))
}
