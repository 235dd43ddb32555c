package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/renvik/mangarr/internal/health"
	"github.com/renvik/mangarr/internal/normalize"
)

type Config struct {
	Output       string `yaml:"output"`
	ProvidersDir string `yaml:"providers_dir"`
	DBPath       string `yaml:"db_path"`
	BypassURL    string `yaml:"bypass_url"`
	APIAddr      string `yaml:"api_addr"`

	GlobalWorkers int           `yaml:"global_workers"`
	PageWorkers   int           `yaml:"page_workers"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
	KeepPages     bool          `yaml:"keep_pages"`
	Archive       bool          `yaml:"archive"`

	Debug bool `yaml:"debug"`

	SortOrder string `yaml:"sort_order"`
	Language  string `yaml:"language"`

	DefaultRange string `yaml:"default_range"`
	DefaultList  string `yaml:"default_list"`

	Cookie     string `yaml:"cookie"`
	CookieFile string `yaml:"cookie_file"`
	UserAgent  string `yaml:"user_agent"`

	Breaker BreakerConfig     `yaml:"breaker"`
	Weights normalize.Weights `yaml:"score_weights"`
}

type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
	MaxCooldown      time.Duration `yaml:"max_cooldown"`
}

func (b BreakerConfig) Options() health.Options {
	return health.Options{
		FailureThreshold: b.FailureThreshold,
		Cooldown:         b.Cooldown,
		MaxCooldown:      b.MaxCooldown,
	}
}

// Options are the flag-level overrides merged on top of the active config.
type Options struct {
	IgnoreConfig bool
	Debug        bool

	Output       string
	ProvidersDir string
	DBPath       string
	BypassURL    string
	APIAddr      string

	GlobalWorkers int
	PageWorkers   int
	MaxRetries    int
	KeepPages     bool
	Archive       bool

	SortOrder string
	Language  string

	DefaultRange string
	DefaultList  string

	Cookie     string
	CookieFile string
	UserAgent  string
}

func DefaultConfig() *Config {
	return &Config{
		Output:        ".",
		ProvidersDir:  "providers",
		DBPath:        "mangarr.db",
		APIAddr:       ":8080",
		GlobalWorkers: 2,
		PageWorkers:   5,
		MaxRetries:    3,
		RetryBackoff:  time.Second,
		Archive:       true,
		SortOrder:     "asc",
		Language:      normalize.DefaultLanguage,
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			MaxCooldown:      10 * time.Minute,
		},
		Weights: normalize.DefaultWeights(),
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// LoadFile decodes one profile as written, without defaults or flag merges.
// Profile listings and post-edit validation go through here.
func LoadFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

func LoadMerged(opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(ignored config)", nil
	}

	activePath, err := ActiveConfigPath()
	if err == ErrNoConfig || activePath == "" {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(default config in memory)\nRun `mangarr config init` to create an actual config\n", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := LoadFile(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, activePath, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.ProvidersDir != "" {
		c.ProvidersDir = o.ProvidersDir
	}
	if o.DBPath != "" {
		c.DBPath = o.DBPath
	}
	if o.BypassURL != "" {
		c.BypassURL = o.BypassURL
	}
	if o.APIAddr != "" {
		c.APIAddr = o.APIAddr
	}
	if o.GlobalWorkers != 0 {
		c.GlobalWorkers = o.GlobalWorkers
	}
	if o.PageWorkers != 0 {
		c.PageWorkers = o.PageWorkers
	}
	if o.MaxRetries != 0 {
		c.MaxRetries = o.MaxRetries
	}
	if o.KeepPages {
		c.KeepPages = true
	}
	if o.Archive {
		c.Archive = true
	}
	if o.Debug {
		c.Debug = true
	}
	if o.SortOrder != "" {
		c.SortOrder = o.SortOrder
	}
	if o.Language != "" {
		c.Language = o.Language
	}
	if o.DefaultRange != "" {
		c.DefaultRange = o.DefaultRange
	}
	if o.DefaultList != "" {
		c.DefaultList = o.DefaultList
	}
	if o.Cookie != "" {
		c.Cookie = o.Cookie
	}
	if o.CookieFile != "" {
		c.CookieFile = o.CookieFile
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
}

func normalizeDefaults(c *Config) {
	if c.Output == "" {
		c.Output = "."
	}
	if c.ProvidersDir == "" {
		c.ProvidersDir = "providers"
	}
	if c.DBPath == "" {
		c.DBPath = "mangarr.db"
	}
	if c.APIAddr == "" {
		c.APIAddr = ":8080"
	}
	if c.GlobalWorkers == 0 {
		c.GlobalWorkers = 2
	}
	if c.PageWorkers == 0 {
		c.PageWorkers = 5
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.SortOrder == "" {
		c.SortOrder = "asc"
	}
	if c.Language == "" {
		c.Language = normalize.DefaultLanguage
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.Cooldown == 0 {
		c.Breaker.Cooldown = 30 * time.Second
	}
	if c.Breaker.MaxCooldown == 0 {
		c.Breaker.MaxCooldown = 10 * time.Minute
	}
	if c.Weights.IsZero() {
		c.Weights = normalize.DefaultWeights()
	}
}

func (c *Config) Order() normalize.Order {
	if c.SortOrder == "desc" {
		return normalize.Descending
	}
	return normalize.Ascending
}

func (c *Config) Print() {
	fmt.Printf(" -output: %s\n", c.Output)
	fmt.Printf(" -providers_dir: %s\n", c.ProvidersDir)
	fmt.Printf(" -db_path: %s\n", c.DBPath)
	if c.BypassURL != "" {
		fmt.Printf(" -bypass_url: %s\n", c.BypassURL)
	}
	fmt.Printf(" -api_addr: %s\n", c.APIAddr)
	fmt.Printf(" -global_workers: %d\n", c.GlobalWorkers)
	fmt.Printf(" -page_workers: %d\n", c.PageWorkers)
	fmt.Printf(" -max_retries: %d\n", c.MaxRetries)
	if c.KeepPages {
		fmt.Printf(" -keep_pages: %t\n", c.KeepPages)
	}
	fmt.Printf(" -archive: %t\n", c.Archive)
	if c.Debug {
		fmt.Printf(" -debug: %t\n", c.Debug)
	}
	fmt.Printf(" -sort_order: %s\n", c.SortOrder)
	fmt.Printf(" -language: %s\n", c.Language)
	if c.DefaultRange != "" {
		fmt.Printf(" -range: %s\n", c.DefaultRange)
	}
	if c.DefaultList != "" {
		fmt.Printf(" -list: %s\n", c.DefaultList)
	}
	if c.CookieFile != "" {
		fmt.Printf(" -cookie_file: %s\n", c.CookieFile)
	}
	fmt.Printf(" -breaker: threshold=%d cooldown=%s max_cooldown=%s\n",
		c.Breaker.FailureThreshold, c.Breaker.Cooldown, c.Breaker.MaxCooldown)
	if !c.Weights.IsZero() && c.Weights != normalize.DefaultWeights() {
		fmt.Printf(" -score_weights: title=%d pages=%d published=%d extra_date=%d source=%d language=%d volume=%d\n",
			c.Weights.Title, c.Weights.PageCount, c.Weights.Published,
			c.Weights.ExtraDate, c.Weights.Source, c.Weights.Language, c.Weights.Volume)
	}
}
