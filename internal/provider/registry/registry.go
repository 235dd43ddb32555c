// Package registry owns the set of configured providers and their health
// records. It is an explicit constructed value, not a process singleton, so
// tests build isolated instances.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/renvik/mangarr/internal/bypass"
	"github.com/renvik/mangarr/internal/health"
	"github.com/renvik/mangarr/internal/provider"
	"github.com/renvik/mangarr/internal/provider/scrape"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Deps are the collaborators providers are built around. Bypass may be nil;
// providers that require it are then disabled instead of failing hard.
type Deps struct {
	Client  *http.Client
	Bypass  *bypass.Client
	Breaker health.Options
	Logger  *zap.Logger
}

type entry struct {
	cfg     provider.Config
	prov    provider.Provider
	breaker *health.Breaker
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	deps    Deps
	log     *zap.Logger
}

// Load reads every *.json provider config in configDir and instantiates the
// matching variant. Broken config files are skipped with a warning so one
// bad provider cannot take the whole registry down.
func Load(configDir string, deps Deps) (*Registry, error) {
	r := &Registry{
		entries: map[string]*entry{},
		deps:    deps,
		log:     deps.Logger,
	}

	if err := r.load(configDir); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load(configDir string) error {
	files, err := os.ReadDir(configDir)
	if err != nil {
		return fmt.Errorf("registry: read config dir: %w", err)
	}

	fresh := map[string]*entry{}

	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}

		cfg, err := provider.LoadConfig(filepath.Join(configDir, f.Name()))
		if err != nil {
			r.log.Warn("skipping provider config", zap.String("file", f.Name()), zap.Error(err))
			continue
		}
		if _, dup := fresh[cfg.ID]; dup {
			r.log.Warn("duplicate provider id", zap.String("id", cfg.ID), zap.String("file", f.Name()))
			continue
		}

		e := r.build(*cfg)
		fresh[cfg.ID] = e
	}

	// Whole-set replacement keeps a reload atomic for readers.
	r.mu.Lock()
	r.entries = fresh
	r.mu.Unlock()

	r.log.Info("providers loaded", zap.Int("count", len(fresh)))
	return nil
}

func (r *Registry) build(cfg provider.Config) *entry {
	var fetch scrape.Fetcher
	breaker := health.NewBreaker(cfg.ID, r.deps.Breaker)

	if cfg.RequiresBypass {
		if r.deps.Bypass == nil {
			r.log.Warn("provider requires bypass service, disabling",
				zap.String("id", cfg.ID))
			breaker.Disable()
			fetch = scrape.NewHTTPFetcher(cfg.ID, r.deps.Client)
		} else {
			fetch = scrape.NewBypassFetcher(cfg.ID, r.deps.Bypass)
		}
	} else {
		fetch = scrape.NewHTTPFetcher(cfg.ID, r.deps.Client)
	}

	var prov provider.Provider
	switch cfg.Variant {
	case provider.VariantEnhanced:
		prov = scrape.NewEnhanced(cfg, fetch, r.log)
	default:
		prov = scrape.NewGeneric(cfg, fetch, r.log)
	}

	return &entry{cfg: cfg, prov: prov, breaker: breaker}
}

// Reload atomically replaces all provider configs and health records.
func (r *Registry) Reload(configDir string) error {
	return r.load(configDir)
}

func (r *Registry) Get(id string) (provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.prov, true
}

// Healthy returns every provider whose circuit is not open, sorted by
// priority (highest first), id as tiebreak.
func (r *Registry) Healthy() []provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []provider.Provider
	for _, e := range r.entries {
		if e.breaker.State() != health.Open {
			out = append(out, e.prov)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority() != out[j].Priority() {
			return out[i].Priority() > out[j].Priority()
		}
		return out[i].ID() < out[j].ID()
	})

	return out
}

// Health returns the health record for one provider.
func (r *Registry) Health(id string) (health.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return health.Record{}, false
	}
	return e.breaker.Snapshot(), true
}

// HealthAll snapshots every provider's record, sorted by id.
func (r *Registry) HealthAll() []health.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]health.Record, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.breaker.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out
}

// Call runs fn against the identified provider under circuit-breaker
// gating. An open circuit short-circuits without any network call. Parse
// failures are surfaced but do not count against the provider's health;
// everything else does, and is how a provider eventually gets disabled.
func (r *Registry) Call(ctx context.Context, id string, fn func(context.Context, provider.Provider) error) error {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}

	if !e.breaker.Allow() {
		return provider.NewError(provider.KindCircuitOpen, id, "dispatch", nil)
	}

	err := fn(ctx, e.prov)
	if err == nil {
		e.breaker.ReportSuccess()
		return nil
	}

	switch provider.KindOf(err) {
	case provider.KindParse, provider.KindPremiumContent:
		// Deterministic for this strategy set; not a provider outage, so
		// it neither counts against nor resets the health record. The
		// half-open probe slot still has to be released.
		e.breaker.ReportNeutral()
	default:
		e.breaker.ReportFailure()
	}

	return err
}

// ListPages is the page-listing entry point the download orchestrator uses.
func (r *Registry) ListPages(ctx context.Context, id string, ref provider.ChapterRef) ([]provider.Page, error) {
	var pages []provider.Page
	err := r.Call(ctx, id, func(ctx context.Context, p provider.Provider) error {
		var err error
		pages, err = p.ListPages(ctx, ref)
		return err
	})
	return pages, err
}

// Shutdown releases registry resources. Present for symmetry with Load; the
// registry holds no goroutines, but callers should not use it afterwards.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.entries = map[string]*entry{}
	r.mu.Unlock()
}
