package registry

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/renvik/mangarr/internal/health"
	"github.com/renvik/mangarr/internal/provider"
)

func writeProvider(t *testing.T, dir, id, extra string) {
	t.Helper()
	raw := `{
		"id": "` + id + `",
		"baseUrl": "https://` + id + `.example",
		"searchUrlTemplate": "https://` + id + `.example/search?q={query}",
		` + extra + `
		"selectorStrategies": [
			{"kind": "css", "chapterSelector": "ul.chapters a", "pageSelector": ".reader img"}
		]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), []byte(raw), 0644))
}

func testDeps() Deps {
	return Deps{
		Client:  &http.Client{Timeout: time.Second},
		Breaker: health.Options{FailureThreshold: 2, Cooldown: time.Minute},
		Logger:  zap.NewNop(),
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeProvider(t, dir, "sitea", `"priority": 10,`)
	writeProvider(t, dir, "siteb", `"priority": 20,`)

	r, err := Load(dir, testDeps())
	require.NoError(t, err)

	_, ok := r.Get("sitea")
	assert.True(t, ok)
	_, ok = r.Get("siteb")
	assert.True(t, ok)
	_, ok = r.Get("nope")
	assert.False(t, ok)
}

func TestLoadSkipsBrokenConfig(t *testing.T) {
	dir := t.TempDir()
	writeProvider(t, dir, "sitea", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0644))

	r, err := Load(dir, testDeps())
	require.NoError(t, err, "one bad file must not take the registry down")

	_, ok := r.Get("sitea")
	assert.True(t, ok)
	assert.Len(t, r.HealthAll(), 1)
}

func TestHealthyOrderedByPriority(t *testing.T) {
	dir := t.TempDir()
	writeProvider(t, dir, "low", `"priority": 1,`)
	writeProvider(t, dir, "high", `"priority": 50,`)
	writeProvider(t, dir, "mid", `"priority": 10,`)

	r, err := Load(dir, testDeps())
	require.NoError(t, err)

	provs := r.Healthy()
	require.Len(t, provs, 3)
	assert.Equal(t, "high", provs[0].ID())
	assert.Equal(t, "mid", provs[1].ID())
	assert.Equal(t, "low", provs[2].ID())
}

func TestBypassRequiredWithoutServiceDisables(t *testing.T) {
	dir := t.TempDir()
	writeProvider(t, dir, "guarded", `"requiresBypass": true,`)
	writeProvider(t, dir, "open", "")

	r, err := Load(dir, testDeps())
	require.NoError(t, err)

	rec, ok := r.Health("guarded")
	require.True(t, ok)
	assert.True(t, rec.Disabled)
	assert.Equal(t, "open", rec.CircuitState)

	provs := r.Healthy()
	require.Len(t, provs, 1)
	assert.Equal(t, "open", provs[0].ID())

	err = r.Call(context.Background(), "guarded", func(context.Context, provider.Provider) error {
		t.Fatal("disabled provider must not be dispatched")
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, provider.KindCircuitOpen, provider.KindOf(err))
}

func TestCallUnknownProvider(t *testing.T) {
	r, err := Load(t.TempDir(), testDeps())
	require.NoError(t, err)

	err = r.Call(context.Background(), "ghost", func(context.Context, provider.Provider) error { return nil })
	assert.True(t, errors.Is(err, ErrUnknownProvider))
}

func TestCallFailuresOpenCircuit(t *testing.T) {
	dir := t.TempDir()
	writeProvider(t, dir, "flaky", "")

	r, err := Load(dir, testDeps())
	require.NoError(t, err)

	netErr := provider.NewError(provider.KindNetwork, "flaky", "fetch", errors.New("boom"))

	// Threshold is 2 in testDeps.
	for i := 0; i < 2; i++ {
		err := r.Call(context.Background(), "flaky", func(context.Context, provider.Provider) error {
			return netErr
		})
		require.Error(t, err)
	}

	rec, _ := r.Health("flaky")
	assert.Equal(t, "open", rec.CircuitState)
	assert.Empty(t, r.Healthy())

	err = r.Call(context.Background(), "flaky", func(context.Context, provider.Provider) error { return nil })
	assert.Equal(t, provider.KindCircuitOpen, provider.KindOf(err))
}

func TestCallParseErrorsDoNotTouchHealth(t *testing.T) {
	dir := t.TempDir()
	writeProvider(t, dir, "sitea", "")

	r, err := Load(dir, testDeps())
	require.NoError(t, err)

	parseErr := provider.NewError(provider.KindParse, "sitea", "list_chapters", provider.ErrNoSelectorMatched)

	for i := 0; i < 5; i++ {
		err := r.Call(context.Background(), "sitea", func(context.Context, provider.Provider) error {
			return parseErr
		})
		require.Error(t, err)
	}

	rec, _ := r.Health("sitea")
	assert.Equal(t, "closed", rec.CircuitState)
	assert.Equal(t, 0, rec.ConsecutiveFailures)
}

func TestCallParseErrorDuringTrialReleasesProbe(t *testing.T) {
	dir := t.TempDir()
	writeProvider(t, dir, "sitea", "")

	deps := testDeps()
	deps.Breaker = health.Options{FailureThreshold: 1, Cooldown: 5 * time.Millisecond}

	r, err := Load(dir, deps)
	require.NoError(t, err)

	netErr := provider.NewError(provider.KindNetwork, "sitea", "fetch", errors.New("boom"))
	_ = r.Call(context.Background(), "sitea", func(context.Context, provider.Provider) error { return netErr })

	rec, _ := r.Health("sitea")
	require.Equal(t, "open", rec.CircuitState)

	time.Sleep(20 * time.Millisecond)

	// The half-open trial hits a selector miss. Health is untouched, but the
	// circuit must still admit a later trial instead of wedging half-open.
	parseErr := provider.NewError(provider.KindParse, "sitea", "list_chapters", provider.ErrNoSelectorMatched)
	err = r.Call(context.Background(), "sitea", func(context.Context, provider.Provider) error { return parseErr })
	require.Equal(t, provider.KindParse, provider.KindOf(err))

	err = r.Call(context.Background(), "sitea", func(context.Context, provider.Provider) error { return nil })
	require.NoError(t, err)

	rec, _ = r.Health("sitea")
	assert.Equal(t, "closed", rec.CircuitState)
}

func TestCallSuccessResetsFailures(t *testing.T) {
	dir := t.TempDir()
	writeProvider(t, dir, "sitea", "")

	r, err := Load(dir, testDeps())
	require.NoError(t, err)

	netErr := provider.NewError(provider.KindNetwork, "sitea", "fetch", errors.New("boom"))

	_ = r.Call(context.Background(), "sitea", func(context.Context, provider.Provider) error { return netErr })
	_ = r.Call(context.Background(), "sitea", func(context.Context, provider.Provider) error { return nil })

	rec, _ := r.Health("sitea")
	assert.Equal(t, "closed", rec.CircuitState)
	assert.Equal(t, 0, rec.ConsecutiveFailures)
}

func TestReloadReplacesSet(t *testing.T) {
	dir := t.TempDir()
	writeProvider(t, dir, "sitea", "")

	r, err := Load(dir, testDeps())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "sitea.json")))
	writeProvider(t, dir, "siteb", "")

	require.NoError(t, r.Reload(dir))

	_, ok := r.Get("sitea")
	assert.False(t, ok)
	_, ok = r.Get("siteb")
	assert.True(t, ok)
}
