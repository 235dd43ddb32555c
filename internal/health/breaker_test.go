package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the breaker's time without sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time         { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(opts Options) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := NewBreaker("testsite", opts)
	b.now = clock.now
	return b, clock
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(Options{FailureThreshold: 3, Cooldown: 30 * time.Second})

	for i := 0; i < 2; i++ {
		b.ReportFailure()
		assert.Equal(t, Closed, b.State())
		assert.True(t, b.Allow())
	}

	b.ReportFailure()
	assert.Equal(t, Open, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerFailureCountResetsOnSuccess(t *testing.T) {
	b, _ := newTestBreaker(Options{FailureThreshold: 3})

	b.ReportFailure()
	b.ReportFailure()
	b.ReportSuccess()
	b.ReportFailure()
	b.ReportFailure()

	assert.Equal(t, Closed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerHalfOpenSingleProbe(t *testing.T) {
	b, clock := newTestBreaker(Options{FailureThreshold: 1, Cooldown: 30 * time.Second})

	b.ReportFailure()
	require.False(t, b.Allow())

	clock.advance(31 * time.Second)

	assert.True(t, b.Allow(), "first call after cooldown is the probe")
	assert.Equal(t, HalfOpen, b.State())
	assert.False(t, b.Allow(), "only one probe admitted at a time")
}

func TestBreakerNeutralOutcomeReleasesProbe(t *testing.T) {
	b, clock := newTestBreaker(Options{FailureThreshold: 1, Cooldown: 30 * time.Second})

	b.ReportFailure()
	clock.advance(31 * time.Second)
	require.True(t, b.Allow())

	// The trial came back with a result that says nothing about provider
	// availability. The circuit must not wedge on the occupied probe slot.
	b.ReportNeutral()

	clock.advance(24 * time.Hour)
	assert.True(t, b.Allow(), "next trial admitted after a neutral outcome")
	assert.Equal(t, HalfOpen, b.State())

	b.ReportSuccess()
	assert.Equal(t, Closed, b.State())
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	b, clock := newTestBreaker(Options{FailureThreshold: 1, Cooldown: 30 * time.Second})

	b.ReportFailure()
	clock.advance(31 * time.Second)
	require.True(t, b.Allow())

	b.ReportSuccess()

	assert.Equal(t, Closed, b.State())
	assert.True(t, b.Allow())

	rec := b.Snapshot()
	assert.Equal(t, 0, rec.ConsecutiveFailures)
	assert.True(t, rec.OpenedAt.IsZero())
}

func TestBreakerProbeFailureDoublesCooldown(t *testing.T) {
	b, clock := newTestBreaker(Options{
		FailureThreshold: 1,
		Cooldown:         30 * time.Second,
		MaxCooldown:      2 * time.Minute,
	})

	b.ReportFailure()
	clock.advance(31 * time.Second)
	require.True(t, b.Allow())
	b.ReportFailure()

	// Cooldown is now 60s; the old 30s is not enough.
	clock.advance(31 * time.Second)
	assert.False(t, b.Allow())
	clock.advance(30 * time.Second)
	assert.True(t, b.Allow())

	// Fail again: 120s. Another failure caps at MaxCooldown.
	b.ReportFailure()
	clock.advance(2 * time.Minute)
	require.True(t, b.Allow())
	b.ReportFailure()
	clock.advance(2 * time.Minute)
	assert.True(t, b.Allow())
}

func TestBreakerSuccessResetsCooldownBackoff(t *testing.T) {
	b, clock := newTestBreaker(Options{FailureThreshold: 1, Cooldown: 30 * time.Second})

	b.ReportFailure()
	clock.advance(31 * time.Second)
	require.True(t, b.Allow())
	b.ReportFailure() // cooldown now 60s

	clock.advance(61 * time.Second)
	require.True(t, b.Allow())
	b.ReportSuccess() // back to closed, cooldown back to 30s

	b.ReportFailure()
	clock.advance(31 * time.Second)
	assert.True(t, b.Allow())
}

func TestBreakerDisable(t *testing.T) {
	b, clock := newTestBreaker(Options{Cooldown: time.Second})

	b.Disable()
	assert.False(t, b.Allow())
	assert.Equal(t, Open, b.State())

	// Cooldown never reopens a disabled breaker.
	clock.advance(time.Hour)
	assert.False(t, b.Allow())
	assert.Equal(t, Open, b.State())
	assert.True(t, b.Snapshot().Disabled)

	b.Enable()
	assert.True(t, b.Allow())
	assert.Equal(t, Closed, b.State())
}

func TestBreakerSnapshot(t *testing.T) {
	b, _ := newTestBreaker(Options{FailureThreshold: 5})

	b.ReportFailure()
	b.ReportFailure()

	rec := b.Snapshot()
	assert.Equal(t, "testsite", rec.ProviderID)
	assert.Equal(t, 2, rec.ConsecutiveFailures)
	assert.Equal(t, "closed", rec.CircuitState)
	assert.False(t, rec.Disabled)
}
