// Package health tracks per-provider availability with a three-state
// circuit breaker. The registry consults it before dispatch; it is the only
// mechanism that disables a provider.
package health

import (
	"sync"
	"time"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Options tune a breaker. Zero values fall back to the defaults.
type Options struct {
	FailureThreshold int           // consecutive failures before opening
	Cooldown         time.Duration // open duration before a half-open trial
	MaxCooldown      time.Duration // backoff growth cap
}

func (o Options) withDefaults() Options {
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 5
	}
	if o.Cooldown <= 0 {
		o.Cooldown = 30 * time.Second
	}
	if o.MaxCooldown <= 0 {
		o.MaxCooldown = 10 * time.Minute
	}
	return o
}

// Record is a read-only snapshot of one provider's health.
type Record struct {
	ProviderID           string    `json:"provider_id"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	CircuitState         string    `json:"circuit_state"`
	Disabled             bool      `json:"disabled"`
	OpenedAt             time.Time `json:"opened_at,omitzero"`
}

// Breaker is a per-provider circuit breaker. Safe for concurrent use; all
// mutation happens under one lock so concurrent tasks reporting to the same
// provider cannot race.
type Breaker struct {
	mu         sync.Mutex
	providerID string
	opts       Options

	state     State
	failures  int
	successes int
	openedAt  time.Time
	cooldown  time.Duration
	probing   bool
	disabled  bool

	now func() time.Time
}

func NewBreaker(providerID string, opts Options) *Breaker {
	o := opts.withDefaults()
	return &Breaker{
		providerID: providerID,
		opts:       o,
		cooldown:   o.Cooldown,
		now:        time.Now,
	}
}

// Allow reports whether a request may be dispatched right now. In Open state
// it flips to HalfOpen once the cooldown elapsed and admits exactly one
// trial request.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.disabled {
		return false
	}

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = HalfOpen
		b.probing = true
		return true
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// ReportSuccess records a successful call. Outside Closed state it closes
// the circuit and resets all counters and the cooldown backoff.
func (b *Breaker) ReportSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes++
	b.failures = 0
	b.probing = false

	if b.state != Closed {
		b.state = Closed
		b.successes = 0
		b.cooldown = b.opts.Cooldown
		b.openedAt = time.Time{}
	}
}

// ReportNeutral records a call whose outcome says nothing about provider
// availability, such as a selector miss on reachable HTML. It touches no
// counters but releases the half-open probe slot so the circuit can still
// recover through a later trial.
func (b *Breaker) ReportNeutral() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// ReportFailure records a failed call. Reaching the failure threshold in
// Closed state opens the circuit; a failed half-open trial reopens it with
// the cooldown doubled up to the cap.
func (b *Breaker) ReportFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.successes = 0

	switch b.state {
	case Closed:
		if b.failures >= b.opts.FailureThreshold {
			b.state = Open
			b.openedAt = b.now()
		}
	case HalfOpen:
		b.state = Open
		b.openedAt = b.now()
		b.probing = false
		b.cooldown *= 2
		if b.cooldown > b.opts.MaxCooldown {
			b.cooldown = b.opts.MaxCooldown
		}
	case Open:
		// Late failure report from an in-flight call; stays open.
	}
}

// Disable forces the circuit open until Enable. Used when a provider's
// required bypass service is not configured.
func (b *Breaker) Disable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disabled = true
	b.state = Open
	b.openedAt = b.now()
}

func (b *Breaker) Enable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.disabled {
		return
	}
	b.disabled = false
	b.state = Closed
	b.failures = 0
	b.cooldown = b.opts.Cooldown
}

// State returns the current circuit state, applying any due Open->HalfOpen
// transition first so readers never observe a stale Open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && !b.disabled && b.now().Sub(b.openedAt) >= b.cooldown {
		b.state = HalfOpen
	}
	return b.state
}

func (b *Breaker) Snapshot() Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Record{
		ProviderID:           b.providerID,
		ConsecutiveFailures:  b.failures,
		ConsecutiveSuccesses: b.successes,
		CircuitState:         b.state.String(),
		Disabled:             b.disabled,
		OpenedAt:             b.openedAt,
	}
}
