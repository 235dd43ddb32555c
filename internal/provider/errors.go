package provider

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures. Transient kinds are retried by the
// orchestrator, CloudflareBlocked escalates the provider's health record and
// PremiumContent is filtered out before results reach a caller.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindParse
	KindCloudflareBlocked
	KindRateLimited
	KindCircuitOpen
	KindPremiumContent
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	case KindCloudflareBlocked:
		return "cloudflare_blocked"
	case KindRateLimited:
		return "rate_limited"
	case KindCircuitOpen:
		return "circuit_open"
	case KindPremiumContent:
		return "premium_content"
	default:
		return "unknown"
	}
}

// ErrNoSelectorMatched is wrapped by parse errors when every configured
// strategy yielded zero nodes.
var ErrNoSelectorMatched = errors.New("no selector strategy matched")

// Error is the typed failure returned by every provider operation.
type Error struct {
	Kind     ErrorKind
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Provider, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err as a provider failure of the given kind.
func NewError(kind ErrorKind, providerID, op string, err error) *Error {
	return &Error{Kind: kind, Provider: providerID, Op: op, Err: err}
}

// KindOf returns the error kind of err, or KindNetwork when err is not a
// provider error (plain transport failures default to the transient kind).
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindNetwork
}

// IsTransient reports whether err is worth retrying against the same
// provider. Parse failures are deterministic for a given strategy set.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindRateLimited:
		return true
	}
	return false
}
