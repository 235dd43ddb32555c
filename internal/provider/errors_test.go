package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	parse := NewError(KindParse, "sitea", "ListChapters", ErrNoSelectorMatched)
	assert.Equal(t, KindParse, KindOf(parse))

	wrapped := fmt.Errorf("outer: %w", NewError(KindRateLimited, "sitea", "Search", nil))
	assert.Equal(t, KindRateLimited, KindOf(wrapped))

	assert.Equal(t, KindNetwork, KindOf(errors.New("connection reset")))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(NewError(KindNetwork, "s", "op", nil)))
	assert.True(t, IsTransient(NewError(KindRateLimited, "s", "op", nil)))
	assert.True(t, IsTransient(errors.New("plain transport error")))

	assert.False(t, IsTransient(NewError(KindParse, "s", "op", nil)))
	assert.False(t, IsTransient(NewError(KindCircuitOpen, "s", "op", nil)))
	assert.False(t, IsTransient(NewError(KindPremiumContent, "s", "op", nil)))
	assert.False(t, IsTransient(NewError(KindCloudflareBlocked, "s", "op", nil)))
}

func TestErrorUnwrap(t *testing.T) {
	e := NewError(KindParse, "sitea", "ListPages", ErrNoSelectorMatched)
	assert.True(t, errors.Is(e, ErrNoSelectorMatched))
	assert.Contains(t, e.Error(), "sitea")
	assert.Contains(t, e.Error(), "parse")
}
