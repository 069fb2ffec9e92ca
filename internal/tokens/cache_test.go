package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache_ValidateAndRateLimit(t *testing.T) {
	c := NewCache()
	assert.False(t, c.Ready())
	assert.ErrorIs(t, c.Validate("a"), ErrStoreNotReady)

	c.Replace(map[string]Entry{"a": {RateLimit: 5}, "b": {RateLimit: 10}})

	assert.True(t, c.Ready())
	assert.NoError(t, c.Validate("a"))
	assert.Equal(t, 5, c.RateLimit("a"))
	assert.Equal(t, 10, c.RateLimit("b"))
	assert.ErrorIs(t, c.Validate("c"), ErrInvalidAPIKey)
	assert.Equal(t, 0, c.RateLimit("c"))
}

func TestCache_ReplaceSwapsWholeTable(t *testing.T) {
	c := NewCache()
	src := map[string]Entry{"a": {RateLimit: 5}, "b": {RateLimit: 10}}
	c.Replace(src)
	src["z"] = Entry{RateLimit: 1}
	assert.ErrorIs(t, c.Validate("z"), ErrInvalidAPIKey, "cache must not alias the caller's map")

	c.Replace(map[string]Entry{"a": {RateLimit: 7}, "c": {RateLimit: 12}})
	assert.Equal(t, 7, c.RateLimit("a"))
	assert.ErrorIs(t, c.Validate("b"), ErrInvalidAPIKey)
	assert.Equal(t, 12, c.RateLimit("c"))
	assert.Equal(t, 2, c.Len())
}

func TestCache_EmptyTableIsReady(t *testing.T) {
	c := NewCache()
	c.Replace(map[string]Entry{})
	assert.True(t, c.Ready())
	assert.ErrorIs(t, c.Validate("a"), ErrInvalidAPIKey)
}

func TestCache_Allows(t *testing.T) {
	c := NewCache()
	c.Replace(map[string]Entry{
		"any":      {RateLimit: 1},
		"validate": {RateLimit: 1, Scope: Scope{"validate": true, "status": true}},
	})

	assert.True(t, c.Allows("any", "render"))
	assert.True(t, c.Allows("validate", "validate"))
	assert.False(t, c.Allows("validate", "render"))
	assert.False(t, c.Allows("unknown", "status"))
}
