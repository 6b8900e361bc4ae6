package market

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseCache_EvictsPastStaleHorizon(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	c := newResponseCache(time.Minute)
	c.now = func() time.Time { return now }

	c.set("old", []byte("a"))
	now = now.Add(staleHorizon - time.Minute)
	_, ok := c.stale("old")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.stale("old")
	assert.False(t, ok)

	c.set("new", []byte("b"))
	assert.NotContains(t, c.entries, "old")
	assert.Contains(t, c.entries, "new")
}

func TestResponseCache_CapsEntries(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	c := newResponseCache(time.Hour)
	c.maxEntries = 3
	c.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		c.set(fmt.Sprintf("k%d", i), []byte{byte(i)})
		now = now.Add(time.Second)
	}

	require.Len(t, c.entries, 3)
	assert.NotContains(t, c.entries, "k0")
	assert.NotContains(t, c.entries, "k1")
	body, ok := c.fresh("k4")
	require.True(t, ok)
	assert.Equal(t, []byte{4}, body)
}
