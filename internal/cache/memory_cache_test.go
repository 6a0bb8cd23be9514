package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func TestMemoryCache_RoundTripAndDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.SetJSON(ctx, HistoryKey("s1"), []entry{{"user", "hi"}}, time.Minute))

	var got []entry
	hit, err := c.GetJSON(ctx, HistoryKey("s1"), &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []entry{{"user", "hi"}}, got)

	require.NoError(t, c.Del(ctx, HistoryKey("s1")))
	hit, err = c.GetJSON(ctx, HistoryKey("s1"), &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.SetJSON(ctx, "k", "v", time.Minute))

	now = now.Add(59 * time.Second)
	var s string
	hit, _ := c.GetJSON(ctx, "k", &s)
	assert.True(t, hit)

	now = now.Add(time.Second)
	hit, _ = c.GetJSON(ctx, "k", &s)
	assert.False(t, hit)
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var c Cache = Noop{}

	require.NoError(t, c.SetJSON(ctx, "k", 1, 0))
	var v int
	hit, err := c.GetJSON(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, hit)
}
