package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammadjaf013/findlanqbot/internal/cache"
	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories/memory"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time           { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newHistory(c *clock) (HistoryService, *cache.MemoryCache) {
	mc := cache.NewMemoryCache()
	return NewHistoryService(memory.NewHistoryStore(), mc, HistoryOptions{
		TTL:      24 * time.Hour,
		Limit:    3,
		CacheTTL: time.Hour,
		Now:      c.Now,
	}, quietLogger()), mc
}

func TestHistory_TouchCreatesAndRefreshes(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	h, _ := newHistory(c)

	s, err := h.Touch(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, c.t, s.CreatedAt)

	c.Advance(time.Hour)
	s, err = h.Touch(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, c.t.Add(-time.Hour), s.CreatedAt)
	assert.Equal(t, c.t, s.LastActivity)
	assert.Equal(t, c.t.Add(24*time.Hour), s.ExpiresAt)
}

func TestHistory_ExpiredSessionStartsOver(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	h, _ := newHistory(c)

	_, err := h.Touch(ctx, "abc")
	require.NoError(t, err)
	_, err = h.Append(ctx, "abc", models.RoleUser, "hello", nil)
	require.NoError(t, err)

	c.Advance(25 * time.Hour)
	_, err = h.Get(ctx, "abc")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	s, err := h.Touch(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, c.t, s.CreatedAt)

	msgs, err := h.Recent(ctx, "abc")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestHistory_RecentIsBoundedAndCacheInvalidated(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	h, mc := newHistory(c)

	_, err := h.Touch(ctx, "abc")
	require.NoError(t, err)
	for _, text := range []string{"one", "two", "three", "four"} {
		c.Advance(time.Second)
		_, err := h.Append(ctx, "abc", models.RoleUser, text, nil)
		require.NoError(t, err)
	}

	msgs, err := h.Recent(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "two", msgs[0].Content)
	assert.Equal(t, "four", msgs[2].Content)

	var cached []models.Message
	hit, err := mc.GetJSON(ctx, cache.HistoryKey("abc"), &cached)
	require.NoError(t, err)
	assert.True(t, hit)

	_, err = h.Append(ctx, "abc", models.RoleAssistant, "five", map[string]any{"degraded": false})
	require.NoError(t, err)
	hit, _ = mc.GetJSON(ctx, cache.HistoryKey("abc"), &cached)
	assert.False(t, hit)

	msgs, err = h.Recent(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "five", msgs[2].Content)
	assert.JSONEq(t, `{"degraded":false}`, string(msgs[2].Metadata))
}

func TestHistory_AppendValidation(t *testing.T) {
	ctx := context.Background()
	h, _ := newHistory(&clock{t: time.Now()})

	_, err := h.Append(ctx, "missing", models.RoleUser, "hi", nil)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	_, err = h.Append(ctx, "abc", "system", "hi", nil)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = h.Touch(ctx, " padded ")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestHistory_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	h, _ := newHistory(c)

	_, err := h.Touch(ctx, "old")
	require.NoError(t, err)
	c.Advance(23 * time.Hour)
	_, err = h.Touch(ctx, "fresh")
	require.NoError(t, err)

	c.Advance(2 * time.Hour)
	n, err := h.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = h.Get(ctx, "old")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
	_, err = h.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestHistory_PurgedSessionDoesNotServeCachedHistory(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	h, _ := newHistory(c)

	_, err := h.Touch(ctx, "abc")
	require.NoError(t, err)
	_, err = h.Append(ctx, "abc", models.RoleUser, "hello", nil)
	require.NoError(t, err)
	msgs, err := h.Recent(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	c.Advance(25 * time.Hour)
	n, err := h.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = h.Touch(ctx, "abc")
	require.NoError(t, err)
	msgs, err = h.Recent(ctx, "abc")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestHistory_AppendTurnKeepsOrderOnFrozenClock(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	h, _ := newHistory(c)

	sess, err := h.Touch(ctx, "abc")
	require.NoError(t, err)
	require.NoError(t, h.AppendTurn(ctx, "abc", sess.LastActivity, "hello", "hi, how can I help?", map[string]bool{"degraded": false}))

	msgs, err := h.Recent(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, c.t, msgs[0].Timestamp)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.True(t, msgs[1].Timestamp.After(msgs[0].Timestamp))
	assert.JSONEq(t, `{"degraded":false}`, string(msgs[1].Metadata))
}

func TestHistory_AppendTurnToUnknownSession(t *testing.T) {
	c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	h, _ := newHistory(c)

	err := h.AppendTurn(context.Background(), "ghost", c.t, "q", "a", nil)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestHistory_Delete(t *testing.T) {
	ctx := context.Background()
	h, _ := newHistory(&clock{t: time.Now()})

	_, err := h.Touch(ctx, "abc")
	require.NoError(t, err)
	require.NoError(t, h.Delete(ctx, "abc"))

	_, err = h.Get(ctx, "abc")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}
