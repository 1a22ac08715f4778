package weights

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/recall/memory"
)

func epoch(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

func TestRecordAccessBoosts(t *testing.T) {
	m := New(DefaultConfig())
	now := epoch(time.Now())

	m.RecordAccess("fact", now)
	w1, ok := m.Weight("fact")
	require.True(t, ok)
	assert.InDelta(t, 1.2, w1, 1e-9) // initial + boost

	m.RecordAccess("fact", now)
	w2, _ := m.Weight("fact")
	assert.Greater(t, w2, w1)
}

func TestWeightClamped(t *testing.T) {
	cfg := DefaultConfig()
	m := New(cfg)

	m.UpdateMemoryWeight("fact", 99)
	w, _ := m.Weight("fact")
	assert.Equal(t, cfg.MaxWeight, w)

	m.UpdateMemoryWeight("fact", -3)
	w, _ = m.Weight("fact")
	assert.Equal(t, 0.0, w)
}

func TestUpdateWeightsDecays(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HalfLife = time.Hour
	m := New(cfg)

	past := time.Now().Add(-2 * time.Hour)
	m.RecordAccess("old fact", epoch(past))
	before, _ := m.Weight("old fact")

	items := []memory.Item{{Content: "old fact", Type: memory.Short, Category: memory.Other, Timestamp: epoch(past)}}
	m.UpdateWeights(items, epoch(time.Now()))

	after, _ := m.Weight("old fact")
	// Two half-lives elapsed.
	assert.InDelta(t, before/4, after, before*0.05)
}

func TestUpdateWeightsRepeatDoesNotCompound(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HalfLife = time.Hour
	m := New(cfg)

	past := time.Now().Add(-2 * time.Hour)
	m.RecordAccess("old fact", epoch(past))

	items := []memory.Item{{Content: "old fact", Type: memory.Short, Category: memory.Other, Timestamp: epoch(past)}}
	now := epoch(time.Now())
	m.UpdateWeights(items, now)
	first, _ := m.Weight("old fact")

	m.UpdateWeights(items, now)
	second, _ := m.Weight("old fact")
	assert.Equal(t, first, second)
}

func TestUpdateWeightsSeedsUnseenItems(t *testing.T) {
	m := New(DefaultConfig())

	items := []memory.Item{memory.NewItem("fresh", memory.Short, memory.Other)}
	m.UpdateWeights(items, memory.Now())

	w, ok := m.Weight("fresh")
	require.True(t, ok)
	assert.Equal(t, DefaultConfig().InitialWeight, w)
}

func TestCleanupExpired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExpireAfter = time.Hour
	m := New(cfg)

	m.RecordAccess("stale", epoch(time.Now().Add(-2*time.Hour)))
	m.RecordAccess("live", epoch(time.Now()))

	assert.Equal(t, 1, m.CleanupExpired())
	assert.Equal(t, 0, m.CleanupExpired(), "idempotent with no new expirations")

	_, ok := m.Weight("stale")
	assert.False(t, ok)
	_, ok = m.Weight("live")
	assert.True(t, ok)
}

func TestTopRanking(t *testing.T) {
	m := New(DefaultConfig())
	now := memory.Now()

	m.RecordAccess("low", now)
	m.RecordAccess("high", now)
	m.RecordAccess("high", now)
	m.RecordAccess("high", now)
	m.RecordAccess("mid", now)
	m.RecordAccess("mid", now)

	top := m.Top(2)
	require.Equal(t, []string{"high", "mid"}, top)

	assert.Len(t, m.Top(10), 3)
	assert.Nil(t, m.Top(0))
	assert.Nil(t, New(DefaultConfig()).Top(5))
}

func TestStatistics(t *testing.T) {
	m := New(DefaultConfig())
	now := memory.Now()

	m.RecordAccess("a", now)
	m.RecordAccess("a", now)
	m.RecordAccess("b", now)

	stats := m.Statistics()
	assert.Equal(t, 2, stats.TrackedMemories)
	assert.Equal(t, uint64(3), stats.TotalAccesses)
	assert.Greater(t, stats.AverageWeight, 0.0)
	assert.GreaterOrEqual(t, stats.MaxWeight, stats.AverageWeight)
}
