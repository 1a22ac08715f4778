// Package weights implements the weight/decay collaborator: an importance
// score per memory content that grows with access and decays with age.
package weights

import (
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/becomeliminal/recall/memory"
)

// Config tunes the scoring. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// InitialWeight is assigned on first access.
	InitialWeight float64

	// AccessBoost is added per recorded access.
	AccessBoost float64

	// MaxWeight caps the score.
	MaxWeight float64

	// HalfLife is the age at which an untouched weight halves.
	HalfLife time.Duration

	// ExpireAfter is the idle age past which a weight record is purged.
	ExpireAfter time.Duration
}

// DefaultConfig returns the stock scoring parameters.
func DefaultConfig() Config {
	return Config{
		InitialWeight: 1.0,
		AccessBoost:   0.2,
		MaxWeight:     10.0,
		HalfLife:      7 * 24 * time.Hour,
		ExpireAfter:   30 * 24 * time.Hour,
	}
}

type record struct {
	weight     float64
	accesses   uint64
	lastAccess int64 // epoch seconds
	decayedAt  int64 // epoch seconds of the last decay pass
}

// Statistics is the counter snapshot nested into the system statistics.
type Statistics struct {
	TrackedMemories int
	TotalAccesses   uint64
	AverageWeight   float64
	MaxWeight       float64
	PurgedRecords   uint64
}

// Manager tracks weights keyed by memory content. Safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	cfg     Config
	records map[string]*record

	totalAccesses uint64
	purged        uint64
}

// New creates a manager with the given config. A config with no half-life is
// replaced by DefaultConfig.
func New(cfg Config) *Manager {
	if cfg.HalfLife <= 0 {
		cfg = DefaultConfig()
	}
	return &Manager{
		cfg:     cfg,
		records: make(map[string]*record),
	}
}

// SetConfig replaces the scoring parameters. Existing weights are kept and
// decay under the new parameters from now on.
func (m *Manager) SetConfig(cfg Config) {
	if cfg.HalfLife <= 0 {
		return
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}

// RecordAccess notes an access to the given content at the given epoch-second
// timestamp, creating the weight record on first sight.
func (m *Manager) RecordAccess(content, timestamp string) {
	ts := parseEpoch(timestamp)

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[content]
	if !ok {
		r = &record{weight: m.cfg.InitialWeight}
		m.records[content] = r
	}
	r.weight = m.clamp(r.weight + m.cfg.AccessBoost)
	r.accesses++
	r.lastAccess = ts
	m.totalAccesses++
}

// UpdateMemoryWeight sets an explicit weight for the content, clamped to
// [0, MaxWeight].
func (m *Manager) UpdateMemoryWeight(content string, weight float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[content]
	if !ok {
		r = &record{lastAccess: time.Now().Unix()}
		m.records[content] = r
	}
	if weight < 0 {
		weight = 0
	}
	r.weight = m.clamp(weight)
}

// Weight returns the current weight for the content.
func (m *Manager) Weight(content string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[content]
	if !ok {
		return 0, false
	}
	return r.weight, true
}

// UpdateWeights recomputes decay over a full memory snapshot at the given
// epoch-second timestamp. Items seen for the first time are seeded at
// InitialWeight so the maintenance loop picks up everything the store holds.
func (m *Manager) UpdateWeights(items []memory.Item, timestamp string) {
	now := parseEpoch(timestamp)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range items {
		r, ok := m.records[item.Content]
		if !ok {
			m.records[item.Content] = &record{
				weight:     m.cfg.InitialWeight,
				lastAccess: parseEpoch(item.Timestamp),
			}
			continue
		}

		// Decay only the span since the last pass (or last access),
		// so repeated passes do not compound.
		since := r.lastAccess
		if r.decayedAt > since {
			since = r.decayedAt
		}
		age := now - since
		if age <= 0 {
			continue
		}
		halfLives := float64(age) / m.cfg.HalfLife.Seconds()
		r.weight *= math.Pow(0.5, halfLives)
		r.decayedAt = now
	}
}

// CleanupExpired purges records idle longer than ExpireAfter and returns how
// many were removed. Idempotent: with no newly expired records it is a no-op.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.cfg.ExpireAfter).Unix()
	removed := 0
	for content, r := range m.records {
		if r.lastAccess < cutoff {
			delete(m.records, content)
			removed++
		}
	}
	m.purged += uint64(removed)
	return removed
}

// Top returns up to n contents ranked by weight, highest first. Ties break by
// content so the ranking is deterministic.
func (m *Manager) Top(n int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 || len(m.records) == 0 {
		return nil
	}

	type ranked struct {
		content string
		weight  float64
	}
	all := make([]ranked, 0, len(m.records))
	for content, r := range m.records {
		all = append(all, ranked{content, r.weight})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].weight != all[j].weight {
			return all[i].weight > all[j].weight
		}
		return all[i].content < all[j].content
	})

	if n > len(all) {
		n = len(all)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = all[i].content
	}
	return out
}

// Statistics returns a snapshot of the weight counters.
func (m *Manager) Statistics() Statistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Statistics{
		TrackedMemories: len(m.records),
		TotalAccesses:   m.totalAccesses,
		PurgedRecords:   m.purged,
	}
	var sum float64
	for _, r := range m.records {
		sum += r.weight
		if r.weight > stats.MaxWeight {
			stats.MaxWeight = r.weight
		}
	}
	if len(m.records) > 0 {
		stats.AverageWeight = sum / float64(len(m.records))
	}
	return stats
}

func (m *Manager) clamp(w float64) float64 {
	if w > m.cfg.MaxWeight {
		return m.cfg.MaxWeight
	}
	return w
}

func parseEpoch(s string) int64 {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Now().Unix()
	}
	return sec
}
