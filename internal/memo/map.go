package memo

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Veraticus/spice-dash/internal/metrics"
	"github.com/dgraph-io/ristretto"
)

// Overflow is the bounded cache shared by the maps of one aggregator for
// lookups that miss after sealing.
type Overflow struct {
	cache *ristretto.Cache
}

// NewOverflow creates an overflow cache holding at most maxEntries values.
func NewOverflow(maxEntries int64) (*Overflow, error) {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create overflow cache: %w", err)
	}
	return &Overflow{cache: c}, nil
}

// Close releases the cache goroutines.
func (o *Overflow) Close() {
	if o != nil {
		o.cache.Close()
	}
}

// Wait blocks until buffered writes are applied.
func (o *Overflow) Wait() {
	if o != nil {
		o.cache.Wait()
	}
}

// Entry is one stored view, used for snapshots.
type Entry[V any] struct {
	Key   Key
	Value V
}

// Map memoizes one named view of an aggregator.
type Map[V any] struct {
	overflow   *Overflow
	values     map[Key]V
	aggregator string
	name       string
	mu         sync.RWMutex
	sealed     atomic.Bool
}

// NewMap creates an unsealed map. overflow may be nil, in which case misses
// after sealing are recomputed every time.
func NewMap[V any](aggregator, name string, overflow *Overflow) *Map[V] {
	return &Map[V]{
		overflow:   overflow,
		values:     make(map[Key]V),
		aggregator: aggregator,
		name:       name,
	}
}

// Name returns the view name.
func (m *Map[V]) Name() string {
	return m.name
}

// Get returns the stored view for k.
func (m *Map[V]) Get(k Key) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[k]
	return v, ok
}

// Put stores v under k. It refuses to overwrite an existing view and refuses
// any write after Seal.
func (m *Map[V]) Put(k Key, v V) bool {
	if m.sealed.Load() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.values[k]; exists {
		return false
	}
	m.values[k] = v
	return true
}

// GetOrCompute returns the view for k, computing it with fn on a miss.
func (m *Map[V]) GetOrCompute(k Key, fn func() V) V {
	if v, ok := m.Get(k); ok {
		metrics.MemoLookups.WithLabelValues(m.aggregator, m.name, "hit").Inc()
		return v
	}

	if m.sealed.Load() {
		okey := m.name + "|" + k.String()
		if m.overflow != nil {
			if cached, ok := m.overflow.cache.Get(okey); ok {
				if v, ok := cached.(V); ok {
					metrics.MemoLookups.WithLabelValues(m.aggregator, m.name, "overflow_hit").Inc()
					return v
				}
			}
		}
		metrics.MemoLookups.WithLabelValues(m.aggregator, m.name, "miss").Inc()
		v := fn()
		if m.overflow != nil {
			m.overflow.cache.Set(okey, v, 1)
		}
		return v
	}

	metrics.MemoLookups.WithLabelValues(m.aggregator, m.name, "miss").Inc()
	v := fn()
	if !m.Put(k, v) {
		// Another warm-up worker stored it first; keep the stored value.
		if stored, ok := m.Get(k); ok {
			return stored
		}
	}
	return v
}

// Seal makes the map read-only.
func (m *Map[V]) Seal() {
	m.sealed.Store(true)
}

// Sealed reports whether Seal was called.
func (m *Map[V]) Sealed() bool {
	return m.sealed.Load()
}

// Len returns the number of stored views.
func (m *Map[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Entries returns every stored view ordered by key.
func (m *Map[V]) Entries() []Entry[V] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry[V], 0, len(m.values))
	for k, v := range m.values {
		out = append(out, Entry[V]{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Text != b.Text {
			return a.Text < b.Text
		}
		return a.ID < b.ID
	})
	return out
}

// Restore fills an unsealed, empty map from a snapshot.
func (m *Map[V]) Restore(entries []Entry[V]) error {
	if m.sealed.Load() {
		return fmt.Errorf("restore %s: map is sealed", m.name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.values) > 0 {
		return fmt.Errorf("restore %s: map already holds %d views", m.name, len(m.values))
	}
	for _, e := range entries {
		m.values[e.Key] = e.Value
	}
	return nil
}
