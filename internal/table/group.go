// Package table holds the grouping primitives the aggregators build their
// views from. Results are deterministic: ties always break on the smaller key.
package table

import (
	"cmp"
	"slices"
)

// Stats is a count/sum accumulator.
type Stats struct {
	Count int64
	Sum   float64
}

// Add accumulates one value.
func (s *Stats) Add(v float64) {
	s.Count++
	s.Sum += v
}

// Merge folds o into s.
func (s *Stats) Merge(o Stats) {
	s.Count += o.Count
	s.Sum += o.Sum
}

// Mean returns Sum/Count, or 0 for an empty accumulator.
func (s Stats) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// BySum and ByCount are ranking metrics for Sorted and ArgMax.
func BySum(s Stats) float64   { return s.Sum }
func ByCount(s Stats) float64 { return float64(s.Count) }

// Row is one group of a grouped aggregate.
type Row[K cmp.Ordered] struct {
	Key K
	Stats
}

// Group aggregates value(r) by key(r). Rows whose key function returns false
// are skipped.
func Group[R any, K comparable](rows []R, key func(R) (K, bool), value func(R) float64) map[K]Stats {
	out := make(map[K]Stats)
	for _, r := range rows {
		k, ok := key(r)
		if !ok {
			continue
		}
		s := out[k]
		s.Add(value(r))
		out[k] = s
	}
	return out
}

// Total sums value over rows.
func Total[R any](rows []R, value func(R) float64) Stats {
	var s Stats
	for _, r := range rows {
		s.Add(value(r))
	}
	return s
}

// Sorted returns the groups ordered by metric descending, then key ascending.
func Sorted[K cmp.Ordered](groups map[K]Stats, metric func(Stats) float64) []Row[K] {
	out := make([]Row[K], 0, len(groups))
	for k, s := range groups {
		out = append(out, Row[K]{Key: k, Stats: s})
	}
	slices.SortFunc(out, func(a, b Row[K]) int {
		if c := cmp.Compare(metric(b.Stats), metric(a.Stats)); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}

// ByKey returns the groups ordered by key ascending.
func ByKey[K cmp.Ordered](groups map[K]Stats) []Row[K] {
	out := make([]Row[K], 0, len(groups))
	for k, s := range groups {
		out = append(out, Row[K]{Key: k, Stats: s})
	}
	slices.SortFunc(out, func(a, b Row[K]) int { return cmp.Compare(a.Key, b.Key) })
	return out
}

// ArgMax returns the group with the highest metric. ok is false for no groups.
func ArgMax[K cmp.Ordered](groups map[K]Stats, metric func(Stats) float64) (Row[K], bool) {
	var (
		best  Row[K]
		found bool
	)
	for k, s := range groups {
		m := metric(s)
		if !found || m > metric(best.Stats) || (m == metric(best.Stats) && k < best.Key) {
			best = Row[K]{Key: k, Stats: s}
			found = true
		}
	}
	return best, found
}

// Head returns at most n leading rows.
func Head[T any](rows []T, n int) []T {
	if n < 0 || n >= len(rows) {
		return rows
	}
	return rows[:n]
}

// Filter returns the rows for which keep is true.
func Filter[R any](rows []R, keep func(R) bool) []R {
	out := make([]R, 0)
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Index partitions rows by key, preserving row order within each partition.
func Index[R any, K comparable](rows []R, key func(R) K) map[K][]R {
	out := make(map[K][]R)
	for _, r := range rows {
		k := key(r)
		out[k] = append(out[k], r)
	}
	return out
}

// Sum adds the values of a map.
func Sum[K comparable](m map[K]float64) float64 {
	var total float64
	for _, v := range m {
		total += v
	}
	return total
}
