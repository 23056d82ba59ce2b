package cluster

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"
)

const maxIterations = 100

// Point is one sample in feature space.
type Point struct {
	X, Y float64
}

func (p Point) dist2(q Point) float64 {
	dx, dy := p.X-q.X, p.Y-q.Y
	return dx*dx + dy*dy
}

// KMeans partitions points into at most k clusters and returns one label per
// point. k is clamped to the number of distinct points, so a single point
// always gets label 0. Labels are ordered by centroid position (X, then Y),
// and the result depends only on the points, k and seed.
func KMeans(points []Point, k int, seed uint64) []int {
	labels := make([]int, len(points))
	k = min(k, distinct(points))
	if k <= 1 {
		return labels
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	centers := seedCenters(points, k, rng)

	for range maxIterations {
		changed := false
		for i, p := range points {
			if l := nearest(p, centers); l != labels[i] {
				labels[i] = l
				changed = true
			}
		}

		sums := make([]Point, k)
		counts := make([]int, k)
		for i, p := range points {
			sums[labels[i]].X += p.X
			sums[labels[i]].Y += p.Y
			counts[labels[i]]++
		}
		for c := range centers {
			if counts[c] > 0 {
				centers[c] = Point{X: sums[c].X / float64(counts[c]), Y: sums[c].Y / float64(counts[c])}
			}
		}
		if !changed {
			break
		}
	}
	return relabel(labels, centers)
}

func distinct(points []Point) int {
	seen := make(map[Point]struct{}, len(points))
	for _, p := range points {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// seedCenters picks initial centers with k-means++ weighting.
func seedCenters(points []Point, k int, rng *rand.Rand) []Point {
	centers := make([]Point, 0, k)
	centers = append(centers, points[rng.IntN(len(points))])
	weights := make([]float64, len(points))
	for len(centers) < k {
		var total float64
		for i, p := range points {
			weights[i] = p.dist2(centers[nearest(p, centers)])
			total += weights[i]
		}
		target := rng.Float64() * total
		pick := -1
		for i, w := range weights {
			if w == 0 {
				continue
			}
			pick = i
			if target < w {
				break
			}
			target -= w
		}
		centers = append(centers, points[pick])
	}
	return centers
}

func nearest(p Point, centers []Point) int {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		if d := p.dist2(center); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func relabel(labels []int, centers []Point) []int {
	order := make([]int, len(centers))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := cmp.Compare(centers[a].X, centers[b].X); c != 0 {
			return c
		}
		return cmp.Compare(centers[a].Y, centers[b].Y)
	})
	rank := make([]int, len(centers))
	for r, c := range order {
		rank[c] = r
	}
	for i, l := range labels {
		labels[i] = rank[l]
	}
	return labels
}
