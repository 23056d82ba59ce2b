// Package cluster implements the clustering tab aggregator: per-client
// cohorts and k-means segments, optionally restricted to one merchant group.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/common"
	"github.com/Veraticus/spice-dash/internal/memo"
	"github.com/Veraticus/spice-dash/internal/model"
	"github.com/Veraticus/spice-dash/internal/table"
	"github.com/Veraticus/spice-dash/internal/warmup"
	"github.com/alitto/pond/v2"
)

const name = "cluster"

const (
	// Clusters is the number of segments requested from KMeans.
	Clusters = 4
	// Seed makes the segmentation reproducible across runs.
	Seed = 42
)

// ClientFeatures is one client's activity within the filter.
type ClientFeatures struct {
	AgeGroup string
	ClientID int64
	Count    int64
	Total    float64
	Average  float64
}

// Assignment places one client in a segment. X is the transaction count and
// Y the total or average value, depending on the view.
type Assignment struct {
	AgeGroup string
	ClientID int64
	X        float64
	Y        float64
	Cluster  int
}

// Config configures the aggregator.
type Config struct {
	Store     *cache.Store
	BatchPool pond.Pool
	Overflow  *memo.Overflow
	Logger    *slog.Logger
	// Rows is the transactions ⋈ categories ⋈ users join.
	Rows []model.ProfiledTransaction
}

// Validate fills defaults.
func (c *Config) Validate() error {
	if c.Store == nil {
		return errors.New("cache store is required")
	}
	c.Logger = common.OrDefault(c.Logger)
	return nil
}

// Aggregator owns the clustering tab views.
type Aggregator struct {
	cfg     Config
	log     *slog.Logger
	rows    []model.ProfiledTransaction
	byGroup map[string][]model.ProfiledTransaction
	groups  []string

	views
}

type views struct {
	cohorts   *memo.Map[[]ClientFeatures]
	byTotal   *memo.Map[[]Assignment]
	byAverage *memo.Map[[]Assignment]
}

func newViews(overflow *memo.Overflow) views {
	return views{
		cohorts:   memo.NewMap[[]ClientFeatures](name, "cohorts", overflow),
		byTotal:   memo.NewMap[[]Assignment](name, "clusters_by_total_value", overflow),
		byAverage: memo.NewMap[[]Assignment](name, "clusters_by_average_value", overflow),
	}
}

// New creates an aggregator over cfg.Rows.
func New(cfg Config) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Aggregator{
		cfg:   cfg,
		log:   cfg.Logger.With("aggregator", name),
		views: newViews(cfg.Overflow),
	}
	a.index(cfg.Rows)
	return a, nil
}

func (a *Aggregator) index(rows []model.ProfiledTransaction) {
	a.rows = rows
	a.byGroup = table.Index(rows, model.ProfiledTransaction.Group)
	delete(a.byGroup, "")
	a.groups = make([]string, 0, len(a.byGroup))
	for g := range a.byGroup {
		a.groups = append(a.groups, g)
	}
	sort.Strings(a.groups)
}

// Groups lists the merchant groups that can be used as a filter.
func (a *Aggregator) Groups() []string {
	out := make([]string, len(a.groups))
	copy(out, a.groups)
	return out
}

func (a *Aggregator) filtered(k memo.Key) []model.ProfiledTransaction {
	if k.Kind == memo.KindAll {
		return a.rows
	}
	return a.byGroup[k.Text]
}

// Cohorts returns per-client features within group (nil for all), ordered by
// client id.
func (a *Aggregator) Cohorts(group *string) []ClientFeatures {
	k := memo.OptionalGroup(group)
	return a.cohorts.GetOrCompute(k, func() []ClientFeatures {
		rows := a.filtered(k)
		ages := make(map[int64]string)
		for _, r := range rows {
			if _, ok := ages[r.Transaction.ClientID]; !ok {
				ages[r.Transaction.ClientID] = r.AgeLabel()
			}
		}
		clients := table.ByKey(table.Group(rows, func(r model.ProfiledTransaction) (int64, bool) {
			return r.Transaction.ClientID, true
		}, func(r model.ProfiledTransaction) float64 { return r.Transaction.Amount }))

		out := make([]ClientFeatures, len(clients))
		for i, c := range clients {
			out[i] = ClientFeatures{
				AgeGroup: ages[c.Key],
				ClientID: c.Key,
				Count:    c.Count,
				Total:    c.Sum,
				Average:  c.Mean(),
			}
		}
		return out
	})
}

// ByTotalValue segments clients on (transaction count, total value).
func (a *Aggregator) ByTotalValue(group *string) []Assignment {
	k := memo.OptionalGroup(group)
	return a.byTotal.GetOrCompute(k, func() []Assignment {
		return segment(a.Cohorts(group), func(c ClientFeatures) float64 { return c.Total })
	})
}

// ByAverageValue segments clients on (transaction count, average value).
func (a *Aggregator) ByAverageValue(group *string) []Assignment {
	k := memo.OptionalGroup(group)
	return a.byAverage.GetOrCompute(k, func() []Assignment {
		return segment(a.Cohorts(group), func(c ClientFeatures) float64 { return c.Average })
	})
}

func segment(cohorts []ClientFeatures, value func(ClientFeatures) float64) []Assignment {
	out := make([]Assignment, len(cohorts))
	points := make([]Point, len(cohorts))
	for i, c := range cohorts {
		out[i] = Assignment{AgeGroup: c.AgeGroup, ClientID: c.ClientID, X: float64(c.Count), Y: value(c)}
		points[i] = Point{X: out[i].X, Y: out[i].Y}
	}
	labels := KMeans(standardize(points), Clusters, Seed)
	for i := range out {
		out[i].Cluster = labels[i]
	}
	return out
}

// standardize rescales each axis to zero mean and unit variance so counts and
// amounts weigh equally. Constant axes collapse to zero.
func standardize(points []Point) []Point {
	if len(points) == 0 {
		return points
	}
	var mx, my float64
	for _, p := range points {
		mx += p.X
		my += p.Y
	}
	n := float64(len(points))
	mx, my = mx/n, my/n
	var vx, vy float64
	for _, p := range points {
		vx += (p.X - mx) * (p.X - mx)
		vy += (p.Y - my) * (p.Y - my)
	}
	sx, sy := math.Sqrt(vx/n), math.Sqrt(vy/n)

	out := make([]Point, len(points))
	for i, p := range points {
		if sx > 0 {
			out[i].X = (p.X - mx) / sx
		}
		if sy > 0 {
			out[i].Y = (p.Y - my) / sy
		}
	}
	return out
}

// Initialize loads the persisted snapshot, or segments all clients and every
// merchant group, then persists the result.
func (a *Aggregator) Initialize(ctx context.Context) error {
	if err := a.LoadFromCache(ctx); err == nil {
		return nil
	} else if !cache.IsMiss(err) {
		a.log.Warn("snapshot unusable, recomputing", "error", err)
	}

	a.precompute(nil)
	groups := a.Groups()
	err := warmup.Batch(ctx, a.cfg.BatchPool, groups, func(_ context.Context, g string) error {
		a.precompute(&g)
		return nil
	})
	if err != nil {
		return fmt.Errorf("precompute groups: %w", err)
	}

	if err := a.Persist(); err != nil {
		a.log.Warn("failed to persist views, next start recomputes them", "error", err)
	}
	a.Seal()
	a.log.Info("precomputed views", "groups", len(groups))
	return nil
}

func (a *Aggregator) precompute(group *string) {
	a.Cohorts(group)
	a.ByTotalValue(group)
	a.ByAverageValue(group)
}

// Seal makes every memo map read-only.
func (a *Aggregator) Seal() {
	a.cohorts.Seal()
	a.byTotal.Seal()
	a.byAverage.Seal()
}

// Degrade drops the data and every stored view so each query returns its
// empty value. It must not run concurrently with queries.
func (a *Aggregator) Degrade() {
	a.index(nil)
	a.views = newViews(nil)
	a.Seal()
}
