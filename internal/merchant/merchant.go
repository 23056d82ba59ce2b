// Package merchant implements the merchant tab aggregator: rankings of
// merchants and users, globally, per merchant group and per merchant.
package merchant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/common"
	"github.com/Veraticus/spice-dash/internal/memo"
	"github.com/Veraticus/spice-dash/internal/model"
	"github.com/Veraticus/spice-dash/internal/table"
	"github.com/Veraticus/spice-dash/internal/warmup"
	"github.com/alitto/pond/v2"
)

const name = "merchant"

// OtherGroup labels the overview row that collects small groups.
const OtherGroup = "OTHER"

// UnknownGroup labels transactions whose category code has no group.
const UnknownGroup = "Unknown"

// otherThreshold is the share of transactions below which a group is folded
// into OtherGroup.
const otherThreshold = 0.01

// Config configures the aggregator.
type Config struct {
	Store     *cache.Store
	BatchPool pond.Pool
	Overflow  *memo.Overflow
	Logger    *slog.Logger
	// Rows is the transactions ⋈ categories join.
	Rows []model.CategorizedTransaction
	// TopMerchants is how many of the busiest merchants are precomputed.
	TopMerchants int
}

// Validate fills defaults.
func (c *Config) Validate() error {
	if c.Store == nil {
		return errors.New("cache store is required")
	}
	if c.TopMerchants < 0 {
		return fmt.Errorf("%w: top merchants must not be negative", common.ErrInvalidConfig)
	}
	c.Logger = common.OrDefault(c.Logger)
	return nil
}

// Aggregator owns the merchant tab views.
type Aggregator struct {
	cfg        Config
	log        *slog.Logger
	rows       []model.CategorizedTransaction
	byGroup    map[string][]model.CategorizedTransaction
	byMerchant map[int64][]model.CategorizedTransaction
	groups     []string

	views
}

type views struct {
	overview       *memo.Map[[]GroupShare]
	merchants      *memo.Map[[]MerchantTotal]
	mostFrequent   *memo.Map[Ranking]
	mostValuable   *memo.Map[Ranking]
	mostUsed       *memo.Map[Ranking]
	groupUserCount *memo.Map[Ranking]
	groupUserValue *memo.Map[Ranking]
	siteUserCount  *memo.Map[Ranking]
	siteUserValue  *memo.Map[Ranking]
	summary        *memo.Map[KPI]
}

func newViews(overflow *memo.Overflow) views {
	return views{
		overview:       memo.NewMap[[]GroupShare](name, "group_overview", overflow),
		merchants:      memo.NewMap[[]MerchantTotal](name, "merchant_totals", overflow),
		mostFrequent:   memo.NewMap[Ranking](name, "most_frequent_merchant", overflow),
		mostValuable:   memo.NewMap[Ranking](name, "most_valuable_merchant", overflow),
		mostUsed:       memo.NewMap[Ranking](name, "most_used_merchant_in_group", overflow),
		groupUserCount: memo.NewMap[Ranking](name, "user_most_transactions_in_group", overflow),
		groupUserValue: memo.NewMap[Ranking](name, "user_highest_value_in_group", overflow),
		siteUserCount:  memo.NewMap[Ranking](name, "user_most_transactions_at_merchant", overflow),
		siteUserValue:  memo.NewMap[Ranking](name, "user_highest_value_at_merchant", overflow),
		summary:        memo.NewMap[KPI](name, "merchant_summary", overflow),
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

func groupOf(r model.CategorizedTransaction) string {
	if g := r.Group(); g != "" {
		return g
	}
	return UnknownGroup
}

func (a *Aggregator) index(rows []model.CategorizedTransaction) {
	a.rows = rows
	a.byGroup = table.Index(rows, groupOf)
	a.byMerchant = table.Index(rows, func(r model.CategorizedTransaction) int64 { return r.Transaction.MerchantID })
	a.groups = make([]string, 0, len(a.byGroup))
	for g := range a.byGroup {
		a.groups = append(a.groups, g)
	}
	sort.Strings(a.groups)
}

// Groups lists the merchant groups present in the data, sorted.
func (a *Aggregator) Groups() []string {
	out := make([]string, len(a.groups))
	copy(out, a.groups)
	return out
}

func (a *Aggregator) groupRows(k memo.Key) []model.CategorizedTransaction {
	if k.Kind == memo.KindAll {
		return a.rows
	}
	return a.byGroup[k.Text]
}

func amount(r model.CategorizedTransaction) float64 { return r.Transaction.Amount }

func byMerchantID(r model.CategorizedTransaction) (int64, bool) {
	return r.Transaction.MerchantID, true
}

func byClientID(r model.CategorizedTransaction) (int64, bool) { return r.Transaction.ClientID, true }

// rank returns the arg-max of rows grouped by key, or missing when rows is empty.
func rank(rows []model.CategorizedTransaction, key func(model.CategorizedTransaction) (int64, bool), metric func(table.Stats) float64, missing Ranking) Ranking {
	top, ok := table.ArgMax(table.Group(rows, key, amount), metric)
	if !ok {
		return missing
	}
	return Ranking{ID: top.Key, Value: metric(top.Stats), Outcome: OutcomeFound}
}

// GroupOverview returns every merchant group with its share of transactions,
// largest first. Groups below 1% of all transactions are summed into a
// trailing OTHER row.
func (a *Aggregator) GroupOverview() []GroupShare {
	return a.overview.GetOrCompute(memo.All(), func() []GroupShare {
		total := int64(len(a.rows))
		groups := table.Group(a.rows, func(r model.CategorizedTransaction) (string, bool) {
			return groupOf(r), true
		}, amount)

		out := []GroupShare{}
		var other table.Stats
		for _, g := range table.Sorted(groups, table.ByCount) {
			share := float64(g.Count) / float64(total)
			if share < otherThreshold {
				other.Merge(g.Stats)
				continue
			}
			out = append(out, GroupShare{Group: g.Key, Count: g.Count, Sum: g.Sum, Share: share})
		}
		if other.Count > 0 {
			out = append(out, GroupShare{
				Group: OtherGroup,
				Count: other.Count,
				Sum:   other.Sum,
				Share: float64(other.Count) / float64(total),
			})
		}
		return out
	})
}

// TopMerchants returns the n highest-value merchants of group (nil for all).
// n <= 0 returns every merchant.
func (a *Aggregator) TopMerchants(group *string, n int) []MerchantTotal {
	k := memo.OptionalGroup(group)
	all := a.merchants.GetOrCompute(k, func() []MerchantTotal {
		sorted := table.Sorted(table.Group(a.groupRows(k), byMerchantID, amount), table.BySum)
		out := make([]MerchantTotal, len(sorted))
		for i, m := range sorted {
			out[i] = MerchantTotal{MerchantID: m.Key, Count: m.Count, Sum: m.Sum}
		}
		return out
	})
	if n <= 0 {
		return all
	}
	return table.Head(all, n)
}

// MostFrequentMerchant is the merchant with the most transactions in group
// (nil for all groups).
func (a *Aggregator) MostFrequentMerchant(group *string) Ranking {
	k := memo.OptionalGroup(group)
	return a.mostFrequent.GetOrCompute(k, func() Ranking {
		return rank(a.groupRows(k), byMerchantID, table.ByCount, emptyGroup)
	})
}

// MostValuableMerchant is the merchant with the highest total amount in group
// (nil for all groups).
func (a *Aggregator) MostValuableMerchant(group *string) Ranking {
	k := memo.OptionalGroup(group)
	return a.mostValuable.GetOrCompute(k, func() Ranking {
		return rank(a.groupRows(k), byMerchantID, table.BySum, emptyGroup)
	})
}

// MostFrequentlyUsedMerchantInGroup is the merchant of group used by the most
// distinct clients. Value is the client count. MostFrequentMerchant already
// ranks the group by transaction count, so this ranking measures reach: a
// merchant one client visits daily loses to one many clients visit once.
func (a *Aggregator) MostFrequentlyUsedMerchantInGroup(group string) Ranking {
	k := memo.MerchantGroup(group)
	return a.mostUsed.GetOrCompute(k, func() Ranking {
		rows := a.groupRows(k)
		if len(rows) == 0 {
			return emptyGroup
		}
		clients := make(map[int64]map[int64]struct{})
		for _, r := range rows {
			m := r.Transaction.MerchantID
			if clients[m] == nil {
				clients[m] = make(map[int64]struct{})
			}
			clients[m][r.Transaction.ClientID] = struct{}{}
		}
		counts := make(map[int64]table.Stats, len(clients))
		for m, set := range clients {
			counts[m] = table.Stats{Count: int64(len(set))}
		}
		top, _ := table.ArgMax(counts, table.ByCount)
		return Ranking{ID: top.Key, Value: float64(top.Count), Outcome: OutcomeFound}
	})
}

// UserWithMostTransactionsInGroup is the client with the most transactions in group.
func (a *Aggregator) UserWithMostTransactionsInGroup(group string) Ranking {
	k := memo.MerchantGroup(group)
	return a.groupUserCount.GetOrCompute(k, func() Ranking {
		return rank(a.groupRows(k), byClientID, table.ByCount, emptyGroup)
	})
}

// UserWithHighestValueInGroup is the client spending the most in group.
func (a *Aggregator) UserWithHighestValueInGroup(group string) Ranking {
	k := memo.MerchantGroup(group)
	return a.groupUserValue.GetOrCompute(k, func() Ranking {
		return rank(a.groupRows(k), byClientID, table.BySum, emptyGroup)
	})
}

// UserWithMostTransactionsAtMerchant is the client with the most transactions
// at merchant id.
func (a *Aggregator) UserWithMostTransactionsAtMerchant(id int64) Ranking {
	k := memo.Merchant(id)
	return a.siteUserCount.GetOrCompute(k, func() Ranking {
		return rank(a.byMerchant[id], byClientID, table.ByCount, unknownMerchant)
	})
}

// UserWithHighestValueAtMerchant is the client spending the most at merchant id.
func (a *Aggregator) UserWithHighestValueAtMerchant(id int64) Ranking {
	k := memo.Merchant(id)
	return a.siteUserValue.GetOrCompute(k, func() Ranking {
		return rank(a.byMerchant[id], byClientID, table.BySum, unknownMerchant)
	})
}

// MerchantSummary returns the KPIs of merchant id.
func (a *Aggregator) MerchantSummary(id int64) KPI {
	return a.summary.GetOrCompute(memo.Merchant(id), func() KPI {
		rows := a.byMerchant[id]
		if len(rows) == 0 {
			return KPI{MerchantID: id}
		}
		s := table.Total(rows, amount)
		users := make(map[int64]struct{})
		for _, r := range rows {
			users[r.Transaction.ClientID] = struct{}{}
		}
		return KPI{
			Group:      groupOf(rows[0]),
			MerchantID: id,
			Count:      s.Count,
			Users:      int64(len(users)),
			Sum:        s.Sum,
			Mean:       s.Mean(),
			Found:      true,
		}
	})
}

// Initialize loads the persisted snapshot, or precomputes the global views,
// every group and the busiest merchants, then persists them.
func (a *Aggregator) Initialize(ctx context.Context) error {
	if err := a.LoadFromCache(ctx); err == nil {
		return nil
	} else if !cache.IsMiss(err) {
		a.log.Warn("snapshot unusable, recomputing", "error", err)
	}

	a.GroupOverview()
	a.TopMerchants(nil, 0)
	a.MostFrequentMerchant(nil)
	a.MostValuableMerchant(nil)

	groups := a.Groups()
	err := warmup.Batch(ctx, a.cfg.BatchPool, groups, func(_ context.Context, g string) error {
		a.TopMerchants(&g, 0)
		a.MostFrequentMerchant(&g)
		a.MostValuableMerchant(&g)
		a.MostFrequentlyUsedMerchantInGroup(g)
		a.UserWithMostTransactionsInGroup(g)
		a.UserWithHighestValueInGroup(g)
		return nil
	})
	if err != nil {
		return fmt.Errorf("precompute groups: %w", err)
	}

	top := a.TopMerchants(nil, a.cfg.TopMerchants)
	err = warmup.Batch(ctx, a.cfg.BatchPool, top, func(_ context.Context, m MerchantTotal) error {
		a.MerchantSummary(m.MerchantID)
		a.UserWithMostTransactionsAtMerchant(m.MerchantID)
		a.UserWithHighestValueAtMerchant(m.MerchantID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("precompute merchants: %w", err)
	}

	if err := a.Persist(); err != nil {
		a.log.Warn("failed to persist views, next start recomputes them", "error", err)
	}
	a.Seal()
	a.log.Info("precomputed views", "groups", len(groups), "merchants", len(top))
	return nil
}

func (v views) all() []interface{ Seal() } {
	return []interface{ Seal() }{
		v.overview, v.merchants, v.mostFrequent, v.mostValuable, v.mostUsed,
		v.groupUserCount, v.groupUserValue, v.siteUserCount, v.siteUserValue, v.summary,
	}
}

// Seal makes every memo map read-only.
func (a *Aggregator) Seal() {
	for _, m := range a.views.all() {
		m.Seal()
	}
}

// Degrade drops the data and every stored view so each query returns its
// empty value. It must not run concurrently with queries.
func (a *Aggregator) Degrade() {
	a.index(nil)
	a.views = newViews(nil)
	a.Seal()
}
