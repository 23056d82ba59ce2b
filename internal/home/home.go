// Package home implements the geography/home tab aggregator: regional KPIs,
// top entities and expenditure breakdowns, memoized per region filter.
package home

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/common"
	"github.com/Veraticus/spice-dash/internal/memo"
	"github.com/Veraticus/spice-dash/internal/model"
	"github.com/Veraticus/spice-dash/internal/table"
	"github.com/Veraticus/spice-dash/internal/warmup"
	"github.com/alitto/pond/v2"
)

const name = "home"

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

// Aggregator owns the home tab views.
type Aggregator struct {
	cfg      Config
	log      *slog.Logger
	byRegion map[string][]model.ProfiledTransaction
	regions  []string

	views

	stateTotals []StateTotal
}

// New creates an aggregator over cfg.Rows. Nothing is computed until
// Initialize or the first query.
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

type views struct {
	overview   *memo.Map[KPI]
	byUser     *memo.Map[[]UserSpending]
	byMerchant *memo.Map[[]MerchantTotal]
	byHour     *memo.Map[[]HourBucket]
	byGender   *memo.Map[map[string]float64]
	byAge      *memo.Map[map[string]float64]
	byChannel  *memo.Map[map[string]float64]
	errorsMemo *memo.Map[ErrorSummary]
}

func newViews(overflow *memo.Overflow) views {
	return views{
		overview:   memo.NewMap[KPI](name, "overview", overflow),
		byUser:     memo.NewMap[[]UserSpending](name, "spending_by_user", overflow),
		byMerchant: memo.NewMap[[]MerchantTotal](name, "merchant_totals", overflow),
		byHour:     memo.NewMap[[]HourBucket](name, "transactions_by_hour", overflow),
		byGender:   memo.NewMap[map[string]float64](name, "expenditures_by_gender", overflow),
		byAge:      memo.NewMap[map[string]float64](name, "expenditures_by_age", overflow),
		byChannel:  memo.NewMap[map[string]float64](name, "expenditures_by_channel", overflow),
		errorsMemo: memo.NewMap[ErrorSummary](name, "error_summary", overflow),
	}
}

func (a *Aggregator) index(rows []model.ProfiledTransaction) {
	a.cfg.Rows = rows
	a.byRegion = table.Index(rows, func(r model.ProfiledTransaction) string { return r.Transaction.StateName })
	a.regions = make([]string, 0, len(a.byRegion))
	for r := range a.byRegion {
		a.regions = append(a.regions, r)
	}
	sort.Strings(a.regions)
}

// Regions lists every region present in the data, sorted.
func (a *Aggregator) Regions() []string {
	return slices.Clone(a.regions)
}

func (a *Aggregator) rows(k memo.Key) []model.ProfiledTransaction {
	if k.Kind == memo.KindAll {
		return a.cfg.Rows
	}
	return a.byRegion[k.Text]
}

func amount(r model.ProfiledTransaction) float64 { return r.Transaction.Amount }

// Overview returns count, sum and mean for region (nil for all regions).
func (a *Aggregator) Overview(region *string) KPI {
	k := memo.OptionalRegion(region)
	return a.overview.GetOrCompute(k, func() KPI {
		s := table.Total(a.rows(k), amount)
		return KPI{Count: s.Count, Sum: s.Sum, Mean: s.Mean()}
	})
}

// SpendingByUser returns client totals sorted by spending, highest first.
func (a *Aggregator) SpendingByUser(region *string) []UserSpending {
	k := memo.OptionalRegion(region)
	return a.byUser.GetOrCompute(k, func() []UserSpending {
		groups := table.Group(a.rows(k), func(r model.ProfiledTransaction) (int64, bool) {
			return r.Transaction.ClientID, true
		}, amount)
		sorted := table.Sorted(groups, table.BySum)
		out := make([]UserSpending, len(sorted))
		for i, g := range sorted {
			out[i] = UserSpending{ClientID: g.Key, Count: g.Count, Sum: g.Sum}
		}
		return out
	})
}

// MerchantTotals returns merchant totals sorted by value, highest first.
func (a *Aggregator) MerchantTotals(region *string) []MerchantTotal {
	k := memo.OptionalRegion(region)
	return a.byMerchant.GetOrCompute(k, func() []MerchantTotal {
		groups := table.Group(a.rows(k), func(r model.ProfiledTransaction) (int64, bool) {
			return r.Transaction.MerchantID, true
		}, amount)
		sorted := table.Sorted(groups, table.BySum)
		out := make([]MerchantTotal, len(sorted))
		for i, g := range sorted {
			out[i] = MerchantTotal{MerchantID: g.Key, Count: g.Count, Sum: g.Sum}
		}
		return out
	})
}

// TransactionsByHour returns 24 buckets, one per hour of day.
func (a *Aggregator) TransactionsByHour(region *string) []HourBucket {
	k := memo.OptionalRegion(region)
	return a.byHour.GetOrCompute(k, func() []HourBucket {
		out := make([]HourBucket, 24)
		for h := range out {
			out[h].Hour = h
		}
		for _, r := range a.rows(k) {
			b := &out[r.Transaction.Hour()]
			b.Count++
			b.Sum += r.Transaction.Amount
		}
		return out
	})
}

// MostValuableMerchant is the merchant with the highest total amount.
func (a *Aggregator) MostValuableMerchant(region *string) Highlight {
	totals := a.MerchantTotals(region)
	if len(totals) == 0 {
		return NoData
	}
	top := totals[0]
	return Highlight{
		ID:    top.MerchantID,
		Label: fmt.Sprintf("Merchant %d", top.MerchantID),
		Value: FormatMoney(top.Sum),
		Raw:   top.Sum,
	}
}

// MostVisitedMerchant is the merchant with the most transactions.
func (a *Aggregator) MostVisitedMerchant(region *string) Highlight {
	totals := a.MerchantTotals(region)
	if len(totals) == 0 {
		return NoData
	}
	groups := make(map[int64]table.Stats, len(totals))
	for _, t := range totals {
		groups[t.MerchantID] = table.Stats{Count: t.Count, Sum: t.Sum}
	}
	top, _ := table.ArgMax(groups, table.ByCount)
	return Highlight{
		ID:    top.Key,
		Label: fmt.Sprintf("Merchant %d", top.Key),
		Value: fmt.Sprintf("%d transactions", top.Count),
		Raw:   float64(top.Count),
	}
}

// TopSpendingUser is the client with the highest total spending.
func (a *Aggregator) TopSpendingUser(region *string) Highlight {
	users := a.SpendingByUser(region)
	if len(users) == 0 {
		return NoData
	}
	top := users[0]
	return Highlight{
		ID:    top.ClientID,
		Label: fmt.Sprintf("Client %d", top.ClientID),
		Value: FormatMoney(top.Sum),
		Raw:   top.Sum,
	}
}

// PeakHour is the hour of day with the most transactions.
func (a *Aggregator) PeakHour(region *string) Highlight {
	buckets := a.TransactionsByHour(region)
	best := -1
	for i, b := range buckets {
		if b.Count > 0 && (best < 0 || b.Count > buckets[best].Count) {
			best = i
		}
	}
	if best < 0 {
		return NoData
	}
	b := buckets[best]
	return Highlight{
		ID:    int64(b.Hour),
		Label: fmt.Sprintf("%02d:00-%02d:59", b.Hour, b.Hour),
		Value: fmt.Sprintf("%d transactions", b.Count),
		Raw:   float64(b.Count),
	}
}

func (a *Aggregator) breakdown(m *memo.Map[map[string]float64], region *string, label func(model.ProfiledTransaction) string) map[string]float64 {
	k := memo.OptionalRegion(region)
	return m.GetOrCompute(k, func() map[string]float64 {
		out := make(map[string]float64)
		for _, r := range a.rows(k) {
			out[label(r)] += r.Transaction.Amount
		}
		return out
	})
}

// ExpendituresByGender sums amounts per gender ("Unknown" for unmatched users).
// The values add up to the region total.
func (a *Aggregator) ExpendituresByGender(region *string) map[string]float64 {
	return a.breakdown(a.byGender, region, model.ProfiledTransaction.GenderLabel)
}

// ExpendituresByAge sums amounts per age decade.
func (a *Aggregator) ExpendituresByAge(region *string) map[string]float64 {
	return a.breakdown(a.byAge, region, model.ProfiledTransaction.AgeLabel)
}

// ExpendituresByChannel sums amounts for online versus in-store transactions.
func (a *Aggregator) ExpendituresByChannel(region *string) map[string]float64 {
	return a.breakdown(a.byChannel, region, func(r model.ProfiledTransaction) string {
		return r.Transaction.Channel()
	})
}

// ErrorSummary summarizes transactions flagged with an error in region. A row
// flagged with several comma-separated kinds counts once per kind in ByKind.
func (a *Aggregator) ErrorSummary(region *string) ErrorSummary {
	k := memo.OptionalRegion(region)
	return a.errorsMemo.GetOrCompute(k, func() ErrorSummary {
		rows := a.rows(k)
		out := ErrorSummary{ByKind: make(map[string]int64)}
		for _, r := range rows {
			if !r.Transaction.HasError() {
				continue
			}
			out.Count++
			out.Amount += r.Transaction.Amount
			for _, kind := range strings.Split(*r.Transaction.Errors, ",") {
				if kind = strings.TrimSpace(kind); kind != "" {
					out.ByKind[kind]++
				}
			}
		}
		if len(rows) > 0 {
			out.Share = float64(out.Count) / float64(len(rows))
		}
		return out
	})
}

// StateTotals is the per-region map data, sorted by state name.
func (a *Aggregator) StateTotals() []StateTotal {
	if a.stateTotals != nil {
		return a.stateTotals
	}
	return a.computeStateTotals()
}

func (a *Aggregator) computeStateTotals() []StateTotal {
	out := make([]StateTotal, 0, len(a.regions))
	for _, region := range a.regions {
		rows := a.byRegion[region]
		var (
			s        table.Stats
			lat, lon float64
			located  int
		)
		for _, r := range rows {
			s.Add(r.Transaction.Amount)
			if r.Transaction.Latitude != nil && r.Transaction.Longitude != nil {
				lat += *r.Transaction.Latitude
				lon += *r.Transaction.Longitude
				located++
			}
		}
		st := StateTotal{
			State:  region,
			Count:  s.Count,
			Sum:    s.Sum,
			Mean:   s.Mean(),
			Online: region == model.OnlineState,
		}
		if located > 0 {
			clat, clon := lat/float64(located), lon/float64(located)
			st.Latitude, st.Longitude = &clat, &clon
		}
		out = append(out, st)
	}
	return out
}

// Initialize loads the persisted snapshot, or precomputes every view and
// persists it. The all-regions pass completes before any region pass starts.
func (a *Aggregator) Initialize(ctx context.Context) error {
	if err := a.LoadFromCache(ctx); err == nil {
		return nil
	} else if !cache.IsMiss(err) {
		a.log.Warn("snapshot unusable, recomputing", "error", err)
	}

	a.precompute(nil)
	regions := a.Regions()
	err := warmup.Batch(ctx, a.cfg.BatchPool, regions, func(_ context.Context, region string) error {
		a.precompute(&region)
		return nil
	})
	if err != nil {
		return fmt.Errorf("precompute regions: %w", err)
	}
	a.stateTotals = a.computeStateTotals()

	if err := a.Persist(); err != nil {
		a.log.Warn("failed to persist views, next start recomputes them", "error", err)
	}
	a.Seal()
	a.log.Info("precomputed views", "regions", len(regions))
	return nil
}

func (a *Aggregator) precompute(region *string) {
	a.Overview(region)
	a.SpendingByUser(region)
	a.MerchantTotals(region)
	a.TransactionsByHour(region)
	a.ExpendituresByGender(region)
	a.ExpendituresByAge(region)
	a.ExpendituresByChannel(region)
	a.ErrorSummary(region)
}

// Seal makes every memo map read-only.
func (a *Aggregator) Seal() {
	a.overview.Seal()
	a.byUser.Seal()
	a.byMerchant.Seal()
	a.byHour.Seal()
	a.byGender.Seal()
	a.byAge.Seal()
	a.byChannel.Seal()
	a.errorsMemo.Seal()
}

// Degrade drops the data and every stored view so each query returns its
// empty value. It must not run concurrently with queries.
func (a *Aggregator) Degrade() {
	a.index(nil)
	a.views = newViews(nil)
	a.stateTotals = []StateTotal{}
	a.Seal()
}
