// Package user implements the per-user tab aggregator. Every known user is
// materialized during warm-up so lookups by user or card id never group rows
// on the request path.
package user

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/common"
	"github.com/Veraticus/spice-dash/internal/memo"
	"github.com/Veraticus/spice-dash/internal/model"
	"github.com/Veraticus/spice-dash/internal/table"
	"github.com/Veraticus/spice-dash/internal/warmup"
	"github.com/alitto/pond/v2"
)

const name = "user"

const monthLayout = "2006-01"

// MerchantSpending is one (merchant, category) row of a user's breakdown.
type MerchantSpending struct {
	Group      string
	MerchantID int64
	MCC        int32
	Count      int64
	Sum        float64
}

// MonthSpending is a user's activity during one calendar month.
type MonthSpending struct {
	Month string
	Count int64
	Sum   float64
}

// KPI summarizes one user. Found is false when the user could not be resolved.
type KPI struct {
	ClientID int64
	Count    int64
	Cards    int
	Sum      float64
	Mean     float64
	Found    bool
}

// Config configures the aggregator.
type Config struct {
	Store     *cache.Store
	BatchPool pond.Pool
	Overflow  *memo.Overflow
	Logger    *slog.Logger
	// Rows is the transactions ⋈ categories join.
	Rows  []model.CategorizedTransaction
	Cards []model.Card
	// Users adds clients that have neither transactions nor cards.
	Users []model.User
}

// Validate fills defaults.
func (c *Config) Validate() error {
	if c.Store == nil {
		return errors.New("cache store is required")
	}
	c.Logger = common.OrDefault(c.Logger)
	return nil
}

// Aggregator owns the user tab views.
type Aggregator struct {
	cfg        Config
	log        *slog.Logger
	byUser     map[int64][]model.CategorizedTransaction
	cardsByID  map[int64]model.Card
	cardsOwned map[int64][]model.Card
	users      []int64

	views
}

type views struct {
	transactions *memo.Map[[]model.Transaction]
	breakdown    *memo.Map[[]MerchantSpending]
	monthly      *memo.Map[[]MonthSpending]
	summary      *memo.Map[KPI]
}

func newViews(overflow *memo.Overflow) views {
	return views{
		transactions: memo.NewMap[[]model.Transaction](name, "transactions", overflow),
		breakdown:    memo.NewMap[[]MerchantSpending](name, "merchant_breakdown", overflow),
		monthly:      memo.NewMap[[]MonthSpending](name, "spending_by_month", overflow),
		summary:      memo.NewMap[KPI](name, "summary", overflow),
	}
}

// New creates an aggregator over cfg.Rows and cfg.Cards.
func New(cfg Config) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Aggregator{
		cfg:   cfg,
		log:   cfg.Logger.With("aggregator", name),
		views: newViews(cfg.Overflow),
	}
	a.index(cfg.Rows, cfg.Cards, cfg.Users)
	return a, nil
}

func (a *Aggregator) index(rows []model.CategorizedTransaction, cards []model.Card, users []model.User) {
	a.byUser = table.Index(rows, func(r model.CategorizedTransaction) int64 { return r.Transaction.ClientID })
	a.cardsByID = make(map[int64]model.Card, len(cards))
	a.cardsOwned = make(map[int64][]model.Card)
	for _, c := range cards {
		a.cardsByID[c.ID] = c
		a.cardsOwned[c.ClientID] = append(a.cardsOwned[c.ClientID], c)
	}

	known := make(map[int64]struct{}, len(a.byUser)+len(a.cardsOwned))
	for id := range a.byUser {
		known[id] = struct{}{}
	}
	for id := range a.cardsOwned {
		known[id] = struct{}{}
	}
	for _, u := range users {
		known[u.ID] = struct{}{}
	}
	a.users = make([]int64, 0, len(known))
	for id := range known {
		a.users = append(a.users, id)
	}
	slices.Sort(a.users)
}

// Users lists every client id seen in the users table, transactions or cards,
// ascending.
func (a *Aggregator) Users() []int64 {
	return slices.Clone(a.users)
}

// Resolve picks the client to show. A card id takes priority over a user id
// when both are given; an unknown card does not fall back to the user id.
func (a *Aggregator) Resolve(userID, cardID *int64) (int64, bool) {
	if cardID != nil {
		c, ok := a.cardsByID[*cardID]
		if !ok {
			return 0, false
		}
		return c.ClientID, true
	}
	if userID == nil {
		return 0, false
	}
	if _, ok := slices.BinarySearch(a.users, *userID); !ok {
		return 0, false
	}
	return *userID, true
}

// Transactions returns the user's transactions in date order.
func (a *Aggregator) Transactions(userID int64) []model.Transaction {
	return a.transactions.GetOrCompute(memo.User(userID), func() []model.Transaction {
		rows := a.byUser[userID]
		out := make([]model.Transaction, len(rows))
		for i, r := range rows {
			out[i] = r.Transaction
		}
		slices.SortStableFunc(out, func(x, y model.Transaction) int { return x.Date.Compare(y.Date) })
		return out
	})
}

// MerchantBreakdown aggregates the user's spending per merchant and category,
// highest total first.
func (a *Aggregator) MerchantBreakdown(userID int64) []MerchantSpending {
	return a.breakdown.GetOrCompute(memo.User(userID), func() []MerchantSpending {
		type key struct {
			merchant int64
			mcc      int32
		}
		groups := make(map[key]*MerchantSpending)
		for _, r := range a.byUser[userID] {
			k := key{r.Transaction.MerchantID, r.Transaction.MCC}
			s, ok := groups[k]
			if !ok {
				s = &MerchantSpending{MerchantID: k.merchant, MCC: k.mcc, Group: r.Group()}
				groups[k] = s
			}
			s.Count++
			s.Sum += r.Transaction.Amount
		}
		out := make([]MerchantSpending, 0, len(groups))
		for _, s := range groups {
			out = append(out, *s)
		}
		slices.SortFunc(out, func(x, y MerchantSpending) int {
			if c := cmp.Compare(y.Sum, x.Sum); c != 0 {
				return c
			}
			if c := cmp.Compare(x.MerchantID, y.MerchantID); c != 0 {
				return c
			}
			return cmp.Compare(x.MCC, y.MCC)
		})
		return out
	})
}

// SpendingByMonth returns the user's spending per calendar month, oldest first.
func (a *Aggregator) SpendingByMonth(userID int64) []MonthSpending {
	return a.monthly.GetOrCompute(memo.User(userID), func() []MonthSpending {
		groups := table.Group(a.byUser[userID], func(r model.CategorizedTransaction) (string, bool) {
			return r.Transaction.Date.Format(monthLayout), true
		}, func(r model.CategorizedTransaction) float64 { return r.Transaction.Amount })
		months := table.ByKey(groups)
		out := make([]MonthSpending, len(months))
		for i, m := range months {
			out[i] = MonthSpending{Month: m.Key, Count: m.Count, Sum: m.Sum}
		}
		return out
	})
}

// Cards returns the cards owned by the user.
func (a *Aggregator) Cards(userID int64) []model.Card {
	return slices.Clone(a.cardsOwned[userID])
}

// Summary returns the KPIs of the resolved user, or a zero KPI when neither
// id resolves.
func (a *Aggregator) Summary(userID, cardID *int64) KPI {
	id, ok := a.Resolve(userID, cardID)
	if !ok {
		return KPI{}
	}
	return a.summary.GetOrCompute(memo.User(id), func() KPI {
		s := table.Total(a.byUser[id], func(r model.CategorizedTransaction) float64 { return r.Transaction.Amount })
		return KPI{
			ClientID: id,
			Count:    s.Count,
			Cards:    len(a.cardsOwned[id]),
			Sum:      s.Sum,
			Mean:     s.Mean(),
			Found:    true,
		}
	})
}

// Initialize loads the persisted snapshot, or materializes every user and
// persists the result.
func (a *Aggregator) Initialize(ctx context.Context) error {
	if err := a.LoadFromCache(ctx); err == nil {
		return nil
	} else if !cache.IsMiss(err) {
		a.log.Warn("snapshot unusable, recomputing", "error", err)
	}

	users := a.Users()
	err := warmup.Batch(ctx, a.cfg.BatchPool, users, func(_ context.Context, id int64) error {
		a.Transactions(id)
		a.MerchantBreakdown(id)
		a.SpendingByMonth(id)
		a.Summary(&id, nil)
		return nil
	})
	if err != nil {
		return fmt.Errorf("precompute users: %w", err)
	}

	if err := a.Persist(); err != nil {
		a.log.Warn("failed to persist views, next start recomputes them", "error", err)
	}
	a.Seal()
	a.log.Info("precomputed views", "users", len(users))
	return nil
}

// Seal makes every memo map read-only.
func (a *Aggregator) Seal() {
	a.transactions.Seal()
	a.breakdown.Seal()
	a.monthly.Seal()
	a.summary.Seal()
}

// Degrade drops the data and every stored view so each query returns its
// empty value. It must not run concurrently with queries.
func (a *Aggregator) Degrade() {
	a.index(nil, nil, nil)
	a.views = newViews(nil)
	a.Seal()
}
