package user

import (
	"context"
	"fmt"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/memo"
	"github.com/Veraticus/spice-dash/internal/model"
)

type snapshot struct {
	Transactions []memo.Entry[[]model.Transaction]
	Breakdown    []memo.Entry[[]MerchantSpending]
	Monthly      []memo.Entry[[]MonthSpending]
	Summary      []memo.Entry[KPI]
}

// Persist writes the memo snapshot.
func (a *Aggregator) Persist() error {
	return cache.Save(a.cfg.Store, cache.UserTabCaches, cache.Object[snapshot](), snapshot{
		Transactions: a.transactions.Entries(),
		Breakdown:    a.breakdown.Entries(),
		Monthly:      a.monthly.Entries(),
		Summary:      a.summary.Entries(),
	})
}

// LoadFromCache restores the memo maps from disk and seals them.
func (a *Aggregator) LoadFromCache(_ context.Context) error {
	snap, err := cache.Load(a.cfg.Store, cache.UserTabCaches, cache.Object[snapshot]())
	if err != nil {
		return err
	}
	for _, err := range []error{
		a.transactions.Restore(snap.Transactions),
		a.breakdown.Restore(snap.Breakdown),
		a.monthly.Restore(snap.Monthly),
		a.summary.Restore(snap.Summary),
	} {
		if err != nil {
			return fmt.Errorf("restore user snapshot: %w", err)
		}
	}
	a.Seal()
	a.log.Info("loaded snapshot", "users", a.summary.Len())
	return nil
}
