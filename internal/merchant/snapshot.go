package merchant

import (
	"context"
	"fmt"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/memo"
)

type snapshot struct {
	Overview       []memo.Entry[[]GroupShare]
	Merchants      []memo.Entry[[]MerchantTotal]
	MostFrequent   []memo.Entry[Ranking]
	MostValuable   []memo.Entry[Ranking]
	MostUsed       []memo.Entry[Ranking]
	GroupUserCount []memo.Entry[Ranking]
	GroupUserValue []memo.Entry[Ranking]
	SiteUserCount  []memo.Entry[Ranking]
	SiteUserValue  []memo.Entry[Ranking]
	Summary        []memo.Entry[KPI]
}

// Persist writes the memo snapshot.
func (a *Aggregator) Persist() error {
	return cache.Save(a.cfg.Store, cache.MerchantTabCaches, cache.Object[snapshot](), snapshot{
		Overview:       a.overview.Entries(),
		Merchants:      a.merchants.Entries(),
		MostFrequent:   a.mostFrequent.Entries(),
		MostValuable:   a.mostValuable.Entries(),
		MostUsed:       a.mostUsed.Entries(),
		GroupUserCount: a.groupUserCount.Entries(),
		GroupUserValue: a.groupUserValue.Entries(),
		SiteUserCount:  a.siteUserCount.Entries(),
		SiteUserValue:  a.siteUserValue.Entries(),
		Summary:        a.summary.Entries(),
	})
}

// LoadFromCache restores the memo maps from disk and seals them.
func (a *Aggregator) LoadFromCache(_ context.Context) error {
	snap, err := cache.Load(a.cfg.Store, cache.MerchantTabCaches, cache.Object[snapshot]())
	if err != nil {
		return err
	}
	errs := []error{
		a.overview.Restore(snap.Overview),
		a.merchants.Restore(snap.Merchants),
		a.mostFrequent.Restore(snap.MostFrequent),
		a.mostValuable.Restore(snap.MostValuable),
		a.mostUsed.Restore(snap.MostUsed),
		a.groupUserCount.Restore(snap.GroupUserCount),
		a.groupUserValue.Restore(snap.GroupUserValue),
		a.siteUserCount.Restore(snap.SiteUserCount),
		a.siteUserValue.Restore(snap.SiteUserValue),
		a.summary.Restore(snap.Summary),
	}
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("restore merchant snapshot: %w", err)
		}
	}
	a.Seal()
	a.log.Info("loaded snapshot", "groups", a.mostUsed.Len(), "merchants", a.summary.Len())
	return nil
}
