package home

import (
	"context"
	"fmt"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/memo"
)

type snapshot struct {
	Overview   []memo.Entry[KPI]
	ByUser     []memo.Entry[[]UserSpending]
	ByMerchant []memo.Entry[[]MerchantTotal]
	ByHour     []memo.Entry[[]HourBucket]
	ByGender   []memo.Entry[map[string]float64]
	ByAge      []memo.Entry[map[string]float64]
	ByChannel  []memo.Entry[map[string]float64]
	Errors     []memo.Entry[ErrorSummary]
}

// Persist writes the memo snapshot and the map data.
func (a *Aggregator) Persist() error {
	snap := snapshot{
		Overview:   a.overview.Entries(),
		ByUser:     a.byUser.Entries(),
		ByMerchant: a.byMerchant.Entries(),
		ByHour:     a.byHour.Entries(),
		ByGender:   a.byGender.Entries(),
		ByAge:      a.byAge.Entries(),
		ByChannel:  a.byChannel.Entries(),
		Errors:     a.errorsMemo.Entries(),
	}
	if err := cache.Save(a.cfg.Store, cache.HomeTabCaches, cache.Object[snapshot](), snap); err != nil {
		return err
	}
	return cache.Save(a.cfg.Store, cache.HomeTabMapData, cache.Table[StateTotal](), a.StateTotals())
}

// LoadFromCache restores the memo maps and map data from disk and seals them.
func (a *Aggregator) LoadFromCache(_ context.Context) error {
	snap, err := cache.Load(a.cfg.Store, cache.HomeTabCaches, cache.Object[snapshot]())
	if err != nil {
		return err
	}
	states, err := cache.Load(a.cfg.Store, cache.HomeTabMapData, cache.Table[StateTotal]())
	if err != nil {
		return err
	}

	restores := []func() error{
		func() error { return a.overview.Restore(snap.Overview) },
		func() error { return a.byUser.Restore(snap.ByUser) },
		func() error { return a.byMerchant.Restore(snap.ByMerchant) },
		func() error { return a.byHour.Restore(snap.ByHour) },
		func() error { return a.byGender.Restore(snap.ByGender) },
		func() error { return a.byAge.Restore(snap.ByAge) },
		func() error { return a.byChannel.Restore(snap.ByChannel) },
		func() error { return a.errorsMemo.Restore(snap.Errors) },
	}
	for _, restore := range restores {
		if err := restore(); err != nil {
			return fmt.Errorf("restore home snapshot: %w", err)
		}
	}
	if states == nil {
		states = []StateTotal{}
	}
	a.stateTotals = states
	a.Seal()
	a.log.Info("loaded snapshot", "views", a.overview.Len())
	return nil
}
