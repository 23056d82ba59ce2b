package cluster

import (
	"context"
	"fmt"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/memo"
)

type snapshot struct {
	Cohorts   []memo.Entry[[]ClientFeatures]
	ByTotal   []memo.Entry[[]Assignment]
	ByAverage []memo.Entry[[]Assignment]
}

// Persist writes the memo snapshot.
func (a *Aggregator) Persist() error {
	return cache.Save(a.cfg.Store, cache.ClusterTabCaches, cache.Object[snapshot](), snapshot{
		Cohorts:   a.cohorts.Entries(),
		ByTotal:   a.byTotal.Entries(),
		ByAverage: a.byAverage.Entries(),
	})
}

// LoadFromCache restores the memo maps from disk and seals them.
func (a *Aggregator) LoadFromCache(_ context.Context) error {
	snap, err := cache.Load(a.cfg.Store, cache.ClusterTabCaches, cache.Object[snapshot]())
	if err != nil {
		return err
	}
	for _, err := range []error{
		a.cohorts.Restore(snap.Cohorts),
		a.byTotal.Restore(snap.ByTotal),
		a.byAverage.Restore(snap.ByAverage),
	} {
		if err != nil {
			return fmt.Errorf("restore cluster snapshot: %w", err)
		}
	}
	a.Seal()
	a.log.Info("loaded snapshot", "views", a.cohorts.Len())
	return nil
}
