// Package data owns the startup sequence of the dashboard core: cache drift
// detection, canonical tables, shared joins and the four aggregators.
package data

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/cluster"
	"github.com/Veraticus/spice-dash/internal/common"
	"github.com/Veraticus/spice-dash/internal/config"
	"github.com/Veraticus/spice-dash/internal/geo"
	"github.com/Veraticus/spice-dash/internal/home"
	"github.com/Veraticus/spice-dash/internal/loader"
	"github.com/Veraticus/spice-dash/internal/memo"
	"github.com/Veraticus/spice-dash/internal/merchant"
	"github.com/Veraticus/spice-dash/internal/metrics"
	"github.com/Veraticus/spice-dash/internal/model"
	"github.com/Veraticus/spice-dash/internal/table"
	"github.com/Veraticus/spice-dash/internal/user"
	"github.com/Veraticus/spice-dash/internal/warmup"
	"github.com/alitto/pond/v2"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Aggregator names, used for warm-up tasks and degradation reports.
const (
	HomeAggregator     = "home"
	MerchantAggregator = "merchant"
	UserAggregator     = "user"
	ClusterAggregator  = "cluster"
)

// Config configures a Manager.
type Config struct {
	Settings config.Config
	Clock    clockwork.Clock
	Logger   *slog.Logger
	// Geocoder overrides the zip centroid file of the data directory.
	Geocoder geo.Geocoder
	// OnTaskDone is called as each aggregator warm-up finishes.
	OnTaskDone func(warmup.Result)
}

// Validate fills defaults.
func (c *Config) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	c.Logger = common.OrDefault(c.Logger)
	return nil
}

// KPIs are the dataset-wide figures shown on every tab.
type KPIs struct {
	Count int64
	Sum   float64
	Mean  float64
}

// Manager holds the loaded tables, joins and aggregators.
type Manager struct {
	cfg    Config
	log    *slog.Logger
	store  *cache.Store
	loader *loader.Loader

	tables  Tables
	joins   *Joins
	kpis    KPIs
	polygon []geo.Point

	home     *home.Aggregator
	merchant *merchant.Aggregator
	user     *user.Aggregator
	cluster  *cluster.Aggregator

	overflows  []*memo.Overflow
	degraded   []string
	scratchDir string
	fromCache  bool

	mu      sync.Mutex
	started bool
}

// NewManager validates cfg and opens the cache store. Nothing is loaded until
// Start.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg: cfg,
		log: cfg.Logger.With("component", "data"),
	}
	if err := m.open(cfg.Settings.CacheDir); err != nil {
		return nil, err
	}
	return m, nil
}

// open points the manager at the cache directory dir.
func (m *Manager) open(dir string) error {
	store, err := cache.New(dir, m.cfg.Logger)
	if err != nil {
		return err
	}
	ld, err := loader.New(loader.Config{
		Store:    store,
		Clock:    m.cfg.Clock,
		Geocoder: m.cfg.Geocoder,
		Logger:   m.cfg.Logger,
		DataDir:  m.cfg.Settings.DataDir,
	})
	if err != nil {
		return err
	}
	m.store, m.loader = store, ld
	return nil
}

// openScratch moves this run onto an empty temporary cache directory. It is
// used when stale artifacts could not be removed.
func (m *Manager) openScratch() error {
	dir, err := os.MkdirTemp("", "spicedash-cache-*")
	if err != nil {
		return fmt.Errorf("create scratch cache: %w", err)
	}
	if err := m.open(dir); err != nil {
		_ = os.RemoveAll(dir)
		return err
	}
	m.scratchDir = dir
	return nil
}

// Start runs the startup sequence once. Later calls return immediately.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	start := m.cfg.Clock.Now()

	if err := m.checkDrift(); err != nil {
		return err
	}
	if err := m.loadTables(ctx); err != nil {
		return err
	}

	if m.store.Exists() {
		if err := m.loadFromCache(ctx); err != nil {
			m.log.Warn("cached views unusable, recomputing", "error", err)
			m.closeOverflows()
		} else {
			m.fromCache = true
		}
	}
	if !m.fromCache {
		if err := m.warm(ctx); err != nil {
			return err
		}
	}

	s := table.Total(m.tables.Transactions, func(t model.Transaction) float64 { return t.Amount })
	m.kpis = KPIs{Count: s.Count, Sum: s.Sum, Mean: s.Mean()}
	m.polygon = geo.RoundedRectangle(geo.OnlineRegion)
	m.started = true

	m.log.Info("data manager ready",
		"transactions", len(m.tables.Transactions),
		"from_cache", m.fromCache,
		"degraded", m.degraded,
		"duration", m.cfg.Clock.Since(start).Round(time.Millisecond))
	return nil
}

// checkDrift clears the cache when it was built for a different row count and
// records the current one. Store failures are logged: a cache that cannot be
// written is recomputed on the next start instead of failing this one.
func (m *Manager) checkDrift() error {
	rows := m.cfg.Settings.Rows
	kind := cache.Object[int64]()

	prev, err := cache.Load(m.store, cache.NumRows, kind)
	switch {
	case err == nil && prev == rows:
		return nil
	case err == nil:
		m.log.Warn("row count changed, invalidating cache", "previous", prev, "rows", rows)
		metrics.CacheInvalidations.Inc()
		if err := m.store.Clear(); err != nil {
			common.LogError(m.log, err, "failed to invalidate cache, using a scratch cache for this run", nil)
			return m.openScratch()
		}
	default:
		m.log.Debug("no row count recorded", "rows", rows, "error", err)
	}

	if err := cache.Save(m.store, cache.NumRows, kind, rows); err != nil {
		common.LogError(m.log, err, "failed to record row count", common.Fields{"rows": rows})
	}
	return nil
}

func (m *Manager) loadTables(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := m.loader.Transactions(gctx, m.cfg.Settings.Rows)
		m.tables.Transactions = txs
		return err
	})
	g.Go(func() error {
		users, err := m.loader.Users(gctx)
		m.tables.Users = users
		return err
	})
	g.Go(func() error {
		cards, err := m.loader.Cards(gctx)
		m.tables.Cards = cards
		return err
	})
	g.Go(func() error {
		codes, err := m.loader.CategoryCodes()
		m.tables.CategoryCodes = codes
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load tables: %w", err)
	}
	return nil
}

func (m *Manager) newAggregators(pool pond.Pool) error {
	m.closeOverflows()
	overflow := func() (*memo.Overflow, error) {
		o, err := memo.NewOverflow(m.cfg.Settings.OverflowMaxCost)
		if err != nil {
			return nil, err
		}
		m.overflows = append(m.overflows, o)
		return o, nil
	}

	var err error
	var o *memo.Overflow
	if o, err = overflow(); err != nil {
		return err
	}
	if m.home, err = home.New(home.Config{
		Store: m.store, BatchPool: pool, Overflow: o, Logger: m.cfg.Logger, Rows: m.joins.Profiled,
	}); err != nil {
		return err
	}
	if o, err = overflow(); err != nil {
		return err
	}
	if m.merchant, err = merchant.New(merchant.Config{
		Store: m.store, BatchPool: pool, Overflow: o, Logger: m.cfg.Logger,
		Rows: m.joins.Categorized, TopMerchants: m.cfg.Settings.TopMerchants,
	}); err != nil {
		return err
	}
	if o, err = overflow(); err != nil {
		return err
	}
	if m.user, err = user.New(user.Config{
		Store: m.store, BatchPool: pool, Overflow: o, Logger: m.cfg.Logger,
		Rows: m.joins.Categorized, Cards: m.tables.Cards, Users: m.tables.Users,
	}); err != nil {
		return err
	}
	if o, err = overflow(); err != nil {
		return err
	}
	m.cluster, err = cluster.New(cluster.Config{
		Store: m.store, BatchPool: pool, Overflow: o, Logger: m.cfg.Logger, Rows: m.joins.Profiled,
	})
	return err
}

// loadFromCache restores every aggregator from its snapshot.
func (m *Manager) loadFromCache(ctx context.Context) error {
	m.joins = PrepareJoins(m.store, m.tables, m.cfg.Logger)
	if err := m.newAggregators(nil); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.home.LoadFromCache(gctx) })
	g.Go(func() error { return m.merchant.LoadFromCache(gctx) })
	g.Go(func() error { return m.user.LoadFromCache(gctx) })
	g.Go(func() error { return m.cluster.LoadFromCache(gctx) })
	return g.Wait()
}

// warm builds the joins and runs every aggregator's Initialize concurrently.
// A failed aggregator is degraded to empty results instead of failing startup.
func (m *Manager) warm(ctx context.Context) error {
	if m.joins == nil {
		m.joins = PrepareJoins(m.store, m.tables, m.cfg.Logger)
	}

	orch, err := warmup.New(warmup.Config{
		Clock:   m.cfg.Clock,
		Logger:  m.cfg.Logger,
		OnDone:  m.cfg.OnTaskDone,
		Workers: m.cfg.Settings.Workers,
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	if err := m.newAggregators(orch.BatchPool()); err != nil {
		return err
	}

	degrade := map[string]func(){
		HomeAggregator:     m.home.Degrade,
		MerchantAggregator: m.merchant.Degrade,
		UserAggregator:     m.user.Degrade,
		ClusterAggregator:  m.cluster.Degrade,
	}
	results := orch.Run(ctx,
		warmup.Task{Name: HomeAggregator, Run: m.home.Initialize},
		warmup.Task{Name: MerchantAggregator, Run: m.merchant.Initialize},
		warmup.Task{Name: UserAggregator, Run: m.user.Initialize},
		warmup.Task{Name: ClusterAggregator, Run: m.cluster.Initialize},
	)
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		common.LogError(m.log, r.Err, "aggregator degraded to empty results", common.Fields{"aggregator": r.Name})
		degrade[r.Name]()
		m.degraded = append(m.degraded, r.Name)
	}
	return ctx.Err()
}

func (m *Manager) closeOverflows() {
	for _, o := range m.overflows {
		o.Close()
	}
	m.overflows = nil
}

// Close releases the overflow caches.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeOverflows()
	if m.scratchDir != "" {
		_ = os.RemoveAll(m.scratchDir)
		m.scratchDir = ""
	}
}

// Store returns the cache store.
func (m *Manager) Store() *cache.Store { return m.store }

// Settings returns the validated configuration.
func (m *Manager) Settings() config.Config { return m.cfg.Settings }

// Transactions returns the cleaned transactions table.
func (m *Manager) Transactions() []model.Transaction { return m.tables.Transactions }

// Users returns the cleaned users table.
func (m *Manager) Users() []model.User { return m.tables.Users }

// Cards returns the cleaned cards table.
func (m *Manager) Cards() []model.Card { return m.tables.Cards }

// CategoryCodes returns the merchant category lookup.
func (m *Manager) CategoryCodes() []model.CategoryCode { return m.tables.CategoryCodes }

// Joins returns the shared joins.
func (m *Manager) Joins() *Joins { return m.joins }

// KPIs returns the dataset-wide figures.
func (m *Manager) KPIs() KPIs { return m.kpis }

// OnlinePolygon returns the ring drawn for online transactions on the map.
func (m *Manager) OnlinePolygon() []geo.Point { return m.polygon }

// Home returns the home tab aggregator.
func (m *Manager) Home() *home.Aggregator { return m.home }

// Merchant returns the merchant tab aggregator.
func (m *Manager) Merchant() *merchant.Aggregator { return m.merchant }

// User returns the user tab aggregator.
func (m *Manager) User() *user.Aggregator { return m.user }

// Cluster returns the clustering tab aggregator.
func (m *Manager) Cluster() *cluster.Aggregator { return m.cluster }

// Degraded lists the aggregators that failed to warm up.
func (m *Manager) Degraded() []string { return m.degraded }

// FromCache reports whether every view was restored from disk.
func (m *Manager) FromCache() bool { return m.fromCache }
