package data_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/common"
	"github.com/Veraticus/spice-dash/internal/config"
	"github.com/Veraticus/spice-dash/internal/data"
	"github.com/Veraticus/spice-dash/internal/loader"
	"github.com/Veraticus/spice-dash/internal/merchant"
	"github.com/Veraticus/spice-dash/internal/metrics"
	"github.com/Veraticus/spice-dash/internal/testutil"
	"github.com/Veraticus/spice-dash/internal/warmup"
	"github.com/jonboulle/clockwork"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func managerConfig(dir string, rows int64) data.Config {
	return data.Config{
		Settings: config.Config{DataDir: dir, Rows: rows, Workers: 2},
		Clock:    clockwork.NewFakeClockAt(testutil.Now),
	}
}

func start(t *testing.T, cfg data.Config) *data.Manager {
	t.Helper()
	m, err := data.NewManager(cfg)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	require.NoError(t, m.Start(context.Background()))
	return m
}

func TestStartBuildsCompleteCache(t *testing.T) {
	dir := testutil.WriteDataset(t)
	var (
		mu   sync.Mutex
		done []string
	)
	cfg := managerConfig(dir, 0)
	cfg.OnTaskDone = func(r warmup.Result) {
		mu.Lock()
		defer mu.Unlock()
		done = append(done, r.Name)
	}

	m := start(t, cfg)

	assert.False(t, m.FromCache())
	assert.Empty(t, m.Degraded())
	assert.True(t, m.Store().Exists())
	assert.ElementsMatch(t, []string{
		data.HomeAggregator, data.MerchantAggregator, data.UserAggregator, data.ClusterAggregator,
	}, done)

	assert.Equal(t, data.KPIs{Count: 5, Sum: 295, Mean: 59}, m.KPIs())
	assert.Len(t, m.Users(), 3)
	assert.Len(t, m.Cards(), 4)
	assert.Len(t, m.CategoryCodes(), 3)
	assert.Len(t, m.OnlinePolygon(), 37)

	spending := m.Home().SpendingByUser(nil)
	require.NotEmpty(t, spending)
	assert.Equal(t, int64(1), spending[0].ClientID)
	assert.InDelta(t, 250, spending[0].Sum, 1e-9)

	// Intermediate snapshots are gone once the processed ones exist.
	for _, name := range []string{"users_data", "transactions_data", "cards_data"} {
		assert.False(t, m.Store().Has(name, cache.TableExt), name)
	}
}

func TestJoinsTolerateUnknownKeys(t *testing.T) {
	m := start(t, managerConfig(testutil.WriteDataset(t), 0))

	joins := m.Joins()
	require.Len(t, joins.Profiled, 5)
	byID := make(map[int64]int)
	for i, r := range joins.Profiled {
		byID[r.Transaction.ID] = i
	}

	unknownCode := joins.Profiled[byID[4]]
	assert.Nil(t, unknownCode.MerchantGroup)
	require.NotNil(t, unknownCode.Gender)

	unknownUser := joins.Profiled[byID[5]]
	require.NotNil(t, unknownUser.MerchantGroup)
	assert.Nil(t, unknownUser.Gender)
	assert.Nil(t, unknownUser.CurrentAge)
}

func TestSecondStartLoadsFromCache(t *testing.T) {
	dir := testutil.WriteDataset(t)
	first := start(t, managerConfig(dir, 0))

	// The raw sources are not needed once the processed snapshots exist.
	require.NoError(t, os.Remove(filepath.Join(dir, loader.TransactionsFile)))

	second := start(t, managerConfig(dir, 0))
	assert.True(t, second.FromCache())
	assert.Equal(t, first.KPIs(), second.KPIs())
	assert.Equal(t, first.Home().SpendingByUser(nil), second.Home().SpendingByUser(nil))
	assert.Equal(t, first.Merchant().MostValuableMerchant(nil), second.Merchant().MostValuableMerchant(nil))
	assert.Equal(t, first.User().Summary(nil, testutil.Ptr[int64](13)), second.User().Summary(nil, testutil.Ptr[int64](13)))
	assert.Equal(t, first.Cluster().ByTotalValue(nil), second.Cluster().ByTotalValue(nil))
}

func TestStartIsIdempotent(t *testing.T) {
	m := start(t, managerConfig(testutil.WriteDataset(t), 0))
	kpis := m.KPIs()

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, kpis, m.KPIs())
}

func TestRowCountDriftInvalidatesCache(t *testing.T) {
	dir := testutil.WriteDataset(t)
	start(t, managerConfig(dir, 1000))
	before := promtest.ToFloat64(metrics.CacheInvalidations)

	m := start(t, managerConfig(dir, 2000))

	assert.False(t, m.FromCache())
	assert.InDelta(t, before+1, promtest.ToFloat64(metrics.CacheInvalidations), 1e-9)
	rows, err := cache.Load(m.Store(), cache.NumRows, cache.Object[int64]())
	require.NoError(t, err)
	assert.Equal(t, int64(2000), rows)
	assert.True(t, m.Store().Exists())
}

func TestMissingRowCountKeepsCache(t *testing.T) {
	dir := testutil.WriteDataset(t)
	first := start(t, managerConfig(dir, 0))
	require.NoError(t, first.Store().Remove(cache.NumRows, cache.ObjectExt))
	require.NoError(t, os.Remove(filepath.Join(dir, loader.TransactionsFile)))
	before := promtest.ToFloat64(metrics.CacheInvalidations)

	second := start(t, managerConfig(dir, 0))

	assert.True(t, second.FromCache())
	assert.Equal(t, first.KPIs(), second.KPIs())
	assert.InDelta(t, before, promtest.ToFloat64(metrics.CacheInvalidations), 1e-9)
	rows, err := cache.Load(second.Store(), cache.NumRows, cache.Object[int64]())
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

func TestUnwritableSnapshotKeepsComputedViews(t *testing.T) {
	dir := testutil.WriteDataset(t)
	// A directory under the artifact name makes every save of it fail.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cache", cache.HomeTabCaches+cache.ObjectExt), 0750))

	m := start(t, managerConfig(dir, 0))

	assert.False(t, m.FromCache())
	assert.Empty(t, m.Degraded())
	assert.False(t, m.Store().Exists())
	assert.Equal(t, int64(5), m.Home().Overview(nil).Count)
	assert.Equal(t, merchant.OutcomeFound, m.Merchant().MostValuableMerchant(nil).Outcome)
}

func TestUnwritableRowCountDoesNotFailStart(t *testing.T) {
	dir := testutil.WriteDataset(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cache", cache.NumRows+cache.ObjectExt), 0750))

	m := start(t, managerConfig(dir, 0))

	assert.Empty(t, m.Degraded())
	assert.Equal(t, data.KPIs{Count: 5, Sum: 295, Mean: 59}, m.KPIs())
	assert.Equal(t, int64(5), m.Home().Overview(nil).Count)
}

func TestCorruptSnapshotFallsBackToWarmUp(t *testing.T) {
	dir := testutil.WriteDataset(t)
	first := start(t, managerConfig(dir, 0))
	path := first.Store().Path(cache.MerchantTabCaches, cache.ObjectExt)
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot"), 0600))

	second := start(t, managerConfig(dir, 0))
	assert.False(t, second.FromCache())
	assert.Empty(t, second.Degraded())
	assert.Equal(t, merchant.OutcomeFound, second.Merchant().MostValuableMerchant(nil).Outcome)
}

func TestMissingRawSourceIsFatal(t *testing.T) {
	dir := testutil.WriteDataset(t)
	require.NoError(t, os.Remove(filepath.Join(dir, loader.UsersFile)))

	m, err := data.NewManager(managerConfig(dir, 0))
	require.NoError(t, err)
	defer m.Close()

	err = m.Start(context.Background())
	require.ErrorIs(t, err, common.ErrRawSourceMissing)
	assert.True(t, common.IsFatal(err))
}

func TestRegistry(t *testing.T) {
	var reg data.Registry
	defer reg.Shutdown()

	_, err := reg.Instance()
	require.ErrorIs(t, err, common.ErrUninitialized)

	cfg := managerConfig(testutil.WriteDataset(t), 0)
	m, err := reg.Initialize(context.Background(), cfg)
	require.NoError(t, err)

	_, err = reg.Initialize(context.Background(), cfg)
	require.ErrorIs(t, err, common.ErrAlreadyInitialized)

	got, err := reg.Instance()
	require.NoError(t, err)
	assert.Same(t, m, got)
}

func TestRegistryFailedInitializeStaysUninitialized(t *testing.T) {
	var reg data.Registry
	_, err := reg.Initialize(context.Background(), data.Config{})
	require.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = reg.Instance()
	require.ErrorIs(t, err, common.ErrUninitialized)
}
