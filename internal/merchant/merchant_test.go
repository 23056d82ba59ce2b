package merchant_test

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/merchant"
	"github.com/Veraticus/spice-dash/internal/model"
	"github.com/Veraticus/spice-dash/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2019, 1, 1, 10, 0, 0, 0, time.UTC)

func categorized(tx model.Transaction, group string) model.CategorizedTransaction {
	c := model.CategorizedTransaction{Transaction: tx}
	if group != "" {
		c.MerchantGroup = testutil.Ptr(group)
	}
	return c
}

func rows() []model.CategorizedTransaction {
	return []model.CategorizedTransaction{
		categorized(testutil.Tx(1, 1, 100, 100, "Texas", 5411, day), "Grocery"),
		categorized(testutil.Tx(2, 1, 100, 150, "Texas", 5411, day), "Grocery"),
		categorized(testutil.Tx(3, 4, 101, 20, "Texas", 5411, day), "Grocery"),
		categorized(testutil.Tx(4, 5, 101, 30, "Texas", 5411, day), "Grocery"),
		categorized(testutil.Tx(5, 6, 101, 10, "Texas", 5411, day), "Grocery"),
		categorized(testutil.Tx(6, 2, 200, 10, model.OnlineState, 5812, day), "Restaurants"),
		categorized(testutil.Tx(7, 3, 300, 40, "Massachusetts", 9999, day), ""),
	}
}

func newAggregator(t *testing.T, store *cache.Store, data []model.CategorizedTransaction) *merchant.Aggregator {
	t.Helper()
	if store == nil {
		var err error
		store, err = cache.New(t.TempDir(), nil)
		require.NoError(t, err)
	}
	agg, err := merchant.New(merchant.Config{Store: store, Rows: data, TopMerchants: 2})
	require.NoError(t, err)
	return agg
}

func pair(r merchant.Ranking) [2]float64 {
	id, v := r.Pair()
	return [2]float64{float64(id), v}
}

func TestSentinelsAreDistinct(t *testing.T) {
	agg := newAggregator(t, nil, rows())

	group := agg.UserWithMostTransactionsInGroup("NonexistentGroup")
	assert.Equal(t, merchant.OutcomeEmptyGroup, group.Outcome)
	assert.Equal(t, [2]float64{-1, -1}, pair(group))

	site := agg.UserWithMostTransactionsAtMerchant(999999999)
	assert.Equal(t, merchant.OutcomeUnknownMerchant, site.Outcome)
	assert.Equal(t, [2]float64{-2, -2}, pair(site))

	assert.Equal(t, [2]float64{-1, -1}, pair(agg.UserWithHighestValueInGroup("NonexistentGroup")))
	assert.Equal(t, [2]float64{-2, -2}, pair(agg.UserWithHighestValueAtMerchant(999999999)))
	assert.Equal(t, [2]float64{-1, -1}, pair(agg.MostFrequentMerchant(testutil.Ptr("NonexistentGroup"))))
}

func TestEmptyGroupHasNoMerchant(t *testing.T) {
	data := rows()[5:]
	agg := newAggregator(t, nil, data)

	got := agg.MostFrequentlyUsedMerchantInGroup("Grocery")
	assert.False(t, got.Found())
	assert.Equal(t, [2]float64{-1, -1}, pair(got))
}

func TestGroupRankings(t *testing.T) {
	agg := newAggregator(t, nil, rows())

	assert.Equal(t, merchant.Ranking{ID: 101, Value: 3}, agg.MostFrequentMerchant(testutil.Ptr("Grocery")))
	assert.Equal(t, merchant.Ranking{ID: 100, Value: 250}, agg.MostValuableMerchant(testutil.Ptr("Grocery")))
	assert.Equal(t, merchant.Ranking{ID: 101, Value: 3}, agg.MostFrequentlyUsedMerchantInGroup("Grocery"))
	assert.Equal(t, merchant.Ranking{ID: 1, Value: 2}, agg.UserWithMostTransactionsInGroup("Grocery"))
	assert.Equal(t, merchant.Ranking{ID: 1, Value: 250}, agg.UserWithHighestValueInGroup("Grocery"))

	assert.Equal(t, merchant.Ranking{ID: 100, Value: 250}, agg.MostValuableMerchant(nil))
	assert.Equal(t, merchant.Ranking{ID: 3, Value: 1}, agg.UserWithMostTransactionsInGroup(merchant.UnknownGroup))
}

func TestMostUsedRanksByDistinctClients(t *testing.T) {
	agg := newAggregator(t, nil, []model.CategorizedTransaction{
		categorized(testutil.Tx(1, 1, 100, 10, "Texas", 5411, day), "Grocery"),
		categorized(testutil.Tx(2, 1, 100, 10, "Texas", 5411, day), "Grocery"),
		categorized(testutil.Tx(3, 1, 100, 10, "Texas", 5411, day), "Grocery"),
		categorized(testutil.Tx(4, 1, 100, 10, "Texas", 5411, day), "Grocery"),
		categorized(testutil.Tx(5, 4, 101, 10, "Texas", 5411, day), "Grocery"),
		categorized(testutil.Tx(6, 5, 101, 10, "Texas", 5411, day), "Grocery"),
		categorized(testutil.Tx(7, 6, 101, 10, "Texas", 5411, day), "Grocery"),
	})

	assert.Equal(t, merchant.Ranking{ID: 100, Value: 4}, agg.MostFrequentMerchant(testutil.Ptr("Grocery")))
	assert.Equal(t, merchant.Ranking{ID: 101, Value: 3}, agg.MostFrequentlyUsedMerchantInGroup("Grocery"))
}

func TestMerchantRankings(t *testing.T) {
	agg := newAggregator(t, nil, rows())

	assert.Equal(t, merchant.Ranking{ID: 1, Value: 2}, agg.UserWithMostTransactionsAtMerchant(100))
	// Ties break on the smaller client id.
	assert.Equal(t, merchant.Ranking{ID: 4, Value: 1}, agg.UserWithMostTransactionsAtMerchant(101))
	assert.Equal(t, merchant.Ranking{ID: 5, Value: 30}, agg.UserWithHighestValueAtMerchant(101))

	kpi := agg.MerchantSummary(101)
	assert.Equal(t, merchant.KPI{Group: "Grocery", MerchantID: 101, Count: 3, Users: 3, Sum: 60, Mean: 20, Found: true}, kpi)
	assert.False(t, agg.MerchantSummary(12345).Found)
}

func TestTopMerchants(t *testing.T) {
	agg := newAggregator(t, nil, rows())

	top := agg.TopMerchants(nil, 2)
	require.Len(t, top, 2)
	assert.Equal(t, int64(100), top[0].MerchantID)
	assert.Equal(t, int64(101), top[1].MerchantID)

	assert.Len(t, agg.TopMerchants(nil, 0), 4)
	assert.Len(t, agg.TopMerchants(testutil.Ptr("Restaurants"), 5), 1)
	assert.Empty(t, agg.TopMerchants(testutil.Ptr("NonexistentGroup"), 5))
}

func TestGroupOverviewFoldsSmallGroups(t *testing.T) {
	var data []model.CategorizedTransaction
	for i := range 150 {
		data = append(data, categorized(testutil.Tx(int64(i), 1, 100, 1, "Texas", 5411, day), "Grocery"))
	}
	data = append(data,
		categorized(testutil.Tx(1000, 2, 200, 5, "Texas", 5812, day), "Restaurants"),
		categorized(testutil.Tx(1001, 3, 300, 7, "Texas", 4111, day), "Transit"),
	)
	agg := newAggregator(t, nil, data)

	overview := agg.GroupOverview()
	require.Len(t, overview, 2)
	assert.Equal(t, "Grocery", overview[0].Group)
	assert.Equal(t, int64(150), overview[0].Count)
	assert.Equal(t, merchant.OtherGroup, overview[1].Group)
	assert.Equal(t, int64(2), overview[1].Count)
	assert.InDelta(t, 12, overview[1].Sum, 1e-9)
	assert.InDelta(t, 2.0/152.0, overview[1].Share, 1e-9)
}

func TestInitializePersistsAndReloads(t *testing.T) {
	store, err := cache.New(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	first := newAggregator(t, store, rows())
	require.NoError(t, first.Initialize(ctx))
	assert.True(t, store.Has(cache.MerchantTabCaches, cache.Object[int]().Ext()))

	second := newAggregator(t, store, nil)
	require.NoError(t, second.LoadFromCache(ctx))

	assert.Equal(t, first.GroupOverview(), second.GroupOverview())
	assert.Equal(t, first.MostValuableMerchant(nil), second.MostValuableMerchant(nil))
	assert.Equal(t, first.UserWithHighestValueInGroup("Grocery"), second.UserWithHighestValueInGroup("Grocery"))
	assert.Equal(t, first.MerchantSummary(100), second.MerchantSummary(100))
	assert.Equal(t, first.UserWithMostTransactionsAtMerchant(101), second.UserWithMostTransactionsAtMerchant(101))
}

func TestDegrade(t *testing.T) {
	agg := newAggregator(t, nil, rows())
	agg.MostValuableMerchant(nil)

	agg.Degrade()

	assert.Equal(t, merchant.OutcomeEmptyGroup, agg.MostValuableMerchant(nil).Outcome)
	assert.Empty(t, agg.GroupOverview())
	assert.Empty(t, agg.Groups())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "empty_group", merchant.OutcomeEmptyGroup.String())
	assert.Equal(t, "unknown_merchant", merchant.OutcomeUnknownMerchant.String())
}
