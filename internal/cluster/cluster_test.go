package cluster_test

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/cluster"
	"github.com/Veraticus/spice-dash/internal/model"
	"github.com/Veraticus/spice-dash/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2019, 1, 1, 10, 0, 0, 0, time.UTC)

func newAggregator(t *testing.T, store *cache.Store, data []model.ProfiledTransaction) *cluster.Aggregator {
	t.Helper()
	if store == nil {
		var err error
		store, err = cache.New(t.TempDir(), nil)
		require.NoError(t, err)
	}
	agg, err := cluster.New(cluster.Config{Store: store, Rows: data})
	require.NoError(t, err)
	return agg
}

// population has eight clients in two obvious segments: light spenders with
// one small purchase and heavy spenders with five large ones.
func population() []model.ProfiledTransaction {
	var rows []model.ProfiledTransaction
	id := int64(0)
	for client := int64(1); client <= 4; client++ {
		id++
		rows = append(rows, testutil.Profiled(testutil.Tx(id, client, 100, 5, "Texas", 5411, day), "Grocery", "Female", 25))
	}
	for client := int64(5); client <= 8; client++ {
		for range 5 {
			id++
			rows = append(rows, testutil.Profiled(testutil.Tx(id, client, 200, 500, "Texas", 5812, day), "Restaurants", "Male", 52))
		}
	}
	return rows
}

func TestKMeansClampsToDistinctPoints(t *testing.T) {
	assert.Empty(t, cluster.KMeans(nil, cluster.Clusters, cluster.Seed))
	assert.Equal(t, []int{0}, cluster.KMeans([]cluster.Point{{X: 1, Y: 2}}, cluster.Clusters, cluster.Seed))
	assert.Equal(t, []int{0, 0, 0}, cluster.KMeans([]cluster.Point{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}}, cluster.Clusters, cluster.Seed))

	two := cluster.KMeans([]cluster.Point{{X: 10, Y: 0}, {X: 0, Y: 0}}, cluster.Clusters, cluster.Seed)
	assert.Equal(t, []int{1, 0}, two)
}

func TestKMeansSeparatesObviousGroups(t *testing.T) {
	points := []cluster.Point{
		{X: 0, Y: 0}, {X: 0.1, Y: 0}, {X: 0, Y: 0.1},
		{X: 10, Y: 10}, {X: 10.1, Y: 10}, {X: 10, Y: 10.1},
	}
	labels := cluster.KMeans(points, 2, cluster.Seed)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, labels)
}

func TestKMeansIsReproducible(t *testing.T) {
	points := make([]cluster.Point, 0, 50)
	for i := range 50 {
		points = append(points, cluster.Point{X: float64(i % 7), Y: float64((i * 13) % 11)})
	}
	first := cluster.KMeans(points, cluster.Clusters, cluster.Seed)
	second := cluster.KMeans(points, cluster.Clusters, cluster.Seed)
	assert.Equal(t, first, second)
	for _, l := range first {
		assert.GreaterOrEqual(t, l, 0)
		assert.Less(t, l, cluster.Clusters)
	}
}

func TestCohorts(t *testing.T) {
	agg := newAggregator(t, nil, population())

	all := agg.Cohorts(nil)
	require.Len(t, all, 8)
	assert.Equal(t, cluster.ClientFeatures{AgeGroup: "20-29", ClientID: 1, Count: 1, Total: 5, Average: 5}, all[0])
	assert.Equal(t, cluster.ClientFeatures{AgeGroup: "50-59", ClientID: 8, Count: 5, Total: 2500, Average: 500}, all[7])

	assert.Len(t, agg.Cohorts(testutil.Ptr("Grocery")), 4)
	assert.Empty(t, agg.Cohorts(testutil.Ptr("NonexistentGroup")))
	assert.Equal(t, []string{"Grocery", "Restaurants"}, agg.Groups())
}

func TestSegmentsLabelEveryClient(t *testing.T) {
	agg := newAggregator(t, nil, population())

	for _, view := range [][]cluster.Assignment{agg.ByTotalValue(nil), agg.ByAverageValue(nil)} {
		require.Len(t, view, 8)
		light, heavy := view[0].Cluster, view[7].Cluster
		assert.NotEqual(t, light, heavy)
		for _, a := range view[:4] {
			assert.Equal(t, light, a.Cluster)
		}
		for _, a := range view[4:] {
			assert.Equal(t, heavy, a.Cluster)
		}
	}
	assert.Equal(t, float64(2500), agg.ByTotalValue(nil)[7].Y)
	assert.Equal(t, float64(500), agg.ByAverageValue(nil)[7].Y)
}

func TestSegmentsOnSmallInputs(t *testing.T) {
	data := population()
	agg := newAggregator(t, nil, []model.ProfiledTransaction{data[0], data[4]})

	got := agg.ByTotalValue(nil)
	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].Cluster, got[1].Cluster)

	single := agg.ByAverageValue(testutil.Ptr("Grocery"))
	require.Len(t, single, 1)
	assert.Equal(t, 0, single[0].Cluster)

	assert.Empty(t, agg.ByTotalValue(testutil.Ptr("NonexistentGroup")))
}

func TestInitializePersistsAndReloads(t *testing.T) {
	store, err := cache.New(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	first := newAggregator(t, store, population())
	require.NoError(t, first.Initialize(ctx))

	second := newAggregator(t, store, nil)
	require.NoError(t, second.LoadFromCache(ctx))

	assert.Equal(t, first.Cohorts(nil), second.Cohorts(nil))
	assert.Equal(t, first.ByTotalValue(nil), second.ByTotalValue(nil))
	grocery := testutil.Ptr("Grocery")
	assert.Equal(t, first.ByAverageValue(grocery), second.ByAverageValue(grocery))
}

func TestDegrade(t *testing.T) {
	agg := newAggregator(t, nil, population())
	agg.Degrade()

	assert.Empty(t, agg.Cohorts(nil))
	assert.Empty(t, agg.ByTotalValue(nil))
}
