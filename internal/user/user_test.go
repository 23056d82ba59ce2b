package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/model"
	"github.com/Veraticus/spice-dash/internal/testutil"
	"github.com/Veraticus/spice-dash/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(month time.Month, day int) time.Time {
	return time.Date(2019, month, day, 12, 0, 0, 0, time.UTC)
}

func categorized(tx model.Transaction, group string) model.CategorizedTransaction {
	c := model.CategorizedTransaction{Transaction: tx}
	if group != "" {
		c.MerchantGroup = testutil.Ptr(group)
	}
	return c
}

func rows() []model.CategorizedTransaction {
	return []model.CategorizedTransaction{
		categorized(testutil.Tx(2, 1, 100, 150, "Texas", 5411, at(2, 2)), "Grocery"),
		categorized(testutil.Tx(1, 1, 100, 100, "Texas", 5411, at(1, 1)), "Grocery"),
		categorized(testutil.Tx(3, 1, 200, 30, model.OnlineState, 5812, at(1, 20)), "Restaurants"),
		categorized(testutil.Tx(4, 2, 200, 10, model.OnlineState, 5812, at(1, 3)), "Restaurants"),
	}
}

func cards() []model.Card {
	return []model.Card{
		{ID: 10, ClientID: 1, CardBrand: "Visa"},
		{ID: 13, ClientID: 1, CardBrand: "Visa"},
		{ID: 11, ClientID: 2, CardBrand: "Mastercard"},
		{ID: 12, ClientID: 3, CardBrand: "Amex"},
	}
}

func newAggregator(t *testing.T, store *cache.Store, data []model.CategorizedTransaction, owned []model.Card) *user.Aggregator {
	t.Helper()
	if store == nil {
		var err error
		store, err = cache.New(t.TempDir(), nil)
		require.NoError(t, err)
	}
	agg, err := user.New(user.Config{Store: store, Rows: data, Cards: owned})
	require.NoError(t, err)
	return agg
}

func TestResolve(t *testing.T) {
	agg := newAggregator(t, nil, rows(), cards())

	tests := []struct {
		name   string
		user   *int64
		card   *int64
		want   int64
		wantOK bool
	}{
		{name: "user only", user: testutil.Ptr[int64](2), want: 2, wantOK: true},
		{name: "card only", card: testutil.Ptr[int64](11), want: 2, wantOK: true},
		{name: "card wins", user: testutil.Ptr[int64](1), card: testutil.Ptr[int64](12), want: 3, wantOK: true},
		{name: "unknown card", user: testutil.Ptr[int64](1), card: testutil.Ptr[int64](999)},
		{name: "unknown user", user: testutil.Ptr[int64](42)},
		{name: "neither"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := agg.Resolve(tt.user, tt.card)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransactionsSortedByDate(t *testing.T) {
	agg := newAggregator(t, nil, rows(), cards())

	txs := agg.Transactions(1)
	require.Len(t, txs, 3)
	assert.Equal(t, []int64{1, 3, 2}, []int64{txs[0].ID, txs[1].ID, txs[2].ID})
	assert.Empty(t, agg.Transactions(42))
}

func TestMerchantBreakdown(t *testing.T) {
	agg := newAggregator(t, nil, rows(), cards())

	assert.Equal(t, []user.MerchantSpending{
		{Group: "Grocery", MerchantID: 100, MCC: 5411, Count: 2, Sum: 250},
		{Group: "Restaurants", MerchantID: 200, MCC: 5812, Count: 1, Sum: 30},
	}, agg.MerchantBreakdown(1))
}

func TestSpendingByMonth(t *testing.T) {
	agg := newAggregator(t, nil, rows(), cards())

	assert.Equal(t, []user.MonthSpending{
		{Month: "2019-01", Count: 2, Sum: 130},
		{Month: "2019-02", Count: 1, Sum: 150},
	}, agg.SpendingByMonth(1))
}

func TestSummary(t *testing.T) {
	agg := newAggregator(t, nil, rows(), cards())

	got := agg.Summary(nil, testutil.Ptr[int64](13))
	assert.Equal(t, user.KPI{ClientID: 1, Count: 3, Cards: 2, Sum: 280, Mean: 280.0 / 3, Found: true}, got)

	// A card holder without transactions still resolves.
	assert.Equal(t, user.KPI{ClientID: 3, Cards: 1, Found: true}, agg.Summary(testutil.Ptr[int64](3), nil))
	assert.Equal(t, user.KPI{}, agg.Summary(testutil.Ptr[int64](42), nil))
}

func TestCards(t *testing.T) {
	agg := newAggregator(t, nil, rows(), cards())

	owned := agg.Cards(1)
	require.Len(t, owned, 2)
	assert.Equal(t, int64(10), owned[0].ID)
	assert.Equal(t, []int64{1, 2, 3}, agg.Users())
}

func TestUsersTableMembersResolve(t *testing.T) {
	store, err := cache.New(t.TempDir(), nil)
	require.NoError(t, err)
	agg, err := user.New(user.Config{
		Store: store,
		Rows:  rows(),
		Cards: cards(),
		Users: []model.User{{ID: 1}, {ID: 7}},
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3, 7}, agg.Users())
	id, ok := agg.Resolve(testutil.Ptr[int64](7), nil)
	require.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, user.KPI{ClientID: 7, Found: true}, agg.Summary(testutil.Ptr[int64](7), nil))
	assert.Empty(t, agg.Transactions(7))
}

func TestInitializeMaterializesEveryUser(t *testing.T) {
	store, err := cache.New(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	first := newAggregator(t, store, rows(), cards())
	require.NoError(t, first.Initialize(ctx))

	// The reloaded aggregator only knows the cards, so transaction data must
	// come from the snapshot.
	second := newAggregator(t, store, nil, cards())
	require.NoError(t, second.LoadFromCache(ctx))

	for _, id := range []int64{1, 2} {
		assert.Equal(t, first.MerchantBreakdown(id), second.MerchantBreakdown(id), "user %d", id)
		assert.Equal(t, first.SpendingByMonth(id), second.SpendingByMonth(id), "user %d", id)
		assert.Equal(t, first.Summary(&id, nil), second.Summary(&id, nil), "user %d", id)
		assert.Len(t, second.Transactions(id), len(first.Transactions(id)), "user %d", id)
	}
	assert.Empty(t, second.MerchantBreakdown(3))
	assert.Equal(t, first.Summary(nil, testutil.Ptr[int64](12)), second.Summary(nil, testutil.Ptr[int64](12)))
}

func TestDegrade(t *testing.T) {
	agg := newAggregator(t, nil, rows(), cards())
	agg.Degrade()

	assert.Empty(t, agg.Users())
	assert.Empty(t, agg.Transactions(1))
	assert.False(t, agg.Summary(testutil.Ptr[int64](1), nil).Found)
}
