package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/common"
	"github.com/Veraticus/spice-dash/internal/model"
	"github.com/Veraticus/spice-dash/internal/testutil"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(t *testing.T, dataDir string) (*Loader, *cache.Store) {
	t.Helper()
	store, err := cache.New(filepath.Join(dataDir, "cache"), nil)
	require.NoError(t, err)
	l, err := New(Config{
		DataDir: dataDir,
		Store:   store,
		Clock:   clockwork.NewFakeClockAt(testutil.Now),
	})
	require.NoError(t, err)
	return l, store
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"$100.00", 100, false},
		{"$-77.00", -77, false},
		{"$1,234.56", 1234.56, false},
		{" 42 ", 42, false},
		{"", 0, true},
		{"$abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMoney(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, common.ErrMalformedRow, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

func TestLoader_Transactions(t *testing.T) {
	dir := testutil.WriteDataset(t)
	l, store := newTestLoader(t, dir)

	txs, err := l.Transactions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, txs, testutil.Lines(testutil.TransactionsCSV)-1)

	first := txs[0]
	assert.Equal(t, int64(1), first.ID)
	assert.InDelta(t, 100.0, first.Amount, 1e-9)
	assert.Equal(t, "Texas", first.StateName)
	require.NotNil(t, first.Zip)
	assert.Equal(t, "78701", *first.Zip)
	require.NotNil(t, first.Latitude)
	assert.InDelta(t, 30.27, *first.Latitude, 1e-9)
	assert.Nil(t, first.Errors)
	assert.Equal(t, 9, first.Hour())

	assert.Equal(t, "Bad PIN", *txs[1].Errors)

	online := txs[2]
	assert.Equal(t, model.OnlineState, online.StateName)
	assert.Nil(t, online.Zip)
	assert.True(t, online.IsOnline())

	boston := txs[3]
	assert.Equal(t, "02138", *boston.Zip)
	assert.Nil(t, boston.Latitude, "zip without centroid stays ungeocoded")

	assert.True(t, store.Has(cache.TransactionsProcessed, cache.TableExt))
	assert.False(t, store.Has("transactions_data", cache.TableExt), "intermediate snapshot removed")
}

func TestLoader_TransactionsLimit(t *testing.T) {
	dir := testutil.WriteDataset(t)
	l, _ := newTestLoader(t, dir)

	txs, err := l.Transactions(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestLoader_SecondLoadSkipsRawFiles(t *testing.T) {
	dir := testutil.WriteDataset(t)
	l, _ := newTestLoader(t, dir)
	ctx := context.Background()

	users, err := l.Users(ctx)
	require.NoError(t, err)
	cards, err := l.Cards(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, UsersFile)))
	require.NoError(t, os.Remove(filepath.Join(dir, CardsFile)))

	again, err := l.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, users, again)
	cardsAgain, err := l.Cards(ctx)
	require.NoError(t, err)
	assert.Equal(t, cards, cardsAgain)
}

func TestLoader_UsersAndCards(t *testing.T) {
	dir := testutil.WriteDataset(t)
	l, _ := newTestLoader(t, dir)
	ctx := context.Background()

	users, err := l.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, int32(2024-1984), users[0].CurrentAge)
	assert.InDelta(t, 59696.0, users[0].YearlyIncome, 1e-9)
	assert.Equal(t, "Female", users[0].Gender)

	cards, err := l.Cards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 4)
	assert.InDelta(t, 1000.0, cards[1].CreditLimit, 1e-9)
	assert.True(t, cards[0].HasChip)
	assert.False(t, cards[1].HasChip)
	assert.True(t, cards[2].CardOnDarkWeb)
}

func TestLoader_MissingRawSource(t *testing.T) {
	dir := t.TempDir()
	l, _ := newTestLoader(t, dir)

	_, err := l.Users(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRawSourceMissing)
	assert.True(t, common.IsFatal(err))

	_, err = l.CategoryCodes()
	assert.ErrorIs(t, err, common.ErrRawSourceMissing)
}

func TestLoader_SkipsMalformedRows(t *testing.T) {
	dir := testutil.WriteDataset(t)
	bad := testutil.TransactionsCSV + "6,not-a-date,1,10,$1.00,Swipe Transaction,100,Austin,TX,78701,5411,\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, TransactionsFile), []byte(bad), 0600))
	l, _ := newTestLoader(t, dir)

	txs, err := l.Transactions(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, txs, testutil.Lines(testutil.TransactionsCSV)-1)
}

func TestParseCategoryCodes(t *testing.T) {
	codes, err := ParseCategoryCodes([]byte(testutil.CategoryCodesJSON))
	require.NoError(t, err)
	require.Len(t, codes, 3)
	assert.Equal(t, int32(4111), codes[0].Code)
	assert.Equal(t, "Grocery Stores, Supermarkets", model.IndexCategories(codes)[5411])

	_, err = ParseCategoryCodes([]byte(`{"abc": "x"}`))
	assert.ErrorIs(t, err, common.ErrMalformedRow)
	_, err = ParseCategoryCodes([]byte(`[`))
	assert.Error(t, err)
}

func TestParseCategoryCodes_SortsExtremeCodes(t *testing.T) {
	codes, err := ParseCategoryCodes([]byte(`{"2147483647": "max", "-2147483648": "min", "0": "zero"}`))
	require.NoError(t, err)
	require.Len(t, codes, 3)
	assert.Equal(t, []int32{-2147483648, 0, 2147483647}, []int32{codes[0].Code, codes[1].Code, codes[2].Code})
}

func TestDecodeCSV_HeaderOnly(t *testing.T) {
	rows, err := decodeCSV(context.Background(), strings.NewReader("id,date\n"), 0, rawTransaction)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
