package data_test

import (
	"testing"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/data"
	"github.com/Veraticus/spice-dash/internal/model"
	"github.com/Veraticus/spice-dash/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tables() data.Tables {
	return data.Tables{
		Transactions: []model.Transaction{
			testutil.Tx(1, 1, 100, 100, "Texas", 5411, testutil.Now),
			testutil.Tx(2, 7, 200, 20, "Texas", 1234, testutil.Now),
		},
		Users:         []model.User{{ID: 1, Gender: "Female", CurrentAge: 40, BirthYear: 1984, YearlyIncome: 59696}},
		CategoryCodes: []model.CategoryCode{{Code: 5411, Group: "Grocery"}},
	}
}

func TestJoinCategoriesAndUsers(t *testing.T) {
	tb := tables()
	categorized := data.JoinCategories(tb.Transactions, tb.CategoryCodes)
	require.Len(t, categorized, 2)
	assert.Equal(t, "Grocery", categorized[0].Group())
	assert.Nil(t, categorized[1].MerchantGroup)

	profiled := data.JoinUsers(categorized, tb.Users)
	require.Len(t, profiled, 2)
	assert.Equal(t, "Female", profiled[0].GenderLabel())
	assert.Equal(t, "40-49", profiled[0].AgeLabel())
	assert.Equal(t, "Unknown", profiled[1].GenderLabel())
	assert.Nil(t, profiled[1].YearlyIncome)
}

func TestPrepareJoinsPersistsAndReloads(t *testing.T) {
	store, err := cache.New(t.TempDir(), nil)
	require.NoError(t, err)

	built := data.PrepareJoins(store, tables(), nil)
	assert.True(t, store.Has(cache.TransactionsMCC, cache.TableExt))
	assert.True(t, store.Has(cache.TransactionsMCCUsers, cache.TableExt))

	// Empty tables prove the second call reads the persisted joins.
	loaded := data.PrepareJoins(store, data.Tables{}, nil)
	require.Len(t, loaded.Profiled, len(built.Profiled))
	assert.Equal(t, built.Profiled[0].Transaction.ID, loaded.Profiled[0].Transaction.ID)
	assert.Equal(t, built.Profiled[0].GenderLabel(), loaded.Profiled[0].GenderLabel())
	assert.Nil(t, loaded.Categorized[1].MerchantGroup)
}
