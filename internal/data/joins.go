package data

import (
	"log/slog"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/common"
	"github.com/Veraticus/spice-dash/internal/model"
)

// Tables are the canonical tables every join and aggregator reads from.
type Tables struct {
	Transactions  []model.Transaction
	Users         []model.User
	Cards         []model.Card
	CategoryCodes []model.CategoryCode
}

// Joins holds the two shared left joins.
type Joins struct {
	// Categorized is transactions ⋈ category codes.
	Categorized []model.CategorizedTransaction
	// Profiled is Categorized ⋈ users.
	Profiled []model.ProfiledTransaction
}

// JoinCategories left-joins transactions with their merchant group. Unknown
// codes leave MerchantGroup nil.
func JoinCategories(txs []model.Transaction, codes []model.CategoryCode) []model.CategorizedTransaction {
	idx := model.IndexCategories(codes)
	out := make([]model.CategorizedTransaction, len(txs))
	for i, tx := range txs {
		out[i].Transaction = tx
		if g, ok := idx[tx.MCC]; ok {
			group := g
			out[i].MerchantGroup = &group
		}
	}
	return out
}

// JoinUsers left-joins categorized transactions with the demographics of
// their client. Unknown clients leave the demographic fields nil.
func JoinUsers(rows []model.CategorizedTransaction, users []model.User) []model.ProfiledTransaction {
	byID := make(map[int64]*model.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	out := make([]model.ProfiledTransaction, len(rows))
	for i, r := range rows {
		p := model.ProfiledTransaction{MerchantGroup: r.MerchantGroup, Transaction: r.Transaction}
		if u, ok := byID[r.Transaction.ClientID]; ok {
			gender, income, birth, age := u.Gender, u.YearlyIncome, u.BirthYear, u.CurrentAge
			p.Gender, p.YearlyIncome, p.BirthYear, p.CurrentAge = &gender, &income, &birth, &age
		}
		out[i] = p
	}
	return out
}

// PrepareJoins returns the shared joins, loading both artifacts when present
// and otherwise computing and persisting them. A failed save is logged; the
// computed joins are still returned.
func PrepareJoins(store *cache.Store, tables Tables, logger *slog.Logger) *Joins {
	log := common.OrDefault(logger)

	categorized, err := cache.Load(store, cache.TransactionsMCC, cache.Table[model.CategorizedTransaction]())
	if err == nil {
		profiled, err := cache.Load(store, cache.TransactionsMCCUsers, cache.Table[model.ProfiledTransaction]())
		if err == nil {
			log.Debug("loaded joins", "rows", len(profiled))
			return &Joins{Categorized: categorized, Profiled: profiled}
		}
	}

	j := &Joins{Categorized: JoinCategories(tables.Transactions, tables.CategoryCodes)}
	j.Profiled = JoinUsers(j.Categorized, tables.Users)

	if err := cache.Save(store, cache.TransactionsMCC, cache.Table[model.CategorizedTransaction](), j.Categorized); err != nil {
		common.LogError(log, err, "failed to persist join", common.Fields{"artifact": cache.TransactionsMCC})
	}
	if err := cache.Save(store, cache.TransactionsMCCUsers, cache.Table[model.ProfiledTransaction](), j.Profiled); err != nil {
		common.LogError(log, err, "failed to persist join", common.Fields{"artifact": cache.TransactionsMCCUsers})
	}
	log.Info("built joins", "rows", len(j.Profiled))
	return j
}
