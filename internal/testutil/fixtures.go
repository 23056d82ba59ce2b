// Package testutil provides fixture datasets shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/spice-dash/internal/model"
)

// Now is the reference time used by fake clocks in tests.
var Now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// UsersCSV has three users: A (1), B (2) and C (3).
const UsersCSV = `id,current_age,retirement_age,birth_year,birth_month,gender,address,latitude,longitude,per_capita_income,yearly_income,total_debt,credit_score,num_credit_cards
1,40,67,1984,3,Female,1 Main St,30.27,-97.74,$20000,$59696,$1000,700,2
2,55,65,1969,7,Male,2 Oak Ave,40.71,-74.00,$30000,$80000,$500,720,1
3,23,67,2001,1,Female,3 Pine Rd,34.05,-118.24,$15000,$25000,$0,650,1
`

// CardsCSV has one card per user plus a second card for user 1.
const CardsCSV = `id,client_id,card_brand,card_type,card_number,expires,cvv,has_chip,num_cards_issued,credit_limit,acct_open_date,year_pin_last_changed,card_on_dark_web
10,1,Visa,Debit,4000,12/2026,123,YES,1,$24295,09/2002,2008,No
11,2,Mastercard,Credit,5000,01/2027,456,NO,2,"$1,000",01/2010,2012,No
12,3,Amex,Credit,3000,05/2028,789,YES,1,$500,02/2019,2019,Yes
13,1,Visa,Credit,4001,10/2029,321,YES,1,$9000,03/2015,2015,No
`

// TransactionsCSV: user 1 spends 100+150 (Texas, Grocery, merchant 100),
// user 2 spends 10 online (Restaurants, merchant 200), and user 3 spends 40
// at merchant 300 whose code is not in the lookup. The last row references a
// client missing from the users table.
const TransactionsCSV = `id,date,client_id,card_id,amount,use_chip,merchant_id,merchant_city,merchant_state,zip,mcc,errors
1,2019-01-01 09:15:00,1,10,$100.00,Swipe Transaction,100,Austin,TX,78701.0,5411,
2,2019-01-02 09:45:00,1,13,$150.00,Chip Transaction,100,Austin,TX,78701.0,5411,Bad PIN
3,2019-01-03 18:05:00,2,11,$10.00,Online Transaction,200,ONLINE,,,5812,
4,2019-01-04 21:30:00,3,12,$40.00,Swipe Transaction,300,Boston,MA,2138,9999,
5,2019-01-05 09:10:00,99,99,$-5.00,Swipe Transaction,100,Austin,TX,78701,5411,
`

// CategoryCodesJSON maps the fixture codes to merchant groups.
const CategoryCodesJSON = `{"5411": "Grocery Stores, Supermarkets", "5812": "Eating Places and Restaurants", "4111": "Commuter Transport"}`

// ZipCentroidsCSV covers the Austin zip only.
const ZipCentroidsCSV = "zip,latitude,longitude\n78701,30.27,-97.74\n"

// WriteDataset writes the fixture sources into a fresh data directory.
func WriteDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"users_data.csv":        UsersCSV,
		"cards_data.csv":        CardsCSV,
		"transactions_data.csv": TransactionsCSV,
		"mcc_codes.json":        CategoryCodesJSON,
		"zip_centroids.csv":     ZipCentroidsCSV,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Tx builds a cleaned transaction.
func Tx(id, client, merchant int64, amount float64, state string, mcc int32, at time.Time) model.Transaction {
	tx := model.Transaction{
		ID:         id,
		ClientID:   client,
		CardID:     client * 10,
		MerchantID: merchant,
		Amount:     amount,
		MCC:        mcc,
		Date:       at,
		StateName:  state,
		Method:     "Swipe Transaction",
	}
	if state == model.OnlineState {
		tx.Method = "Online Transaction"
		tx.MerchantCity = Ptr("ONLINE")
	}
	return tx
}

// Profiled wraps a transaction with the given group and demographics.
// Empty group or gender leaves the joined field nil.
func Profiled(tx model.Transaction, group, gender string, age int32) model.ProfiledTransaction {
	p := model.ProfiledTransaction{Transaction: tx}
	if group != "" {
		p.MerchantGroup = Ptr(group)
	}
	if gender != "" {
		p.Gender = Ptr(gender)
		p.CurrentAge = Ptr(age)
		p.BirthYear = Ptr(int32(Now.Year()) - age)
		p.YearlyIncome = Ptr(50000.0)
	}
	return p
}

// Categorized strips the demographics of a profiled row.
func Categorized(rows []model.ProfiledTransaction) []model.CategorizedTransaction {
	out := make([]model.CategorizedTransaction, len(rows))
	for i, r := range rows {
		out[i] = model.CategorizedTransaction{Transaction: r.Transaction, MerchantGroup: r.MerchantGroup}
	}
	return out
}

// Lines counts non-empty lines, handy for CSV fixtures.
func Lines(s string) int {
	n := 0
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			n++
		}
	}
	return n
}
