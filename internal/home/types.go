package home

import (
	"strings"

	"github.com/shopspring/decimal"
)

// KPI summarizes the transactions of a region.
type KPI struct {
	Count int64
	Sum   float64
	Mean  float64
}

// Highlight is a single "top" entity rendered on the home tab.
// Empty is set when no transaction matched the filter.
type Highlight struct {
	Label string
	Value string
	ID    int64
	Raw   float64
	Empty bool
}

// NoData is the placeholder highlight for empty filters.
var NoData = Highlight{ID: -1, Label: "No data", Value: "-", Empty: true}

// StateTotal is one row of the geography map data.
type StateTotal struct {
	Latitude  *float64 `parquet:"latitude,optional"`
	Longitude *float64 `parquet:"longitude,optional"`
	State     string   `parquet:"state"`
	Count     int64    `parquet:"count"`
	Sum       float64  `parquet:"sum"`
	Mean      float64  `parquet:"mean"`
	Online    bool     `parquet:"online"`
}

// UserSpending is the total spending of one client.
type UserSpending struct {
	ClientID int64
	Count    int64
	Sum      float64
}

// MerchantTotal is the activity of one merchant.
type MerchantTotal struct {
	MerchantID int64
	Count      int64
	Sum        float64
}

// HourBucket is the activity during one hour of the day.
type HourBucket struct {
	Hour  int
	Count int64
	Sum   float64
}

// ErrorSummary counts transactions carrying an error flag.
type ErrorSummary struct {
	ByKind map[string]int64
	Count  int64
	Amount float64
	Share  float64
}

// FormatMoney renders an amount with two decimals and thousands separators.
func FormatMoney(v float64) string {
	d := decimal.NewFromFloat(v)
	sign := ""
	if d.Round(2).IsNegative() {
		sign = "-"
	}
	whole, frac, _ := strings.Cut(d.Abs().StringFixed(2), ".")
	return sign + "$" + groupThousands(whole) + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	var b strings.Builder
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
