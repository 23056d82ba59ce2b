package model

import (
	"strings"
	"time"
)

// OnlineState is the state name given to transactions without a merchant state.
const OnlineState = "ONLINE"

// Channel labels used by expenditure breakdowns.
const (
	ChannelOnline  = "Online"
	ChannelInStore = "In-Store"
	ChannelOther   = "Other"
)

// Transaction is one cleaned row of the transactions table.
type Transaction struct {
	Date          time.Time `parquet:"date,timestamp(millisecond)"`
	MerchantCity  *string   `parquet:"merchant_city,optional"`
	MerchantState *string   `parquet:"merchant_state,optional"`
	Zip           *string   `parquet:"zip,optional"`
	Errors        *string   `parquet:"errors,optional"`
	Latitude      *float64  `parquet:"latitude,optional"`
	Longitude     *float64  `parquet:"longitude,optional"`
	Method        string    `parquet:"use_chip"`
	StateName     string    `parquet:"state_name"`
	ID            int64     `parquet:"id"`
	ClientID      int64     `parquet:"client_id"`
	CardID        int64     `parquet:"card_id"`
	MerchantID    int64     `parquet:"merchant_id"`
	Amount        float64   `parquet:"amount"`
	MCC           int32     `parquet:"mcc"`
}

// IsOnline reports whether the transaction happened without a physical location.
func (t Transaction) IsOnline() bool {
	if t.StateName == OnlineState {
		return true
	}
	return t.MerchantCity != nil && strings.EqualFold(*t.MerchantCity, OnlineState)
}

// Hour returns the hour of day the transaction was made.
func (t Transaction) Hour() int {
	return t.Date.Hour()
}

// HasError reports whether the row carries an error/fraud flag.
func (t Transaction) HasError() bool {
	return t.Errors != nil && *t.Errors != ""
}

// Channel classifies the transaction method text.
func (t Transaction) Channel() string {
	return ChannelOf(t.Method)
}

// ChannelOf maps a transaction method such as "Swipe Transaction" to a channel label.
func ChannelOf(method string) string {
	m := strings.ToLower(strings.TrimSpace(method))
	switch {
	case strings.HasPrefix(m, "online"):
		return ChannelOnline
	case strings.HasPrefix(m, "swipe"), strings.HasPrefix(m, "chip"):
		return ChannelInStore
	default:
		return ChannelOther
	}
}

// RawTransaction is a transactions_data.csv row before cleaning.
type RawTransaction struct {
	ID            string `parquet:"id"`
	Date          string `parquet:"date"`
	ClientID      string `parquet:"client_id"`
	CardID        string `parquet:"card_id"`
	Amount        string `parquet:"amount"`
	UseChip       string `parquet:"use_chip"`
	MerchantID    string `parquet:"merchant_id"`
	MerchantCity  string `parquet:"merchant_city"`
	MerchantState string `parquet:"merchant_state"`
	Zip           string `parquet:"zip"`
	MCC           string `parquet:"mcc"`
	Errors        string `parquet:"errors"`
}
