package model

// Card is one cleaned row of the cards table.
type Card struct {
	CardBrand      string  `parquet:"card_brand"`
	CardType       string  `parquet:"card_type"`
	Expires        string  `parquet:"expires"`
	AcctOpenDate   string  `parquet:"acct_open_date"`
	ID             int64   `parquet:"id"`
	ClientID       int64   `parquet:"client_id"`
	CreditLimit    float64 `parquet:"credit_limit"`
	NumCardsIssued int32   `parquet:"num_cards_issued"`
	HasChip        bool    `parquet:"has_chip"`
	CardOnDarkWeb  bool    `parquet:"card_on_dark_web"`
}

// RawCard is a cards_data.csv row before cleaning.
type RawCard struct {
	ID             string `parquet:"id"`
	ClientID       string `parquet:"client_id"`
	CardBrand      string `parquet:"card_brand"`
	CardType       string `parquet:"card_type"`
	Expires        string `parquet:"expires"`
	HasChip        string `parquet:"has_chip"`
	NumCardsIssued string `parquet:"num_cards_issued"`
	CreditLimit    string `parquet:"credit_limit"`
	AcctOpenDate   string `parquet:"acct_open_date"`
	CardOnDarkWeb  string `parquet:"card_on_dark_web"`
}
