package model

import "fmt"

// User is one cleaned row of the users table.
type User struct {
	Gender          string  `parquet:"gender"`
	Address         string  `parquet:"address"`
	ID              int64   `parquet:"id"`
	Latitude        float64 `parquet:"latitude"`
	Longitude       float64 `parquet:"longitude"`
	PerCapitaIncome float64 `parquet:"per_capita_income"`
	YearlyIncome    float64 `parquet:"yearly_income"`
	TotalDebt       float64 `parquet:"total_debt"`
	CurrentAge      int32   `parquet:"current_age"`
	RetirementAge   int32   `parquet:"retirement_age"`
	BirthYear       int32   `parquet:"birth_year"`
	BirthMonth      int32   `parquet:"birth_month"`
	CreditScore     int32   `parquet:"credit_score"`
	NumCreditCards  int32   `parquet:"num_credit_cards"`
}

// RawUser is a users_data.csv row before cleaning.
type RawUser struct {
	ID              string `parquet:"id"`
	CurrentAge      string `parquet:"current_age"`
	RetirementAge   string `parquet:"retirement_age"`
	BirthYear       string `parquet:"birth_year"`
	BirthMonth      string `parquet:"birth_month"`
	Gender          string `parquet:"gender"`
	Address         string `parquet:"address"`
	Latitude        string `parquet:"latitude"`
	Longitude       string `parquet:"longitude"`
	PerCapitaIncome string `parquet:"per_capita_income"`
	YearlyIncome    string `parquet:"yearly_income"`
	TotalDebt       string `parquet:"total_debt"`
	CreditScore     string `parquet:"credit_score"`
	NumCreditCards  string `parquet:"num_credit_cards"`
}

// AgeGroup buckets an age into its decade, e.g. 34 -> "30-39".
func AgeGroup(age int32) string {
	if age < 0 {
		age = 0
	}
	lo := age / 10 * 10
	return fmt.Sprintf("%d-%d", lo, lo+9)
}
