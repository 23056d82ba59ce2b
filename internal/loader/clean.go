package loader

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/spice-dash/internal/common"
	"github.com/Veraticus/spice-dash/internal/geo"
	"github.com/Veraticus/spice-dash/internal/model"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02 15:04:05"

// ParseMoney normalizes a currency string such as "$-1,234.50" to a float.
func ParseMoney(s string) (float64, error) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if clean == "" {
		return 0, fmt.Errorf("%w: empty amount", common.ErrMalformedRow)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q: %v", common.ErrMalformedRow, s, err)
	}
	return d.InexactFloat64(), nil
}

func parseInt(field, s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", common.ErrMalformedRow, field, s)
	}
	return v, nil
}

func parseInt32(field, s string) (int32, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", common.ErrMalformedRow, field, s)
	}
	return int32(v), nil
}

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", common.ErrMalformedRow, field, s)
	}
	return v, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func yes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1":
		return true
	default:
		return false
	}
}

// CleanTransaction normalizes units, pads and geocodes the postal code and
// resolves the full state name.
func CleanTransaction(raw model.RawTransaction, coder geo.Geocoder) (model.Transaction, error) {
	var (
		tx  model.Transaction
		err error
	)
	if tx.ID, err = parseInt("id", raw.ID); err != nil {
		return tx, err
	}
	if tx.Date, err = time.Parse(dateLayout, strings.TrimSpace(raw.Date)); err != nil {
		return tx, fmt.Errorf("%w: date %q", common.ErrMalformedRow, raw.Date)
	}
	if tx.ClientID, err = parseInt("client_id", raw.ClientID); err != nil {
		return tx, err
	}
	if tx.CardID, err = parseInt("card_id", raw.CardID); err != nil {
		return tx, err
	}
	if tx.Amount, err = ParseMoney(raw.Amount); err != nil {
		return tx, err
	}
	if tx.MerchantID, err = parseInt("merchant_id", raw.MerchantID); err != nil {
		return tx, err
	}
	if tx.MCC, err = parseInt32("mcc", raw.MCC); err != nil {
		return tx, err
	}

	tx.Method = strings.TrimSpace(raw.UseChip)
	tx.MerchantCity = optional(raw.MerchantCity)
	tx.MerchantState = optional(raw.MerchantState)
	tx.Errors = optional(raw.Errors)
	tx.StateName = geo.StateName(tx.MerchantState)

	if zip, ok := geo.PadZip(raw.Zip); ok {
		tx.Zip = &zip
		if coder != nil {
			if p, found := coder.Locate(zip); found {
				lat, lon := p.Lat, p.Lon
				tx.Latitude, tx.Longitude = &lat, &lon
			}
		}
	}
	return tx, nil
}

// CleanUser normalizes income columns and derives the current age from the
// birth year relative to clock.
func CleanUser(raw model.RawUser, clock clockwork.Clock) (model.User, error) {
	var (
		u   model.User
		err error
	)
	if u.ID, err = parseInt("id", raw.ID); err != nil {
		return u, err
	}
	if u.BirthYear, err = parseInt32("birth_year", raw.BirthYear); err != nil {
		return u, err
	}
	u.CurrentAge = int32(clock.Now().Year()) - u.BirthYear
	if u.CurrentAge < 0 {
		u.CurrentAge = 0
	}
	u.BirthMonth, _ = parseInt32("birth_month", raw.BirthMonth)
	u.RetirementAge, _ = parseInt32("retirement_age", raw.RetirementAge)
	u.Gender = strings.TrimSpace(raw.Gender)
	u.Address = strings.TrimSpace(raw.Address)
	u.Latitude, _ = parseFloat("latitude", raw.Latitude)
	u.Longitude, _ = parseFloat("longitude", raw.Longitude)
	if u.YearlyIncome, err = ParseMoney(raw.YearlyIncome); err != nil {
		return u, err
	}
	u.PerCapitaIncome, _ = ParseMoney(raw.PerCapitaIncome)
	u.TotalDebt, _ = ParseMoney(raw.TotalDebt)
	u.CreditScore, _ = parseInt32("credit_score", raw.CreditScore)
	u.NumCreditCards, _ = parseInt32("num_credit_cards", raw.NumCreditCards)
	return u, nil
}

// CleanCard normalizes the credit limit and flag columns.
func CleanCard(raw model.RawCard) (model.Card, error) {
	var (
		c   model.Card
		err error
	)
	if c.ID, err = parseInt("id", raw.ID); err != nil {
		return c, err
	}
	if c.ClientID, err = parseInt("client_id", raw.ClientID); err != nil {
		return c, err
	}
	if c.CreditLimit, err = ParseMoney(raw.CreditLimit); err != nil {
		return c, err
	}
	c.CardBrand = strings.TrimSpace(raw.CardBrand)
	c.CardType = strings.TrimSpace(raw.CardType)
	c.Expires = strings.TrimSpace(raw.Expires)
	c.AcctOpenDate = strings.TrimSpace(raw.AcctOpenDate)
	c.NumCardsIssued, _ = parseInt32("num_cards_issued", raw.NumCardsIssued)
	c.HasChip = yes(raw.HasChip)
	c.CardOnDarkWeb = yes(raw.CardOnDarkWeb)
	return c, nil
}
