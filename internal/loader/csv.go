package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/Veraticus/spice-dash/internal/common"
	"github.com/Veraticus/spice-dash/internal/model"
)

// columns maps header names to record positions.
type columns map[string]int

func (c columns) get(rec []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// readCSV reads at most limit records (all when limit is 0) from path.
func readCSV[R any](ctx context.Context, path string, limit int64, build func(columns, []string) R) ([]R, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", common.ErrRawSourceMissing, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return decodeCSV(ctx, f, limit, build)
}

func decodeCSV[R any](ctx context.Context, r io.Reader, limit int64, build func(columns, []string) R) ([]R, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(columns, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	var out []R
	for n := int64(0); limit == 0 || n < limit; n++ {
		if n%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", n+1, err)
		}
		out = append(out, build(cols, rec))
	}
	return out, nil
}

func rawTransaction(c columns, rec []string) model.RawTransaction {
	return model.RawTransaction{
		ID:            c.get(rec, "id"),
		Date:          c.get(rec, "date"),
		ClientID:      c.get(rec, "client_id"),
		CardID:        c.get(rec, "card_id"),
		Amount:        c.get(rec, "amount"),
		UseChip:       c.get(rec, "use_chip"),
		MerchantID:    c.get(rec, "merchant_id"),
		MerchantCity:  c.get(rec, "merchant_city"),
		MerchantState: c.get(rec, "merchant_state"),
		Zip:           c.get(rec, "zip"),
		MCC:           c.get(rec, "mcc"),
		Errors:        c.get(rec, "errors"),
	}
}

func rawUser(c columns, rec []string) model.RawUser {
	return model.RawUser{
		ID:              c.get(rec, "id"),
		CurrentAge:      c.get(rec, "current_age"),
		RetirementAge:   c.get(rec, "retirement_age"),
		BirthYear:       c.get(rec, "birth_year"),
		BirthMonth:      c.get(rec, "birth_month"),
		Gender:          c.get(rec, "gender"),
		Address:         c.get(rec, "address"),
		Latitude:        c.get(rec, "latitude"),
		Longitude:       c.get(rec, "longitude"),
		PerCapitaIncome: c.get(rec, "per_capita_income"),
		YearlyIncome:    c.get(rec, "yearly_income"),
		TotalDebt:       c.get(rec, "total_debt"),
		CreditScore:     c.get(rec, "credit_score"),
		NumCreditCards:  c.get(rec, "num_credit_cards"),
	}
}

func rawCard(c columns, rec []string) model.RawCard {
	return model.RawCard{
		ID:             c.get(rec, "id"),
		ClientID:       c.get(rec, "client_id"),
		CardBrand:      c.get(rec, "card_brand"),
		CardType:       c.get(rec, "card_type"),
		Expires:        c.get(rec, "expires"),
		HasChip:        c.get(rec, "has_chip"),
		NumCardsIssued: c.get(rec, "num_cards_issued"),
		CreditLimit:    c.get(rec, "credit_limit"),
		AcctOpenDate:   c.get(rec, "acct_open_date"),
		CardOnDarkWeb:  c.get(rec, "card_on_dark_web"),
	}
}
