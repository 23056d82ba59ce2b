package model

// CategorizedTransaction is a transaction left-joined with its category code.
// MerchantGroup is nil when the code is not in the lookup.
type CategorizedTransaction struct {
	MerchantGroup *string     `parquet:"merchant_group,optional"`
	Transaction   Transaction `parquet:"transaction"`
}

// Group returns the merchant group or "" when unknown.
func (c CategorizedTransaction) Group() string {
	if c.MerchantGroup == nil {
		return ""
	}
	return *c.MerchantGroup
}

// ProfiledTransaction is a categorized transaction left-joined with its user.
// Demographic fields are nil when the client is not in the users table.
type ProfiledTransaction struct {
	MerchantGroup *string     `parquet:"merchant_group,optional"`
	Gender        *string     `parquet:"gender,optional"`
	YearlyIncome  *float64    `parquet:"yearly_income,optional"`
	BirthYear     *int32      `parquet:"birth_year,optional"`
	CurrentAge    *int32      `parquet:"current_age,optional"`
	Transaction   Transaction `parquet:"transaction"`
}

// Group returns the merchant group or "" when unknown.
func (p ProfiledTransaction) Group() string {
	if p.MerchantGroup == nil {
		return ""
	}
	return *p.MerchantGroup
}

// GenderLabel returns the gender or "Unknown".
func (p ProfiledTransaction) GenderLabel() string {
	if p.Gender == nil || *p.Gender == "" {
		return "Unknown"
	}
	return *p.Gender
}

// AgeLabel returns the decade bucket of the user age or "Unknown".
func (p ProfiledTransaction) AgeLabel() string {
	if p.CurrentAge == nil {
		return "Unknown"
	}
	return AgeGroup(*p.CurrentAge)
}
