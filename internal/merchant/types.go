package merchant

// Outcome tells a found ranking apart from the two kinds of missing data.
type Outcome uint8

const (
	// OutcomeFound means the ranking names an entity.
	OutcomeFound Outcome = iota
	// OutcomeEmptyGroup means the merchant group filter matched no rows.
	OutcomeEmptyGroup
	// OutcomeUnknownMerchant means the merchant id is not in the data.
	OutcomeUnknownMerchant
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeEmptyGroup:
		return "empty_group"
	case OutcomeUnknownMerchant:
		return "unknown_merchant"
	default:
		return "unknown"
	}
}

// Ranking is the arg-max entity of a grouped aggregate.
type Ranking struct {
	ID      int64
	Value   float64
	Outcome Outcome
}

// Found reports whether the ranking names an entity.
func (r Ranking) Found() bool {
	return r.Outcome == OutcomeFound
}

// Pair renders the ranking as an (id, value) pair. Missing data renders as
// (-1, -1) for an empty group and (-2, -2) for an unknown merchant.
func (r Ranking) Pair() (int64, float64) {
	switch r.Outcome {
	case OutcomeEmptyGroup:
		return -1, -1
	case OutcomeUnknownMerchant:
		return -2, -2
	default:
		return r.ID, r.Value
	}
}

var (
	emptyGroup      = Ranking{Outcome: OutcomeEmptyGroup}
	unknownMerchant = Ranking{Outcome: OutcomeUnknownMerchant}
)

// GroupShare is one row of the merchant group overview.
type GroupShare struct {
	Group string
	Count int64
	Sum   float64
	Share float64
}

// MerchantTotal is the activity of one merchant.
type MerchantTotal struct {
	MerchantID int64
	Count      int64
	Sum        float64
}

// KPI summarizes one merchant. Found is false for unknown merchants.
type KPI struct {
	Group      string
	MerchantID int64
	Count      int64
	Users      int64
	Sum        float64
	Mean       float64
	Found      bool
}
