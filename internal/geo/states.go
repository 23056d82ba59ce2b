// Package geo holds the static geography used during cleaning: state names,
// zip code centroids and the placeholder region drawn for online transactions.
package geo

import (
	"strings"

	"github.com/Veraticus/spice-dash/internal/model"
)

var stateNames = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas", "CA": "California",
	"CO": "Colorado", "CT": "Connecticut", "DE": "Delaware", "FL": "Florida", "GA": "Georgia",
	"HI": "Hawaii", "ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi", "MO": "Missouri",
	"MT": "Montana", "NE": "Nebraska", "NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey",
	"NM": "New Mexico", "NY": "New York", "NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
	"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah", "VT": "Vermont",
	"VA": "Virginia", "WA": "Washington", "WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
	"DC": "District of Columbia", "PR": "Puerto Rico", "GU": "Guam", "VI": "U.S. Virgin Islands",
	"AS": "American Samoa", "MP": "Northern Mariana Islands",
}

// StateName maps a state abbreviation to its full name. Empty or missing
// states are online transactions; unknown values (foreign countries) are
// returned unchanged.
func StateName(abbr *string) string {
	if abbr == nil {
		return model.OnlineState
	}
	a := strings.TrimSpace(*abbr)
	if a == "" {
		return model.OnlineState
	}
	if name, ok := stateNames[strings.ToUpper(a)]; ok {
		return name
	}
	return a
}

// IsUSState reports whether name is one of the known full state names.
func IsUSState(name string) bool {
	for _, n := range stateNames {
		if n == name {
			return true
		}
	}
	return false
}
