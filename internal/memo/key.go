// Package memo provides the memoization maps owned by the aggregators.
//
// A Map is filled during warm-up and then sealed. After sealing its contents
// never change; lookups that miss are computed on the calling goroutine and
// kept in a bounded overflow cache instead.
package memo

import (
	"fmt"
	"strconv"
)

// KeyKind tags which filter a Key carries.
type KeyKind uint8

// Filter kinds.
const (
	KindAll KeyKind = iota
	KindRegion
	KindMerchantGroup
	KindMerchant
	KindUser
)

func (k KeyKind) String() string {
	switch k {
	case KindAll:
		return "all"
	case KindRegion:
		return "region"
	case KindMerchantGroup:
		return "merchant_group"
	case KindMerchant:
		return "merchant"
	case KindUser:
		return "user"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Key is a typed filter value. The zero Key means "no filter".
type Key struct {
	Text string
	ID   int64
	Kind KeyKind
}

// All is the unfiltered key.
func All() Key { return Key{Kind: KindAll} }

// Region filters on a full state name.
func Region(name string) Key { return Key{Kind: KindRegion, Text: name} }

// MerchantGroup filters on a merchant group label.
func MerchantGroup(name string) Key { return Key{Kind: KindMerchantGroup, Text: name} }

// Merchant filters on a merchant id.
func Merchant(id int64) Key { return Key{Kind: KindMerchant, ID: id} }

// User filters on a client id.
func User(id int64) Key { return Key{Kind: KindUser, ID: id} }

// OptionalRegion returns All for nil and Region otherwise.
func OptionalRegion(region *string) Key {
	if region == nil {
		return All()
	}
	return Region(*region)
}

// OptionalGroup returns All for nil and MerchantGroup otherwise.
func OptionalGroup(group *string) Key {
	if group == nil {
		return All()
	}
	return MerchantGroup(*group)
}

// String renders the key; distinct keys render distinctly.
func (k Key) String() string {
	switch k.Kind {
	case KindAll:
		return "all"
	case KindRegion, KindMerchantGroup:
		return fmt.Sprintf("%s=%q", k.Kind, k.Text)
	default:
		return fmt.Sprintf("%s=%d", k.Kind, k.ID)
	}
}
