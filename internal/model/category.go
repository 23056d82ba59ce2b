// Package model defines the canonical tables and joined rows shared by every component.
package model

// CategoryCode maps a merchant category code to its merchant group label.
type CategoryCode struct {
	Group string `parquet:"merchant_group"`
	Code  int32  `parquet:"mcc"`
}

// CategoryIndex indexes category codes for joins.
type CategoryIndex map[int32]string

// IndexCategories builds a lookup from codes.
func IndexCategories(codes []CategoryCode) CategoryIndex {
	idx := make(CategoryIndex, len(codes))
	for _, c := range codes {
		idx[c.Code] = c.Group
	}
	return idx
}
