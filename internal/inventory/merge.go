// Package inventory implements the insert-or-update merge that reconciles
// incrementally discovered items into a session's running inventory.
package inventory

import "github.com/soyeahso/quotemill/internal/domain"

// Result reports what a merge pass did.
type Result struct {
	Inserted int
	Updated  int
	// Rejected lists incoming items that were missing part of the
	// composite key, rendered for logging. Never silently dropped.
	Rejected []string
}

// Changed reports whether the merge modified the inventory.
func (r Result) Changed() bool {
	return r.Inserted > 0 || r.Updated > 0
}

// Merge reconciles incoming items into the existing inventory and returns
// the new slice. Items are matched by (name, region), case-sensitive. An
// existing match has its mutable fields replaced in place, keeping its
// position; a new key is appended. The input slices are not mutated.
//
// Merge is idempotent: merging the same incoming list twice yields the
// same inventory as merging it once.
func Merge(existing, incoming []domain.InventoryItem) ([]domain.InventoryItem, Result) {
	merged := make([]domain.InventoryItem, len(existing))
	copy(merged, existing)

	index := make(map[domain.ItemKey]int, len(merged))
	for i, it := range merged {
		index[it.Key()] = i
	}

	var res Result
	for _, in := range incoming {
		if !in.Valid() {
			res.Rejected = append(res.Rejected, in.Key().String())
			continue
		}
		if i, ok := index[in.Key()]; ok {
			updateInPlace(&merged[i], in)
			res.Updated++
			continue
		}
		merged = append(merged, in)
		index[in.Key()] = len(merged) - 1
		res.Inserted++
	}
	return merged, res
}

// updateInPlace replaces the mutable fields of dst with those of src,
// leaving the key fields untouched.
func updateInPlace(dst *domain.InventoryItem, src domain.InventoryItem) {
	dst.Variant = src.Variant
	dst.Quantity = src.Quantity
	dst.DurationUnit = src.DurationUnit
	dst.Attributes = nil
	if src.Attributes != nil {
		attrs := make(map[string]string, len(src.Attributes))
		for k, v := range src.Attributes {
			attrs[k] = v
		}
		dst.Attributes = attrs
	}
}
