package discount

import "github.com/itadmit/quickshop-pricing/internal/domain/cart"

// Applies reports whether the scope permits the rule to act on the given cart.
//
// Inclusion sets require at least one matching line and pass vacuously when
// unset. Exclusion sets reject the whole cart on any match, overriding
// inclusion. The predicate is pure and safe for concurrent use.
func (s Scope) Applies(lines []cart.Line) bool {
	if len(s.ApplicableProducts) > 0 && !anyLine(lines, func(l cart.Line) bool {
		return containsID(s.ApplicableProducts, l.ProductID)
	}) {
		return false
	}

	if len(s.ApplicableCategories) > 0 && !anyLine(lines, func(l cart.Line) bool {
		return l.CategoryID != 0 && containsID(s.ApplicableCategories, l.CategoryID)
	}) {
		return false
	}

	if len(s.ExcludedProducts) > 0 && anyLine(lines, func(l cart.Line) bool {
		return containsID(s.ExcludedProducts, l.ProductID)
	}) {
		return false
	}

	if len(s.ExcludedCategories) > 0 && anyLine(lines, func(l cart.Line) bool {
		return l.CategoryID != 0 && containsID(s.ExcludedCategories, l.CategoryID)
	}) {
		return false
	}

	return true
}

func anyLine(lines []cart.Line, pred func(cart.Line) bool) bool {
	for _, l := range lines {
		if pred(l) {
			return true
		}
	}
	return false
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
