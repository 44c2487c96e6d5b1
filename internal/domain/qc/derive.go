package qc

// DeriveProductStatus rolls item statuses up to the product:
// pending while nothing is decided, in_progress while some items are still
// pending, then passed, failed or partial_pass.
func DeriveProductStatus(items []ItemDetail) ProductStatus {
	var passed, failed, pending int
	for _, it := range items {
		switch it.Status {
		case ItemPassed:
			passed++
		case ItemFailed:
			failed++
		default:
			pending++
		}
	}

	switch {
	case passed+failed == 0:
		return ProductPending
	case pending > 0:
		return ProductInProgress
	case failed == 0:
		return ProductPassed
	case passed == 0:
		return ProductFailed
	default:
		return ProductPartialPass
	}
}

// IsDecided reports whether every item of the product has a result.
func (s ProductStatus) IsDecided() bool {
	return s == ProductPassed || s == ProductFailed || s == ProductPartialPass
}

// DeriveOverallResult rolls decided products up to the record result.
// Undecided products yield an empty result.
func DeriveOverallResult(products []Product) Result {
	if len(products) == 0 {
		return ""
	}

	allPassed, allFailed := true, true
	for _, p := range products {
		switch p.OverallStatus {
		case ProductPassed:
			allFailed = false
		case ProductFailed:
			allPassed = false
		case ProductPartialPass:
			allPassed, allFailed = false, false
		default:
			return ""
		}
	}

	switch {
	case allPassed:
		return ResultPassed
	case allFailed:
		return ResultFailed
	default:
		return ResultPartialPass
	}
}

// recompute refreshes the per-product counters and status from its items.
func (p *Product) recompute() {
	p.PassedQty, p.FailedQty = 0, 0
	for _, it := range p.ItemDetails {
		switch it.Status {
		case ItemPassed:
			p.PassedQty++
		case ItemFailed:
			p.FailedQty++
		}
	}
	p.OverallStatus = DeriveProductStatus(p.ItemDetails)
}
