package stock

// PlanAllocation splits a requested discharge quantity across the given lots,
// soonest-expiring first. The lots must arrive ordered by ascending due date;
// lots without stock are skipped. The returned allocations sum exactly to
// quantity.
//
// The plan is computed before anything is mutated: when the lots cannot cover
// the request, ErrInsufficientStock is returned and no partial plan leaks out.
func PlanAllocation(lots []Lot, quantity int) ([]Allocation, error) {
	available := 0
	for _, lot := range lots {
		available += lot.Quantity
	}
	if available < quantity {
		return nil, ErrInsufficientStock
	}

	var plan []Allocation
	remaining := quantity
	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		if lot.Quantity <= 0 {
			continue
		}
		take := lot.Quantity
		if remaining < take {
			take = remaining
		}
		plan = append(plan, Allocation{Lot: lot, Quantity: take})
		remaining -= take
	}
	return plan, nil
}
