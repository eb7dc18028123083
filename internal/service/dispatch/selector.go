package dispatch

import "shipper-dispatch/internal/domain"

// selectShipper picks the eligible shipper whose last offer is the oldest.
// Shippers that were never offered come first; ties go to the lowest id so the
// rotation is deterministic.
func selectShipper(candidates []domain.ShipperProfile) (domain.ShipperProfile, bool) {
	var (
		best  domain.ShipperProfile
		found bool
	)
	for _, c := range candidates {
		if !c.Eligible() {
			continue
		}
		if !found || before(c, best) {
			best, found = c, true
		}
	}
	return best, found
}

func before(a, b domain.ShipperProfile) bool {
	switch {
	case a.LastAssignedAt == nil && b.LastAssignedAt != nil:
		return true
	case a.LastAssignedAt != nil && b.LastAssignedAt == nil:
		return false
	case a.LastAssignedAt != nil && !a.LastAssignedAt.Equal(*b.LastAssignedAt):
		return a.LastAssignedAt.Before(*b.LastAssignedAt)
	default:
		return a.UserID < b.UserID
	}
}
