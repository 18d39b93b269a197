package workflow

import (
	"sort"

	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
)

// RankLots orders candidate lots for drawing under the given policy. The sort
// is stable, so lots that compare equal keep the store's id order and repeated
// runs over the same data draw identically.
//
// Lots with no expire date sort after dated lots under both expire policies:
// undated stock is neither freshest nor stalest, it is drawn last.
func RankLots(lots []*models.InventoryItem, policy models.ReservePolicy) []*models.InventoryItem {
	ranked := make([]*models.InventoryItem, len(lots))
	copy(ranked, lots)

	var less func(a, b *models.InventoryItem) bool
	switch models.NormalizeReservePolicy(string(policy)) {
	case models.ReservePolicyLifoReceived:
		less = func(a, b *models.InventoryItem) bool {
			return a.ReceivedDate.After(b.ReceivedDate)
		}
	case models.ReservePolicyFifoExpire:
		less = func(a, b *models.InventoryItem) bool {
			switch {
			case a.ExpireDate == nil && b.ExpireDate == nil:
				return false
			case a.ExpireDate == nil:
				return false
			case b.ExpireDate == nil:
				return true
			default:
				return a.ExpireDate.Before(*b.ExpireDate)
			}
		}
	case models.ReservePolicyLifoExpire:
		less = func(a, b *models.InventoryItem) bool {
			switch {
			case a.ExpireDate == nil && b.ExpireDate == nil:
				return false
			case a.ExpireDate == nil:
				return false
			case b.ExpireDate == nil:
				return true
			default:
				return a.ExpireDate.After(*b.ExpireDate)
			}
		}
	case models.ReservePolicyGreaterUnitCost:
		less = func(a, b *models.InventoryItem) bool {
			return a.UnitCost.GreaterThan(b.UnitCost)
		}
	case models.ReservePolicyLesserUnitCost:
		less = func(a, b *models.InventoryItem) bool {
			return a.UnitCost.LessThan(b.UnitCost)
		}
	default:
		less = func(a, b *models.InventoryItem) bool {
			return a.ReceivedDate.Before(b.ReceivedDate)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
	return ranked
}

// searchTiers is the fixed lot-search order: dedicated picking locations
// first, then bulk storage, then everything else.
var searchTiers = []models.FacilityLocationType{
	models.FacilityLocationTypePrimary,
	models.FacilityLocationTypeBulk,
	models.FacilityLocationTypeNone,
}

// selectCandidates walks the three location tiers and returns one flat draw
// list: each tier's lots ranked under the policy, tiers concatenated in
// search order. A lot surfacing in an earlier tier is not re-offered by the
// final unrestricted tier.
func (e *Engine) selectCandidates(filter LotFilter, policy models.ReservePolicy) ([]*models.InventoryItem, error) {
	seen := make(map[int]bool)
	var all []*models.InventoryItem
	for _, tier := range searchTiers {
		f := filter
		f.LocationType = tier
		lots, err := e.store.CandidateLots(f)
		if err != nil {
			return nil, err
		}
		var fresh []*models.InventoryItem
		for _, lot := range lots {
			if seen[lot.ID] {
				continue
			}
			seen[lot.ID] = true
			fresh = append(fresh, lot)
		}
		all = append(all, RankLots(fresh, policy)...)
	}
	return all, nil
}
