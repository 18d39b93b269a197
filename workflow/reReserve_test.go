package workflow

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
)

// seedReReserveFixture: order 10 line 1/1 holds a single reservation of 10
// against the facility-1 lot. Facility 2 has its own stock to move to.
func seedReReserveFixture(store *memStore) {
	t1 := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	store.addProduct(1, models.ProductTypePhysical)
	store.addFacility(1, nil, nil)
	store.addFacility(2, nil, nil)
	store.addOrder(10, t1, nil)
	store.addShipGroup(10, 1, nil, nil)

	f1, f2 := 1, 2
	lotA := store.addLot(1, 1, &f1, "10", t1.Add(-time.Hour))
	lotA.AvailableToPromise = decimal.NullDecimal{Decimal: decimal.Zero, Valid: true}
	store.addLot(2, 1, &f2, "10", t1.Add(-time.Hour))

	store.reservations = append(store.reservations, &models.ItemReservation{
		ID: 1, OrderId: 10, OrderItemSeqId: 1, ShipGroupSeqId: 1, InventoryItemId: 1,
		Quantity: decimal.NewFromInt(10), ReservedAt: t1,
		IsPriority: utils.NewFalse(), Policy: models.ReservePolicyFifoReceived,
	})
	store.nextResId = 2
}

func facilityOf(store *memStore, res *models.ItemReservation) int {
	item := store.items[res.InventoryItemId]
	if item == nil || item.FacilityId == nil {
		return 0
	}
	return *item.FacilityId
}

func TestReReserveSplitsAcrossFacilities(t *testing.T) {
	engine, store := newTestEngine()
	seedReReserveFixture(store)

	line := OrderLine{OrderId: 10, OrderItemSeqId: 1, ShipGroupSeqId: 1}
	if err := engine.ReReserve(context.Background(), line, 2, decimal.NewFromInt(6)); err != nil {
		t.Fatalf("ReReserve: %v", err)
	}

	var atNew, atOld, total decimal.Decimal
	for _, res := range store.activeReservations() {
		total = total.Add(res.Quantity)
		switch facilityOf(store, res) {
		case 2:
			atNew = atNew.Add(res.Quantity)
		case 1:
			atOld = atOld.Add(res.Quantity)
		}
	}
	if !atNew.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("reserved at new facility = %s, want 6", atNew)
	}
	if !atOld.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("reserved at original facility = %s, want 4", atOld)
	}
	if !total.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("total reserved = %s, want 10 preserved", total)
	}
}

func TestReReserveFullQuantityMovesEverything(t *testing.T) {
	engine, store := newTestEngine()
	seedReReserveFixture(store)

	line := OrderLine{OrderId: 10, OrderItemSeqId: 1, ShipGroupSeqId: 1}
	if err := engine.ReReserve(context.Background(), line, 2, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("ReReserve: %v", err)
	}

	active := store.activeReservations()
	total := decimal.Zero
	for _, res := range active {
		total = total.Add(res.Quantity)
		if got := facilityOf(store, res); got != 2 {
			t.Fatalf("reservation left at facility %d, want everything at 2", got)
		}
	}
	if !total.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("total reserved = %s, want 10", total)
	}
}

func TestReReserveOverRequestRejected(t *testing.T) {
	engine, store := newTestEngine()
	seedReReserveFixture(store)

	line := OrderLine{OrderId: 10, OrderItemSeqId: 1, ShipGroupSeqId: 1}
	err := engine.ReReserve(context.Background(), line, 2, decimal.NewFromInt(15))
	if !utils.IsKind(err, utils.ErrorKindPolicy) {
		t.Fatalf("err = %v, want policy kind", err)
	}

	// No replacement reservations were taken before the failure surfaced; the
	// surrounding transaction is expected to roll the cancellations back.
	if len(store.reservations) != 1 {
		t.Fatalf("got %d reservation rows, want only the original", len(store.reservations))
	}
}

func TestReReservePreservesTimestampPolicySequence(t *testing.T) {
	engine, store := newTestEngine()
	seedReReserveFixture(store)
	original := store.reservations[0]
	original.SequenceId = utils.NewInt64(7)
	original.Policy = models.ReservePolicyLifoReceived

	line := OrderLine{OrderId: 10, OrderItemSeqId: 1, ShipGroupSeqId: 1}
	if err := engine.ReReserve(context.Background(), line, 2, decimal.NewFromInt(6)); err != nil {
		t.Fatalf("ReReserve: %v", err)
	}

	for _, res := range store.activeReservations() {
		if !res.ReservedAt.Equal(original.ReservedAt) {
			t.Fatalf("reservedAt = %v, want original %v preserved", res.ReservedAt, original.ReservedAt)
		}
		if res.SequenceId == nil || *res.SequenceId != 7 {
			t.Fatalf("sequenceId = %v, want 7 preserved", res.SequenceId)
		}
		if res.Policy != models.ReservePolicyLifoReceived {
			t.Fatalf("policy = %s, want LIFO_REC preserved", res.Policy)
		}
	}
}

func TestReReserveValidation(t *testing.T) {
	engine, store := newTestEngine()
	seedReReserveFixture(store)

	err := engine.ReReserve(context.Background(), OrderLine{}, 2, decimal.NewFromInt(1))
	if !utils.IsKind(err, utils.ErrorKindValidation) {
		t.Fatalf("empty line: err = %v, want validation kind", err)
	}

	line := OrderLine{OrderId: 10, OrderItemSeqId: 1, ShipGroupSeqId: 1}
	err = engine.ReReserve(context.Background(), line, 2, decimal.Zero)
	if !utils.IsKind(err, utils.ErrorKindValidation) {
		t.Fatalf("zero quantity: err = %v, want validation kind", err)
	}
}

func TestReReserveNoActiveReservations(t *testing.T) {
	engine, store := newTestEngine()
	seedReReserveFixture(store)

	line := OrderLine{OrderId: 99, OrderItemSeqId: 1, ShipGroupSeqId: 1}
	err := engine.ReReserve(context.Background(), line, 2, decimal.NewFromInt(1))
	if !utils.IsKind(err, utils.ErrorKindNotFound) {
		t.Fatalf("err = %v, want not-found kind", err)
	}
}
