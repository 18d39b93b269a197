package workflow

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"github.com/shopspring/decimal"
)

// lockOrderStore records the order of lock-free scope reads and row-locking
// reads relative to the reservation lock. In production CandidateLots and
// ItemById take SELECT ... FOR UPDATE; either happening before the
// reservation lock is obtained would invert the lock order ReserveInventory
// establishes and deadlock against a concurrent reserve.
type lockOrderStore struct {
	InventoryStore
	events []string
}

func (s *lockOrderStore) record(event string) {
	s.events = append(s.events, event)
}

func (s *lockOrderStore) ItemById(itemId int) (*models.InventoryItem, error) {
	s.record("row-lock-read")
	return s.InventoryStore.ItemById(itemId)
}

func (s *lockOrderStore) CandidateLots(filter LotFilter) ([]*models.InventoryItem, error) {
	s.record("row-lock-read")
	return s.InventoryStore.CandidateLots(filter)
}

func (s *lockOrderStore) SimilarItemsWithNegativeAvailability(item *models.InventoryItem) ([]*models.InventoryItem, error) {
	s.record("row-lock-read")
	return s.InventoryStore.SimilarItemsWithNegativeAvailability(item)
}

func (s *lockOrderStore) ItemScope(itemId int) (*LotScope, error) {
	s.record("scope-read")
	return s.InventoryStore.ItemScope(itemId)
}

// stubReservationLock replaces the redis-backed lock and records when it is
// taken. Restores the real lock on cleanup.
func stubReservationLock(t *testing.T, store *lockOrderStore) {
	t.Helper()
	original := obtainReservationLock
	obtainReservationLock = func(ctx context.Context, key string) (func(), error) {
		store.record("reservation-lock")
		return func() { store.record("reservation-unlock") }, nil
	}
	t.Cleanup(func() { obtainReservationLock = original })
}

func assertLockBeforeRowLocks(t *testing.T, events []string) {
	t.Helper()
	locked := false
	for i, event := range events {
		switch event {
		case "reservation-lock":
			locked = true
		case "row-lock-read":
			if !locked {
				t.Fatalf("row-locking read at position %d before reservation lock; events: %v", i, events)
			}
		}
	}
	if !locked {
		t.Fatalf("reservation lock never taken; events: %v", events)
	}
}

func TestRebalanceTakesReservationLockBeforeRowLocks(t *testing.T) {
	mem := newMemStore()
	seedRebalanceFixture(mem)
	store := &lockOrderStore{InventoryStore: mem}
	stubReservationLock(t, store)

	if err := rebalanceWithLock(context.Background(), store, nil, "biz-1", 1, nil); err != nil {
		t.Fatalf("rebalanceWithLock: %v", err)
	}
	assertLockBeforeRowLocks(t, store.events)
}

func TestReReserveTakesReservationLockBeforeRowLocks(t *testing.T) {
	mem := newMemStore()
	seedReReserveFixture(mem)
	store := &lockOrderStore{InventoryStore: mem}
	stubReservationLock(t, store)

	line := OrderLine{OrderId: 10, OrderItemSeqId: 1, ShipGroupSeqId: 1}
	err := reReserveWithLock(context.Background(), store, nil, "biz-1", line, 2, decimal.NewFromInt(4))
	if err != nil {
		t.Fatalf("reReserveWithLock: %v", err)
	}
	assertLockBeforeRowLocks(t, store.events)
}

func TestReserveTakesReservationLockFirst(t *testing.T) {
	mem := newMemStore()
	seedOrder(mem)
	mem.addProduct(1, models.ProductTypePhysical)
	mem.addLot(1, 1, nil, "5", testOrderDate)
	store := &lockOrderStore{InventoryStore: mem}
	stubReservationLock(t, store)

	if _, err := reserveWithLock(context.Background(), store, nil, "biz-1", baseRequest(1, "2")); err != nil {
		t.Fatalf("reserveWithLock: %v", err)
	}
	assertLockBeforeRowLocks(t, store.events)
	if store.events[len(store.events)-1] != "reservation-unlock" {
		t.Fatalf("lock not released last; events: %v", store.events)
	}
}

func TestReservationLockKey(t *testing.T) {
	facility := 7
	if got := reservationLockKey("biz-1", 42, &facility); got != "inv_reserve:biz-1:42:7" {
		t.Fatalf("key with facility = %q", got)
	}
	if got := reservationLockKey("biz-1", 42, nil); got != "inv_reserve:biz-1:42" {
		t.Fatalf("facility-agnostic key = %q", got)
	}
}
