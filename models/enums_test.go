package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"github.com/shopspring/decimal"
)

func TestNormalizeReservePolicy(t *testing.T) {
	cases := []struct {
		code string
		want models.ReservePolicy
	}{
		{"FIFO_REC", models.ReservePolicyFifoReceived},
		{"LIFO_REC", models.ReservePolicyLifoReceived},
		{"FIFO_EXP", models.ReservePolicyFifoExpire},
		{"LIFO_EXP", models.ReservePolicyLifoExpire},
		{"GREATER_COST", models.ReservePolicyGreaterUnitCost},
		{"LESSER_COST", models.ReservePolicyLesserUnitCost},
		// Unknown or empty codes default to FIFO by received date, deliberately.
		{"", models.ReservePolicyFifoReceived},
		{"INVRO_FIFO_REC", models.ReservePolicyFifoReceived},
		{"fifo_rec", models.ReservePolicyFifoReceived},
	}
	for _, tc := range cases {
		if got := models.NormalizeReservePolicy(tc.code); got != tc.want {
			t.Fatalf("NormalizeReservePolicy(%q) = %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestReservePolicyScanValue(t *testing.T) {
	var p models.ReservePolicy
	if err := p.Scan("LIFO_EXP"); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if p != models.ReservePolicyLifoExpire {
		t.Fatalf("Scan = %s, want LIFO_EXP", p)
	}
	if err := p.Scan(nil); err != nil {
		t.Fatalf("Scan nil: %v", err)
	}
	if p != models.ReservePolicyFifoReceived {
		t.Fatalf("Scan nil = %s, want FIFO_REC default", p)
	}

	v, err := models.ReservePolicy("garbage").Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != string(models.ReservePolicyFifoReceived) {
		t.Fatalf("Value = %v, want normalized FIFO_REC", v)
	}
}

func TestPromisableQuantity(t *testing.T) {
	serial := &models.InventoryItem{ItemKind: models.InventoryItemKindSerialized, Status: models.InventoryStatusAvailable}
	if !serial.PromisableQuantity().Equal(decimal.NewFromInt(1)) {
		t.Fatalf("available serialized lot promisable = %s, want 1", serial.PromisableQuantity())
	}
	serial.Status = models.InventoryStatusPromised
	if !serial.PromisableQuantity().IsZero() {
		t.Fatalf("promised serialized lot promisable = %s, want 0", serial.PromisableQuantity())
	}

	bulk := &models.InventoryItem{
		ItemKind:           models.InventoryItemKindNonSerialized,
		AvailableToPromise: decimal.NullDecimal{Decimal: decimal.NewFromInt(-3), Valid: true},
	}
	if !bulk.PromisableQuantity().IsZero() {
		t.Fatalf("negative availability promisable = %s, want 0", bulk.PromisableQuantity())
	}
	bulk.AvailableToPromise = decimal.NullDecimal{Decimal: decimal.RequireFromString("2.5"), Valid: true}
	if !bulk.PromisableQuantity().Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("promisable = %s, want 2.5", bulk.PromisableQuantity())
	}
}

func TestBeforeSaveKeepsKindCoherent(t *testing.T) {
	sn := "SN-1"
	serial := &models.InventoryItem{
		ItemKind:           models.InventoryItemKindSerialized,
		SerialNumber:       &sn,
		QuantityOnHand:     decimal.NewFromInt(4),
		AvailableToPromise: decimal.NullDecimal{Decimal: decimal.NewFromInt(4), Valid: true},
	}
	if err := serial.BeforeSave(nil); err != nil {
		t.Fatalf("BeforeSave: %v", err)
	}
	if !serial.QuantityOnHand.IsZero() || serial.AvailableToPromise.Valid {
		t.Fatal("serialized lot must not carry decimal totals")
	}

	bulk := &models.InventoryItem{SerialNumber: &sn}
	if err := bulk.BeforeSave(nil); err != nil {
		t.Fatalf("BeforeSave: %v", err)
	}
	if bulk.ItemKind != models.InventoryItemKindNonSerialized {
		t.Fatalf("kind = %s, want default NonSerialized", bulk.ItemKind)
	}
	if bulk.SerialNumber != nil {
		t.Fatal("non-serialized lot must not carry a serial number")
	}
}
