package stock

import (
	"testing"

	"github.com/google/uuid"
)

func TestDirection(t *testing.T) {
	inbound := []string{KindReceipt, KindTransferIn, KindAdjustmentIn, KindReturn}
	outbound := []string{KindDispense, KindTransferOut, KindAdjustmentOut, KindWaste}

	for _, k := range inbound {
		if Direction(k) != 1 {
			t.Errorf("Direction(%s) = %d, want 1", k, Direction(k))
		}
	}
	for _, k := range outbound {
		if Direction(k) != -1 {
			t.Errorf("Direction(%s) = %d, want -1", k, Direction(k))
		}
	}
}

func TestValidKind(t *testing.T) {
	if !ValidKind(KindReceipt) {
		t.Error("RECEIPT should be a valid kind")
	}
	if ValidKind("LOAN") {
		t.Error("LOAN is not a kind")
	}
}

func TestMoveWarehouse(t *testing.T) {
	from := uuid.New()
	to := uuid.New()

	in := &Request{Kind: KindTransferIn, FromWarehouseID: &from, ToWarehouseID: &to}
	if in.moveWarehouse() != to {
		t.Error("inbound kinds land on the destination warehouse")
	}

	out := &Request{Kind: KindTransferOut, FromWarehouseID: &from, ToWarehouseID: &to}
	if out.moveWarehouse() != from {
		t.Error("outbound kinds land on the source warehouse")
	}
}
