package stock

import (
	"time"

	"github.com/google/uuid"
)

// Request kinds.
const (
	KindReceipt       = "RECEIPT"
	KindDispense      = "DISPENSE"
	KindTransferOut   = "TRANSFER_OUT"
	KindTransferIn    = "TRANSFER_IN"
	KindAdjustmentIn  = "ADJUSTMENT_IN"
	KindAdjustmentOut = "ADJUSTMENT_OUT"
	KindWaste         = "WASTE"
	KindReturn        = "RETURN"
)

// Request statuses. Lines are mutable only while DRAFT; moves are realized
// only on approval.
const (
	StatusDraft     = "DRAFT"
	StatusSubmitted = "SUBMITTED"
	StatusApproved  = "APPROVED"
	StatusRejected  = "REJECTED"
	StatusCancelled = "CANCELLED"
)

// directions maps each kind to the sign its realized moves carry. Quantity
// is always stored positive; the direction carries the sign.
var directions = map[string]int{
	KindReceipt:       1,
	KindTransferIn:    1,
	KindAdjustmentIn:  1,
	KindReturn:        1,
	KindDispense:      -1,
	KindTransferOut:   -1,
	KindAdjustmentOut: -1,
	KindWaste:         -1,
}

// Direction returns +1 for inbound kinds and -1 for outbound kinds.
func Direction(kind string) int {
	return directions[kind]
}

// ValidKind reports whether k is a known request kind.
func ValidKind(k string) bool {
	_, ok := directions[k]
	return ok
}

// Inbound kinds operate on the destination warehouse, outbound kinds on the
// source warehouse.
func needsTo(kind string) bool {
	return kind == KindReceipt || kind == KindAdjustmentIn || kind == KindReturn ||
		kind == KindTransferIn || kind == KindTransferOut
}

func needsFrom(kind string) bool {
	return kind == KindDispense || kind == KindWaste || kind == KindAdjustmentOut ||
		kind == KindTransferIn || kind == KindTransferOut
}

// Request is a draft container of proposed inventory movements, gated by a
// submit/approve workflow before any move becomes effective.
type Request struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	TenantID          string     `db:"tenant_id" json:"tenant_id"`
	Kind              string     `db:"kind" json:"kind"`
	Status            string     `db:"status" json:"status"`
	FromWarehouseID   *uuid.UUID `db:"from_warehouse_id" json:"from_warehouse_id,omitempty"`
	ToWarehouseID     *uuid.UUID `db:"to_warehouse_id" json:"to_warehouse_id,omitempty"`
	PatientID         *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	AdmissionID       *uuid.UUID `db:"admission_id" json:"admission_id,omitempty"`
	OrderID           *uuid.UUID `db:"order_id" json:"order_id,omitempty"`
	Notes             *string    `db:"notes" json:"notes,omitempty"`
	RequestedByUserID string     `db:"requested_by_user_id" json:"requested_by_user_id"`
	DecidedByUserID   *string    `db:"decided_by_user_id" json:"decided_by_user_id,omitempty"`
	DecidedAt         *time.Time `db:"decided_at" json:"decided_at,omitempty"`
	DecisionReason    *string    `db:"decision_reason" json:"decision_reason,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the request has reached a final status.
func (r *Request) Terminal() bool {
	return r.Status == StatusApproved || r.Status == StatusRejected || r.Status == StatusCancelled
}

// moveWarehouse resolves which warehouse a realized move lands on.
func (r *Request) moveWarehouse() uuid.UUID {
	if Direction(r.Kind) > 0 {
		return *r.ToWarehouseID
	}
	return *r.FromWarehouseID
}

// Line is one proposed movement of a drug, mutable only while the parent
// request is DRAFT.
type Line struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	TenantID  string     `db:"tenant_id" json:"tenant_id"`
	RequestID uuid.UUID  `db:"request_id" json:"request_id"`
	DrugID    uuid.UUID  `db:"drug_id" json:"drug_id"`
	LotID     *uuid.UUID `db:"lot_id" json:"lot_id,omitempty"`
	Qty       float64    `db:"qty" json:"qty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Move is the realized, immutable ledger entry created on approval. Balance
// for a (warehouse, drug) pair is always recomputed as the signed sum over
// approved moves, never kept as a mutable counter.
type Move struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	TenantID    string     `db:"tenant_id" json:"tenant_id"`
	RequestID   uuid.UUID  `db:"request_id" json:"request_id"`
	LineID      uuid.UUID  `db:"line_id" json:"line_id"`
	WarehouseID uuid.UUID  `db:"warehouse_id" json:"warehouse_id"`
	DrugID      uuid.UUID  `db:"drug_id" json:"drug_id"`
	LotID       *uuid.UUID `db:"lot_id" json:"lot_id,omitempty"`
	Qty         float64    `db:"qty" json:"qty"`
	Direction   int        `db:"direction" json:"direction"`
	PatientID   *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	AdmissionID *uuid.UUID `db:"admission_id" json:"admission_id,omitempty"`
	OrderID     *uuid.UUID `db:"order_id" json:"order_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Balance is one row of a warehouse balance query.
type Balance struct {
	DrugID uuid.UUID `db:"drug_id" json:"drug_id"`
	Qty    float64   `db:"qty" json:"qty"`
}
