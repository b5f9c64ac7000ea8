package order

import (
	"time"

	"github.com/google/uuid"
)

// Order kinds.
const (
	KindMedication = "MEDICATION"
	KindLab        = "LAB"
	KindProcedure  = "PROCEDURE"
)

// Order statuses. COMPLETED and CANCELLED are terminal.
const (
	StatusCreated    = "CREATED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
)

// Order is a clinical instruction placed against an ACTIVE admission with an
// assigned bed. Payload is kind-specific structured data stored as jsonb.
type Order struct {
	ID          uuid.UUID              `db:"id" json:"id"`
	TenantID    string                 `db:"tenant_id" json:"tenant_id"`
	AdmissionID uuid.UUID              `db:"admission_id" json:"admission_id"`
	PatientID   uuid.UUID              `db:"patient_id" json:"patient_id"`
	Kind        string                 `db:"kind" json:"kind"`
	Status      string                 `db:"status" json:"status"`
	Payload     map[string]interface{} `db:"payload" json:"payload"`
	Notes       *string                `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time              `db:"updated_at" json:"updated_at"`
	CancelledAt *time.Time             `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// Terminal reports whether the order has reached a final status.
func (o *Order) Terminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusCancelled
}

// ValidKind reports whether k is a known order kind.
func ValidKind(k string) bool {
	return k == KindMedication || k == KindLab || k == KindProcedure
}
