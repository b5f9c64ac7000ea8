package admission

import (
	"time"

	"github.com/google/uuid"
)

// Admission statuses. DISCHARGED and CANCELLED are terminal.
const (
	StatusPending    = "PENDING"
	StatusActive     = "ACTIVE"
	StatusDischarged = "DISCHARGED"
	StatusCancelled  = "CANCELLED"
)

// Admission is the clinical episode from intake to discharge or
// cancellation. Rows are never physically deleted.
type Admission struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	TenantID             string     `db:"tenant_id" json:"tenant_id"`
	PatientID            uuid.UUID  `db:"patient_id" json:"patient_id"`
	CreatedByUserID      string     `db:"created_by_user_id" json:"created_by_user_id"`
	AssignedDoctorUserID *string    `db:"assigned_doctor_user_id" json:"assigned_doctor_user_id,omitempty"`
	Status               string     `db:"status" json:"status"`
	Reason               *string    `db:"reason" json:"reason,omitempty"`
	Notes                *string    `db:"notes" json:"notes,omitempty"`
	StartedAt            *time.Time `db:"started_at" json:"started_at,omitempty"`
	EndedAt              *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the admission has reached a final status.
func (a *Admission) Terminal() bool {
	return a.Status == StatusDischarged || a.Status == StatusCancelled
}
