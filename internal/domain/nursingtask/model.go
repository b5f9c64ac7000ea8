package nursingtask

import (
	"time"

	"github.com/google/uuid"
)

// Task statuses. Transitions only move forward, except cancellation which is
// allowed from PENDING and STARTED.
const (
	StatusPending   = "PENDING"
	StatusStarted   = "STARTED"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Task is one executable unit of nursing work fanned out from a clinical
// order. Department, room and bed are snapshotted at order creation so the
// task keeps pointing at the location the patient occupied at that moment,
// even if the bed is later reassigned.
type Task struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	TenantID         string     `db:"tenant_id" json:"tenant_id"`
	OrderID          uuid.UUID  `db:"order_id" json:"order_id"`
	AdmissionID      uuid.UUID  `db:"admission_id" json:"admission_id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	DepartmentID     uuid.UUID  `db:"department_id" json:"department_id"`
	RoomID           uuid.UUID  `db:"room_id" json:"room_id"`
	BedID            uuid.UUID  `db:"bed_id" json:"bed_id"`
	Title            string     `db:"title" json:"title"`
	Details          *string    `db:"details" json:"details,omitempty"`
	Kind             string     `db:"kind" json:"kind"`
	Status           string     `db:"status" json:"status"`
	AssignedToUserID *string    `db:"assigned_to_user_id" json:"assigned_to_user_id,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	StartedAt        *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt      *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// Terminal reports whether the task has reached a final status.
func (t *Task) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusCancelled
}
