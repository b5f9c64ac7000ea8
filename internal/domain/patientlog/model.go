package patientlog

import (
	"time"

	"github.com/google/uuid"
)

// Event types recorded by the core. Every mutating workflow step appends
// exactly one entry inside its own transaction.
const (
	EventAdmissionCreated = "ADMISSION_CREATED"
	EventAdmissionUpdated = "ADMISSION_UPDATED"
	EventBedAssigned      = "BED_ASSIGNED"
	EventBedReleased      = "BED_RELEASED"
	EventDischarged       = "DISCHARGED"
	EventCancelled        = "CANCELLED"
	EventOrderCreated     = "ORDER_CREATED"
	EventOrderCancelled   = "ORDER_CANCELLED"
	EventTaskStarted      = "TASK_STARTED"
	EventTaskCompleted    = "TASK_COMPLETED"
	EventStockDispensed   = "STOCK_DISPENSED"
)

// Entry maps to the patient_log table. Rows are append-only: the table is the
// permanent audit trail for a patient's episode and is never updated or
// deleted.
type Entry struct {
	ID          uuid.UUID              `db:"id" json:"id"`
	TenantID    string                 `db:"tenant_id" json:"tenant_id"`
	PatientID   uuid.UUID              `db:"patient_id" json:"patient_id"`
	AdmissionID *uuid.UUID             `db:"admission_id" json:"admission_id,omitempty"`
	ActorUserID *string                `db:"actor_user_id" json:"actor_user_id,omitempty"`
	EventType   string                 `db:"event_type" json:"event_type"`
	Message     string                 `db:"message" json:"message"`
	Meta        map[string]interface{} `db:"meta" json:"meta,omitempty"`
	CreatedAt   time.Time              `db:"created_at" json:"created_at"`
}
