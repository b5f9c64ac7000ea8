package bed

import (
	"time"

	"github.com/google/uuid"
)

// Bed statuses.
const (
	StatusAvailable    = "AVAILABLE"
	StatusOccupied     = "OCCUPIED"
	StatusCleaning     = "CLEANING"
	StatusMaintenance  = "MAINTENANCE"
	StatusReserved     = "RESERVED"
	StatusOutOfService = "OUT_OF_SERVICE"
)

// transitions is the fixed adjacency table for bed status changes. Anything
// outside it is rejected. Note there is no edge from OCCUPIED to AVAILABLE:
// a released bed always passes through CLEANING before reuse.
var transitions = map[string][]string{
	StatusAvailable:    {StatusOccupied, StatusCleaning, StatusMaintenance, StatusReserved, StatusOutOfService},
	StatusOccupied:     {StatusCleaning, StatusMaintenance, StatusOutOfService},
	StatusCleaning:     {StatusAvailable, StatusMaintenance, StatusOutOfService},
	StatusMaintenance:  {StatusAvailable, StatusOutOfService},
	StatusReserved:     {StatusAvailable, StatusOccupied, StatusOutOfService},
	StatusOutOfService: {StatusAvailable, StatusMaintenance},
}

// CanTransition reports whether the adjacency table permits from → to.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known bed status.
func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

// Bed belongs to a Room, which belongs to a Department.
type Bed struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	RoomID    uuid.UUID `db:"room_id" json:"room_id"`
	Code      string    `db:"code" json:"code"`
	Status    string    `db:"status" json:"status"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Assignment links one admission to one bed. At most one row with
// IsActive=true may exist per admission and, independently, per bed; a
// partial unique index backs each invariant.
type Assignment struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	TenantID         string     `db:"tenant_id" json:"tenant_id"`
	AdmissionID      uuid.UUID  `db:"admission_id" json:"admission_id"`
	BedID            uuid.UUID  `db:"bed_id" json:"bed_id"`
	AssignedByUserID string     `db:"assigned_by_user_id" json:"assigned_by_user_id"`
	AssignedAt       time.Time  `db:"assigned_at" json:"assigned_at"`
	ReleasedAt       *time.Time `db:"released_at" json:"released_at,omitempty"`
	IsActive         bool       `db:"is_active" json:"is_active"`
}

// History records every assignment interval. Rows are append-only; the only
// permitted update stamps ReleasedAt when the interval closes.
type History struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	TenantID     string     `db:"tenant_id" json:"tenant_id"`
	BedID        uuid.UUID  `db:"bed_id" json:"bed_id"`
	RoomID       uuid.UUID  `db:"room_id" json:"room_id"`
	DepartmentID uuid.UUID  `db:"department_id" json:"department_id"`
	AdmissionID  uuid.UUID  `db:"admission_id" json:"admission_id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	AssignedAt   time.Time  `db:"assigned_at" json:"assigned_at"`
	ReleasedAt   *time.Time `db:"released_at" json:"released_at,omitempty"`
	Reason       *string    `db:"reason" json:"reason,omitempty"`
	ActorUserID  string     `db:"actor_user_id" json:"actor_user_id"`
}

// Location is the room/department pair a bed sits in, snapshotted onto
// history rows and nursing tasks at assignment time.
type Location struct {
	RoomID       uuid.UUID
	DepartmentID uuid.UUID
}
