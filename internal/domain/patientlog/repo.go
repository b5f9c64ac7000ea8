package patientlog

import (
	"context"

	"github.com/google/uuid"
)

// Repository is intentionally insert-only on the write side; the audit trail
// exposes no update or delete operation.
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error)
	ListByAdmission(ctx context.Context, admissionID uuid.UUID, limit, offset int) ([]*Entry, int, error)
}
