package admission

import (
	"context"

	"github.com/google/uuid"
)

type ListFilter struct {
	PatientID *uuid.UUID
	Status    string
}

type Repository interface {
	Create(ctx context.Context, a *Admission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admission, error)
	// GetForUpdate row-locks the admission for the surrounding transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Admission, error)
	Update(ctx context.Context, a *Admission) error
	// Activate flips a PENDING admission to ACTIVE; started_at is stamped
	// only if not already set.
	Activate(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Admission, int, error)
	PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error)
}
