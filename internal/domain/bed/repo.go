package bed

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BedFilter narrows bed listings.
type BedFilter struct {
	RoomID *uuid.UUID
	Status string
}

type Repository interface {
	CreateBed(ctx context.Context, b *Bed) error
	GetBed(ctx context.Context, id uuid.UUID) (*Bed, error)
	// GetBedForUpdate row-locks the bed for the duration of the surrounding
	// transaction.
	GetBedForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error)
	UpdateBedStatus(ctx context.Context, id uuid.UUID, status string) error
	ListBeds(ctx context.Context, f BedFilter, limit, offset int) ([]*Bed, int, error)
	Location(ctx context.Context, bedID uuid.UUID) (*Location, error)

	CreateAssignment(ctx context.Context, a *Assignment) error
	// ActiveAssignmentByAdmission returns nil when no active assignment exists.
	ActiveAssignmentByAdmission(ctx context.Context, admissionID uuid.UUID) (*Assignment, error)
	ActiveAssignmentByBed(ctx context.Context, bedID uuid.UUID) (*Assignment, error)
	ReleaseAssignment(ctx context.Context, id uuid.UUID, at time.Time) error

	OpenHistory(ctx context.Context, h *History) error
	CloseHistory(ctx context.Context, bedID, admissionID uuid.UUID, at time.Time) error
	ListHistoryByBed(ctx context.Context, bedID uuid.UUID, limit, offset int) ([]*History, int, error)
	ListHistoryByAdmission(ctx context.Context, admissionID uuid.UUID, limit, offset int) ([]*History, int, error)
}
