package order

import (
	"context"

	"github.com/google/uuid"
)

type ListFilter struct {
	AdmissionID *uuid.UUID
	PatientID   *uuid.UUID
	Kind        string
	Status      string
}

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// GetForUpdate row-locks the order for the surrounding transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)
	Update(ctx context.Context, o *Order) error
	// MarkInProgress bumps a CREATED order to IN_PROGRESS; it is a no-op
	// when the order is in any other status.
	MarkInProgress(ctx context.Context, id uuid.UUID) error
	// MarkCompleted flips a non-terminal order to COMPLETED; it is a no-op
	// on terminal orders.
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Order, int, error)
}
