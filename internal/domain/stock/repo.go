package stock

import (
	"context"

	"github.com/google/uuid"
)

type RequestFilter struct {
	Kind   string
	Status string
}

type MoveFilter struct {
	WarehouseID uuid.UUID
	DrugID      *uuid.UUID
}

type Repository interface {
	CreateRequest(ctx context.Context, r *Request) error
	GetRequest(ctx context.Context, id uuid.UUID) (*Request, error)
	// GetRequestForUpdate row-locks the request for the surrounding
	// transaction.
	GetRequestForUpdate(ctx context.Context, id uuid.UUID) (*Request, error)
	UpdateRequest(ctx context.Context, r *Request) error
	ListRequests(ctx context.Context, f RequestFilter, limit, offset int) ([]*Request, int, error)

	AddLine(ctx context.Context, l *Line) error
	GetLine(ctx context.Context, requestID, lineID uuid.UUID) (*Line, error)
	UpdateLine(ctx context.Context, l *Line) error
	RemoveLine(ctx context.Context, requestID, lineID uuid.UUID) error
	ListLines(ctx context.Context, requestID uuid.UUID) ([]*Line, error)
	CountLines(ctx context.Context, requestID uuid.UUID) (int, error)

	// CreateMove appends to the ledger; moves are never updated or deleted.
	CreateMove(ctx context.Context, m *Move) error
	ListMoves(ctx context.Context, f MoveFilter, limit, offset int) ([]*Move, int, error)
	// Balances recomputes per-drug signed sums over moves of APPROVED
	// requests for one warehouse.
	Balances(ctx context.Context, warehouseID uuid.UUID, limit, offset int) ([]*Balance, int, error)

	WarehouseExists(ctx context.Context, id uuid.UUID) (bool, error)
	DrugExists(ctx context.Context, id uuid.UUID) (bool, error)
}
