package admission

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wardflow/wardflow/internal/domain/bed"
	"github.com/wardflow/wardflow/internal/platform/apperr"
)

// Gate adapts the admission repository to the bed workflows. Bed assign and
// release lock the admission row through it, keeping the lock order
// (admission first, then bed) identical across all transactions.
type Gate struct {
	repo Repository
}

func NewGate(repo Repository) *Gate {
	return &Gate{repo: repo}
}

func (g *Gate) LockAdmission(ctx context.Context, id uuid.UUID) (*bed.AdmissionRef, error) {
	a, err := g.repo.GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("admission")
		}
		return nil, err
	}
	return &bed.AdmissionRef{
		ID:        a.ID,
		PatientID: a.PatientID,
		Pending:   a.Status == StatusPending,
		Terminal:  a.Terminal(),
	}, nil
}

func (g *Gate) ActivateAdmission(ctx context.Context, id uuid.UUID) error {
	return g.repo.Activate(ctx, id)
}
