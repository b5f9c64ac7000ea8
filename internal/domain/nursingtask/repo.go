package nursingtask

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	// GetForUpdate row-locks the task for the surrounding transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Task, error)
	Update(ctx context.Context, t *Task) error
	// CancelOpenByOrder cancels every PENDING/STARTED task on the order and
	// returns the ids of the tasks it cancelled.
	CancelOpenByOrder(ctx context.Context, orderID uuid.UUID, at time.Time) ([]uuid.UUID, error)
	// CountOpenByOrder counts the order's non-terminal tasks.
	CountOpenByOrder(ctx context.Context, orderID uuid.UUID) (int, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Task, error)
	// ListQueue returns the nurse's stable work queue: tasks assigned to
	// them plus unassigned pool tasks, PENDING first, then STARTED, then
	// terminal, each slice ordered by creation time.
	ListQueue(ctx context.Context, nurseID string, limit, offset int) ([]*Task, int, error)
}
