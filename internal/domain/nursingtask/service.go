package nursingtask

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wardflow/wardflow/internal/domain/patientlog"
	"github.com/wardflow/wardflow/internal/platform/apperr"
	"github.com/wardflow/wardflow/internal/platform/db"
)

// OrderUpdater back-propagates task progress into order status. Both
// methods are conditional no-ops when the order is not in an eligible
// status, so callers never race a concurrent cancellation.
type OrderUpdater interface {
	// MarkInProgress bumps a CREATED order to IN_PROGRESS.
	MarkInProgress(ctx context.Context, orderID uuid.UUID) error
	// MarkCompleted flips a non-terminal order to COMPLETED.
	MarkCompleted(ctx context.Context, orderID uuid.UUID) error
}

type LogWriter interface {
	Record(ctx context.Context, e *patientlog.Entry) error
}

type Service struct {
	repo   Repository
	orders OrderUpdater
	logs   LogWriter
	tx     db.Runner
}

func NewService(repo Repository, orders OrderUpdater, logs LogWriter, tx db.Runner) *Service {
	return &Service{repo: repo, orders: orders, logs: logs, tx: tx}
}

// Start claims and starts a PENDING task. Re-starting an already-started
// task by the same nurse returns the current row so client retries are safe.
func (s *Service) Start(ctx context.Context, taskID uuid.UUID, nurseID string) (*Task, error) {
	var out *Task
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		t, err := s.lock(ctx, taskID)
		if err != nil {
			return err
		}

		if t.Status == StatusStarted && t.AssignedToUserID != nil && *t.AssignedToUserID == nurseID {
			out = t
			return nil
		}
		if t.Status != StatusPending {
			return apperr.Conflict(fmt.Sprintf("cannot start task in status %s", t.Status))
		}
		if t.AssignedToUserID != nil && *t.AssignedToUserID != nurseID {
			return apperr.Forbidden("task is assigned to another nurse")
		}

		now := time.Now().UTC()
		t.Status = StatusStarted
		if t.AssignedToUserID == nil {
			t.AssignedToUserID = &nurseID
		}
		if t.StartedAt == nil {
			t.StartedAt = &now
		}
		if err := s.repo.Update(ctx, t); err != nil {
			return err
		}

		if err := s.orders.MarkInProgress(ctx, t.OrderID); err != nil {
			return err
		}

		if err := s.logs.Record(ctx, &patientlog.Entry{
			PatientID:   t.PatientID,
			AdmissionID: &t.AdmissionID,
			ActorUserID: &nurseID,
			EventType:   patientlog.EventTaskStarted,
			Message:     fmt.Sprintf("task started: %s", t.Title),
			Meta:        map[string]interface{}{"task_id": t.ID.String(), "order_id": t.OrderID.String()},
		}); err != nil {
			return err
		}

		out = t
		return nil
	})
	return out, err
}

// Complete finishes a PENDING or STARTED task. Completing a PENDING task
// implicitly starts it. Completing the last non-terminal task of an order
// flips the order to COMPLETED.
func (s *Service) Complete(ctx context.Context, taskID uuid.UUID, nurseID string, note *string) (*Task, error) {
	var out *Task
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		t, err := s.lock(ctx, taskID)
		if err != nil {
			return err
		}

		if t.Terminal() {
			return apperr.Conflict(fmt.Sprintf("cannot complete task in status %s", t.Status))
		}
		if t.AssignedToUserID != nil && *t.AssignedToUserID != nurseID {
			return apperr.Forbidden("task is assigned to another nurse")
		}

		now := time.Now().UTC()
		t.Status = StatusCompleted
		t.CompletedAt = &now
		if t.AssignedToUserID == nil {
			t.AssignedToUserID = &nurseID
		}
		if t.StartedAt == nil {
			t.StartedAt = &now
		}
		if note != nil && *note != "" {
			if t.Details != nil && *t.Details != "" {
				merged := *t.Details + "\n" + *note
				t.Details = &merged
			} else {
				t.Details = note
			}
		}
		if err := s.repo.Update(ctx, t); err != nil {
			return err
		}

		remaining, err := s.repo.CountOpenByOrder(ctx, t.OrderID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if err := s.orders.MarkCompleted(ctx, t.OrderID); err != nil {
				return err
			}
		}

		if err := s.logs.Record(ctx, &patientlog.Entry{
			PatientID:   t.PatientID,
			AdmissionID: &t.AdmissionID,
			ActorUserID: &nurseID,
			EventType:   patientlog.EventTaskCompleted,
			Message:     fmt.Sprintf("task completed: %s", t.Title),
			Meta:        map[string]interface{}{"task_id": t.ID.String(), "order_id": t.OrderID.String()},
		}); err != nil {
			return err
		}

		out = t
		return nil
	})
	return out, err
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("task")
	}
	return t, err
}

// Queue returns the nurse's work queue: their tasks plus the unassigned
// pool.
func (s *Service) Queue(ctx context.Context, nurseID string, limit, offset int) ([]*Task, int, error) {
	return s.repo.ListQueue(ctx, nurseID, limit, offset)
}

func (s *Service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Task, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

func (s *Service) lock(ctx context.Context, id uuid.UUID) (*Task, error) {
	t, err := s.repo.GetForUpdate(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("task")
	}
	return t, err
}
