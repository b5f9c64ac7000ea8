package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wardflow/wardflow/internal/domain/admission"
	"github.com/wardflow/wardflow/internal/domain/bed"
	"github.com/wardflow/wardflow/internal/domain/nursingtask"
	"github.com/wardflow/wardflow/internal/domain/patientlog"
	"github.com/wardflow/wardflow/internal/platform/apperr"
	"github.com/wardflow/wardflow/internal/platform/db"
	"github.com/wardflow/wardflow/internal/platform/metrics"
)

// AdmissionStore locks the admission the order targets. Satisfied by the
// admission repository.
type AdmissionStore interface {
	GetForUpdate(ctx context.Context, id uuid.UUID) (*admission.Admission, error)
}

// BedReader resolves the admission's active assignment and its location
// snapshot. Satisfied by the bed service.
type BedReader interface {
	ActiveAssignment(ctx context.Context, admissionID uuid.UUID) (*bed.Assignment, error)
	BedLocation(ctx context.Context, bedID uuid.UUID) (*bed.Location, error)
}

// TaskStore creates fanned-out tasks and cascade-cancels them. Satisfied by
// the nursing task repository.
type TaskStore interface {
	Create(ctx context.Context, t *nursingtask.Task) error
	CancelOpenByOrder(ctx context.Context, orderID uuid.UUID, at time.Time) ([]uuid.UUID, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*nursingtask.Task, error)
}

type LogWriter interface {
	Record(ctx context.Context, e *patientlog.Entry) error
}

type Service struct {
	repo       Repository
	admissions AdmissionStore
	beds       BedReader
	tasks      TaskStore
	logs       LogWriter
	tx         db.Runner
}

func NewService(repo Repository, admissions AdmissionStore, beds BedReader, tasks TaskStore, logs LogWriter, tx db.Runner) *Service {
	return &Service{repo: repo, admissions: admissions, beds: beds, tasks: tasks, logs: logs, tx: tx}
}

type CreateInput struct {
	AdmissionID uuid.UUID              `json:"admission_id"`
	Kind        string                 `json:"kind"`
	Payload     map[string]interface{} `json:"payload"`
	Notes       *string                `json:"notes"`
}

// CreateOrder places an order and fans it out into nursing tasks. The order,
// its tasks and the log entry commit atomically.
func (s *Service) CreateOrder(ctx context.Context, in CreateInput, actorID string) (*Order, []*nursingtask.Task, error) {
	if !ValidKind(in.Kind) {
		return nil, nil, apperr.Invalid(fmt.Sprintf("unknown order kind %q", in.Kind))
	}
	if err := validatePayload(in.Kind, in.Payload); err != nil {
		return nil, nil, err
	}

	var (
		outOrder *Order
		outTasks []*nursingtask.Task
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		adm, err := s.admissions.GetForUpdate(ctx, in.AdmissionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("admission")
			}
			return err
		}
		if adm.Status != admission.StatusActive {
			return apperr.Forbidden("must assign a bed and activate admission before any action")
		}

		asn, err := s.beds.ActiveAssignment(ctx, adm.ID)
		if err != nil {
			return err
		}
		if asn == nil {
			return apperr.Forbidden("must assign a bed and activate admission before any action")
		}

		loc, err := s.beds.BedLocation(ctx, asn.BedID)
		if err != nil {
			return err
		}

		o := &Order{
			AdmissionID: adm.ID,
			PatientID:   adm.PatientID,
			Kind:        in.Kind,
			Status:      StatusCreated,
			Payload:     in.Payload,
			Notes:       in.Notes,
		}
		if err := s.repo.Create(ctx, o); err != nil {
			return err
		}

		tasks := fanout(o, asn, loc)
		taskIDs := make([]string, 0, len(tasks))
		for _, t := range tasks {
			if err := s.tasks.Create(ctx, t); err != nil {
				return err
			}
			taskIDs = append(taskIDs, t.ID.String())
		}

		if err := s.logs.Record(ctx, &patientlog.Entry{
			PatientID:   o.PatientID,
			AdmissionID: &o.AdmissionID,
			ActorUserID: &actorID,
			EventType:   patientlog.EventOrderCreated,
			Message:     fmt.Sprintf("%s order placed", o.Kind),
			Meta:        map[string]interface{}{"order_id": o.ID.String(), "kind": o.Kind, "task_ids": taskIDs},
		}); err != nil {
			return err
		}

		metrics.RecordOrderCreated(o.Kind)
		outOrder = o
		outTasks = tasks
		return nil
	})
	return outOrder, outTasks, err
}

// CancelOrder cancels an order and cascade-cancels its open tasks.
// Cancelling an already-cancelled order returns the current row unchanged;
// cancelling a completed order is a conflict.
func (s *Service) CancelOrder(ctx context.Context, id uuid.UUID, notes *string, actorID string) (*Order, []uuid.UUID, error) {
	var (
		outOrder *Order
		outIDs   []uuid.UUID
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("order")
			}
			return err
		}

		if o.Status == StatusCancelled {
			outOrder = o
			return nil
		}
		if o.Status == StatusCompleted {
			return apperr.Conflict("order already completed")
		}

		now := time.Now().UTC()
		o.Status = StatusCancelled
		o.CancelledAt = &now
		if notes != nil {
			o.Notes = notes
		}
		if err := s.repo.Update(ctx, o); err != nil {
			return err
		}

		ids, err := s.tasks.CancelOpenByOrder(ctx, o.ID, now)
		if err != nil {
			return err
		}

		idStrs := make([]string, 0, len(ids))
		for _, tid := range ids {
			idStrs = append(idStrs, tid.String())
		}
		if err := s.logs.Record(ctx, &patientlog.Entry{
			PatientID:   o.PatientID,
			AdmissionID: &o.AdmissionID,
			ActorUserID: &actorID,
			EventType:   patientlog.EventOrderCancelled,
			Message:     fmt.Sprintf("%s order cancelled", o.Kind),
			Meta:        map[string]interface{}{"order_id": o.ID.String(), "cancelled_task_ids": idStrs},
		}); err != nil {
			return err
		}

		outOrder = o
		outIDs = ids
		return nil
	})
	return outOrder, outIDs, err
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order")
	}
	return o, err
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Order, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) Tasks(ctx context.Context, orderID uuid.UUID) ([]*nursingtask.Task, error) {
	return s.tasks.ListByOrder(ctx, orderID)
}
