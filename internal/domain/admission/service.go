package admission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wardflow/wardflow/internal/domain/bed"
	"github.com/wardflow/wardflow/internal/domain/patientlog"
	"github.com/wardflow/wardflow/internal/platform/apperr"
	"github.com/wardflow/wardflow/internal/platform/db"
	"github.com/wardflow/wardflow/internal/platform/metrics"
)

// BedService is the slice of the bed workflows the admission manager
// composes: discharge releases the active bed inside its own transaction.
type BedService interface {
	ActiveAssignment(ctx context.Context, admissionID uuid.UUID) (*bed.Assignment, error)
	ReleaseBed(ctx context.Context, admissionID uuid.UUID, actorID string) (*bed.Assignment, error)
}

type LogWriter interface {
	Record(ctx context.Context, e *patientlog.Entry) error
}

type Service struct {
	repo Repository
	beds BedService
	logs LogWriter
	tx   db.Runner
}

func NewService(repo Repository, beds BedService, logs LogWriter, tx db.Runner) *Service {
	return &Service{repo: repo, beds: beds, logs: logs, tx: tx}
}

type CreateInput struct {
	PatientID            uuid.UUID `json:"patient_id"`
	AssignedDoctorUserID *string   `json:"assigned_doctor_user_id"`
	Reason               *string   `json:"reason"`
	Notes                *string   `json:"notes"`
}

func (s *Service) Create(ctx context.Context, in CreateInput, actorID string) (*Admission, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperr.Invalid("patient_id is required")
	}

	var out *Admission
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.repo.PatientExists(ctx, in.PatientID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Invalid("invalid patient reference")
		}

		a := &Admission{
			PatientID:            in.PatientID,
			CreatedByUserID:      actorID,
			AssignedDoctorUserID: in.AssignedDoctorUserID,
			Status:               StatusPending,
			Reason:               in.Reason,
			Notes:                in.Notes,
		}
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}

		if err := s.logs.Record(ctx, &patientlog.Entry{
			PatientID:   a.PatientID,
			AdmissionID: &a.ID,
			ActorUserID: &actorID,
			EventType:   patientlog.EventAdmissionCreated,
			Message:     "admission opened",
		}); err != nil {
			return err
		}

		metrics.RecordAdmissionOpened()
		out = a
		return nil
	})
	return out, err
}

type UpdateInput struct {
	AssignedDoctorUserID *string `json:"assigned_doctor_user_id"`
	Reason               *string `json:"reason"`
	Notes                *string `json:"notes"`
}

// Update mutates reason, notes and the assigned doctor while the admission
// is non-terminal. Status never changes here; that is the state machine's
// job.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput, actorID string) (*Admission, error) {
	var out *Admission
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if a.Terminal() {
			return apperr.Conflict("admission already closed")
		}

		if in.AssignedDoctorUserID != nil {
			a.AssignedDoctorUserID = in.AssignedDoctorUserID
		}
		if in.Reason != nil {
			a.Reason = in.Reason
		}
		if in.Notes != nil {
			a.Notes = in.Notes
		}
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}

		if err := s.logs.Record(ctx, &patientlog.Entry{
			PatientID:   a.PatientID,
			AdmissionID: &a.ID,
			ActorUserID: &actorID,
			EventType:   patientlog.EventAdmissionUpdated,
			Message:     "admission details updated",
		}); err != nil {
			return err
		}

		out = a
		return nil
	})
	return out, err
}

// Discharge closes the admission from any non-terminal status. The active
// bed, if any, is released within the same transaction so the bed never
// stays OCCUPIED against a closed admission.
func (s *Service) Discharge(ctx context.Context, id uuid.UUID, notes *string, actorID string) (*Admission, error) {
	var out *Admission
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if a.Terminal() {
			return apperr.Conflict("admission already closed")
		}

		active, err := s.beds.ActiveAssignment(ctx, a.ID)
		if err != nil {
			return err
		}
		if active != nil {
			if _, err := s.beds.ReleaseBed(ctx, a.ID, actorID); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		a.Status = StatusDischarged
		a.EndedAt = &now
		if notes != nil {
			a.Notes = notes
		}
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}

		if err := s.logs.Record(ctx, &patientlog.Entry{
			PatientID:   a.PatientID,
			AdmissionID: &a.ID,
			ActorUserID: &actorID,
			EventType:   patientlog.EventDischarged,
			Message:     "patient discharged",
		}); err != nil {
			return err
		}

		out = a
		return nil
	})
	return out, err
}

// Cancel voids an admission that never became ACTIVE. An ACTIVE admission
// must be discharged instead. Cancelling never touches bed state.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, notes *string, actorID string) (*Admission, error) {
	var out *Admission
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if a.Terminal() {
			return apperr.Conflict("admission already closed")
		}
		if a.Status == StatusActive {
			return apperr.Conflict("active admission must be discharged, not cancelled")
		}

		now := time.Now().UTC()
		a.Status = StatusCancelled
		a.EndedAt = &now
		if notes != nil {
			a.Notes = notes
		}
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}

		if err := s.logs.Record(ctx, &patientlog.Entry{
			PatientID:   a.PatientID,
			AdmissionID: &a.ID,
			ActorUserID: &actorID,
			EventType:   patientlog.EventCancelled,
			Message:     "admission cancelled",
		}); err != nil {
			return err
		}

		out = a
		return nil
	})
	return out, err
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Admission, error) {
	a, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("admission")
	}
	return a, err
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Admission, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) lock(ctx context.Context, id uuid.UUID) (*Admission, error) {
	a, err := s.repo.GetForUpdate(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("admission")
	}
	return a, err
}
