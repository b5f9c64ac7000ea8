package bed

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
	"github.com/wardflow/wardflow/internal/platform/metrics"
)

// AdmissionRef is the minimal admission view the bed workflows need. The
// admission package adapts its repository to this interface so locking order
// stays admission row first, bed row second.
type AdmissionRef struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	Pending   bool
	Terminal  bool
}

type AdmissionGate interface {
	// LockAdmission row-locks the admission for the surrounding transaction.
	LockAdmission(ctx context.Context, id uuid.UUID) (*AdmissionRef, error)
	// ActivateAdmission flips a PENDING admission to ACTIVE, stamping the
	// start time only if not already set.
	ActivateAdmission(ctx context.Context, id uuid.UUID) error
}

type LogWriter interface {
	Record(ctx context.Context, e *patientlog.Entry) error
}

type Service struct {
	repo       Repository
	admissions AdmissionGate
	logs       LogWriter
	tx         db.Runner
}

func NewService(repo Repository, admissions AdmissionGate, logs LogWriter, tx db.Runner) *Service {
	return &Service{repo: repo, admissions: admissions, logs: logs, tx: tx}
}

// AssignBed links a bed to an admission. Assigning the first bed to a
// PENDING admission activates it.
func (s *Service) AssignBed(ctx context.Context, admissionID, bedID uuid.UUID, actorID string) (*Assignment, error) {
	var out *Assignment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		adm, err := s.admissions.LockAdmission(ctx, admissionID)
		if err != nil {
			return err
		}
		if adm.Terminal {
			return apperr.Conflict("admission already closed")
		}

		existing, err := s.repo.ActiveAssignmentByAdmission(ctx, adm.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Conflict("admission already has an active bed assignment")
		}

		b, err := s.repo.GetBedForUpdate(ctx, bedID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("bed")
			}
			return err
		}
		if !b.IsActive {
			return apperr.Invalid("bed is inactive")
		}
		if b.Status != StatusAvailable && b.Status != StatusReserved {
			return apperr.Conflict(fmt.Sprintf("bed %s is %s", b.Code, b.Status))
		}

		a := &Assignment{
			AdmissionID:      adm.ID,
			BedID:            b.ID,
			AssignedByUserID: actorID,
			AssignedAt:       time.Now().UTC(),
			IsActive:         true,
		}
		if err := s.repo.CreateAssignment(ctx, a); err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.Conflict("bed already assigned")
			}
			return err
		}

		if err := s.repo.UpdateBedStatus(ctx, b.ID, StatusOccupied); err != nil {
			return err
		}
		metrics.RecordBedTransition(b.Status, StatusOccupied)

		loc, err := s.repo.Location(ctx, b.ID)
		if err != nil {
			return err
		}
		if err := s.repo.OpenHistory(ctx, &History{
			BedID:        b.ID,
			RoomID:       loc.RoomID,
			DepartmentID: loc.DepartmentID,
			AdmissionID:  adm.ID,
			PatientID:    adm.PatientID,
			AssignedAt:   a.AssignedAt,
			ActorUserID:  actorID,
		}); err != nil {
			return err
		}

		if adm.Pending {
			if err := s.admissions.ActivateAdmission(ctx, adm.ID); err != nil {
				return err
			}
		}

		if err := s.logs.Record(ctx, &patientlog.Entry{
			PatientID:   adm.PatientID,
			AdmissionID: &adm.ID,
			ActorUserID: &actorID,
			EventType:   patientlog.EventBedAssigned,
			Message:     fmt.Sprintf("bed %s assigned", b.Code),
			Meta:        map[string]interface{}{"bed_id": b.ID.String(), "bed_code": b.Code},
		}); err != nil {
			return err
		}

		out = a
		return nil
	})
	return out, err
}

// ReleaseBed closes the admission's active assignment and moves the bed to
// CLEANING. The admission's status is not checked: release is valid even
// while a discharge is in flight elsewhere, and the row lock serializes the
// two.
func (s *Service) ReleaseBed(ctx context.Context, admissionID uuid.UUID, actorID string) (*Assignment, error) {
	var out *Assignment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		adm, err := s.admissions.LockAdmission(ctx, admissionID)
		if err != nil {
			return err
		}

		a, err := s.repo.ActiveAssignmentByAdmission(ctx, adm.ID)
		if err != nil {
			return err
		}
		if a == nil {
			return apperr.Conflict("no active bed assignment")
		}

		b, err := s.repo.GetBedForUpdate(ctx, a.BedID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := s.repo.ReleaseAssignment(ctx, a.ID, now); err != nil {
			return err
		}
		a.IsActive = false
		a.ReleasedAt = &now

		if err := s.repo.UpdateBedStatus(ctx, b.ID, StatusCleaning); err != nil {
			return err
		}
		metrics.RecordBedTransition(b.Status, StatusCleaning)

		if err := s.repo.CloseHistory(ctx, b.ID, adm.ID, now); err != nil {
			return err
		}

		if err := s.logs.Record(ctx, &patientlog.Entry{
			PatientID:   adm.PatientID,
			AdmissionID: &adm.ID,
			ActorUserID: &actorID,
			EventType:   patientlog.EventBedReleased,
			Message:     fmt.Sprintf("bed %s released", b.Code),
			Meta:        map[string]interface{}{"bed_id": b.ID.String(), "bed_code": b.Code},
		}); err != nil {
			return err
		}

		out = a
		return nil
	})
	return out, err
}

// Transition applies a manual bed status change, e.g. CLEANING → AVAILABLE
// by housekeeping or AVAILABLE → MAINTENANCE by facilities.
func (s *Service) Transition(ctx context.Context, bedID uuid.UUID, newStatus, actorID string) (*Bed, error) {
	if !ValidStatus(newStatus) {
		return nil, apperr.Invalid(fmt.Sprintf("unknown bed status %q", newStatus))
	}

	var out *Bed
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetBedForUpdate(ctx, bedID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("bed")
			}
			return err
		}

		if !CanTransition(b.Status, newStatus) {
			return apperr.Conflict(fmt.Sprintf("cannot transition bed from %s to %s", b.Status, newStatus))
		}
		if newStatus == StatusAvailable {
			active, err := s.repo.ActiveAssignmentByBed(ctx, b.ID)
			if err != nil {
				return err
			}
			if active != nil {
				return apperr.Conflict("bed has an active assignment")
			}
		}

		if err := s.repo.UpdateBedStatus(ctx, b.ID, newStatus); err != nil {
			return err
		}
		metrics.RecordBedTransition(b.Status, newStatus)

		b.Status = newStatus
		out = b
		return nil
	})
	return out, err
}

// ActiveAssignment returns the admission's active assignment, or nil.
func (s *Service) ActiveAssignment(ctx context.Context, admissionID uuid.UUID) (*Assignment, error) {
	return s.repo.ActiveAssignmentByAdmission(ctx, admissionID)
}

// BedLocation returns the room/department a bed sits in.
func (s *Service) BedLocation(ctx context.Context, bedID uuid.UUID) (*Location, error) {
	return s.repo.Location(ctx, bedID)
}

func (s *Service) CreateBed(ctx context.Context, b *Bed) error {
	if b.RoomID == uuid.Nil {
		return apperr.Invalid("room_id is required")
	}
	if b.Code == "" {
		return apperr.Invalid("code is required")
	}
	if b.Status == "" {
		b.Status = StatusAvailable
	}
	if !ValidStatus(b.Status) {
		return apperr.Invalid(fmt.Sprintf("unknown bed status %q", b.Status))
	}
	if err := s.repo.CreateBed(ctx, b); err != nil {
		if db.IsUniqueViolation(err) {
			return apperr.Conflict(fmt.Sprintf("bed code %s already exists", b.Code))
		}
		if db.IsForeignKeyViolation(err) {
			return apperr.Invalid("unknown room")
		}
		return err
	}
	return nil
}

func (s *Service) GetBed(ctx context.Context, id uuid.UUID) (*Bed, error) {
	b, err := s.repo.GetBed(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("bed")
	}
	return b, err
}

func (s *Service) ListBeds(ctx context.Context, f BedFilter, limit, offset int) ([]*Bed, int, error) {
	return s.repo.ListBeds(ctx, f, limit, offset)
}

func (s *Service) ListHistoryByBed(ctx context.Context, bedID uuid.UUID, limit, offset int) ([]*History, int, error) {
	return s.repo.ListHistoryByBed(ctx, bedID, limit, offset)
}

func (s *Service) ListHistoryByAdmission(ctx context.Context, admissionID uuid.UUID, limit, offset int) ([]*History, int, error) {
	return s.repo.ListHistoryByAdmission(ctx, admissionID, limit, offset)
}
