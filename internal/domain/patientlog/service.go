package patientlog

import (
	"context"

	"github.com/google/uuid"

	"github.com/wardflow/wardflow/internal/platform/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends one entry to the patient log. Callers invoke it inside the
// transaction of the workflow step being recorded so the entry commits or
// rolls back with the step itself.
func (s *Service) Record(ctx context.Context, e *Entry) error {
	if e.PatientID == uuid.Nil {
		return apperr.Invalid("patient_id is required")
	}
	if e.EventType == "" {
		return apperr.Invalid("event_type is required")
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByAdmission(ctx context.Context, admissionID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByAdmission(ctx, admissionID, limit, offset)
}
