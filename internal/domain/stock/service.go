package stock

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

type LogWriter interface {
	Record(ctx context.Context, e *patientlog.Entry) error
}

type Service struct {
	repo Repository
	logs LogWriter
	tx   db.Runner
}

func NewService(repo Repository, logs LogWriter, tx db.Runner) *Service {
	return &Service{repo: repo, logs: logs, tx: tx}
}

type CreateRequestInput struct {
	Kind            string     `json:"kind"`
	FromWarehouseID *uuid.UUID `json:"from_warehouse_id"`
	ToWarehouseID   *uuid.UUID `json:"to_warehouse_id"`
	PatientID       *uuid.UUID `json:"patient_id"`
	AdmissionID     *uuid.UUID `json:"admission_id"`
	OrderID         *uuid.UUID `json:"order_id"`
	Notes           *string    `json:"notes"`
}

// CreateRequest opens a DRAFT request after validating the warehouse
// operands the kind demands. No stock moves until approval.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput, actorID string) (*Request, error) {
	if !ValidKind(in.Kind) {
		return nil, apperr.Invalid(fmt.Sprintf("unknown request kind %q", in.Kind))
	}
	if err := validateOperands(in.Kind, in.FromWarehouseID, in.ToWarehouseID); err != nil {
		return nil, err
	}
	if in.Kind == KindDispense {
		if in.PatientID == nil || in.AdmissionID == nil || in.OrderID == nil {
			return nil, apperr.Invalid("dispense requires patient, admission and order linkage")
		}
	}

	if in.FromWarehouseID != nil {
		ok, err := s.repo.WarehouseExists(ctx, *in.FromWarehouseID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Invalid("unknown source warehouse")
		}
	}
	if in.ToWarehouseID != nil {
		ok, err := s.repo.WarehouseExists(ctx, *in.ToWarehouseID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Invalid("unknown destination warehouse")
		}
	}

	req := &Request{
		Kind:              in.Kind,
		Status:            StatusDraft,
		FromWarehouseID:   in.FromWarehouseID,
		ToWarehouseID:     in.ToWarehouseID,
		PatientID:         in.PatientID,
		AdmissionID:       in.AdmissionID,
		OrderID:           in.OrderID,
		Notes:             in.Notes,
		RequestedByUserID: actorID,
	}
	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

func validateOperands(kind string, from, to *uuid.UUID) error {
	if needsTo(kind) && to == nil {
		return apperr.Invalid(fmt.Sprintf("%s requires a destination warehouse", kind))
	}
	if needsFrom(kind) && from == nil {
		return apperr.Invalid(fmt.Sprintf("%s requires a source warehouse", kind))
	}
	if !needsTo(kind) && to != nil {
		return apperr.Invalid(fmt.Sprintf("%s does not take a destination warehouse", kind))
	}
	if !needsFrom(kind) && from != nil {
		return apperr.Invalid(fmt.Sprintf("%s does not take a source warehouse", kind))
	}
	if from != nil && to != nil && *from == *to {
		return apperr.Invalid("transfer warehouses must differ")
	}
	return nil
}

type LineInput struct {
	DrugID uuid.UUID  `json:"drug_id"`
	LotID  *uuid.UUID `json:"lot_id"`
	Qty    float64    `json:"qty"`
}

// AddLine appends a line to a DRAFT request.
func (s *Service) AddLine(ctx context.Context, requestID uuid.UUID, in LineInput) (*Line, error) {
	if in.Qty <= 0 {
		return nil, apperr.Invalid("qty must be positive")
	}

	var out *Line
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		req, err := s.lockDraft(ctx, requestID)
		if err != nil {
			return err
		}

		ok, err := s.repo.DrugExists(ctx, in.DrugID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Invalid("unknown drug")
		}

		l := &Line{
			RequestID: req.ID,
			DrugID:    in.DrugID,
			LotID:     in.LotID,
			Qty:       in.Qty,
		}
		if err := s.repo.AddLine(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	return out, err
}

func (s *Service) UpdateLine(ctx context.Context, requestID, lineID uuid.UUID, in LineInput) (*Line, error) {
	if in.Qty <= 0 {
		return nil, apperr.Invalid("qty must be positive")
	}

	var out *Line
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.lockDraft(ctx, requestID); err != nil {
			return err
		}

		l, err := s.repo.GetLine(ctx, requestID, lineID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("request line")
			}
			return err
		}

		ok, err := s.repo.DrugExists(ctx, in.DrugID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Invalid("unknown drug")
		}

		l.DrugID = in.DrugID
		l.LotID = in.LotID
		l.Qty = in.Qty
		if err := s.repo.UpdateLine(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	return out, err
}

func (s *Service) RemoveLine(ctx context.Context, requestID, lineID uuid.UUID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.lockDraft(ctx, requestID); err != nil {
			return err
		}
		if err := s.repo.RemoveLine(ctx, requestID, lineID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("request line")
			}
			return err
		}
		return nil
	})
}

// Submit moves a DRAFT request with at least one line to SUBMITTED.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (*Request, error) {
	var out *Request
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		req, err := s.lockDraft(ctx, id)
		if err != nil {
			return err
		}

		n, err := s.repo.CountLines(ctx, req.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.Conflict("cannot submit empty request")
		}

		req.Status = StatusSubmitted
		if err := s.repo.UpdateRequest(ctx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	return out, err
}

// Approve realizes a SUBMITTED request: the decision and one ledger move per
// line commit atomically. Balances change here and nowhere else.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, reason *string, actorID string) (*Request, []*Move, error) {
	var (
		outReq   *Request
		outMoves []*Move
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		req, err := s.lockSubmitted(ctx, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		req.Status = StatusApproved
		req.DecidedByUserID = &actorID
		req.DecidedAt = &now
		req.DecisionReason = reason
		if err := s.repo.UpdateRequest(ctx, req); err != nil {
			return err
		}

		lines, err := s.repo.ListLines(ctx, req.ID)
		if err != nil {
			return err
		}

		warehouseID := req.moveWarehouse()
		dir := Direction(req.Kind)
		moves := make([]*Move, 0, len(lines))
		for _, l := range lines {
			m := &Move{
				RequestID:   req.ID,
				LineID:      l.ID,
				WarehouseID: warehouseID,
				DrugID:      l.DrugID,
				LotID:       l.LotID,
				Qty:         l.Qty,
				Direction:   dir,
				PatientID:   req.PatientID,
				AdmissionID: req.AdmissionID,
				OrderID:     req.OrderID,
			}
			if err := s.repo.CreateMove(ctx, m); err != nil {
				return err
			}
			metrics.RecordStockMove(req.Kind)
			moves = append(moves, m)
		}

		if req.Kind == KindDispense {
			moveIDs := make([]string, 0, len(moves))
			for _, m := range moves {
				moveIDs = append(moveIDs, m.ID.String())
			}
			if err := s.logs.Record(ctx, &patientlog.Entry{
				PatientID:   *req.PatientID,
				AdmissionID: req.AdmissionID,
				ActorUserID: &actorID,
				EventType:   patientlog.EventStockDispensed,
				Message:     fmt.Sprintf("%d item(s) dispensed", len(moves)),
				Meta:        map[string]interface{}{"request_id": req.ID.String(), "move_ids": moveIDs},
			}); err != nil {
				return err
			}
		}

		outReq = req
		outMoves = moves
		return nil
	})
	return outReq, outMoves, err
}

// Reject closes a SUBMITTED request without realizing any moves.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason *string, actorID string) (*Request, error) {
	var out *Request
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		req, err := s.lockSubmitted(ctx, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		req.Status = StatusRejected
		req.DecidedByUserID = &actorID
		req.DecidedAt = &now
		req.DecisionReason = reason
		if err := s.repo.UpdateRequest(ctx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	return out, err
}

// CancelRequest withdraws a request before it is decided.
func (s *Service) CancelRequest(ctx context.Context, id uuid.UUID, actorID string) (*Request, error) {
	var out *Request
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		req, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusDraft && req.Status != StatusSubmitted {
			return apperr.Conflict(fmt.Sprintf("request is %s", req.Status))
		}

		now := time.Now().UTC()
		req.Status = StatusCancelled
		req.DecidedByUserID = &actorID
		req.DecidedAt = &now
		if err := s.repo.UpdateRequest(ctx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	return out, err
}

func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	req, err := s.repo.GetRequest(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("stock request")
	}
	return req, err
}

func (s *Service) ListRequests(ctx context.Context, f RequestFilter, limit, offset int) ([]*Request, int, error) {
	return s.repo.ListRequests(ctx, f, limit, offset)
}

func (s *Service) Lines(ctx context.Context, requestID uuid.UUID) ([]*Line, error) {
	if _, err := s.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return s.repo.ListLines(ctx, requestID)
}

// Balances returns the per-drug signed sums for one warehouse, recomputed
// from the ledger on every call.
func (s *Service) Balances(ctx context.Context, warehouseID uuid.UUID, limit, offset int) ([]*Balance, int, error) {
	ok, err := s.repo.WarehouseExists(ctx, warehouseID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, apperr.Invalid("unknown warehouse")
	}
	return s.repo.Balances(ctx, warehouseID, limit, offset)
}

func (s *Service) Moves(ctx context.Context, f MoveFilter, limit, offset int) ([]*Move, int, error) {
	ok, err := s.repo.WarehouseExists(ctx, f.WarehouseID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, apperr.Invalid("unknown warehouse")
	}
	return s.repo.ListMoves(ctx, f, limit, offset)
}

func (s *Service) lock(ctx context.Context, id uuid.UUID) (*Request, error) {
	req, err := s.repo.GetRequestForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("stock request")
		}
		return nil, err
	}
	return req, nil
}

func (s *Service) lockDraft(ctx context.Context, id uuid.UUID) (*Request, error) {
	req, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusDraft {
		return nil, apperr.Conflict(fmt.Sprintf("request is %s", req.Status))
	}
	return req, nil
}

func (s *Service) lockSubmitted(ctx context.Context, id uuid.UUID) (*Request, error) {
	req, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusSubmitted {
		return nil, apperr.Conflict(fmt.Sprintf("request is %s", req.Status))
	}
	return req, nil
}
