package stock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wardflow/wardflow/internal/domain/patientlog"
	"github.com/wardflow/wardflow/internal/platform/apperr"
)

type passRunner struct{}

func (passRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockRepo struct {
	requests   map[uuid.UUID]*Request
	lines      map[uuid.UUID]*Line
	moves      []*Move
	warehouses map[uuid.UUID]bool
	drugs      map[uuid.UUID]bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		requests:   make(map[uuid.UUID]*Request),
		lines:      make(map[uuid.UUID]*Line),
		warehouses: make(map[uuid.UUID]bool),
		drugs:      make(map[uuid.UUID]bool),
	}
}

func (m *mockRepo) addWarehouse() uuid.UUID {
	id := uuid.New()
	m.warehouses[id] = true
	return id
}

func (m *mockRepo) addDrug() uuid.UUID {
	id := uuid.New()
	m.drugs[id] = true
	return id
}

func (m *mockRepo) CreateRequest(ctx context.Context, r *Request) error {
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	m.requests[r.ID] = r
	return nil
}

func (m *mockRepo) GetRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return r, nil
}

func (m *mockRepo) GetRequestForUpdate(ctx context.Context, id uuid.UUID) (*Request, error) {
	return m.GetRequest(ctx, id)
}

func (m *mockRepo) UpdateRequest(ctx context.Context, r *Request) error {
	if _, ok := m.requests[r.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.requests[r.ID] = r
	return nil
}

func (m *mockRepo) ListRequests(ctx context.Context, f RequestFilter, limit, offset int) ([]*Request, int, error) {
	var out []*Request
	for _, r := range m.requests {
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *mockRepo) AddLine(ctx context.Context, l *Line) error {
	l.ID = uuid.New()
	l.CreatedAt = time.Now()
	m.lines[l.ID] = l
	return nil
}

func (m *mockRepo) GetLine(ctx context.Context, requestID, lineID uuid.UUID) (*Line, error) {
	l, ok := m.lines[lineID]
	if !ok || l.RequestID != requestID {
		return nil, pgx.ErrNoRows
	}
	return l, nil
}

func (m *mockRepo) UpdateLine(ctx context.Context, l *Line) error {
	if _, ok := m.lines[l.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.lines[l.ID] = l
	return nil
}

func (m *mockRepo) RemoveLine(ctx context.Context, requestID, lineID uuid.UUID) error {
	l, ok := m.lines[lineID]
	if !ok || l.RequestID != requestID {
		return pgx.ErrNoRows
	}
	delete(m.lines, lineID)
	return nil
}

func (m *mockRepo) ListLines(ctx context.Context, requestID uuid.UUID) ([]*Line, error) {
	var out []*Line
	for _, l := range m.lines {
		if l.RequestID == requestID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockRepo) CountLines(ctx context.Context, requestID uuid.UUID) (int, error) {
	lines, _ := m.ListLines(ctx, requestID)
	return len(lines), nil
}

func (m *mockRepo) CreateMove(ctx context.Context, mv *Move) error {
	mv.ID = uuid.New()
	mv.CreatedAt = time.Now()
	m.moves = append(m.moves, mv)
	return nil
}

func (m *mockRepo) ListMoves(ctx context.Context, f MoveFilter, limit, offset int) ([]*Move, int, error) {
	var out []*Move
	for _, mv := range m.moves {
		if mv.WarehouseID != f.WarehouseID {
			continue
		}
		if f.DrugID != nil && mv.DrugID != *f.DrugID {
			continue
		}
		out = append(out, mv)
	}
	return out, len(out), nil
}

func (m *mockRepo) Balances(ctx context.Context, warehouseID uuid.UUID, limit, offset int) ([]*Balance, int, error) {
	sums := make(map[uuid.UUID]float64)
	for _, mv := range m.moves {
		if mv.WarehouseID != warehouseID {
			continue
		}
		if m.requests[mv.RequestID].Status != StatusApproved {
			continue
		}
		sums[mv.DrugID] += mv.Qty * float64(mv.Direction)
	}
	var out []*Balance
	for drugID, qty := range sums {
		out = append(out, &Balance{DrugID: drugID, Qty: qty})
	}
	return out, len(out), nil
}

func (m *mockRepo) WarehouseExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.warehouses[id], nil
}

func (m *mockRepo) DrugExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.drugs[id], nil
}

type mockLog struct {
	entries []*patientlog.Entry
}

func (m *mockLog) Record(ctx context.Context, e *patientlog.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func newTestService() (*Service, *mockRepo, *mockLog) {
	repo := newMockRepo()
	logs := &mockLog{}
	return NewService(repo, logs, passRunner{}), repo, logs
}

func ptr[T any](v T) *T { return &v }

// receipt drives a request through draft, submit and approval.
func approveReceipt(t *testing.T, svc *Service, wh, drug uuid.UUID, qty float64) *Request {
	t.Helper()
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, CreateRequestInput{Kind: KindReceipt, ToWarehouseID: &wh}, "pharm-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.AddLine(ctx, req.ID, LineInput{DrugID: drug, Qty: qty}); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if _, err := svc.Submit(ctx, req.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := svc.Approve(ctx, req.ID, nil, "approver-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	return req
}

func TestCreateRequest_OperandRules(t *testing.T) {
	svc, repo, _ := newTestService()
	wh := repo.addWarehouse()
	wh2 := repo.addWarehouse()

	cases := []struct {
		name    string
		in      CreateRequestInput
		wantErr bool
	}{
		{"receipt needs to", CreateRequestInput{Kind: KindReceipt, ToWarehouseID: &wh}, false},
		{"receipt without to", CreateRequestInput{Kind: KindReceipt}, true},
		{"receipt rejects from", CreateRequestInput{Kind: KindReceipt, FromWarehouseID: &wh, ToWarehouseID: &wh2}, true},
		{"waste needs from", CreateRequestInput{Kind: KindWaste, FromWarehouseID: &wh}, false},
		{"waste without from", CreateRequestInput{Kind: KindWaste}, true},
		{"transfer needs both", CreateRequestInput{Kind: KindTransferOut, FromWarehouseID: &wh, ToWarehouseID: &wh2}, false},
		{"transfer missing to", CreateRequestInput{Kind: KindTransferOut, FromWarehouseID: &wh}, true},
		{"transfer same warehouse", CreateRequestInput{Kind: KindTransferOut, FromWarehouseID: &wh, ToWarehouseID: &wh}, true},
		{"unknown kind", CreateRequestInput{Kind: "LOAN"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateRequest(context.Background(), tc.in, "pharm-1")
			if tc.wantErr && !errors.Is(err, apperr.ErrInvalid) {
				t.Errorf("expected invalid, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCreateRequest_DispenseLinkage(t *testing.T) {
	svc, repo, _ := newTestService()
	wh := repo.addWarehouse()

	_, err := svc.CreateRequest(context.Background(), CreateRequestInput{Kind: KindDispense, FromWarehouseID: &wh}, "nurse-1")
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("dispense without linkage should be invalid, got %v", err)
	}

	req, err := svc.CreateRequest(context.Background(), CreateRequestInput{
		Kind:            KindDispense,
		FromWarehouseID: &wh,
		PatientID:       ptr(uuid.New()),
		AdmissionID:     ptr(uuid.New()),
		OrderID:         ptr(uuid.New()),
	}, "nurse-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != StatusDraft {
		t.Errorf("status = %s, want DRAFT", req.Status)
	}
}

func TestCreateRequest_UnknownWarehouse(t *testing.T) {
	svc, _, _ := newTestService()
	wh := uuid.New()

	_, err := svc.CreateRequest(context.Background(), CreateRequestInput{Kind: KindReceipt, ToWarehouseID: &wh}, "pharm-1")
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid, got %v", err)
	}
}

func TestSubmit_EmptyRequest(t *testing.T) {
	svc, repo, _ := newTestService()
	wh := repo.addWarehouse()

	req, err := svc.CreateRequest(context.Background(), CreateRequestInput{Kind: KindReceipt, ToWarehouseID: &wh}, "pharm-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Submit(context.Background(), req.ID)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err.Error() != "cannot submit empty request" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestAddLine_DraftOnly(t *testing.T) {
	svc, repo, _ := newTestService()
	wh := repo.addWarehouse()
	drug := repo.addDrug()
	ctx := context.Background()

	req, _ := svc.CreateRequest(ctx, CreateRequestInput{Kind: KindReceipt, ToWarehouseID: &wh}, "pharm-1")
	if _, err := svc.AddLine(ctx, req.ID, LineInput{DrugID: drug, Qty: 10}); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if _, err := svc.Submit(ctx, req.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err := svc.AddLine(ctx, req.ID, LineInput{DrugID: drug, Qty: 5})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("lines must be frozen after submit, got %v", err)
	}
}

func TestAddLine_QtyMustBePositive(t *testing.T) {
	svc, repo, _ := newTestService()
	wh := repo.addWarehouse()
	drug := repo.addDrug()

	req, _ := svc.CreateRequest(context.Background(), CreateRequestInput{Kind: KindReceipt, ToWarehouseID: &wh}, "pharm-1")
	_, err := svc.AddLine(context.Background(), req.ID, LineInput{DrugID: drug, Qty: 0})
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid, got %v", err)
	}
}

func TestApprove_RealizesMoves(t *testing.T) {
	svc, repo, _ := newTestService()
	from := repo.addWarehouse()
	to := repo.addWarehouse()
	drug := repo.addDrug()
	ctx := context.Background()

	req, _ := svc.CreateRequest(ctx, CreateRequestInput{Kind: KindTransferOut, FromWarehouseID: &from, ToWarehouseID: &to}, "pharm-1")
	if _, err := svc.AddLine(ctx, req.ID, LineInput{DrugID: drug, Qty: 4}); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if _, err := svc.Submit(ctx, req.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, moves, err := svc.Approve(ctx, req.ID, ptr("restock ward B"), "approver-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != StatusApproved {
		t.Errorf("status = %s, want APPROVED", got.Status)
	}
	if got.DecidedByUserID == nil || *got.DecidedByUserID != "approver-1" || got.DecidedAt == nil {
		t.Error("decision fields should be stamped")
	}
	if len(moves) != 1 {
		t.Fatalf("expected one move per line, got %d", len(moves))
	}
	if moves[0].Direction != -1 {
		t.Errorf("transfer out direction = %d, want -1", moves[0].Direction)
	}
	if moves[0].WarehouseID != from {
		t.Error("outbound move should land on the source warehouse")
	}
	if moves[0].Qty != 4 {
		t.Errorf("qty = %v, stored positive always", moves[0].Qty)
	}
}

func TestApprove_RequiresSubmitted(t *testing.T) {
	svc, repo, _ := newTestService()
	wh := repo.addWarehouse()
	drug := repo.addDrug()
	ctx := context.Background()

	req, _ := svc.CreateRequest(ctx, CreateRequestInput{Kind: KindReceipt, ToWarehouseID: &wh}, "pharm-1")
	if _, err := svc.AddLine(ctx, req.ID, LineInput{DrugID: drug, Qty: 1}); err != nil {
		t.Fatalf("add line: %v", err)
	}

	_, _, err := svc.Approve(ctx, req.ID, nil, "approver-1")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("approving a DRAFT should conflict, got %v", err)
	}
}

func TestApprove_DispenseWritesPatientLog(t *testing.T) {
	svc, repo, logs := newTestService()
	wh := repo.addWarehouse()
	drug := repo.addDrug()
	ctx := context.Background()
	patientID := uuid.New()

	req, err := svc.CreateRequest(ctx, CreateRequestInput{
		Kind:            KindDispense,
		FromWarehouseID: &wh,
		PatientID:       &patientID,
		AdmissionID:     ptr(uuid.New()),
		OrderID:         ptr(uuid.New()),
	}, "nurse-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.AddLine(ctx, req.ID, LineInput{DrugID: drug, Qty: 2}); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if _, err := svc.Submit(ctx, req.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := svc.Approve(ctx, req.ID, nil, "approver-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if len(logs.entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(logs.entries))
	}
	e := logs.entries[0]
	if e.EventType != patientlog.EventStockDispensed {
		t.Errorf("event = %s, want STOCK_DISPENSED", e.EventType)
	}
	if e.PatientID != patientID {
		t.Error("log entry should target the dispense patient")
	}
}

func TestReject_LeavesLedgerUntouched(t *testing.T) {
	svc, repo, _ := newTestService()
	wh := repo.addWarehouse()
	drug := repo.addDrug()
	ctx := context.Background()

	req, _ := svc.CreateRequest(ctx, CreateRequestInput{Kind: KindReceipt, ToWarehouseID: &wh}, "pharm-1")
	if _, err := svc.AddLine(ctx, req.ID, LineInput{DrugID: drug, Qty: 100}); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if _, err := svc.Submit(ctx, req.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := svc.Reject(ctx, req.ID, ptr("over budget"), "approver-1")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != StatusRejected {
		t.Errorf("status = %s, want REJECTED", got.Status)
	}
	if len(repo.moves) != 0 {
		t.Errorf("rejected request must realize no moves, got %d", len(repo.moves))
	}
}

func TestCancelRequest_DecidedRejected(t *testing.T) {
	svc, repo, _ := newTestService()
	wh := repo.addWarehouse()
	drug := repo.addDrug()

	req := approveReceipt(t, svc, wh, drug, 5)

	_, err := svc.CancelRequest(context.Background(), req.ID, "pharm-1")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("cancelling an approved request should conflict, got %v", err)
	}
}

func TestBalances_LedgerRoundTrip(t *testing.T) {
	svc, repo, _ := newTestService()
	wh := repo.addWarehouse()
	drug := repo.addDrug()
	ctx := context.Background()

	// Three approved receipts of 10, one approved dispense of 10.
	for i := 0; i < 3; i++ {
		approveReceipt(t, svc, wh, drug, 10)
	}
	disp, _ := svc.CreateRequest(ctx, CreateRequestInput{
		Kind:            KindDispense,
		FromWarehouseID: &wh,
		PatientID:       ptr(uuid.New()),
		AdmissionID:     ptr(uuid.New()),
		OrderID:         ptr(uuid.New()),
	}, "nurse-1")
	if _, err := svc.AddLine(ctx, disp.ID, LineInput{DrugID: drug, Qty: 10}); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if _, err := svc.Submit(ctx, disp.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, _, err := svc.Approve(ctx, disp.ID, nil, "approver-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// A submitted-but-undecided receipt must contribute nothing.
	pend, _ := svc.CreateRequest(ctx, CreateRequestInput{Kind: KindReceipt, ToWarehouseID: &wh}, "pharm-1")
	if _, err := svc.AddLine(ctx, pend.ID, LineInput{DrugID: drug, Qty: 50}); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if _, err := svc.Submit(ctx, pend.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	balances, _, err := svc.Balances(ctx, wh, 20, 0)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if len(balances) != 1 {
		t.Fatalf("expected one balance row, got %d", len(balances))
	}
	if balances[0].Qty != 20 {
		t.Errorf("balance = %v, want 20 (3x10 in, 1x10 out)", balances[0].Qty)
	}
}

func TestBalances_UnknownWarehouse(t *testing.T) {
	svc, _, _ := newTestService()

	_, _, err := svc.Balances(context.Background(), uuid.New(), 20, 0)
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid, got %v", err)
	}
}
