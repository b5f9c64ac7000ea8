package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wardflow/wardflow/internal/domain/admission"
	"github.com/wardflow/wardflow/internal/domain/bed"
	"github.com/wardflow/wardflow/internal/domain/nursingtask"
	"github.com/wardflow/wardflow/internal/domain/patientlog"
	"github.com/wardflow/wardflow/internal/platform/apperr"
)

type passRunner struct{}

func (passRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockRepo struct {
	orders map[uuid.UUID]*Order
}

func newMockRepo() *mockRepo {
	return &mockRepo{orders: make(map[uuid.UUID]*Order)}
}

func (m *mockRepo) Create(ctx context.Context, o *Order) error {
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	m.orders[o.ID] = o
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return o, nil
}

func (m *mockRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Order, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRepo) Update(ctx context.Context, o *Order) error {
	if _, ok := m.orders[o.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.orders[o.ID] = o
	return nil
}

func (m *mockRepo) MarkInProgress(ctx context.Context, id uuid.UUID) error {
	if o, ok := m.orders[id]; ok && o.Status == StatusCreated {
		o.Status = StatusInProgress
	}
	return nil
}

func (m *mockRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	if o, ok := m.orders[id]; ok && !o.Terminal() {
		o.Status = StatusCompleted
	}
	return nil
}

func (m *mockRepo) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Order, int, error) {
	var out []*Order
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, len(out), nil
}

type mockAdmissions struct {
	admissions map[uuid.UUID]*admission.Admission
}

func newMockAdmissions() *mockAdmissions {
	return &mockAdmissions{admissions: make(map[uuid.UUID]*admission.Admission)}
}

func (m *mockAdmissions) add(status string) *admission.Admission {
	a := &admission.Admission{ID: uuid.New(), PatientID: uuid.New(), Status: status}
	m.admissions[a.ID] = a
	return a
}

func (m *mockAdmissions) GetForUpdate(ctx context.Context, id uuid.UUID) (*admission.Admission, error) {
	a, ok := m.admissions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return a, nil
}

type mockBeds struct {
	active map[uuid.UUID]*bed.Assignment
}

func newMockBeds() *mockBeds {
	return &mockBeds{active: make(map[uuid.UUID]*bed.Assignment)}
}

func (m *mockBeds) assign(admissionID uuid.UUID) *bed.Assignment {
	a := &bed.Assignment{ID: uuid.New(), AdmissionID: admissionID, BedID: uuid.New(), IsActive: true}
	m.active[admissionID] = a
	return a
}

func (m *mockBeds) ActiveAssignment(ctx context.Context, admissionID uuid.UUID) (*bed.Assignment, error) {
	return m.active[admissionID], nil
}

func (m *mockBeds) BedLocation(ctx context.Context, bedID uuid.UUID) (*bed.Location, error) {
	return &bed.Location{RoomID: uuid.New(), DepartmentID: uuid.New()}, nil
}

type mockTasks struct {
	tasks      []*nursingtask.Task
	failCreate bool
}

func (m *mockTasks) Create(ctx context.Context, t *nursingtask.Task) error {
	if m.failCreate {
		return errors.New("insert failed")
	}
	t.ID = uuid.New()
	m.tasks = append(m.tasks, t)
	return nil
}

func (m *mockTasks) CancelOpenByOrder(ctx context.Context, orderID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, t := range m.tasks {
		if t.OrderID == orderID && !t.Terminal() {
			t.Status = nursingtask.StatusCancelled
			t.CancelledAt = &at
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (m *mockTasks) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*nursingtask.Task, error) {
	var out []*nursingtask.Task
	for _, t := range m.tasks {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

type mockLog struct {
	entries []*patientlog.Entry
}

func (m *mockLog) Record(ctx context.Context, e *patientlog.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockLog) last() *patientlog.Entry {
	if len(m.entries) == 0 {
		return nil
	}
	return m.entries[len(m.entries)-1]
}

func newTestService() (*Service, *mockRepo, *mockAdmissions, *mockBeds, *mockTasks, *mockLog) {
	repo := newMockRepo()
	adms := newMockAdmissions()
	beds := newMockBeds()
	tasks := &mockTasks{}
	logs := &mockLog{}
	return NewService(repo, adms, beds, tasks, logs, passRunner{}), repo, adms, beds, tasks, logs
}

func medicationPayload() map[string]interface{} {
	return map[string]interface{}{"dose": "5mg", "route": "PO", "frequency": "q8h"}
}

func TestCreateOrder_MedicationFanout(t *testing.T) {
	svc, _, adms, beds, tasks, logs := newTestService()
	adm := adms.add(admission.StatusActive)
	asn := beds.assign(adm.ID)

	o, created, err := svc.CreateOrder(context.Background(), CreateInput{
		AdmissionID: adm.ID,
		Kind:        KindMedication,
		Payload:     medicationPayload(),
	}, "doctor-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != StatusCreated {
		t.Errorf("order status = %s, want CREATED", o.Status)
	}
	if len(created) != 1 || len(tasks.tasks) != 1 {
		t.Fatalf("MEDICATION should fan out to exactly 1 task, got %d", len(created))
	}
	task := created[0]
	if task.Status != nursingtask.StatusPending {
		t.Errorf("task status = %s, want PENDING", task.Status)
	}
	if task.BedID != asn.BedID {
		t.Error("task should snapshot the assigned bed")
	}
	if task.Title != "Administer medication" {
		t.Errorf("unexpected task title: %s", task.Title)
	}
	if e := logs.last(); e == nil || e.EventType != patientlog.EventOrderCreated {
		t.Errorf("expected ORDER_CREATED log entry, got %+v", e)
	}
}

func TestCreateOrder_LabAndProcedureTemplates(t *testing.T) {
	tests := []struct {
		kind    string
		payload map[string]interface{}
		title   string
	}{
		{KindLab, map[string]interface{}{"test_code": "CBC"}, "Collect specimen"},
		{KindProcedure, map[string]interface{}{"procedure": "central line"}, "Prepare patient for procedure"},
	}
	for _, tt := range tests {
		svc, _, adms, beds, _, _ := newTestService()
		adm := adms.add(admission.StatusActive)
		beds.assign(adm.ID)

		_, created, err := svc.CreateOrder(context.Background(), CreateInput{
			AdmissionID: adm.ID, Kind: tt.kind, Payload: tt.payload,
		}, "doctor-1")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.kind, err)
		}
		if len(created) != 1 || created[0].Title != tt.title {
			t.Errorf("%s: unexpected fanout %+v", tt.kind, created)
		}
	}
}

func TestCreateOrder_RequiresActiveAdmission(t *testing.T) {
	for _, status := range []string{admission.StatusPending, admission.StatusDischarged, admission.StatusCancelled} {
		svc, _, adms, beds, _, _ := newTestService()
		adm := adms.add(status)
		beds.assign(adm.ID)

		_, _, err := svc.CreateOrder(context.Background(), CreateInput{
			AdmissionID: adm.ID, Kind: KindMedication, Payload: medicationPayload(),
		}, "doctor-1")
		if !errors.Is(err, apperr.ErrForbidden) {
			t.Errorf("status %s: expected forbidden, got %v", status, err)
		}
		if err.Error() != "must assign a bed and activate admission before any action" {
			t.Errorf("unexpected message: %s", err.Error())
		}
	}
}

func TestCreateOrder_RequiresActiveBed(t *testing.T) {
	svc, repo, adms, _, _, _ := newTestService()
	adm := adms.add(admission.StatusActive)

	_, _, err := svc.CreateOrder(context.Background(), CreateInput{
		AdmissionID: adm.ID, Kind: KindMedication, Payload: medicationPayload(),
	}, "doctor-1")
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(repo.orders) != 0 {
		t.Error("no order should persist when the precondition fails")
	}
}

func TestCreateOrder_InvalidPayload(t *testing.T) {
	svc, _, adms, beds, _, _ := newTestService()
	adm := adms.add(admission.StatusActive)
	beds.assign(adm.ID)

	_, _, err := svc.CreateOrder(context.Background(), CreateInput{
		AdmissionID: adm.ID, Kind: KindMedication,
		Payload: map[string]interface{}{"dose": "5mg"},
	}, "doctor-1")
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestCancelOrder_CascadesToTasks(t *testing.T) {
	svc, _, adms, beds, tasks, logs := newTestService()
	adm := adms.add(admission.StatusActive)
	beds.assign(adm.ID)

	o, created, err := svc.CreateOrder(context.Background(), CreateInput{
		AdmissionID: adm.ID, Kind: KindMedication, Payload: medicationPayload(),
	}, "doctor-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, cancelledIDs, err := svc.CancelOrder(context.Background(), o.ID, nil, "doctor-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCancelled || got.CancelledAt == nil {
		t.Errorf("order should be CANCELLED with timestamp, got %s", got.Status)
	}
	if len(cancelledIDs) != 1 || cancelledIDs[0] != created[0].ID {
		t.Errorf("expected cascade cancel of the task, got %v", cancelledIDs)
	}
	if tasks.tasks[0].Status != nursingtask.StatusCancelled {
		t.Error("task should be CANCELLED")
	}
	if e := logs.last(); e == nil || e.EventType != patientlog.EventOrderCancelled {
		t.Errorf("expected ORDER_CANCELLED log entry, got %+v", e)
	}
}

func TestCancelOrder_IdempotentWhenCancelled(t *testing.T) {
	svc, _, adms, beds, _, logs := newTestService()
	adm := adms.add(admission.StatusActive)
	beds.assign(adm.ID)

	o, _, err := svc.CreateOrder(context.Background(), CreateInput{
		AdmissionID: adm.ID, Kind: KindLab, Payload: map[string]interface{}{"test_code": "CBC"},
	}, "doctor-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.CancelOrder(context.Background(), o.ID, nil, "doctor-1"); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	logCount := len(logs.entries)

	got, ids, err := svc.CancelOrder(context.Background(), o.ID, nil, "doctor-1")
	if err != nil {
		t.Fatalf("re-cancel should be a no-op, got %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("status = %s", got.Status)
	}
	if len(ids) != 0 {
		t.Error("no tasks should be cancelled twice")
	}
	if len(logs.entries) != logCount {
		t.Error("no-op cancel must not write another log entry")
	}
}

func TestCancelOrder_CompletedRejected(t *testing.T) {
	svc, repo, adms, beds, _, _ := newTestService()
	adm := adms.add(admission.StatusActive)
	beds.assign(adm.ID)

	o, _, err := svc.CreateOrder(context.Background(), CreateInput{
		AdmissionID: adm.ID, Kind: KindLab, Payload: map[string]interface{}{"test_code": "CBC"},
	}, "doctor-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	repo.orders[o.ID].Status = StatusCompleted

	_, _, err = svc.CancelOrder(context.Background(), o.ID, nil, "doctor-1")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err.Error() != "order already completed" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestCreateOrder_UnknownKind(t *testing.T) {
	svc, _, _, _, _, _ := newTestService()

	_, _, err := svc.CreateOrder(context.Background(), CreateInput{
		AdmissionID: uuid.New(), Kind: "IMAGING",
	}, "doctor-1")
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid input, got %v", err)
	}
}
