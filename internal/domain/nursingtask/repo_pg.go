package nursingtask

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardflow/wardflow/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const taskCols = `id, tenant_id, order_id, admission_id, patient_id, department_id, room_id, bed_id,
	title, details, kind, status, assigned_to_user_id, created_at, started_at, completed_at, cancelled_at`

func (r *repoPG) Create(ctx context.Context, t *Task) error {
	t.ID = uuid.New()
	t.TenantID = db.TenantFromContext(ctx)
	if t.Status == "" {
		t.Status = StatusPending
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO nursing_task (id, tenant_id, order_id, admission_id, patient_id, department_id, room_id, bed_id,
			title, details, kind, status, assigned_to_user_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at`,
		t.ID, t.TenantID, t.OrderID, t.AdmissionID, t.PatientID, t.DepartmentID, t.RoomID, t.BedID,
		t.Title, t.Details, t.Kind, t.Status, t.AssignedToUserID,
	).Scan(&t.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	return scanTask(r.conn(ctx).QueryRow(ctx,
		`SELECT `+taskCols+` FROM nursing_task WHERE tenant_id = $1 AND id = $2`,
		db.TenantFromContext(ctx), id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Task, error) {
	return scanTask(r.conn(ctx).QueryRow(ctx,
		`SELECT `+taskCols+` FROM nursing_task WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		db.TenantFromContext(ctx), id))
}

func (r *repoPG) Update(ctx context.Context, t *Task) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE nursing_task SET
			details = $3, status = $4, assigned_to_user_id = $5,
			started_at = $6, completed_at = $7, cancelled_at = $8
		WHERE tenant_id = $1 AND id = $2`,
		db.TenantFromContext(ctx), t.ID,
		t.Details, t.Status, t.AssignedToUserID, t.StartedAt, t.CompletedAt, t.CancelledAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) CancelOpenByOrder(ctx context.Context, orderID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		UPDATE nursing_task SET status = $3, cancelled_at = $4
		WHERE tenant_id = $1 AND order_id = $2 AND status IN ($5, $6)
		RETURNING id`,
		db.TenantFromContext(ctx), orderID, StatusCancelled, at, StatusPending, StatusStarted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repoPG) CountOpenByOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM nursing_task
		WHERE tenant_id = $1 AND order_id = $2 AND status IN ($3, $4)`,
		db.TenantFromContext(ctx), orderID, StatusPending, StatusStarted).Scan(&n)
	return n, err
}

func (r *repoPG) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Task, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+taskCols+` FROM nursing_task
		WHERE tenant_id = $1 AND order_id = $2 ORDER BY created_at`,
		db.TenantFromContext(ctx), orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (r *repoPG) ListQueue(ctx context.Context, nurseID string, limit, offset int) ([]*Task, int, error) {
	tenant := db.TenantFromContext(ctx)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM nursing_task
		WHERE tenant_id = $1 AND (assigned_to_user_id = $2 OR assigned_to_user_id IS NULL)`,
		tenant, nurseID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+taskCols+` FROM nursing_task
		WHERE tenant_id = $1 AND (assigned_to_user_id = $2 OR assigned_to_user_id IS NULL)
		ORDER BY CASE status WHEN 'PENDING' THEN 0 WHEN 'STARTED' THEN 1 ELSE 2 END, created_at
		LIMIT $3 OFFSET $4`,
		tenant, nurseID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	if err := row.Scan(&t.ID, &t.TenantID, &t.OrderID, &t.AdmissionID, &t.PatientID,
		&t.DepartmentID, &t.RoomID, &t.BedID, &t.Title, &t.Details, &t.Kind, &t.Status,
		&t.AssignedToUserID, &t.CreatedAt, &t.StartedAt, &t.CompletedAt, &t.CancelledAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTasks(rows pgx.Rows) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.TenantID, &t.OrderID, &t.AdmissionID, &t.PatientID,
			&t.DepartmentID, &t.RoomID, &t.BedID, &t.Title, &t.Details, &t.Kind, &t.Status,
			&t.AssignedToUserID, &t.CreatedAt, &t.StartedAt, &t.CompletedAt, &t.CancelledAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
