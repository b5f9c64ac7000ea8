package order

import (
	"context"
	"fmt"

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

const orderCols = `id, tenant_id, admission_id, patient_id, kind, status, payload, notes, created_at, updated_at, cancelled_at`

func (r *repoPG) Create(ctx context.Context, o *Order) error {
	o.ID = uuid.New()
	o.TenantID = db.TenantFromContext(ctx)
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinical_order (id, tenant_id, admission_id, patient_id, kind, status, payload, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		o.ID, o.TenantID, o.AdmissionID, o.PatientID, o.Kind, o.Status, o.Payload, o.Notes,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return scanOrder(r.conn(ctx).QueryRow(ctx,
		`SELECT `+orderCols+` FROM clinical_order WHERE tenant_id = $1 AND id = $2`,
		db.TenantFromContext(ctx), id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Order, error) {
	return scanOrder(r.conn(ctx).QueryRow(ctx,
		`SELECT `+orderCols+` FROM clinical_order WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		db.TenantFromContext(ctx), id))
}

func (r *repoPG) Update(ctx context.Context, o *Order) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinical_order SET status = $3, notes = $4, cancelled_at = $5, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`,
		db.TenantFromContext(ctx), o.ID, o.Status, o.Notes, o.CancelledAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) MarkInProgress(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinical_order SET status = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = $4`,
		db.TenantFromContext(ctx), id, StatusInProgress, StatusCreated)
	return err
}

func (r *repoPG) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinical_order SET status = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status NOT IN ($4, $5)`,
		db.TenantFromContext(ctx), id, StatusCompleted, StatusCompleted, StatusCancelled)
	return err
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Order, int, error) {
	tenant := db.TenantFromContext(ctx)

	where := `WHERE tenant_id = $1`
	args := []interface{}{tenant}
	if f.AdmissionID != nil {
		args = append(args, *f.AdmissionID)
		where += fmt.Sprintf(` AND admission_id = $%d`, len(args))
	}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		where += fmt.Sprintf(` AND patient_id = $%d`, len(args))
	}
	if f.Kind != "" {
		args = append(args, f.Kind)
		where += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM clinical_order `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+orderCols+` FROM clinical_order %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			where, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.TenantID, &o.AdmissionID, &o.PatientID, &o.Kind, &o.Status,
			&o.Payload, &o.Notes, &o.CreatedAt, &o.UpdatedAt, &o.CancelledAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &o)
	}
	return out, total, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	if err := row.Scan(&o.ID, &o.TenantID, &o.AdmissionID, &o.PatientID, &o.Kind, &o.Status,
		&o.Payload, &o.Notes, &o.CreatedAt, &o.UpdatedAt, &o.CancelledAt); err != nil {
		return nil, err
	}
	return &o, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
