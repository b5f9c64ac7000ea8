package admission

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

const admissionCols = `id, tenant_id, patient_id, created_by_user_id, assigned_doctor_user_id,
	status, reason, notes, started_at, ended_at, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, a *Admission) error {
	a.ID = uuid.New()
	a.TenantID = db.TenantFromContext(ctx)
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO admission (id, tenant_id, patient_id, created_by_user_id, assigned_doctor_user_id, status, reason, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		a.ID, a.TenantID, a.PatientID, a.CreatedByUserID, a.AssignedDoctorUserID, a.Status, a.Reason, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return scanAdmission(r.conn(ctx).QueryRow(ctx,
		`SELECT `+admissionCols+` FROM admission WHERE tenant_id = $1 AND id = $2`,
		db.TenantFromContext(ctx), id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return scanAdmission(r.conn(ctx).QueryRow(ctx,
		`SELECT `+admissionCols+` FROM admission WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		db.TenantFromContext(ctx), id))
}

func (r *repoPG) Update(ctx context.Context, a *Admission) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE admission SET
			assigned_doctor_user_id = $3, status = $4, reason = $5, notes = $6,
			started_at = $7, ended_at = $8, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`,
		db.TenantFromContext(ctx), a.ID,
		a.AssignedDoctorUserID, a.Status, a.Reason, a.Notes, a.StartedAt, a.EndedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) Activate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE admission SET status = $3, started_at = COALESCE(started_at, NOW()), updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = $4`,
		db.TenantFromContext(ctx), id, StatusActive, StatusPending,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Admission, int, error) {
	tenant := db.TenantFromContext(ctx)

	where := `WHERE tenant_id = $1`
	args := []interface{}{tenant}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		where += fmt.Sprintf(` AND patient_id = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM admission `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+admissionCols+` FROM admission %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			where, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Admission
	for rows.Next() {
		a, err := scanAdmissionRows(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *repoPG) PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM patient WHERE tenant_id = $1 AND id = $2)`,
		db.TenantFromContext(ctx), patientID).Scan(&exists)
	return exists, err
}

func scanAdmission(row pgx.Row) (*Admission, error) {
	var a Admission
	if err := row.Scan(&a.ID, &a.TenantID, &a.PatientID, &a.CreatedByUserID, &a.AssignedDoctorUserID,
		&a.Status, &a.Reason, &a.Notes, &a.StartedAt, &a.EndedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanAdmissionRows(rows pgx.Rows) (*Admission, error) {
	var a Admission
	if err := rows.Scan(&a.ID, &a.TenantID, &a.PatientID, &a.CreatedByUserID, &a.AssignedDoctorUserID,
		&a.Status, &a.Reason, &a.Notes, &a.StartedAt, &a.EndedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
