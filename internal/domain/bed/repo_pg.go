package bed

import (
	"context"
	"errors"
	"fmt"
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

const bedCols = `id, tenant_id, room_id, code, status, is_active, created_at, updated_at`

func (r *repoPG) CreateBed(ctx context.Context, b *Bed) error {
	b.ID = uuid.New()
	b.TenantID = db.TenantFromContext(ctx)
	if b.Status == "" {
		b.Status = StatusAvailable
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO bed (id, tenant_id, room_id, code, status, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		b.ID, b.TenantID, b.RoomID, b.Code, b.Status, b.IsActive,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *repoPG) GetBed(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(r.conn(ctx).QueryRow(ctx,
		`SELECT `+bedCols+` FROM bed WHERE tenant_id = $1 AND id = $2`,
		db.TenantFromContext(ctx), id))
}

func (r *repoPG) GetBedForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(r.conn(ctx).QueryRow(ctx,
		`SELECT `+bedCols+` FROM bed WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		db.TenantFromContext(ctx), id))
}

func (r *repoPG) UpdateBedStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE bed SET status = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`,
		db.TenantFromContext(ctx), id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) ListBeds(ctx context.Context, f BedFilter, limit, offset int) ([]*Bed, int, error) {
	tenant := db.TenantFromContext(ctx)

	where := `WHERE tenant_id = $1`
	args := []interface{}{tenant}
	if f.RoomID != nil {
		args = append(args, *f.RoomID)
		where += fmt.Sprintf(` AND room_id = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM bed `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+bedCols+` FROM bed %s ORDER BY code LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var beds []*Bed
	for rows.Next() {
		b, err := scanBedRows(rows)
		if err != nil {
			return nil, 0, err
		}
		beds = append(beds, b)
	}
	return beds, total, rows.Err()
}

func (r *repoPG) Location(ctx context.Context, bedID uuid.UUID) (*Location, error) {
	var loc Location
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT b.room_id, r.department_id
		FROM bed b JOIN room r ON r.id = b.room_id AND r.tenant_id = b.tenant_id
		WHERE b.tenant_id = $1 AND b.id = $2`,
		db.TenantFromContext(ctx), bedID).Scan(&loc.RoomID, &loc.DepartmentID)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

const assignmentCols = `id, tenant_id, admission_id, bed_id, assigned_by_user_id, assigned_at, released_at, is_active`

func (r *repoPG) CreateAssignment(ctx context.Context, a *Assignment) error {
	a.ID = uuid.New()
	a.TenantID = db.TenantFromContext(ctx)
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO bed_assignment (id, tenant_id, admission_id, bed_id, assigned_by_user_id, assigned_at, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.TenantID, a.AdmissionID, a.BedID, a.AssignedByUserID, a.AssignedAt, a.IsActive,
	)
	return err
}

func (r *repoPG) ActiveAssignmentByAdmission(ctx context.Context, admissionID uuid.UUID) (*Assignment, error) {
	a, err := scanAssignment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+assignmentCols+` FROM bed_assignment WHERE tenant_id = $1 AND admission_id = $2 AND is_active`,
		db.TenantFromContext(ctx), admissionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *repoPG) ActiveAssignmentByBed(ctx context.Context, bedID uuid.UUID) (*Assignment, error) {
	a, err := scanAssignment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+assignmentCols+` FROM bed_assignment WHERE tenant_id = $1 AND bed_id = $2 AND is_active`,
		db.TenantFromContext(ctx), bedID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *repoPG) ReleaseAssignment(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bed_assignment SET is_active = FALSE, released_at = $3
		WHERE tenant_id = $1 AND id = $2 AND is_active`,
		db.TenantFromContext(ctx), id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const historyCols = `id, tenant_id, bed_id, room_id, department_id, admission_id, patient_id, assigned_at, released_at, reason, actor_user_id`

func (r *repoPG) OpenHistory(ctx context.Context, h *History) error {
	h.ID = uuid.New()
	h.TenantID = db.TenantFromContext(ctx)
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO bed_history (id, tenant_id, bed_id, room_id, department_id, admission_id, patient_id, assigned_at, reason, actor_user_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		h.ID, h.TenantID, h.BedID, h.RoomID, h.DepartmentID, h.AdmissionID, h.PatientID, h.AssignedAt, h.Reason, h.ActorUserID,
	)
	return err
}

func (r *repoPG) CloseHistory(ctx context.Context, bedID, admissionID uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE bed_history SET released_at = $4
		WHERE tenant_id = $1 AND bed_id = $2 AND admission_id = $3 AND released_at IS NULL`,
		db.TenantFromContext(ctx), bedID, admissionID, at)
	return err
}

func (r *repoPG) ListHistoryByBed(ctx context.Context, bedID uuid.UUID, limit, offset int) ([]*History, int, error) {
	return r.listHistory(ctx, `bed_id`, bedID, limit, offset)
}

func (r *repoPG) ListHistoryByAdmission(ctx context.Context, admissionID uuid.UUID, limit, offset int) ([]*History, int, error) {
	return r.listHistory(ctx, `admission_id`, admissionID, limit, offset)
}

func (r *repoPG) listHistory(ctx context.Context, col string, id uuid.UUID, limit, offset int) ([]*History, int, error) {
	tenant := db.TenantFromContext(ctx)

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM bed_history WHERE tenant_id = $1 AND `+col+` = $2`,
		tenant, id).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+historyCols+` FROM bed_history
		WHERE tenant_id = $1 AND `+col+` = $2
		ORDER BY assigned_at DESC LIMIT $3 OFFSET $4`,
		tenant, id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var hs []*History
	for rows.Next() {
		var h History
		if err := rows.Scan(&h.ID, &h.TenantID, &h.BedID, &h.RoomID, &h.DepartmentID, &h.AdmissionID,
			&h.PatientID, &h.AssignedAt, &h.ReleasedAt, &h.Reason, &h.ActorUserID); err != nil {
			return nil, 0, err
		}
		hs = append(hs, &h)
	}
	return hs, total, rows.Err()
}

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	if err := row.Scan(&b.ID, &b.TenantID, &b.RoomID, &b.Code, &b.Status, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanBedRows(rows pgx.Rows) (*Bed, error) {
	var b Bed
	if err := rows.Scan(&b.ID, &b.TenantID, &b.RoomID, &b.Code, &b.Status, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var a Assignment
	if err := row.Scan(&a.ID, &a.TenantID, &a.AdmissionID, &a.BedID, &a.AssignedByUserID,
		&a.AssignedAt, &a.ReleasedAt, &a.IsActive); err != nil {
		return nil, err
	}
	return &a, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
