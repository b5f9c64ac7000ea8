package stock

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

const requestCols = `id, tenant_id, kind, status, from_warehouse_id, to_warehouse_id,
	patient_id, admission_id, order_id, notes, requested_by_user_id,
	decided_by_user_id, decided_at, decision_reason, created_at, updated_at`

func (r *repoPG) CreateRequest(ctx context.Context, req *Request) error {
	req.ID = uuid.New()
	req.TenantID = db.TenantFromContext(ctx)
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO stock_request (id, tenant_id, kind, status, from_warehouse_id, to_warehouse_id,
			patient_id, admission_id, order_id, notes, requested_by_user_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		req.ID, req.TenantID, req.Kind, req.Status, req.FromWarehouseID, req.ToWarehouseID,
		req.PatientID, req.AdmissionID, req.OrderID, req.Notes, req.RequestedByUserID,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
}

func (r *repoPG) GetRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestCols+` FROM stock_request WHERE tenant_id = $1 AND id = $2`,
		db.TenantFromContext(ctx), id))
}

func (r *repoPG) GetRequestForUpdate(ctx context.Context, id uuid.UUID) (*Request, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestCols+` FROM stock_request WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		db.TenantFromContext(ctx), id))
}

func (r *repoPG) UpdateRequest(ctx context.Context, req *Request) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE stock_request SET
			status = $3, notes = $4, decided_by_user_id = $5, decided_at = $6,
			decision_reason = $7, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`,
		db.TenantFromContext(ctx), req.ID,
		req.Status, req.Notes, req.DecidedByUserID, req.DecidedAt, req.DecisionReason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) ListRequests(ctx context.Context, f RequestFilter, limit, offset int) ([]*Request, int, error) {
	tenant := db.TenantFromContext(ctx)

	where := `WHERE tenant_id = $1`
	args := []interface{}{tenant}
	if f.Kind != "" {
		args = append(args, f.Kind)
		where += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM stock_request `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+requestCols+` FROM stock_request %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			where, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		req, err := scanRequestRows(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, req)
	}
	return out, total, rows.Err()
}

const lineCols = `id, tenant_id, request_id, drug_id, lot_id, qty, created_at`

func (r *repoPG) AddLine(ctx context.Context, l *Line) error {
	l.ID = uuid.New()
	l.TenantID = db.TenantFromContext(ctx)
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO stock_request_line (id, tenant_id, request_id, drug_id, lot_id, qty)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		l.ID, l.TenantID, l.RequestID, l.DrugID, l.LotID, l.Qty,
	).Scan(&l.CreatedAt)
}

func (r *repoPG) GetLine(ctx context.Context, requestID, lineID uuid.UUID) (*Line, error) {
	var l Line
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+lineCols+` FROM stock_request_line WHERE tenant_id = $1 AND request_id = $2 AND id = $3`,
		db.TenantFromContext(ctx), requestID, lineID,
	).Scan(&l.ID, &l.TenantID, &l.RequestID, &l.DrugID, &l.LotID, &l.Qty, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repoPG) UpdateLine(ctx context.Context, l *Line) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE stock_request_line SET drug_id = $3, lot_id = $4, qty = $5
		WHERE tenant_id = $1 AND id = $2`,
		db.TenantFromContext(ctx), l.ID, l.DrugID, l.LotID, l.Qty,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) RemoveLine(ctx context.Context, requestID, lineID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM stock_request_line WHERE tenant_id = $1 AND request_id = $2 AND id = $3`,
		db.TenantFromContext(ctx), requestID, lineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) ListLines(ctx context.Context, requestID uuid.UUID) ([]*Line, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+lineCols+` FROM stock_request_line WHERE tenant_id = $1 AND request_id = $2 ORDER BY created_at`,
		db.TenantFromContext(ctx), requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []*Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.TenantID, &l.RequestID, &l.DrugID, &l.LotID, &l.Qty, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

func (r *repoPG) CountLines(ctx context.Context, requestID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_request_line WHERE tenant_id = $1 AND request_id = $2`,
		db.TenantFromContext(ctx), requestID).Scan(&n)
	return n, err
}

const moveCols = `id, tenant_id, request_id, line_id, warehouse_id, drug_id, lot_id, qty, direction,
	patient_id, admission_id, order_id, created_at`

func (r *repoPG) CreateMove(ctx context.Context, m *Move) error {
	m.ID = uuid.New()
	m.TenantID = db.TenantFromContext(ctx)
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO stock_move (id, tenant_id, request_id, line_id, warehouse_id, drug_id, lot_id, qty, direction,
			patient_id, admission_id, order_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at`,
		m.ID, m.TenantID, m.RequestID, m.LineID, m.WarehouseID, m.DrugID, m.LotID, m.Qty, m.Direction,
		m.PatientID, m.AdmissionID, m.OrderID,
	).Scan(&m.CreatedAt)
}

func (r *repoPG) ListMoves(ctx context.Context, f MoveFilter, limit, offset int) ([]*Move, int, error) {
	tenant := db.TenantFromContext(ctx)

	where := `WHERE tenant_id = $1 AND warehouse_id = $2`
	args := []interface{}{tenant, f.WarehouseID}
	if f.DrugID != nil {
		args = append(args, *f.DrugID)
		where += fmt.Sprintf(` AND drug_id = $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM stock_move `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+moveCols+` FROM stock_move %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			where, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var moves []*Move
	for rows.Next() {
		var m Move
		if err := rows.Scan(&m.ID, &m.TenantID, &m.RequestID, &m.LineID, &m.WarehouseID, &m.DrugID,
			&m.LotID, &m.Qty, &m.Direction, &m.PatientID, &m.AdmissionID, &m.OrderID, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		moves = append(moves, &m)
	}
	return moves, total, rows.Err()
}

// Balances joins back to the request so only APPROVED requests count.
// Moves only exist for approved requests, but the join keeps the ledger
// auditable against the workflow state rather than trusting insert
// discipline.
func (r *repoPG) Balances(ctx context.Context, warehouseID uuid.UUID, limit, offset int) ([]*Balance, int, error) {
	tenant := db.TenantFromContext(ctx)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(DISTINCT m.drug_id)
		FROM stock_move m
		JOIN stock_request r ON r.id = m.request_id AND r.tenant_id = m.tenant_id
		WHERE m.tenant_id = $1 AND m.warehouse_id = $2 AND r.status = $3`,
		tenant, warehouseID, StatusApproved).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT m.drug_id, SUM(m.qty * m.direction)
		FROM stock_move m
		JOIN stock_request r ON r.id = m.request_id AND r.tenant_id = m.tenant_id
		WHERE m.tenant_id = $1 AND m.warehouse_id = $2 AND r.status = $3
		GROUP BY m.drug_id
		ORDER BY m.drug_id
		LIMIT $4 OFFSET $5`,
		tenant, warehouseID, StatusApproved, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var balances []*Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.DrugID, &b.Qty); err != nil {
			return nil, 0, err
		}
		balances = append(balances, &b)
	}
	return balances, total, rows.Err()
}

func (r *repoPG) WarehouseExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM warehouse WHERE tenant_id = $1 AND id = $2)`,
		db.TenantFromContext(ctx), id).Scan(&exists)
	return exists, err
}

func (r *repoPG) DrugExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM drug WHERE tenant_id = $1 AND id = $2)`,
		db.TenantFromContext(ctx), id).Scan(&exists)
	return exists, err
}

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	if err := row.Scan(&r.ID, &r.TenantID, &r.Kind, &r.Status, &r.FromWarehouseID, &r.ToWarehouseID,
		&r.PatientID, &r.AdmissionID, &r.OrderID, &r.Notes, &r.RequestedByUserID,
		&r.DecidedByUserID, &r.DecidedAt, &r.DecisionReason, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRequestRows(rows pgx.Rows) (*Request, error) {
	var r Request
	if err := rows.Scan(&r.ID, &r.TenantID, &r.Kind, &r.Status, &r.FromWarehouseID, &r.ToWarehouseID,
		&r.PatientID, &r.AdmissionID, &r.OrderID, &r.Notes, &r.RequestedByUserID,
		&r.DecidedByUserID, &r.DecidedAt, &r.DecisionReason, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
