package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxFromContext retrieves the active transaction from context, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction on the connection bound to the context and
// returns the transaction together with a derived context carrying it, so
// that repositories resolve their querier to the transaction.
func WithTx(ctx context.Context) (pgx.Tx, context.Context, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return nil, ctx, fmt.Errorf("no database connection in context")
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, ctx, fmt.Errorf("begin transaction: %w", err)
	}

	return tx, context.WithValue(ctx, DBTxKey, tx), nil
}

// Runner executes a function inside a transaction scope. The production
// implementation uses WithTx; tests substitute a passthrough.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxRunner is the pgx-backed Runner. Every multi-step mutation in the core
// goes through InTx so that its writes commit or roll back together.
type TxRunner struct{}

func (TxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		// Already inside a transaction scope; join it.
		return fn(ctx)
	}

	tx, txCtx, err := WithTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(txCtx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
