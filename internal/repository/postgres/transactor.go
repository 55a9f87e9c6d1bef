package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Transactor runs the multi-row auth mutations (register, change-password,
// logout-all, deactivate) so the user row, token revocations and outbox
// events commit together.
type Transactor struct {
	db  *DB
	log *zap.Logger
}

func NewTransactor(db *DB, log *zap.Logger) *Transactor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transactor{db: db, log: log.With(zap.String("component", "pg.tx"))}
}

// WithTx runs fn inside a transaction carried by ctx. A ctx that already
// holds a transaction joins it; the outermost call owns commit and rollback.
func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) (txErr error) {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	ctx, span := otel.Tracer("postgres").Start(ctx, "pg.tx")
	defer func() {
		span.SetAttributes(attribute.Bool("tx.committed", txErr == nil))
		if txErr != nil {
			span.SetStatus(codes.Error, "rolled back")
		}
		span.End()
	}()

	bctx, cancel := t.db.withTimeout(ctx)
	tx, err := t.db.Pool.Begin(bctx)
	cancel()
	if err != nil {
		return mapErr("begin tx", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if txErr != nil {
			if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
				t.log.Error("rollback failed", zap.Error(err))
			}
			return
		}
		cctx, cancel := t.db.withTimeout(ctx)
		defer cancel()
		if err := tx.Commit(cctx); err != nil {
			t.log.Error("commit failed", zap.Error(err))
			txErr = mapErr("commit tx", err)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return fmt.Errorf("tx: %w", err)
	}
	return nil
}

type txKey struct{}

func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok && tx != nil
}

type execQueryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// execQueryer routes a statement to the transaction in ctx, if any.
func (db *DB) execQueryer(ctx context.Context) execQueryer {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db.Pool
}
