package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/logifarma/rips-uploader/internal/core/domain"
	"github.com/logifarma/rips-uploader/internal/infrastructure/resilience"
)

// LedgerRepository persists finished run rows so the control data survives
// worker restarts. Writes go through the collaborator retry executor.
type LedgerRepository struct {
	db       *sql.DB
	executor *resilience.Executor
}

func NewLedgerRepository(db *sql.DB, executor *resilience.Executor) *LedgerRepository {
	return &LedgerRepository{db: db, executor: executor}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *LedgerRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS invoice_uploads (
    id           BIGSERIAL PRIMARY KEY,
    nro_factura  TEXT NOT NULL,
    id_cargue    TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT '',
    errores      TEXT NOT NULL DEFAULT '',
    dia          TEXT NOT NULL,
    mes          TEXT NOT NULL,
    anio         INTEGER NOT NULL,
    momento      TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("ensure invoice_uploads schema: %w", err)
	}
	return nil
}

// SaveRows inserts every report row of a finished run. Rows are independent;
// a failure aborts the batch and the retry executor replays the whole call,
// so inserts stay in one transaction to keep replays idempotent-ish.
func (r *LedgerRepository) SaveRows(ctx context.Context, rows []domain.ReportRow) error {
	if len(rows) == 0 {
		return nil
	}

	call := func(ctx context.Context) error {
		return r.insertAll(ctx, rows)
	}
	if r.executor != nil {
		return r.executor.Execute(ctx, "ledger.save_rows", call, classifyDBError)
	}
	return call(ctx)
}

func (r *LedgerRepository) insertAll(ctx context.Context, rows []domain.ReportRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, row := range rows {
		_, err := tx.ExecContext(ctx, `
INSERT INTO invoice_uploads (nro_factura, id_cargue, status, errores, dia, mes, anio, momento)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, row.InvoiceID, row.CargueID, row.Status, row.Errors, row.Day, row.Month, row.Year, row.Moment)
		if err != nil {
			return fmt.Errorf("insert ledger row %s: %w", row.InvoiceID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func classifyDBError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
