package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/logifarma/rips-uploader/internal/core/domain"
	"github.com/logifarma/rips-uploader/internal/core/ports"
)

// BatchReportUseCase closes out the active run: it rotates in a fresh ledger,
// projects the finished one to rows, persists them and writes the control
// workbook. A run with no records rotates silently.
type BatchReportUseCase struct {
	runs     *domain.RunTracker
	ledger   ports.LedgerRepository
	reporter ports.ReportWriter
	location *time.Location
}

func NewBatchReportUseCase(
	runs *domain.RunTracker,
	ledger ports.LedgerRepository,
	reporter ports.ReportWriter,
	location *time.Location,
) *BatchReportUseCase {
	if location == nil {
		location = time.UTC
	}
	return &BatchReportUseCase{
		runs:     runs,
		ledger:   ledger,
		reporter: reporter,
		location: location,
	}
}

func (uc *BatchReportUseCase) Flush(ctx context.Context) error {
	if uc.runs.Current().Len() == 0 {
		return nil
	}

	run := uc.runs.Rotate()
	rows := run.SnapshotAsRows(uc.location)
	slog.Info("batch_report_flush", "records", len(rows), "run_date", run.Date.Format(time.RFC3339))

	var firstErr error
	if uc.ledger != nil {
		if err := uc.ledger.SaveRows(ctx, rows); err != nil {
			firstErr = fmt.Errorf("persist ledger rows: %w", err)
			slog.Error("ledger_persist_failed", "error", err)
		}
	}
	if uc.reporter != nil {
		if err := uc.reporter.WriteReport(ctx, rows); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("write report workbook: %w", err)
			}
			slog.Error("report_write_failed", "error", err)
		}
	}
	return firstErr
}
