package excel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/logifarma/rips-uploader/internal/core/domain"
	"github.com/logifarma/rips-uploader/internal/infrastructure/resilience"
)

const sheetName = "CONTROL"

var headers = []string{"Factura", "ID de cargue", "Status", "Errores", "Día", "Mes", "Año", "Momento"}

// Writer maintains the control workbook. New batches are inserted right
// below the header row, shifting earlier batches down, so the sheet reads
// newest-first top to bottom.
type Writer struct {
	path     string
	executor *resilience.Executor
}

func NewWriter(path string, executor *resilience.Executor) (*Writer, error) {
	if path == "" {
		path = "./data/control.xlsx"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &Writer{path: path, executor: executor}, nil
}

func (w *Writer) WriteReport(ctx context.Context, rows []domain.ReportRow) error {
	if len(rows) == 0 {
		return nil
	}

	call := func(_ context.Context) error {
		return w.write(rows)
	}
	if w.executor != nil {
		return w.executor.Execute(ctx, "report.write", call, classifyWriteError)
	}
	return call(ctx)
}

func (w *Writer) write(rows []domain.ReportRow) error {
	f, fresh, err := w.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	if fresh {
		if err := writeHeader(f); err != nil {
			return err
		}
	} else if err := f.InsertRows(sheetName, 2, len(rows)); err != nil {
		return fmt.Errorf("shift report rows: %w", err)
	}

	for i, row := range rows {
		if err := writeRow(f, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("save report workbook: %w", err)
	}
	slog.Info("report_workbook_written", "path", w.path, "rows", len(rows))
	return nil
}

func (w *Writer) open() (*excelize.File, bool, error) {
	f, err := excelize.OpenFile(w.path)
	if err == nil {
		if index, _ := f.GetSheetIndex(sheetName); index == -1 {
			if _, err := f.NewSheet(sheetName); err != nil {
				return nil, false, fmt.Errorf("create control sheet: %w", err)
			}
			return f, true, nil
		}
		return f, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("open report workbook: %w", err)
	}

	f = excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, false, fmt.Errorf("create control sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, false, fmt.Errorf("drop default sheet: %w", err)
	}
	return f, true, nil
}

func writeHeader(f *excelize.File) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("write header cell: %w", err)
		}
	}
	return nil
}

func writeRow(f *excelize.File, rowNum int, row domain.ReportRow) error {
	values := []any{
		row.InvoiceID,
		row.CargueID,
		row.Status,
		row.Errors,
		row.Day,
		row.Month,
		row.Year,
		row.Moment,
	}
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, rowNum)
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return fmt.Errorf("write report cell: %w", err)
		}
	}
	return nil
}

func classifyWriteError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	// A missing or unreadable workbook path will not fix itself; everything
	// else (file lock held by a reader, transient fs error) is worth the
	// fixed-wait retries.
	if errors.Is(err, fs.ErrPermission) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
