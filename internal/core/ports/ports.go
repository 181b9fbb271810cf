package ports

import (
	"context"

	"github.com/logifarma/rips-uploader/internal/core/domain"
)

// InvoiceUploader drives the full upload protocol for one file and returns
// the final load status snapshot. Implementations are not safe for
// concurrent calls; run one pipeline per worker.
type InvoiceUploader interface {
	Upload(ctx context.Context, filePath, invoiceID string) (*domain.LoadStatus, error)
}

// JobQueue delivers upload jobs from the intake collaborator to workers.
type JobQueue interface {
	PublishUploadRequested(ctx context.Context, job domain.UploadJob) error
	SubscribeUploadRequested(ctx context.Context, handler func(context.Context, domain.UploadJob) error) error
}

// LedgerRepository persists report rows for a finished run.
type LedgerRepository interface {
	SaveRows(ctx context.Context, rows []domain.ReportRow) error
}

// ReportWriter renders report rows into the control workbook.
type ReportWriter interface {
	WriteReport(ctx context.Context, rows []domain.ReportRow) error
}

// InvoiceSubmitter is the inbound contract: process one job end to end and
// report the verdict.
type InvoiceSubmitter interface {
	Submit(ctx context.Context, job domain.UploadJob) domain.Outcome
}
