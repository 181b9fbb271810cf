package usecase

import (
	"context"
	"log/slog"

	"github.com/logifarma/rips-uploader/internal/core/domain"
	"github.com/logifarma/rips-uploader/internal/core/ports"
)

// SubmitInvoiceUseCase runs the upload pipeline for one job and records the
// verdict on the active run ledger.
type SubmitInvoiceUseCase struct {
	uploader ports.InvoiceUploader
	runs     *domain.RunTracker
}

func NewSubmitInvoiceUseCase(uploader ports.InvoiceUploader, runs *domain.RunTracker) *SubmitInvoiceUseCase {
	return &SubmitInvoiceUseCase{uploader: uploader, runs: runs}
}

func (uc *SubmitInvoiceUseCase) Submit(ctx context.Context, job domain.UploadJob) domain.Outcome {
	// Pin the run for the whole job so a concurrent report flush cannot
	// rotate it away between the upload and the recorded outcome.
	run, release := uc.runs.Hold()
	defer release()
	run.Begin(job.InvoiceID)
	if !job.ReceivedAt.IsZero() {
		run.MarkReceived(job.InvoiceID, job.ReceivedAt)
	}

	slog.Info("invoice_submit_start", "invoice_id", job.InvoiceID, "file", job.FilePath)

	status, err := uc.uploader.Upload(ctx, job.FilePath, job.InvoiceID)
	if err != nil {
		return uc.recordFailure(run, job, err)
	}

	outcome := domain.Classify(status)
	run.RecordOutcome(job.InvoiceID, outcome)
	if !outcome.Success {
		run.RecordError(job.InvoiceID, outcome.Reason)
		slog.Warn("invoice_rejected", "invoice_id", job.InvoiceID, "cargue_id", status.CargueID(), "reason", outcome.Reason)
		return outcome
	}

	slog.Info("invoice_uploaded", "invoice_id", job.InvoiceID, "cargue_id", outcome.CargueID)
	return outcome
}

func (uc *SubmitInvoiceUseCase) recordFailure(run *domain.Run, job domain.UploadJob, err error) domain.Outcome {
	// A missing local file never reached the portal; it gets its own status
	// so the caller can skip portal-side follow-up entirely.
	if domain.IsKind(err, domain.ErrFileNotFound) {
		run.RecordStatus(job.InvoiceID, domain.StatusFileMissing)
		run.RecordError(job.InvoiceID, domain.StatusFileMissing)
		slog.Warn("invoice_file_missing", "invoice_id", job.InvoiceID, "file", job.FilePath)
		return domain.FailureOutcome(domain.StatusFileMissing)
	}

	outcome := domain.FailureOutcome(err.Error())
	run.RecordOutcome(job.InvoiceID, outcome)
	run.RecordError(job.InvoiceID, outcome.Reason)
	slog.Error("invoice_upload_failed", "invoice_id", job.InvoiceID, "error", err)
	return outcome
}
