package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/logifarma/rips-uploader/internal/config"
	"github.com/logifarma/rips-uploader/internal/core/domain"
	"github.com/logifarma/rips-uploader/internal/core/ports"
	"github.com/logifarma/rips-uploader/internal/core/usecase"
	"github.com/logifarma/rips-uploader/internal/infrastructure/export/excel"
	"github.com/logifarma/rips-uploader/internal/infrastructure/portal"
	"github.com/logifarma/rips-uploader/internal/infrastructure/queue/nats"
	"github.com/logifarma/rips-uploader/internal/infrastructure/repository/postgres"
	"github.com/logifarma/rips-uploader/internal/infrastructure/resilience"
	"github.com/logifarma/rips-uploader/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue   ports.JobQueue
	Runs    *domain.RunTracker
	Submit  ports.InvoiceSubmitter
	Report  *usecase.BatchReportUseCase
	Metrics *metrics.UploaderMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	executor := resilience.NewExecutor(collaboratorPolicy(cfg))

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ledger := postgres.NewLedgerRepository(db, executor)
	if err := ledger.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init job queue: %w", err)
	}

	reporter, err := excel.NewWriter(cfg.ReportPath, executor)
	if err != nil {
		return nil, fmt.Errorf("init report writer: %w", err)
	}

	uploaderMetrics := metrics.NewUploaderMetrics("rips-uploader")

	client := portal.New(portal.Config{
		AuthBaseURL: cfg.AuthBaseURL,
		APIBaseURL:  cfg.APIBaseURL,
		PortalURL:   cfg.PortalURL,
		Credential: domain.Credential{
			Username:         cfg.PortalUsername,
			Password:         cfg.PortalPassword,
			OrganizationID:   cfg.OrganizationID,
			OrganizationName: cfg.OrganizationName,
			UserID:           cfg.UserID,
		},
		ApplicationCode:   cfg.ApplicationCode,
		FileTypeCode:      cfg.FileTypeCode,
		PollMaxAttempts:   cfg.PollMaxAttempts,
		PollInterval:      time.Duration(cfg.PollIntervalSeconds) * time.Second,
		RequestTimeout:    time.Duration(cfg.RequestTimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.PortalRatePerSecond,
		PollObserver:      uploaderMetrics.ObservePollAttempts,
	})

	runs := domain.NewRunTracker()
	submitUC := usecase.NewSubmitInvoiceUseCase(client, runs)
	reportUC := usecase.NewBatchReportUseCase(runs, ledger, reporter, reportLocation(cfg))

	return &App{
		Config:  cfg,
		Queue:   queue,
		Runs:    runs,
		Submit:  submitUC,
		Report:  reportUC,
		Metrics: uploaderMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// reportLocation is the fixed offset the control sheet is kept in; the
// business operates on UTC-5.
func reportLocation(cfg config.Config) *time.Location {
	offset := cfg.ReportUTCOffsetHours
	return time.FixedZone(fmt.Sprintf("UTC%+d", offset), offset*3600)
}

func collaboratorPolicy(cfg config.Config) resilience.Config {
	policy := resilience.CollaboratorConfig()
	if cfg.CollabRetryAttempts > 0 {
		policy.RetryMaxAttempts = cfg.CollabRetryAttempts
	}
	if cfg.CollabRetryWaitSecs > 0 {
		wait := time.Duration(cfg.CollabRetryWaitSecs) * time.Second
		policy.RetryInitialBackoff = wait
		policy.RetryMaxBackoff = wait
	}
	return policy
}
