package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/logifarma/rips-uploader/internal/bootstrap"
	"github.com/logifarma/rips-uploader/internal/config"
	"github.com/logifarma/rips-uploader/internal/core/domain"
	"github.com/logifarma/rips-uploader/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logging.Setup("rips-uploader-worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsSrv := startMetricsServer(app, cfg.MetricsPort)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ReportCron, func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := app.Report.Flush(flushCtx); err != nil {
			log.Printf("batch report flush error: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule report flush: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	uploadTimeout := time.Duration(cfg.UploadTimeoutSecs) * time.Second

	log.Printf("worker subscribed to %s", cfg.NATSSubject)
	err = app.Queue.SubscribeUploadRequested(ctx, func(handlerCtx context.Context, job domain.UploadJob) error {
		app.Metrics.StartUpload()
		start := time.Now()

		submitCtx, cancel := context.WithTimeout(handlerCtx, uploadTimeout)
		defer cancel()
		outcome := app.Submit.Submit(submitCtx, job)

		app.Metrics.FinishUpload(time.Since(start), outcome.Success)
		return nil
	})
	if err != nil {
		log.Printf("worker subscribe error: %v", err)
	}

	// Shutdown: report whatever the current run accumulated.
	flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := app.Report.Flush(flushCtx); err != nil {
		log.Printf("final report flush error: %v", err)
	}
}

func startMetricsServer(app *bootstrap.App, port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.Metrics.Handler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	return srv
}
