// Command enqueue publishes one upload job, typically from the machine where
// the inbox collaborator dropped the archive.
package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"
	"time"

	"github.com/logifarma/rips-uploader/internal/config"
	"github.com/logifarma/rips-uploader/internal/core/domain"
	"github.com/logifarma/rips-uploader/internal/infrastructure/queue/nats"
	"github.com/logifarma/rips-uploader/internal/observability/logging"
)

func main() {
	var (
		filePath  = flag.String("file", "", "path to the invoice archive (zip)")
		invoiceID = flag.String("invoice", "", "invoice number (nro_factura)")
	)
	flag.Parse()

	if *filePath == "" || *invoiceID == "" {
		log.Fatal("both -file and -invoice are required")
	}
	absPath, err := filepath.Abs(*filePath)
	if err != nil {
		log.Fatalf("resolve file path: %v", err)
	}

	cfg := config.Load()
	logging.Setup("rips-uploader-enqueue", cfg.LogLevel)

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		log.Fatalf("connect queue: %v", err)
	}
	defer queue.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	job := domain.UploadJob{
		InvoiceID:  *invoiceID,
		FilePath:   absPath,
		ReceivedAt: time.Now(),
	}
	if err := queue.PublishUploadRequested(ctx, job); err != nil {
		log.Fatalf("publish upload job: %v", err)
	}
	log.Printf("queued invoice %s (%s)", job.InvoiceID, job.FilePath)
}
