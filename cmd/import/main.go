// Command import loads a CSV export directly into a dataset from the shell,
// bypassing the HTTP upload endpoint. Useful for backfills and for seeding a
// local database.
package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-insights/internal/archive"
	"github.com/ignite/campaign-insights/internal/config"
	"github.com/ignite/campaign-insights/internal/ingest"
	"github.com/ignite/campaign-insights/internal/pkg/logger"
	"github.com/ignite/campaign-insights/internal/storage"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "config file path")
		datasetID  = flag.String("dataset", "", "dataset to import into (required)")
		kind       = flag.String("kind", "campaigns", "csv kind: campaigns, flows, or subscribers")
		file       = flag.String("file", "", "csv file path (required)")
	)
	flag.Parse()

	if *datasetID == "" || *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fatal("load config", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactPIIEnabled())

	store, err := storage.Open(cfg.Database)
	if err != nil {
		fatal("open database", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		fatal("migrate", err)
	}

	arc, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		fatal("archive init", err)
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		fatal("read csv", err)
	}

	var (
		report     *ingest.Report
		generation uint64
	)
	switch *kind {
	case "campaigns":
		records, rep, err := ingest.ParseCampaigns(bytes.NewReader(raw))
		if err != nil {
			fatal("parse campaigns", err)
		}
		report = rep
		generation, err = store.ReplaceCampaigns(ctx, *datasetID, records)
		if err != nil {
			fatal("replace campaigns", err)
		}
	case "flows":
		records, rep, err := ingest.ParseFlowMessages(bytes.NewReader(raw))
		if err != nil {
			fatal("parse flows", err)
		}
		report = rep
		generation, err = store.ReplaceFlowMessages(ctx, *datasetID, records)
		if err != nil {
			fatal("replace flows", err)
		}
	case "subscribers":
		records, rep, err := ingest.ParseSubscribers(bytes.NewReader(raw))
		if err != nil {
			fatal("parse subscribers", err)
		}
		report = rep
		generation, err = store.ReplaceSubscribers(ctx, *datasetID, records)
		if err != nil {
			fatal("replace subscribers", err)
		}
	default:
		fatal("kind", fmt.Errorf("unknown kind %q", *kind))
	}

	archiveKey, err := arc.Put(ctx, *datasetID, *kind, *file, bytes.NewReader(raw))
	if err != nil {
		logger.Warn("archive upload failed", "error", err.Error())
		archiveKey = ""
	}

	if err := store.RecordUpload(ctx, storage.Upload{
		ID:         uuid.New().String(),
		DatasetID:  *datasetID,
		Kind:       *kind,
		Filename:   *file,
		ArchiveKey: archiveKey,
		Checksum:   fmt.Sprintf("%x", sha256.Sum256(raw)),
		TotalRows:  report.TotalRows,
		Imported:   report.Imported,
		Skipped:    report.Skipped,
		UploadedAt: time.Now().UTC(),
	}); err != nil {
		logger.Warn("record upload failed", "error", err.Error())
	}

	logger.Info("import complete",
		"dataset", *datasetID, "kind", *kind, "generation", generation,
		"rows", report.TotalRows, "imported", report.Imported, "skipped", report.Skipped)
	for _, warning := range report.Warnings {
		logger.Warn("row skipped", "detail", warning)
	}
}

func fatal(stage string, err error) {
	fmt.Fprintf(os.Stderr, "import: %s: %v\n", stage, err)
	os.Exit(1)
}
