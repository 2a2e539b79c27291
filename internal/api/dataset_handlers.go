package api

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/campaign-insights/internal/domain"
	"github.com/ignite/campaign-insights/internal/ingest"
	"github.com/ignite/campaign-insights/internal/metrics"
	"github.com/ignite/campaign-insights/internal/pkg/logger"
	"github.com/ignite/campaign-insights/internal/storage"
)

// uploadResponse is returned after a successful CSV import.
type uploadResponse struct {
	DatasetID  string         `json:"dataset_id"`
	Kind       string         `json:"kind"`
	Generation uint64         `json:"generation"`
	Report     *ingest.Report `json:"report"`
	ArchiveKey string         `json:"archive_key,omitempty"`
}

// UploadCSV ingests a CSV export into the dataset. The kind path segment
// selects the parser: campaigns, flows, or subscribers. The upload replaces
// the dataset's existing records of that kind and bumps its generation,
// which invalidates cached analyses.
func (h *Handlers) UploadCSV(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")
	kind := chi.URLParam(r, "kind")

	maxBytes := int64(h.cfg.Ingest.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		metrics.Uploads.WithLabelValues(kind, "rejected").Inc()
		respondError(w, http.StatusBadRequest, fmt.Sprintf("parse upload: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		metrics.Uploads.WithLabelValues(kind, "rejected").Inc()
		respondError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	// Buffered twice over: once for the parser, once for the archive.
	raw, err := io.ReadAll(file)
	if err != nil {
		metrics.Uploads.WithLabelValues(kind, "error").Inc()
		respondError(w, http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
		return
	}

	var (
		report     *ingest.Report
		generation uint64
	)
	switch kind {
	case "campaigns":
		var records []domain.CampaignRecord
		records, report, err = ingest.ParseCampaigns(bytes.NewReader(raw))
		if err == nil {
			generation, err = h.store.ReplaceCampaigns(r.Context(), datasetID, records)
		}
	case "flows":
		var records []domain.FlowMessageRecord
		records, report, err = ingest.ParseFlowMessages(bytes.NewReader(raw))
		if err == nil {
			generation, err = h.store.ReplaceFlowMessages(r.Context(), datasetID, records)
		}
	case "subscribers":
		var records []domain.SubscriberRecord
		records, report, err = ingest.ParseSubscribers(bytes.NewReader(raw))
		if err == nil {
			generation, err = h.store.ReplaceSubscribers(r.Context(), datasetID, records)
		}
	default:
		metrics.Uploads.WithLabelValues(kind, "rejected").Inc()
		respondError(w, http.StatusNotFound, "kind must be campaigns, flows, or subscribers")
		return
	}
	if err != nil {
		metrics.Uploads.WithLabelValues(kind, "error").Inc()
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The raw file is the audit trail; archiving it must not fail the import.
	archiveKey, archiveErr := h.archive.Put(r.Context(), datasetID, kind, header.Filename, bytes.NewReader(raw))
	if archiveErr != nil {
		logger.Warn("archive upload failed", "dataset", datasetID, "kind", kind, "error", archiveErr.Error())
		archiveKey = ""
	}

	upload := storage.Upload{
		ID:         uuid.New().String(),
		DatasetID:  datasetID,
		Kind:       kind,
		Filename:   header.Filename,
		ArchiveKey: archiveKey,
		Checksum:   fmt.Sprintf("%x", sha256.Sum256(raw)),
		TotalRows:  report.TotalRows,
		Imported:   report.Imported,
		Skipped:    report.Skipped,
		UploadedAt: time.Now().UTC(),
	}
	if err := h.store.RecordUpload(r.Context(), upload); err != nil {
		logger.Warn("record upload failed", "dataset", datasetID, "error", err.Error())
	}

	metrics.Uploads.WithLabelValues(kind, "ok").Inc()
	metrics.RowsImported.WithLabelValues(kind).Add(float64(report.Imported))
	logger.Info("csv imported",
		"dataset", datasetID, "kind", kind, "generation", generation,
		"rows", report.TotalRows, "imported", report.Imported, "skipped", report.Skipped)

	respondJSON(w, http.StatusOK, uploadResponse{
		DatasetID:  datasetID,
		Kind:       kind,
		Generation: generation,
		Report:     report,
		ArchiveKey: archiveKey,
	})
}

// ListUploads returns the dataset's import history.
func (h *Handlers) ListUploads(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")
	uploads, err := h.store.ListUploads(r.Context(), datasetID)
	if err != nil {
		respondAnalyticsError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"dataset_id": datasetID,
		"uploads":    uploads,
	})
}
