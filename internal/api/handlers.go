// Package api exposes the dataset ingestion and analysis endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/campaign-insights/internal/analytics"
	"github.com/ignite/campaign-insights/internal/analytics/timewindow"
	"github.com/ignite/campaign-insights/internal/archive"
	"github.com/ignite/campaign-insights/internal/cache"
	"github.com/ignite/campaign-insights/internal/config"
	"github.com/ignite/campaign-insights/internal/domain"
	"github.com/ignite/campaign-insights/internal/pkg/logger"
	"github.com/ignite/campaign-insights/internal/storage"
)

// Store is the slice of the storage layer the handlers use.
type Store interface {
	LoadContext(ctx context.Context, datasetID string) (*analytics.DataContext, error)
	ReplaceCampaigns(ctx context.Context, datasetID string, records []domain.CampaignRecord) (uint64, error)
	ReplaceFlowMessages(ctx context.Context, datasetID string, records []domain.FlowMessageRecord) (uint64, error)
	ReplaceSubscribers(ctx context.Context, datasetID string, records []domain.SubscriberRecord) (uint64, error)
	RecordUpload(ctx context.Context, u storage.Upload) error
	ListUploads(ctx context.Context, datasetID string) ([]storage.Upload, error)
}

// Handlers carries the wired services for every endpoint.
type Handlers struct {
	store   Store
	cache   *cache.Cache     // nil disables memoization
	archive *archive.Archive // nil disables raw-file archiving
	cfg     config.Config
}

// NewHandlers wires the endpoint handlers.
func NewHandlers(store Store, c *cache.Cache, arc *archive.Archive, cfg config.Config) *Handlers {
	return &Handlers{store: store, cache: c, archive: arc, cfg: cfg}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ========== Response helpers ==========

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("response encode failed", "error", err.Error())
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondAnalyticsError maps the analytics sentinels onto HTTP statuses.
// Sparse data never lands here; analyzers express sparsity as guidance, so
// anything reaching this point is a contract violation or an empty dataset.
func respondAnalyticsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analytics.ErrInvalidWindow):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, analytics.ErrNoData):
		respondError(w, http.StatusNotFound, "dataset has no records in range")
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "dataset not found")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// ========== Window parsing ==========

// windowSelection reads the range/from/to/compare query parameters. A
// from/to pair overrides range.
func (h *Handlers) windowSelection(r *http.Request) (timewindow.Selection, error) {
	q := r.URL.Query()
	sel := timewindow.Selection{Range: q.Get("range")}
	if sel.Range == "" {
		sel.Range = h.cfg.Analytics.DefaultRange
	}

	from, to := q.Get("from"), q.Get("to")
	if from != "" || to != "" {
		if from == "" || to == "" {
			return sel, errors.New("custom range requires both from and to")
		}
		fromT, err := time.Parse("2006-01-02", from)
		if err != nil {
			return sel, errors.New("from must be YYYY-MM-DD")
		}
		toT, err := time.Parse("2006-01-02", to)
		if err != nil {
			return sel, errors.New("to must be YYYY-MM-DD")
		}
		sel.Range = "custom"
		sel.CustomFrom = fromT
		sel.CustomTo = toT
	}

	switch cmp := q.Get("compare"); cmp {
	case "":
		sel.Compare = timewindow.ComparePrevPeriod
	case string(timewindow.ComparePrevPeriod), string(timewindow.ComparePrevYear):
		sel.Compare = timewindow.CompareMode(cmp)
	default:
		return sel, errors.New("compare must be prev-period or prev-year")
	}
	return sel, nil
}

// resolveWindow resolves the request's selection against the dataset anchor.
func resolveWindow(dc *analytics.DataContext, sel timewindow.Selection) (timewindow.Resolved, error) {
	anchor, _ := dc.Anchor()
	min, max, _ := dc.CampaignSpan()
	return timewindow.Resolve(sel, anchor, min, max)
}

// canonicalWindow reports whether the selection is a plain 30- or 90-day
// range anchored at the latest data point. Add-step estimates only make
// sense there.
func canonicalWindow(sel timewindow.Selection) bool {
	return sel.Range == "30d" || sel.Range == "90d"
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
