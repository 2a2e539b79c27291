package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-insights/internal/analytics"
	"github.com/ignite/campaign-insights/internal/analytics/audience"
	"github.com/ignite/campaign-insights/internal/analytics/cohorts"
	"github.com/ignite/campaign-insights/internal/analytics/flowscore"
	"github.com/ignite/campaign-insights/internal/analytics/frequency"
	"github.com/ignite/campaign-insights/internal/analytics/gaps"
	"github.com/ignite/campaign-insights/internal/analytics/periods"
	"github.com/ignite/campaign-insights/internal/analytics/subjects"
	"github.com/ignite/campaign-insights/internal/analytics/timewindow"
	"github.com/ignite/campaign-insights/internal/cache"
	"github.com/ignite/campaign-insights/internal/metrics"
)

// windowedResponse wraps an analysis with the resolved window and, when a
// comparison window exists, the same analysis over the prior period.
type windowedResponse struct {
	DatasetID string              `json:"dataset_id"`
	Window    timewindow.Resolved `json:"window"`
	Current   interface{}         `json:"current"`
	Compare   interface{}         `json:"compare,omitempty"`
}

// GetAudience returns the audience-size performance analysis.
func (h *Handlers) GetAudience(w http.ResponseWriter, r *http.Request) {
	buckets := queryInt(r, "buckets", h.cfg.Analytics.AudienceBuckets)
	h.serveWindowed(w, r, "audience", []interface{}{buckets},
		func(dc *analytics.DataContext, win timewindow.Window, _ bool) (interface{}, error) {
			return audience.Analyze(dc, win, audience.Options{TargetBuckets: buckets})
		})
}

// GetFrequency returns the weekly-cadence analysis.
func (h *Handlers) GetFrequency(w http.ResponseWriter, r *http.Request) {
	view := frequency.ViewMode(r.URL.Query().Get("view"))
	h.serveWindowed(w, r, "frequency", []interface{}{view},
		func(dc *analytics.DataContext, win timewindow.Window, _ bool) (interface{}, error) {
			return frequency.Analyze(dc, win, frequency.Options{View: view})
		})
}

// GetGaps returns the send-gap and lost-revenue analysis.
func (h *Handlers) GetGaps(w http.ResponseWriter, r *http.Request) {
	h.serveWindowed(w, r, "gaps", nil,
		func(dc *analytics.DataContext, win timewindow.Window, _ bool) (interface{}, error) {
			return gaps.Analyze(dc, win, gaps.Options{})
		})
}

// GetFlowScore returns the step-by-step flow health scores.
func (h *Handlers) GetFlowScore(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "flowID")
	h.serveWindowed(w, r, "flowscore", []interface{}{flowID},
		func(dc *analytics.DataContext, win timewindow.Window, current bool) (interface{}, error) {
			sel, _ := h.windowSelection(r)
			opts := flowscore.Options{CanonicalWindow: current && canonicalWindow(sel)}
			return flowscore.Analyze(dc, flowID, win, opts)
		})
}

// GetSubjects returns the subject-line feature analysis.
func (h *Handlers) GetSubjects(w http.ResponseWriter, r *http.Request) {
	metric := subjects.Metric(r.URL.Query().Get("metric"))
	segment := r.URL.Query().Get("segment")
	h.serveWindowed(w, r, "subjects", []interface{}{metric, segment},
		func(dc *analytics.DataContext, win timewindow.Window, _ bool) (interface{}, error) {
			return subjects.Analyze(dc, win, subjects.Options{Metric: metric, SegmentID: segment})
		})
}

// GetSeries returns the calendar-bucketed campaign series underlying the
// dashboard charts. Granularity defaults to weekly.
func (h *Handlers) GetSeries(w http.ResponseWriter, r *http.Request) {
	granularity := periods.Granularity(r.URL.Query().Get("granularity"))
	switch granularity {
	case "":
		granularity = periods.Weekly
	case periods.Daily, periods.Weekly, periods.Monthly:
	default:
		respondError(w, http.StatusBadRequest, "granularity must be daily, weekly, or monthly")
		return
	}
	h.serveWindowed(w, r, "series", []interface{}{granularity},
		func(dc *analytics.DataContext, win timewindow.Window, _ bool) (interface{}, error) {
			return periods.BuildSeries(dc.Campaigns, granularity, win), nil
		})
}

// GetCohorts returns the consent-cohort LTV analysis. Cohorts are built from
// subscriber profiles, which carry no single event date, so there is no
// window to resolve.
func (h *Handlers) GetCohorts(w http.ResponseWriter, r *http.Request) {
	dc, ok := h.loadContext(w, r)
	if !ok {
		return
	}

	key := cache.Key(dc, "cohorts")
	var out cohorts.Analysis
	err := h.memoize(r, "cohorts", key, &out, func() (interface{}, error) {
		return cohorts.Analyze(dc, cohorts.Options{})
	})
	if err != nil {
		respondAnalyticsError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"dataset_id": dc.DatasetID,
		"analysis":   out,
	})
}

// ========== Shared plumbing ==========

func (h *Handlers) loadContext(w http.ResponseWriter, r *http.Request) (*analytics.DataContext, bool) {
	datasetID := chi.URLParam(r, "datasetID")
	dc, err := h.store.LoadContext(r.Context(), datasetID)
	if err != nil {
		respondAnalyticsError(w, err)
		return nil, false
	}
	return dc, true
}

// serveWindowed resolves the request window, memoizes, and runs the analyzer
// over the current window plus the comparison window when one exists.
func (h *Handlers) serveWindowed(w http.ResponseWriter, r *http.Request, analyzer string, params []interface{},
	run func(dc *analytics.DataContext, win timewindow.Window, current bool) (interface{}, error)) {

	dc, ok := h.loadContext(w, r)
	if !ok {
		return
	}
	sel, err := h.windowSelection(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := resolveWindow(dc, sel)
	if err != nil {
		respondAnalyticsError(w, err)
		return
	}

	keyParams := append([]interface{}{
		res.Current.Start.Unix(), res.Current.End.Unix(), sel.Compare,
	}, params...)
	key := cache.Key(dc, analyzer, keyParams...)

	var out windowedResponse
	err = h.memoize(r, analyzer, key, &out, func() (interface{}, error) {
		current, err := run(dc, res.Current, true)
		if err != nil {
			return nil, err
		}
		resp := windowedResponse{DatasetID: dc.DatasetID, Window: res, Current: current}
		if res.Compare != nil {
			// The prior period carries the same analysis; its own guidance
			// gates sparsity, so an empty prior window is not a failure.
			compare, err := run(dc, *res.Compare, false)
			if err != nil {
				return nil, err
			}
			resp.Compare = compare
		}
		return resp, nil
	})
	if err != nil {
		respondAnalyticsError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// memoize runs compute through the cache, counting hit/miss/off outcomes and
// timing actual compute work (cache hits are excluded from the histogram).
func (h *Handlers) memoize(r *http.Request, analyzer, key string, dest interface{}, compute func() (interface{}, error)) error {
	timed := func() (interface{}, error) {
		start := time.Now()
		out, err := compute()
		metrics.AnalysisDuration.WithLabelValues(analyzer).Observe(time.Since(start).Seconds())
		return out, err
	}
	if h.cache == nil {
		metrics.Analyses.WithLabelValues(analyzer, "off").Inc()
		return h.cache.Do(r.Context(), key, dest, timed)
	}
	if found, err := h.cache.Get(r.Context(), key, dest); err == nil && found {
		metrics.Analyses.WithLabelValues(analyzer, "hit").Inc()
		return nil
	}
	metrics.Analyses.WithLabelValues(analyzer, "miss").Inc()
	return h.cache.Do(r.Context(), key, dest, timed)
}
