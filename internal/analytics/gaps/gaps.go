// Package gaps detects zero-send weeks, the longest silent streaks, and
// estimates revenue lost during send gaps using neighbor-week extrapolation
// with outlier capping.
package gaps

import (
	"fmt"
	"math"
	"time"

	"github.com/ignite/campaign-insights/internal/analytics"
	"github.com/ignite/campaign-insights/internal/analytics/periods"
	"github.com/ignite/campaign-insights/internal/analytics/stats"
	"github.com/ignite/campaign-insights/internal/analytics/timewindow"
)

const (
	// The analyzer is inactive below a 90-day window: shorter spans have too
	// few weeks for streak statistics to mean anything.
	minWindowDays = 90

	// Gaps longer than this are likely data-coverage holes, not skipped
	// sends, and are excluded from the loss estimate.
	maxExtrapolatedGapWeeks = 4

	// Neighbor weeks considered on each side of a gap.
	neighborWeeks = 2

	// Minimum share of weeks with at least one send before an estimate is
	// trustworthy.
	minActiveWeekShare = 0.66

	// A single streak covering this share of all zero weeks suggests a CSV
	// coverage hole rather than real silence.
	coverageStreakShare = 0.70
	coverageStreakMin   = 5
)

// Options tunes one invocation.
type Options struct {
	Observer analytics.Observer
}

// Gap is one run of consecutive zero-send weeks.
type Gap struct {
	Start         time.Time `json:"start"` // first silent week's bucket start
	End           time.Time `json:"end"`   // last silent week's bucket start
	Weeks         int       `json:"weeks"`
	WeekLabels    []string  `json:"week_labels"`
	EstimatedLoss float64   `json:"estimated_loss"`
	// Excluded gaps are too long to extrapolate (suspected coverage holes).
	Excluded bool `json:"excluded"`
}

// Analysis is the full gaps-and-losses result.
type Analysis struct {
	Weeks []periods.Bucket `json:"weeks"`

	ZeroSendWeeks       int         `json:"zero_send_weeks"`
	LongestStreak       int         `json:"longest_streak"`
	LongestStreakStarts []time.Time `json:"longest_streak_starts,omitempty"`
	ActiveWeekShare     float64     `json:"active_week_share"`
	AvgCampaignsPerWeek float64     `json:"avg_campaigns_per_week"`

	Gaps                 []Gap   `json:"gaps"`
	EstimatedLostRevenue float64 `json:"estimated_lost_revenue"`
	HasEstimate          bool    `json:"has_estimate"`

	ZeroRevenueCampaignIDs []string `json:"zero_revenue_campaign_ids"`
	ZeroRevenueCampaigns   int      `json:"zero_revenue_campaigns"`

	Guidance analytics.Guidance `json:"guidance"`
}

// Analyze builds the weekly series over the window and derives gap
// statistics and the capped lost-revenue estimate.
func Analyze(dc *analytics.DataContext, window timewindow.Window, opts Options) (*Analysis, error) {
	if dc == nil {
		return nil, analytics.ErrNilContext
	}
	if window.End.Before(window.Start) {
		return nil, analytics.ErrInvalidWindow
	}
	obs := opts.Observer
	if obs == nil {
		obs = analytics.NopObserver
	}

	an := &Analysis{}

	if window.Days() < minWindowDays {
		an.Guidance = analytics.InsufficientData(
			"Select at least 90 days",
			fmt.Sprintf("Gap analysis needs a window of %d days or more; the current selection spans %d.", minWindowDays, window.Days()),
		)
		return an, nil
	}

	campaigns := dc.CampaignsBetween(window.Start, window.End)
	an.Weeks = periods.BuildSeries(campaigns, periods.Weekly, window)

	for _, c := range campaigns {
		if c.Revenue == 0 {
			an.ZeroRevenueCampaignIDs = append(an.ZeroRevenueCampaignIDs, c.ID)
		}
	}
	an.ZeroRevenueCampaigns = len(an.ZeroRevenueCampaignIDs)

	totalWeeks := len(an.Weeks)
	if totalWeeks == 0 {
		an.Guidance = analytics.InsufficientData("No weeks in window", "The selected window contains no complete weeks.")
		return an, nil
	}

	activeWeeks := 0
	totalCampaigns := 0
	for _, wk := range an.Weeks {
		if !wk.IsZeroSend() {
			activeWeeks++
		}
		totalCampaigns += wk.Totals.Campaigns
	}
	an.ZeroSendWeeks = totalWeeks - activeWeeks
	an.ActiveWeekShare = float64(activeWeeks) / float64(totalWeeks)
	an.AvgCampaignsPerWeek = float64(totalCampaigns) / float64(totalWeeks)

	an.Gaps = findGaps(an.Weeks)
	for _, g := range an.Gaps {
		if g.Weeks > an.LongestStreak {
			an.LongestStreak = g.Weeks
			an.LongestStreakStarts = weekStarts(an.Weeks, g)
		}
	}
	obs.Trace("gaps.detected", "zero_weeks", an.ZeroSendWeeks, "gaps", len(an.Gaps), "longest", an.LongestStreak)

	if an.ActiveWeekShare < minActiveWeekShare {
		msg := fmt.Sprintf("Only %.0f%% of weeks in this window have a send; at least %.0f%% are needed before a loss estimate is trustworthy.",
			an.ActiveWeekShare*100, minActiveWeekShare*100)
		if an.suspectedCoverageHole() {
			msg += " One long silent streak dominates, which usually means the CSV export does not cover that span rather than that nothing was sent."
		}
		an.Guidance = analytics.InsufficientData("Not enough send coverage", msg)
		return an, nil
	}

	an.estimateLosses(obs)

	if an.ZeroSendWeeks == 0 {
		an.Guidance = analytics.Guidance{
			Kind:    analytics.GuidanceNeutral,
			Title:   "No send gaps",
			Message: fmt.Sprintf("Every week in this window had at least one campaign (%.1f campaigns/week on average).", an.AvgCampaignsPerWeek),
		}
		return an, nil
	}

	an.Guidance = analytics.Guidance{
		Kind:  analytics.GuidanceRecommendation,
		Title: fmt.Sprintf("%d silent weeks cost you revenue", an.ZeroSendWeeks),
		Message: fmt.Sprintf(
			"%d of %d weeks had no campaign (longest streak: %d weeks). Based on the revenue of surrounding weeks, those gaps are worth roughly the estimate below per window.",
			an.ZeroSendWeeks, totalWeeks, an.LongestStreak),
		EstimatedMonthlyGain: an.EstimatedLostRevenue,
		HasEstimate:          an.HasEstimate,
		Confidence:           analytics.ConfidenceMedium,
	}
	return an, nil
}

// findGaps scans the weekly series for runs of zero-send weeks.
func findGaps(weeks []periods.Bucket) []Gap {
	var gaps []Gap
	i := 0
	for i < len(weeks) {
		if !weeks[i].IsZeroSend() {
			i++
			continue
		}
		j := i
		for j < len(weeks) && weeks[j].IsZeroSend() {
			j++
		}
		g := Gap{Start: weeks[i].Start, End: weeks[j-1].Start, Weeks: j - i}
		for k := i; k < j; k++ {
			g.WeekLabels = append(g.WeekLabels, weeks[k].Label)
		}
		g.Excluded = g.Weeks > maxExtrapolatedGapWeeks
		gaps = append(gaps, g)
		i = j
	}
	return gaps
}

// estimateLosses fills in per-gap and total loss estimates. The typical
// weekly revenue for a gap is the mean of up to two non-zero neighbor weeks
// on each side, each capped at the IQR outlier limit of all non-zero weekly
// revenues (so one holiday spike cannot inflate the estimate).
func (an *Analysis) estimateLosses(obs analytics.Observer) {
	nonZero := make([]float64, 0, len(an.Weeks))
	for _, wk := range an.Weeks {
		if !wk.IsZeroSend() {
			nonZero = append(nonZero, wk.Totals.Revenue)
		}
	}
	if len(nonZero) == 0 {
		return
	}
	limit := stats.IQRLimit(nonZero)

	// Index gaps by position in the weekly series.
	for gi := range an.Gaps {
		g := &an.Gaps[gi]
		if g.Excluded {
			continue
		}
		neighbors := an.neighborRevenues(g, limit)
		if len(neighbors) == 0 {
			continue
		}
		var sum float64
		for _, v := range neighbors {
			sum += v
		}
		typical := sum / float64(len(neighbors))
		g.EstimatedLoss = typical * float64(g.Weeks)
		an.EstimatedLostRevenue += g.EstimatedLoss
		an.HasEstimate = true
	}
	obs.Trace("gaps.estimate", "cap", limit, "total", an.EstimatedLostRevenue)
}

// neighborRevenues collects up to neighborWeeks non-zero weekly revenues on
// each side of the gap, capped at limit.
func (an *Analysis) neighborRevenues(g *Gap, limit float64) []float64 {
	startIdx, endIdx := -1, -1
	for i, wk := range an.Weeks {
		if wk.Start.Equal(g.Start) {
			startIdx = i
		}
		if wk.Start.Equal(g.End) {
			endIdx = i
		}
	}
	if startIdx < 0 || endIdx < 0 {
		return nil
	}

	var out []float64
	for i, taken := startIdx-1, 0; i >= 0 && taken < neighborWeeks; i-- {
		if an.Weeks[i].IsZeroSend() {
			continue
		}
		out = append(out, math.Min(an.Weeks[i].Totals.Revenue, limit))
		taken++
	}
	for i, taken := endIdx+1, 0; i < len(an.Weeks) && taken < neighborWeeks; i++ {
		if an.Weeks[i].IsZeroSend() {
			continue
		}
		out = append(out, math.Min(an.Weeks[i].Totals.Revenue, limit))
		taken++
	}
	return out
}

// suspectedCoverageHole reports whether one long streak dominates the zero
// weeks, which usually indicates the export simply does not cover that span.
func (an *Analysis) suspectedCoverageHole() bool {
	if an.ZeroSendWeeks == 0 || an.LongestStreak < coverageStreakMin {
		return false
	}
	return float64(an.LongestStreak)/float64(an.ZeroSendWeeks) >= coverageStreakShare
}

// weekStarts lists the bucket starts inside the gap. The first bucket of a
// window can start mid-week, so striding seven days from g.Start would miss
// the Monday-aligned buckets that follow it.
func weekStarts(weeks []periods.Bucket, g Gap) []time.Time {
	out := make([]time.Time, 0, g.Weeks)
	for _, wk := range weeks {
		if wk.Start.Before(g.Start) || wk.Start.After(g.End) {
			continue
		}
		out = append(out, wk.Start)
	}
	return out
}
