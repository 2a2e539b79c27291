// Package frequency compares revenue, engagement, and deliverability risk
// across weekly send cadences and recommends sending more, sending less, or
// keeping the current cadence.
package frequency

import (
	"fmt"
	"math"
	"sort"

	"github.com/ignite/campaign-insights/internal/analytics"
	"github.com/ignite/campaign-insights/internal/analytics/periods"
	"github.com/ignite/campaign-insights/internal/analytics/stats"
	"github.com/ignite/campaign-insights/internal/analytics/timewindow"
	"github.com/ignite/campaign-insights/internal/domain"
)

// ViewMode selects whether averages are presented per week or per campaign.
type ViewMode string

const (
	PerWeek     ViewMode = "per-week"
	PerCampaign ViewMode = "per-campaign"
)

// maxCadence is the top tier; weeks with 4 or more campaigns share it.
const maxCadence = 4

// Gates and decision thresholds.
const (
	minWeeksEligible  = 4
	minEmailsEligible = 1000

	sendMoreRevenueLift   = 0.10   // >= +10% revenue per week
	maxEngagementDrop     = 0.05   // <= -5% open/click relative drop
	maxSpamRateIncrease   = 0.0005 // +0.05pp
	maxBounceRateIncrease = 0.0010 // +0.10pp
	maxRevenueLoss        = 0.10   // "send less" may cost at most 10%

	unhealthySpamRate   = 0.003 // 0.3%
	unhealthyBounceRate = 0.005 // 0.5%

	healthyOpenRate  = 0.12
	healthyClickRate = 0.01

	// Frequency shifts are projected conservatively at half the observed
	// per-campaign delta over a four-week month.
	conservativeFactor = 0.5
	projectionWeeks    = 4
)

// Options tunes one invocation. The zero value views per week.
type Options struct {
	View     ViewMode
	Observer analytics.Observer
}

// CadenceBucket aggregates every week that saw the same number of campaigns.
type CadenceBucket struct {
	Cadence int    `json:"cadence"` // campaigns per week; maxCadence means "4+"
	Label   string `json:"label"`
	Weeks   int    `json:"weeks"`

	Totals                domain.Totals `json:"totals"`
	AvgRevenuePerWeek     float64       `json:"avg_revenue_per_week"`
	AvgRevenuePerCampaign float64       `json:"avg_revenue_per_campaign"`

	// Email-weighted rates across all campaigns in the bucket.
	OpenRate   float64 `json:"open_rate"`
	ClickRate  float64 `json:"click_rate"`
	SpamRate   float64 `json:"spam_rate"`
	BounceRate float64 `json:"bounce_rate"`

	// WeightedRPE is the recency-weighted revenue-per-email across the
	// bucket's weeks.
	WeightedRPE float64 `json:"weighted_rpe"`

	Eligible bool `json:"eligible"`
}

// Analysis is the cadence comparison plus the guidance derived from it.
type Analysis struct {
	View          ViewMode           `json:"view"`
	Buckets       []CadenceBucket    `json:"buckets"`
	BaselineLabel string             `json:"baseline_label,omitempty"`
	Guidance      analytics.Guidance `json:"guidance"`
}

// Analyze groups the window's weeks by campaign count and applies the
// ordered cadence decision policy.
func Analyze(dc *analytics.DataContext, window timewindow.Window, opts Options) (*Analysis, error) {
	if dc == nil {
		return nil, analytics.ErrNilContext
	}
	if window.End.Before(window.Start) {
		return nil, analytics.ErrInvalidWindow
	}
	if opts.View == "" {
		opts.View = PerWeek
	}
	obs := opts.Observer
	if obs == nil {
		obs = analytics.NopObserver
	}

	an := &Analysis{View: opts.View}

	series := periods.BuildSeries(dc.CampaignsBetween(window.Start, window.End), periods.Weekly, window)
	buckets := bucketByCadence(series, window)
	an.Buckets = buckets
	obs.Trace("frequency.buckets", "weeks", len(series), "cadences", len(buckets))

	if len(buckets) == 0 {
		an.Guidance = analytics.InsufficientData(
			"No sends in this period",
			"Send-frequency analysis needs at least one week with a campaign in the selected period.",
		)
		return an, nil
	}

	var total domain.Totals
	for _, b := range buckets {
		total.Merge(b.Totals)
	}
	overallPerCampaign := total.RevenuePerCampaign()
	campaignsPerWeek := float64(total.Campaigns) / window.Weeks()

	baseline := pickBaseline(buckets)
	if baseline == nil {
		an.Guidance = analytics.InsufficientData(
			"Not enough weeks at any cadence",
			fmt.Sprintf("No cadence has %d weeks and %d emails yet; keep your current rhythm and revisit after more sends.", minWeeksEligible, minEmailsEligible),
		)
		return an, nil
	}
	an.BaselineLabel = baseline.Label
	obs.Trace("frequency.baseline", "cadence", baseline.Cadence, "weeks", baseline.Weeks)

	an.Guidance = decide(buckets, baseline, overallPerCampaign, campaignsPerWeek, obs)
	return an, nil
}

// bucketByCadence folds the weekly series into cadence tiers {1,2,3,4+},
// skipping zero-send weeks (those belong to the gaps analyzer).
func bucketByCadence(series []periods.Bucket, window timewindow.Window) []CadenceBucket {
	byCadence := map[int]*CadenceBucket{}
	rpePoints := map[int][]stats.WeightedPoint{}
	for _, wk := range series {
		n := wk.Totals.Campaigns
		if n == 0 {
			continue
		}
		if n > maxCadence {
			n = maxCadence
		}
		cb, ok := byCadence[n]
		if !ok {
			cb = &CadenceBucket{Cadence: n, Label: cadenceLabel(n)}
			byCadence[n] = cb
		}
		cb.Weeks++
		cb.Totals.Merge(wk.Totals)
		rpePoints[n] = append(rpePoints[n], stats.WeightedPoint{Value: wk.Totals.RevenuePerEmail(), Date: wk.Start})
	}

	out := make([]CadenceBucket, 0, len(byCadence))
	for n, cb := range byCadence {
		cb.AvgRevenuePerWeek = cb.Totals.Revenue / float64(cb.Weeks)
		cb.AvgRevenuePerCampaign = cb.Totals.RevenuePerCampaign()
		cb.OpenRate = cb.Totals.OpenRate()
		cb.ClickRate = cb.Totals.ClickRate()
		cb.SpamRate = cb.Totals.SpamRate()
		cb.BounceRate = cb.Totals.BounceRate()
		cb.WeightedRPE, _ = stats.WeightedMeanStdDev(rpePoints[n], window.Start, window.End)
		cb.Eligible = cb.Weeks >= minWeeksEligible && cb.Totals.EmailsSent >= minEmailsEligible
		out = append(out, *cb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cadence < out[j].Cadence })
	return out
}

// pickBaseline returns the eligible bucket with the most weeks, breaking
// ties by higher revenue, then lower cadence.
func pickBaseline(buckets []CadenceBucket) *CadenceBucket {
	var best *CadenceBucket
	for i := range buckets {
		b := &buckets[i]
		if !b.Eligible {
			continue
		}
		if best == nil ||
			b.Weeks > best.Weeks ||
			(b.Weeks == best.Weeks && b.Totals.Revenue > best.Totals.Revenue) ||
			(b.Weeks == best.Weeks && b.Totals.Revenue == best.Totals.Revenue && b.Cadence < best.Cadence) {
			best = b
		}
	}
	return best
}

// decide applies the ordered decision policy; the first matching rule wins.
func decide(buckets []CadenceBucket, baseline *CadenceBucket, overallPerCampaign, campaignsPerWeek float64, obs analytics.Observer) analytics.Guidance {
	// Rule 1: an eligible higher cadence that lifts revenue without losing
	// engagement or deliverability.
	for i := len(buckets) - 1; i >= 0; i-- {
		b := &buckets[i]
		if b.Cadence <= baseline.Cadence || !b.Eligible {
			continue
		}
		if upgradeOK(b, baseline) {
			obs.Trace("frequency.rule", "rule", "send_more", "cadence", b.Cadence)
			return analytics.Guidance{
				Kind:                 analytics.GuidanceRecommendation,
				Title:                fmt.Sprintf("Send %s", b.Label),
				Message:              fmt.Sprintf("Weeks with %s out-earned your usual %s by at least %.0f%% per week with engagement and deliverability holding steady.", b.Label, baseline.Label, sendMoreRevenueLift*100),
				TargetLabel:          b.Label,
				BaselineLabel:        baseline.Label,
				Confidence:           analytics.ConfidenceHigh,
				Risk:                 analytics.ClassifyRisk(b.SpamRate, b.BounceRate),
				EstimatedMonthlyGain: gainEstimate(b, overallPerCampaign, campaignsPerWeek),
				HasEstimate:          true,
			}
		}
	}

	// Rule 2: the same pattern in an exploratory (not yet eligible) cadence
	// earns a time-boxed test, not a full shift.
	for i := len(buckets) - 1; i >= 0; i-- {
		b := &buckets[i]
		if b.Cadence <= baseline.Cadence || b.Eligible {
			continue
		}
		if upgradeOK(b, baseline) {
			obs.Trace("frequency.rule", "rule", "test_more", "cadence", b.Cadence)
			return analytics.Guidance{
				Kind:          analytics.GuidanceRecommendation,
				Title:         fmt.Sprintf("Test %s for a month", b.Label),
				Message:       fmt.Sprintf("The few weeks at %s look stronger than %s, but there are only %d of them. Run the higher cadence for four weeks before committing.", b.Label, baseline.Label, b.Weeks),
				TargetLabel:   b.Label,
				BaselineLabel: baseline.Label,
				Confidence:    analytics.ConfidenceLow,
				Risk:          analytics.ClassifyRisk(b.SpamRate, b.BounceRate),
			}
		}
	}

	// Rule 3: step down when it sheds deliverability risk cheaply, or when
	// the baseline itself is unhealthy.
	baselineUnhealthy := baseline.SpamRate >= unhealthySpamRate || baseline.BounceRate >= unhealthyBounceRate
	for i := range buckets {
		b := &buckets[i]
		if b.Cadence >= baseline.Cadence {
			continue
		}
		lowersRisk := b.SpamRate <= baseline.SpamRate && b.BounceRate <= baseline.BounceRate &&
			(b.SpamRate < baseline.SpamRate || b.BounceRate < baseline.BounceRate)
		affordable := b.AvgRevenuePerWeek >= (1-maxRevenueLoss)*baseline.AvgRevenuePerWeek
		if (lowersRisk && affordable) || baselineUnhealthy {
			obs.Trace("frequency.rule", "rule", "send_less", "cadence", b.Cadence)
			msg := fmt.Sprintf("Weeks at %s carry less spam/bounce risk and keep at least %.0f%% of weekly revenue.", b.Label, (1-maxRevenueLoss)*100)
			if baselineUnhealthy {
				msg = fmt.Sprintf("Your usual cadence of %s is running hot (spam %.2f%%, bounces %.2f%%). Drop to %s until the list recovers.", baseline.Label, baseline.SpamRate*100, baseline.BounceRate*100, b.Label)
			}
			return analytics.Guidance{
				Kind:          analytics.GuidanceRecommendation,
				Title:         fmt.Sprintf("Send %s", b.Label),
				Message:       msg,
				TargetLabel:   b.Label,
				BaselineLabel: baseline.Label,
				Confidence:    analytics.ConfidenceMedium,
				Risk:          analytics.ClassifyRisk(baseline.SpamRate, baseline.BounceRate),
			}
		}
	}

	// Rule 4: only one cadence observed — suggest the next experiment.
	if len(buckets) == 1 {
		b := &buckets[0]
		healthy := b.SpamRate < analytics.SpamRateYellow && b.BounceRate < analytics.BounceRateYellow &&
			b.OpenRate >= healthyOpenRate && b.ClickRate >= healthyClickRate
		risky := b.SpamRate >= unhealthySpamRate || b.BounceRate >= unhealthyBounceRate
		switch {
		case healthy && b.Cadence < maxCadence:
			return analytics.Guidance{
				Kind:          analytics.GuidanceRecommendation,
				Title:         fmt.Sprintf("Test %s", cadenceLabel(b.Cadence+1)),
				Message:       fmt.Sprintf("Your %s cadence is healthy (opens %.1f%%, clicks %.1f%%, spam %.2f%%). Try one more campaign per week for a month and watch deliverability.", b.Label, b.OpenRate*100, b.ClickRate*100, b.SpamRate*100),
				TargetLabel:   cadenceLabel(b.Cadence + 1),
				BaselineLabel: b.Label,
				Confidence:    analytics.ConfidenceLow,
				Risk:          analytics.ClassifyRisk(b.SpamRate, b.BounceRate),
			}
		case risky && b.Cadence == maxCadence:
			return analytics.Guidance{
				Kind:          analytics.GuidanceRecommendation,
				Title:         fmt.Sprintf("Step down from %s", b.Label),
				Message:       "You are at the top cadence tier with elevated spam or bounce rates. Step down one campaign per week before the damage compounds.",
				TargetLabel:   cadenceLabel(b.Cadence - 1),
				BaselineLabel: b.Label,
				Confidence:    analytics.ConfidenceMedium,
				Risk:          analytics.ClassifyRisk(b.SpamRate, b.BounceRate),
			}
		case risky || !healthy:
			return analytics.Guidance{
				Kind:          analytics.GuidanceWarning,
				Title:         "Stabilize before testing cadence",
				Message:       "Engagement or deliverability at your only observed cadence is weak. Fix content and list hygiene before experimenting with frequency.",
				BaselineLabel: b.Label,
				Risk:          analytics.ClassifyRisk(b.SpamRate, b.BounceRate),
			}
		}
	}

	// Rule 5: default.
	return analytics.Guidance{
		Kind:          analytics.GuidanceNeutral,
		Title:         "Keep your current cadence",
		Message:       fmt.Sprintf("No other cadence beats %s on revenue without costing engagement or deliverability.", baseline.Label),
		BaselineLabel: baseline.Label,
		Confidence:    analytics.ConfidenceMedium,
		Risk:          analytics.ClassifyRisk(baseline.SpamRate, baseline.BounceRate),
	}
}

// upgradeOK checks the send-more criteria of a candidate against the
// baseline: revenue lift with bounded engagement and deliverability cost.
func upgradeOK(b, baseline *CadenceBucket) bool {
	if baseline.AvgRevenuePerWeek <= 0 {
		return false
	}
	lift := (b.AvgRevenuePerWeek - baseline.AvgRevenuePerWeek) / baseline.AvgRevenuePerWeek
	if lift < sendMoreRevenueLift {
		return false
	}
	if relativeDrop(b.OpenRate, baseline.OpenRate) > maxEngagementDrop {
		return false
	}
	if relativeDrop(b.ClickRate, baseline.ClickRate) > maxEngagementDrop {
		return false
	}
	if b.SpamRate-baseline.SpamRate > maxSpamRateIncrease {
		return false
	}
	if b.BounceRate-baseline.BounceRate > maxBounceRateIncrease {
		return false
	}
	return true
}

// relativeDrop returns how far candidate sits below base, as a fraction of
// base; 0 when the candidate is at or above base or base is 0.
func relativeDrop(candidate, base float64) float64 {
	if base <= 0 || candidate >= base {
		return 0
	}
	return (base - candidate) / base
}

// gainEstimate projects the monthly value of shifting to a bucket's cadence:
// the per-campaign delta, halved as a conservative factor, at the current
// weekly campaign volume over four weeks.
func gainEstimate(b *CadenceBucket, overallPerCampaign, campaignsPerWeek float64) float64 {
	gain := (b.AvgRevenuePerCampaign - overallPerCampaign) * conservativeFactor * campaignsPerWeek * projectionWeeks
	return math.Max(gain, 0)
}

func cadenceLabel(n int) string {
	unit := "campaigns"
	if n == 1 {
		unit = "campaign"
	}
	if n >= maxCadence {
		return fmt.Sprintf("%d+ %s per week", maxCadence, unit)
	}
	return fmt.Sprintf("%d %s per week", n, unit)
}
