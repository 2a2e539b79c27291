// Package cohorts splits subscribers into consented and non-consented
// cohorts and compares their value: lifetime value, repeat-buy behavior, and
// engagement recency. The consented cohort is measured as lift against the
// non-consented baseline.
package cohorts

import (
	"fmt"
	"time"

	"github.com/ignite/campaign-insights/internal/analytics"
	"github.com/ignite/campaign-insights/internal/analytics/stats"
	"github.com/ignite/campaign-insights/internal/domain"
)

const (
	// Cohort sizes below this keep the comparison out of the
	// recommendation view.
	minCohortSize = 30
	// Relative LTV advantage worth acting on.
	meaningfulLTVLift = 0.15
	// Cohort size at which the comparison is trusted fully.
	highConfidenceSize = 200

	hoursPerDay = 24
)

// Options tunes one invocation.
type Options struct {
	Observer analytics.Observer
}

// CohortStats summarizes one consent cohort.
type CohortStats struct {
	Label string `json:"label"`
	Size  int    `json:"size"`

	TotalLTV  float64 `json:"total_ltv"`
	AvgLTV    float64 `json:"avg_ltv"`
	MedianLTV float64 `json:"median_ltv"`

	// RepeatBuyRate is the share of subscribers with two or more orders.
	RepeatBuyRate float64 `json:"repeat_buy_rate"`

	// AvgDaysToFirstActivity averages creation-to-first-activity over
	// subscribers that ever became active; HasActivation is false when none
	// did.
	AvgDaysToFirstActivity float64 `json:"avg_days_to_first_activity"`
	HasActivation          bool    `json:"has_activation"`

	// AvgDaysSinceLastOrder is measured against the context anchor over
	// subscribers with at least one order; HasRecency is false when none
	// ordered or the dataset has no anchor.
	AvgDaysSinceLastOrder float64 `json:"avg_days_since_last_order"`
	HasRecency            bool    `json:"has_recency"`
}

// Lifts holds the consented-vs-non-consented relative change per metric.
type Lifts struct {
	AvgLTV        analytics.Lift `json:"avg_ltv"`
	MedianLTV     analytics.Lift `json:"median_ltv"`
	RepeatBuyRate analytics.Lift `json:"repeat_buy_rate"`
}

// Analysis is the full consent-split report.
type Analysis struct {
	Consented    CohortStats        `json:"consented"`
	NonConsented CohortStats        `json:"non_consented"`
	Lift         Lifts              `json:"lift"`
	Guidance     analytics.Guidance `json:"guidance"`
}

// Analyze splits dc's subscribers by consent flag and compares the cohorts.
// Cohorts are not windowed: a subscriber profile has no single event date to
// filter on.
func Analyze(dc *analytics.DataContext, opts Options) (*Analysis, error) {
	if dc == nil {
		return nil, analytics.ErrNilContext
	}
	obs := opts.Observer
	if obs == nil {
		obs = analytics.NopObserver
	}

	anchor, hasAnchor := dc.Anchor()

	var consented, rest []domain.SubscriberRecord
	for _, s := range dc.Subscribers {
		if s.Consented {
			consented = append(consented, s)
		} else {
			rest = append(rest, s)
		}
	}

	an := &Analysis{
		Consented:    cohortStats("consented", consented, anchor, hasAnchor),
		NonConsented: cohortStats("non_consented", rest, anchor, hasAnchor),
	}
	obs.Trace("cohorts.split", "consented", len(consented), "non_consented", len(rest))

	if len(dc.Subscribers) == 0 {
		an.Guidance = analytics.InsufficientData(
			"No subscriber profiles",
			"Upload a subscriber export to compare consent cohorts.",
		)
		return an, nil
	}
	if len(consented) == 0 || len(rest) == 0 {
		an.Guidance = analytics.InsufficientData(
			"Only one consent cohort present",
			"Every subscriber falls on the same side of the consent flag, so there is no baseline to compare against.",
		)
		return an, nil
	}

	an.Lift = Lifts{
		AvgLTV:        analytics.NewLift(an.Consented.AvgLTV, an.NonConsented.AvgLTV),
		MedianLTV:     analytics.NewLift(an.Consented.MedianLTV, an.NonConsented.MedianLTV),
		RepeatBuyRate: analytics.NewLift(an.Consented.RepeatBuyRate, an.NonConsented.RepeatBuyRate),
	}
	an.Guidance = deriveGuidance(an)
	return an, nil
}

func cohortStats(label string, subs []domain.SubscriberRecord, anchor time.Time, hasAnchor bool) CohortStats {
	cs := CohortStats{Label: label, Size: len(subs)}
	if len(subs) == 0 {
		return cs
	}

	ltvs := make([]float64, 0, len(subs))
	repeat := 0
	var activationDays, recencyDays float64
	var activationN, recencyN int

	for _, s := range subs {
		cs.TotalLTV += s.LifetimeValue
		ltvs = append(ltvs, s.LifetimeValue)
		if s.IsRepeatBuyer() {
			repeat++
		}
		if s.FirstActiveAt != nil && !s.CreatedAt.IsZero() {
			activationDays += s.FirstActiveAt.Sub(s.CreatedAt).Hours() / hoursPerDay
			activationN++
		}
		if hasAnchor && s.LastOrderAt != nil {
			recencyDays += anchor.Sub(*s.LastOrderAt).Hours() / hoursPerDay
			recencyN++
		}
	}

	cs.AvgLTV = cs.TotalLTV / float64(len(subs))
	cs.MedianLTV = stats.Median(ltvs)
	cs.RepeatBuyRate = float64(repeat) / float64(len(subs))
	if activationN > 0 {
		cs.AvgDaysToFirstActivity = activationDays / float64(activationN)
		cs.HasActivation = true
	}
	if recencyN > 0 {
		cs.AvgDaysSinceLastOrder = recencyDays / float64(recencyN)
		cs.HasRecency = true
	}
	return cs
}

func deriveGuidance(an *Analysis) analytics.Guidance {
	c, n := an.Consented, an.NonConsented
	if c.Size < minCohortSize || n.Size < minCohortSize {
		return analytics.Guidance{
			Kind:          analytics.GuidanceNeutral,
			Title:         "Cohorts too small to act on",
			Message:       fmt.Sprintf("With %d consented and %d non-consented subscribers, LTV differences are mostly noise.", c.Size, n.Size),
			TargetLabel:   c.Label,
			BaselineLabel: n.Label,
		}
	}

	lift := an.Lift.AvgLTV
	if lift.Infinite || lift.Value > meaningfulLTVLift {
		conf := analytics.ConfidenceMedium
		if c.Size >= highConfidenceSize && n.Size >= highConfidenceSize {
			conf = analytics.ConfidenceHigh
		}
		return analytics.Guidance{
			Kind:          analytics.GuidanceRecommendation,
			Title:         "Consented subscribers are worth more",
			Message:       "The consented cohort carries a meaningfully higher lifetime value per profile. Prioritize consent capture at signup and checkout.",
			TargetLabel:   c.Label,
			BaselineLabel: n.Label,
			Confidence:    conf,
		}
	}
	return analytics.Guidance{
		Kind:          analytics.GuidanceNeutral,
		Title:         "Consent cohorts perform similarly",
		Message:       "Lifetime value does not differ enough between cohorts to change acquisition priorities.",
		TargetLabel:   c.Label,
		BaselineLabel: n.Label,
	}
}
