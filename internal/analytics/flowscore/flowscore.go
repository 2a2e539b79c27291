// Package flowscore computes a composite 0–100 health score per message step
// of an automation flow (money, deliverability, and volume pillars), an
// action classification per step, and an "add a step" opportunity estimate
// for flows whose last step is still earning.
package flowscore

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ignite/campaign-insights/internal/analytics"
	"github.com/ignite/campaign-insights/internal/analytics/stats"
	"github.com/ignite/campaign-insights/internal/analytics/timewindow"
	"github.com/ignite/campaign-insights/internal/domain"
)

// Action classifies what to do with a step.
type Action string

const (
	ActionScale   Action = "scale"
	ActionKeep    Action = "keep"
	ActionImprove Action = "improve"
	ActionPause   Action = "pause"
)

// Pillar caps and tier thresholds.
const (
	moneyMaxA1 = 35.0
	moneyMaxA2 = 15.0
	moneyMaxA3 = 20.0

	// A1 scales linearly between these multiples of the baseline RPE.
	a1LowRatio  = 0.5
	a1HighRatio = 1.25

	// A2 reaches its max at a 50% step-over-step RPE gain.
	a2FullGain = 0.5
	// Reach collapsing by more than this while RPE is under baseline caps A2.
	a2ReachCollapse = 0.6
	a2DampenedCap   = 3.0

	penaltyCap = 20.0

	volumeMax         = 10.0
	lowVolumePenalty  = 3.0
	lowVolumeSends    = 250

	scoreScale   = 75.0
	scoreKeep    = 60.0
	scoreImprove = 40.0

	// Baseline sends floors, tried in order.
	baselineFloorPrimary  = 250
	baselineFloorFallback = 100

	// Add-step gates.
	addStepMinRevenue = 100.0
	addStepReachShare = 0.5
)

// Options tunes one invocation.
type Options struct {
	// CanonicalWindow is set by the caller when the window is a 30- or
	// 90-day selection ending at the latest data point; the add-step
	// suggestion is only offered then.
	CanonicalWindow bool
	Observer        analytics.Observer
}

// StepScore is the scored health of one sequence position.
type StepScore struct {
	SequencePosition int      `json:"sequence_position"`
	EmailName        string   `json:"email_name"`
	MessageIDs       []string `json:"message_ids"`

	Totals         domain.Totals `json:"totals"`
	RPE            float64       `json:"rpe"`
	MedianSendDate time.Time     `json:"median_send_date"`

	// Pillar breakdown.
	A1                    float64 `json:"a1"`
	A2                    float64 `json:"a2"`
	A3                    float64 `json:"a3"`
	DeliverabilityPenalty float64 `json:"deliverability_penalty"`
	VolumePoints          float64 `json:"volume_points"`

	Score    float64 `json:"score"`
	Action   Action  `json:"action"`
	HardStop bool    `json:"hard_stop"`

	// ABVariants flags duplicate email names at the same position
	// (A/B-tested steps); they are aggregated, never silently merged.
	ABVariants bool `json:"ab_variants"`
}

// AddStep is the "add a step" opportunity estimate.
type AddStep struct {
	EstimatedRevenue float64 `json:"estimated_revenue"`
	RPEFloor         float64 `json:"rpe_floor"`
	ProjectedReach   int64   `json:"projected_reach"`
}

// Analysis is the scored flow.
type Analysis struct {
	FlowID   string `json:"flow_id"`
	FlowName string `json:"flow_name"`

	Steps       []StepScore `json:"steps"`
	BaselineRPE float64     `json:"baseline_rpe"`

	// Unreliable suppresses every score indicator: duplicate email names
	// across steps or non-monotonic median send dates mean the sequence
	// ordering cannot be trusted, and a caveated score would still mislead.
	Unreliable       bool   `json:"unreliable"`
	UnreliableReason string `json:"unreliable_reason,omitempty"`

	AddStep  *AddStep           `json:"add_step,omitempty"`
	Guidance analytics.Guidance `json:"guidance"`
}

// Analyze scores the live messages of one flow within the window.
func Analyze(dc *analytics.DataContext, flowID string, window timewindow.Window, opts Options) (*Analysis, error) {
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

	an := &Analysis{FlowID: flowID}

	var live []domain.FlowMessageRecord
	for _, m := range dc.FlowMessagesBetween(flowID, window.Start, window.End) {
		if m.Status == domain.FlowMessageLive {
			live = append(live, m)
			if an.FlowName == "" {
				an.FlowName = m.FlowName
			}
		}
	}
	if len(live) == 0 {
		an.Guidance = analytics.InsufficientData(
			"No live flow messages in window",
			"This flow has no live (non-draft) message activity in the selected period.",
		)
		return an, nil
	}

	an.Steps = groupSteps(live)
	an.BaselineRPE = baselineRPE(an.Steps)
	obs.Trace("flowscore.baseline", "flow", flowID, "steps", len(an.Steps), "baseline_rpe", an.BaselineRPE)

	if reason, bad := orderingUnreliable(an.Steps); bad {
		an.Unreliable = true
		an.UnreliableReason = reason
		for i := range an.Steps {
			an.Steps[i].Score = 0
			an.Steps[i].Action = ""
		}
		an.Guidance = analytics.Guidance{
			Kind:    analytics.GuidanceWarning,
			Title:   "Step ordering looks unreliable",
			Message: reason + " Scores are hidden until the flow export is cleaned up, because a score attached to the wrong step is worse than none.",
		}
		return an, nil
	}

	scoreSteps(an.Steps, an.BaselineRPE)
	an.AddStep = addStepSuggestion(an, opts)
	an.Guidance = summarize(an)
	return an, nil
}

// groupSteps aggregates live messages by sequence position, ascending.
func groupSteps(live []domain.FlowMessageRecord) []StepScore {
	byPos := map[int]*StepScore{}
	names := map[int]map[string]bool{}
	dates := map[int][]time.Time{}
	for _, m := range live {
		s, ok := byPos[m.SequencePosition]
		if !ok {
			s = &StepScore{SequencePosition: m.SequencePosition, EmailName: m.EmailName}
			byPos[m.SequencePosition] = s
			names[m.SequencePosition] = map[string]bool{}
		}
		if !names[m.SequencePosition][m.EmailName] && len(names[m.SequencePosition]) > 0 {
			s.ABVariants = true
		}
		names[m.SequencePosition][m.EmailName] = true
		s.MessageIDs = append(s.MessageIDs, m.FlowMessageID)
		s.Totals.AddFlowMessage(m)
		dates[m.SequencePosition] = append(dates[m.SequencePosition], m.SentDate)
	}

	steps := make([]StepScore, 0, len(byPos))
	for pos, s := range byPos {
		s.RPE = s.Totals.RevenuePerEmail()
		s.MedianSendDate = medianTime(dates[pos])
		sort.Strings(s.MessageIDs)
		steps = append(steps, *s)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].SequencePosition < steps[j].SequencePosition })
	return steps
}

// baselineRPE is the median RPE across steps above an adaptive sends floor:
// 250 first, 100 as fallback, then every step.
func baselineRPE(steps []StepScore) float64 {
	for _, floor := range []int64{baselineFloorPrimary, baselineFloorFallback, 0} {
		var rpes []float64
		for _, s := range steps {
			if s.Totals.EmailsSent >= floor {
				rpes = append(rpes, s.RPE)
			}
		}
		if len(rpes) > 0 {
			return stats.Median(rpes)
		}
	}
	return 0
}

// orderingUnreliable applies the quality gate: duplicate email names across
// different steps, or median send dates that do not increase with position.
func orderingUnreliable(steps []StepScore) (string, bool) {
	seen := map[string]int{}
	for _, s := range steps {
		if s.EmailName == "" {
			continue
		}
		if prev, ok := seen[s.EmailName]; ok {
			return fmt.Sprintf("Steps %d and %d share the email name %q.", prev, s.SequencePosition, s.EmailName), true
		}
		seen[s.EmailName] = s.SequencePosition
	}
	for i := 1; i < len(steps); i++ {
		a, b := steps[i-1].MedianSendDate, steps[i].MedianSendDate
		if a.IsZero() || b.IsZero() {
			continue
		}
		if b.Before(a) {
			return fmt.Sprintf("Median send dates run backwards between steps %d and %d.", steps[i-1].SequencePosition, steps[i].SequencePosition), true
		}
	}
	return "", false
}

func scoreSteps(steps []StepScore, baseline float64) {
	var totalRevenue float64
	for _, s := range steps {
		totalRevenue += s.Totals.Revenue
	}
	step1Sends := steps[0].Totals.EmailsSent

	for i := range steps {
		s := &steps[i]

		// Money pillar.
		s.A1 = a1Points(s.RPE, baseline)
		if i > 0 {
			s.A2 = a2Points(s, &steps[i-1], baseline)
		}
		s.A3 = a3Points(s.Totals.Revenue, totalRevenue)

		// Deliverability pillar.
		var hard bool
		s.DeliverabilityPenalty, hard = deliverabilityPenalty(s.Totals)
		s.HardStop = hard

		// Volume pillar.
		s.VolumePoints = volumePoints(s.Totals.EmailsSent, step1Sends)

		s.Score = clamp(s.A1+s.A2+s.A3+s.VolumePoints-s.DeliverabilityPenalty, 0, 100)
		s.Action = classify(s.Score, s.HardStop)
	}
}

// a1Points scales linearly with rpe/baseline between 0.5x (0 points) and
// 1.25x (full points).
func a1Points(rpe, baseline float64) float64 {
	if baseline <= 0 {
		if rpe > 0 {
			return moneyMaxA1
		}
		return 0
	}
	ratio := rpe / baseline
	return clamp(moneyMaxA1*(ratio-a1LowRatio)/(a1HighRatio-a1LowRatio), 0, moneyMaxA1)
}

// a2Points rewards step-over-step RPE improvement, dampened when reach
// collapsed while the step still trails the baseline.
func a2Points(s, prev *StepScore, baseline float64) float64 {
	var gain float64
	switch {
	case prev.RPE > 0:
		gain = (s.RPE - prev.RPE) / prev.RPE
	case s.RPE > 0:
		gain = a2FullGain // improvement from a zero base maxes the pillar
	}
	pts := clamp(moneyMaxA2*gain/a2FullGain, 0, moneyMaxA2)

	if prev.Totals.EmailsSent > 0 {
		reachDrop := 1 - float64(s.Totals.EmailsSent)/float64(prev.Totals.EmailsSent)
		if reachDrop > a2ReachCollapse && s.RPE < baseline {
			pts = math.Min(pts, a2DampenedCap)
		}
	}
	return pts
}

// a3Points is a step function on the step's share of total flow revenue.
func a3Points(revenue, total float64) float64 {
	if total <= 0 {
		return 0
	}
	share := revenue / total
	switch {
	case share >= 0.30:
		return 20
	case share >= 0.20:
		return 16
	case share >= 0.10:
		return 10
	case share >= 0.05:
		return 6
	case share >= 0.02:
		return 3
	default:
		return 0
	}
}

// deliverabilityPenalty sums the tiered spam/unsubscribe/bounce penalties,
// capped at penaltyCap. The top tier of each metric is a hard stop that
// forces the step's action to pause regardless of total score.
func deliverabilityPenalty(t domain.Totals) (penalty float64, hardStop bool) {
	switch spam := t.SpamRate(); {
	case spam >= 0.0008:
		penalty += 20
		hardStop = true
	case spam >= 0.0005:
		penalty += 15
	case spam >= 0.0003:
		penalty += 8
	}
	switch unsub := t.UnsubscribeRate(); {
	case unsub >= 0.008:
		penalty += 12
		hardStop = true
	case unsub >= 0.005:
		penalty += 8
	case unsub >= 0.003:
		penalty += 4
	}
	switch bounce := t.BounceRate(); {
	case bounce >= 0.020:
		penalty += 10
		hardStop = true
	case bounce >= 0.015:
		penalty += 6
	case bounce >= 0.010:
		penalty += 3
	}
	return math.Min(penalty, penaltyCap), hardStop
}

// volumePoints thresholds on sends, absolute and relative to step 1, with a
// flat penalty for very small reach.
func volumePoints(sends, step1Sends int64) float64 {
	s1 := float64(step1Sends)
	f := float64(sends)
	var pts float64
	switch {
	case f >= math.Max(1000, 0.50*s1):
		pts = 10
	case f >= math.Max(500, 0.25*s1):
		pts = 7
	case f >= math.Max(250, 0.10*s1):
		pts = 5
	case f >= 100:
		pts = 3
	default:
		pts = 1
	}
	if sends < lowVolumeSends {
		pts -= lowVolumePenalty
	}
	return pts
}

func classify(score float64, hardStop bool) Action {
	if hardStop {
		return ActionPause
	}
	switch {
	case score >= scoreScale:
		return ActionScale
	case score >= scoreKeep:
		return ActionKeep
	case score >= scoreImprove:
		return ActionImprove
	default:
		return ActionPause
	}
}

// addStepSuggestion gates and sizes the "add a step" opportunity. All gates
// must pass; the estimate is deliberately floored at the 25th-percentile RPE
// (never above the last step's own RPE) on half the last step's reach.
func addStepSuggestion(an *Analysis, opts Options) *AddStep {
	if !opts.CanonicalWindow || an.Unreliable || len(an.Steps) == 0 {
		return nil
	}
	last := an.Steps[len(an.Steps)-1]
	if last.Action != ActionScale {
		return nil
	}
	if last.RPE < an.BaselineRPE {
		return nil
	}
	if len(an.Steps) > 1 && last.RPE < an.Steps[len(an.Steps)-2].RPE {
		return nil
	}
	if last.DeliverabilityPenalty > 0 {
		return nil
	}
	if float64(last.Totals.EmailsSent) < math.Max(lowVolumeSends, 0.10*float64(an.Steps[0].Totals.EmailsSent)) {
		return nil
	}
	if last.Totals.Revenue < addStepMinRevenue {
		return nil
	}

	rpes := make([]float64, len(an.Steps))
	for i, s := range an.Steps {
		rpes[i] = s.RPE
	}
	floor := math.Min(stats.Percentile(rpes, 0.25), last.RPE)
	reach := int64(addStepReachShare * float64(last.Totals.EmailsSent))
	return &AddStep{
		EstimatedRevenue: floor * float64(reach),
		RPEFloor:         floor,
		ProjectedReach:   reach,
	}
}

func summarize(an *Analysis) analytics.Guidance {
	counts := map[Action]int{}
	for _, s := range an.Steps {
		counts[s.Action]++
	}
	if an.AddStep != nil {
		return analytics.Guidance{
			Kind:                 analytics.GuidanceRecommendation,
			Title:                "Add a step to this flow",
			Message:              "The last step is still scaling (RPE at or above the flow baseline). A new step reaching about half its audience is a conservative next test.",
			TargetLabel:          fmt.Sprintf("step %d", an.Steps[len(an.Steps)-1].SequencePosition+1),
			Confidence:           analytics.ConfidenceMedium,
			EstimatedMonthlyGain: an.AddStep.EstimatedRevenue,
			HasEstimate:          true,
		}
	}
	if counts[ActionPause] > 0 {
		return analytics.Guidance{
			Kind:    analytics.GuidanceWarning,
			Title:   fmt.Sprintf("%d step(s) need a pause", counts[ActionPause]),
			Message: "One or more steps are below the health floor or tripped a deliverability hard stop. Pause them before they drag the whole flow's sender reputation down.",
		}
	}
	return analytics.Guidance{
		Kind:    analytics.GuidanceNeutral,
		Title:   "Flow is healthy",
		Message: fmt.Sprintf("%d of %d steps are worth scaling or keeping as-is.", counts[ActionScale]+counts[ActionKeep], len(an.Steps)),
	}
}

func medianTime(ts []time.Time) time.Time {
	if len(ts) == 0 {
		return time.Time{}
	}
	sorted := append([]time.Time(nil), ts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return sorted[(len(sorted)-1)/2]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
