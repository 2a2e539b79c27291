package flowscore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/campaign-insights/internal/analytics"
	"github.com/ignite/campaign-insights/internal/analytics/timewindow"
	"github.com/ignite/campaign-insights/internal/domain"
)

var testWindow = timewindow.Window{
	Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC),
}

func msg(pos int, name string, sent time.Time, sends int64, revenue float64) domain.FlowMessageRecord {
	return domain.FlowMessageRecord{
		FlowID:           "flow-1",
		FlowName:         "Welcome Series",
		FlowMessageID:    name + "-id",
		EmailName:        name,
		Status:           domain.FlowMessageLive,
		SequencePosition: pos,
		SentDate:         sent,
		EmailsSent:       sends,
		Revenue:          revenue,
	}
}

func ctx(flows ...domain.FlowMessageRecord) *analytics.DataContext {
	return analytics.NewDataContext("ds", 1, nil, flows, nil)
}

func TestAnalyze_ContractViolations(t *testing.T) {
	_, err := Analyze(nil, "flow-1", testWindow, Options{})
	assert.ErrorIs(t, err, analytics.ErrNilContext)

	inverted := timewindow.Window{Start: testWindow.End, End: testWindow.Start}
	_, err = Analyze(ctx(), "flow-1", inverted, Options{})
	assert.ErrorIs(t, err, analytics.ErrInvalidWindow)
}

func TestAnalyze_NoLiveMessages(t *testing.T) {
	draft := msg(0, "Welcome 1", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 5000, 1000)
	draft.Status = domain.FlowMessageDraft

	an, err := Analyze(ctx(draft), "flow-1", testWindow, Options{})
	assert.NoError(t, err)
	assert.Equal(t, analytics.GuidanceInsufficientData, an.Guidance.Kind)
	assert.Empty(t, an.Steps)
}

// A deliverability hard stop forces pause even when the money and volume
// pillars alone would clear the scale threshold.
func TestAnalyze_HardStopForcesPause(t *testing.T) {
	step1 := msg(0, "Welcome 1", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 10_000, 1000)
	step2 := msg(1, "Welcome 2", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), 10_000, 5000)
	step2.SpamReports = 9 // 0.09%, past the 0.08% hard stop

	an, err := Analyze(ctx(step1, step2), "flow-1", testWindow, Options{})
	assert.NoError(t, err)

	s := an.Steps[1]
	assert.True(t, s.HardStop)
	assert.Equal(t, ActionPause, s.Action)
	// Money (35+15+20) and volume (10) minus the capped penalty (20).
	assert.InDelta(t, 60.0, s.Score, 0.01)
	assert.Equal(t, analytics.GuidanceWarning, an.Guidance.Kind)
}

func TestAnalyze_AddStepSuggestion(t *testing.T) {
	steps := []domain.FlowMessageRecord{
		msg(0, "Welcome 1", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 10_000, 1000), // RPE 0.10
		msg(1, "Welcome 2", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), 8_000, 1600),  // RPE 0.20
		msg(2, "Welcome 3", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 6_000, 2400),  // RPE 0.40
	}
	dc := ctx(steps...)

	an, err := Analyze(dc, "flow-1", testWindow, Options{CanonicalWindow: true})
	assert.NoError(t, err)

	last := an.Steps[2]
	assert.Equal(t, ActionScale, last.Action)
	assert.InDelta(t, 80.0, last.Score, 0.01)

	if assert.NotNil(t, an.AddStep) {
		// Floor is the P25 RPE (0.10) on half the last step's reach.
		assert.InDelta(t, 0.10, an.AddStep.RPEFloor, 0.0001)
		assert.Equal(t, int64(3000), an.AddStep.ProjectedReach)
		assert.InDelta(t, 300.0, an.AddStep.EstimatedRevenue, 0.01)
	}
	assert.Equal(t, analytics.GuidanceRecommendation, an.Guidance.Kind)
	assert.True(t, an.Guidance.HasEstimate)

	// The same flow outside a canonical 30/90-day window never suggests a step.
	an2, err := Analyze(dc, "flow-1", testWindow, Options{CanonicalWindow: false})
	assert.NoError(t, err)
	assert.Nil(t, an2.AddStep)
}

func TestAnalyze_AddStepGatedOnWeakLastStep(t *testing.T) {
	steps := []domain.FlowMessageRecord{
		msg(0, "Welcome 1", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 10_000, 1000),
		msg(1, "Welcome 2", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), 8_000, 1600),
		msg(2, "Welcome 3", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 200, 80), // RPE 0.40 but tiny reach and $80
	}
	an, err := Analyze(ctx(steps...), "flow-1", testWindow, Options{CanonicalWindow: true})
	assert.NoError(t, err)
	assert.Nil(t, an.AddStep)
}

func TestAnalyze_DuplicateNamesSuppressScores(t *testing.T) {
	steps := []domain.FlowMessageRecord{
		msg(0, "Welcome", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 5000, 500),
		msg(1, "Welcome", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), 4000, 800),
	}
	an, err := Analyze(ctx(steps...), "flow-1", testWindow, Options{})
	assert.NoError(t, err)

	assert.True(t, an.Unreliable)
	assert.Contains(t, an.UnreliableReason, "Welcome")
	assert.Equal(t, analytics.GuidanceWarning, an.Guidance.Kind)
	for _, s := range an.Steps {
		assert.Zero(t, s.Score)
		assert.Empty(t, string(s.Action))
	}
}

func TestAnalyze_BackwardsDatesSuppressScores(t *testing.T) {
	steps := []domain.FlowMessageRecord{
		msg(0, "Welcome 1", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 5000, 500),
		msg(1, "Welcome 2", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 4000, 800),
	}
	an, err := Analyze(ctx(steps...), "flow-1", testWindow, Options{})
	assert.NoError(t, err)
	assert.True(t, an.Unreliable)
	assert.Contains(t, an.UnreliableReason, "backwards")
}

func TestAnalyze_ABVariantsAggregatedAndFlagged(t *testing.T) {
	a := msg(0, "Welcome A", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 500, 100)
	b := msg(0, "Welcome B", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 500, 100)

	an, err := Analyze(ctx(a, b), "flow-1", testWindow, Options{})
	assert.NoError(t, err)

	assert.False(t, an.Unreliable)
	assert.Len(t, an.Steps, 1)
	s := an.Steps[0]
	assert.True(t, s.ABVariants)
	assert.Equal(t, int64(1000), s.Totals.EmailsSent)
	assert.InDelta(t, 200.0, s.Totals.Revenue, 0.001)
}

// The baseline only falls back below the 250-send floor when no step clears it.
func TestAnalyze_BaselineSendsFloor(t *testing.T) {
	big := msg(0, "Welcome 1", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 300, 300) // RPE 1.0
	tiny := msg(1, "Welcome 2", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), 50, 500) // RPE 10.0

	an, err := Analyze(ctx(big, tiny), "flow-1", testWindow, Options{})
	assert.NoError(t, err)
	assert.InDelta(t, 1.0, an.BaselineRPE, 0.0001)

	// With every step under 250 sends, 100 becomes the floor.
	m1 := msg(0, "Welcome 1", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 200, 400) // RPE 2.0
	m2 := msg(1, "Welcome 2", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), 100, 400) // RPE 4.0
	an2, err := Analyze(ctx(m1, m2), "flow-1", testWindow, Options{})
	assert.NoError(t, err)
	assert.InDelta(t, 2.0, an2.BaselineRPE, 0.0001)
}

// Every pillar serializes under its own key in the step payload.
func TestStepScore_PillarJSONKeys(t *testing.T) {
	step := msg(0, "Welcome 1", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), 10_000, 5000)

	an, err := Analyze(ctx(step), "flow-1", testWindow, Options{})
	assert.NoError(t, err)

	data, err := json.Marshal(an.Steps[0])
	assert.NoError(t, err)

	var decoded map[string]interface{}
	assert.NoError(t, json.Unmarshal(data, &decoded))
	for key, want := range map[string]float64{
		"a1": an.Steps[0].A1,
		"a2": an.Steps[0].A2,
		"a3": an.Steps[0].A3,
	} {
		assert.Contains(t, decoded, key)
		assert.InDelta(t, want, decoded[key], 0.0001)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	steps := []domain.FlowMessageRecord{
		msg(0, "Welcome 1", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 10_000, 1000),
		msg(1, "Welcome 2", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), 8_000, 1600),
		msg(2, "Welcome 3", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 6_000, 2400),
	}
	dc := ctx(steps...)
	first, err := Analyze(dc, "flow-1", testWindow, Options{CanonicalWindow: true})
	assert.NoError(t, err)
	second, err := Analyze(dc, "flow-1", testWindow, Options{CanonicalWindow: true})
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}
