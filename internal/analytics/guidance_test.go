package analytics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyConfidence(t *testing.T) {
	cases := []struct {
		name string
		cv   float64
		n    int
		want Confidence
	}{
		{"tight and plenty", 0.1, 10, ConfidenceHigh},
		{"tight but few", 0.1, 5, ConfidenceMedium},
		{"cv at high boundary", 0.3, 10, ConfidenceMedium},
		{"moderate spread", 0.45, 4, ConfidenceMedium},
		{"cv at medium boundary", 0.5, 10, ConfidenceLow},
		{"too few samples", 0.1, 3, ConfidenceLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyConfidence(tc.cv, tc.n))
		})
	}
}

func TestClassifyRisk(t *testing.T) {
	cases := []struct {
		name   string
		spam   float64
		bounce float64
		want   RiskZone
	}{
		{"clean", 0.0005, 0.01, RiskGreen},
		{"spam at yellow floor", 0.001, 0.0, RiskYellow},
		{"bounce at yellow floor", 0.0, 0.02, RiskYellow},
		{"exactly at red threshold stays yellow", 0.002, 0.03, RiskYellow},
		{"spam over red", 0.0021, 0.0, RiskRed},
		{"bounce over red", 0.0, 0.031, RiskRed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyRisk(tc.spam, tc.bounce))
		})
	}
}

func TestNewLift(t *testing.T) {
	l := NewLift(1.5, 1.0)
	assert.InDelta(t, 0.5, l.Value, 1e-12)
	assert.False(t, l.Infinite)

	l = NewLift(0.5, 1.0)
	assert.InDelta(t, -0.5, l.Value, 1e-12)

	l = NewLift(2.0, 0)
	assert.True(t, l.Infinite)
	assert.Zero(t, l.Value)

	l = NewLift(0, 0)
	assert.False(t, l.Infinite)
	assert.Zero(t, l.Value)
}

// An infinite lift must survive json round-trips: encoding/json rejects IEEE
// infinities, so the sentinel lives in the flag, never in Value.
func TestNewLift_InfiniteMarshalsToJSON(t *testing.T) {
	data, err := json.Marshal(NewLift(2.0, 0))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"value":0,"infinite":true}`, string(data))
}
