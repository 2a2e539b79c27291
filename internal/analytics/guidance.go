package analytics

import "errors"

// GuidanceKind discriminates the guidance variants. Insufficient data is a
// first-class variant, not an error: analyzers always return a well-formed
// result.
type GuidanceKind string

const (
	// GuidanceRecommendation carries a directive recommendation with an
	// estimated revenue impact.
	GuidanceRecommendation GuidanceKind = "recommendation"
	// GuidanceNeutral means the data is sufficient but no change is worth
	// recommending (e.g. "sizes perform similarly", "keep current cadence").
	GuidanceNeutral GuidanceKind = "neutral"
	// GuidanceWarning flags a hygiene/deliverability problem that must be
	// fixed before performance tuning (e.g. all buckets in the red zone).
	GuidanceWarning GuidanceKind = "warning"
	// GuidanceInsufficientData means a minimum-sample gate failed; the
	// message explains what is missing. Numeric estimates are absent.
	GuidanceInsufficientData GuidanceKind = "insufficient_data"
)

// Confidence classifies how much to trust a recommendation, derived from the
// coefficient of variation and sample size.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ClassifyConfidence maps a coefficient of variation (stddev/mean) and a
// sample size onto a confidence level: high for cv<0.3 with n>=6, medium for
// cv<0.5 with n>=4, low otherwise.
func ClassifyConfidence(cv float64, n int) Confidence {
	switch {
	case cv < 0.3 && n >= 6:
		return ConfidenceHigh
	case cv < 0.5 && n >= 4:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// RiskZone is the deliverability health classification of a bucket.
type RiskZone string

const (
	RiskGreen  RiskZone = "green"
	RiskYellow RiskZone = "yellow"
	RiskRed    RiskZone = "red"
)

// Deliverability thresholds, as fractions of emails sent.
const (
	SpamRateRed      = 0.002 // > 0.2%
	SpamRateYellow   = 0.001 // >= 0.1%
	BounceRateRed    = 0.03  // > 3.0%
	BounceRateYellow = 0.02  // >= 2.0%
)

// ClassifyRisk returns the deliverability risk zone for a spam/bounce rate
// pair. Values exactly at the red thresholds are yellow (red is strict).
func ClassifyRisk(spamRate, bounceRate float64) RiskZone {
	if spamRate > SpamRateRed || bounceRate > BounceRateRed {
		return RiskRed
	}
	if spamRate >= SpamRateYellow || bounceRate >= BounceRateYellow {
		return RiskYellow
	}
	return RiskGreen
}

// Guidance is the recommendation object every analyzer produces. Numbers are
// raw (unrounded); formatting belongs to the caller.
type Guidance struct {
	Kind          GuidanceKind `json:"kind"`
	Title         string       `json:"title"`
	Message       string       `json:"message"`
	TargetLabel   string       `json:"target_label,omitempty"`
	BaselineLabel string       `json:"baseline_label,omitempty"`
	Confidence    Confidence   `json:"confidence,omitempty"`
	Risk          RiskZone     `json:"risk,omitempty"`

	// EstimatedMonthlyGain is only meaningful when HasEstimate is true.
	EstimatedMonthlyGain float64 `json:"estimated_monthly_gain,omitempty"`
	HasEstimate          bool    `json:"has_estimate"`
}

// InsufficientData builds the insufficient-data guidance variant.
func InsufficientData(title, message string) Guidance {
	return Guidance{Kind: GuidanceInsufficientData, Title: title, Message: message}
}

// Lift is a relative change versus a baseline. A positive value on a zero
// baseline is represented by the Infinite flag, never clamped to a finite
// number; Value is 0 in that case so every result marshals to JSON
// (encoding/json rejects IEEE infinities).
type Lift struct {
	Value    float64 `json:"value"`
	Infinite bool    `json:"infinite"`
}

// NewLift computes (value-baseline)/baseline as a Lift. Zero baseline with a
// nonzero value yields the infinite sentinel; zero over zero is a zero lift.
func NewLift(value, baseline float64) Lift {
	if baseline == 0 {
		if value == 0 {
			return Lift{}
		}
		return Lift{Infinite: true}
	}
	return Lift{Value: (value - baseline) / baseline}
}

// Caller contract violations. Data sparsity is never an error; these are.
var (
	// ErrNoData signals an empty dataset where records were required to
	// resolve a window. Callers render nothing.
	ErrNoData = errors.New("analytics: no data")
	// ErrInvalidWindow signals a zero-length or inverted window.
	ErrInvalidWindow = errors.New("analytics: invalid window")
	// ErrNilContext signals a nil DataContext.
	ErrNilContext = errors.New("analytics: nil data context")
)
