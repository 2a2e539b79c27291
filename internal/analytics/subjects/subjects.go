// Package subjects extracts deterministic textual features from campaign
// subject lines (length bins, punctuation and casing, urgency wording,
// personalization tokens, price anchoring, imperative openers) and measures
// each feature's lift against a send-weighted baseline, with a volume plus
// statistical-significance gate before a feature may drive a recommendation.
//
// Rules are plain string/regexp matching, never ML: the same subject always
// yields the same features.
package subjects

import (
	"math"
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ignite/campaign-insights/internal/analytics"
	"github.com/ignite/campaign-insights/internal/analytics/timewindow"
	"github.com/ignite/campaign-insights/internal/domain"
)

// Metric selects what each feature is measured on.
type Metric string

const (
	MetricOpenRate        Metric = "openRate"
	MetricClickRate       Metric = "clickRate"
	MetricClickToOpenRate Metric = "clickToOpenRate"
	MetricRevenuePerEmail Metric = "revenuePerEmail"
)

const (
	// Volume gate per feature.
	minCampaignsFeature = 5
	minEmailShare       = 0.02

	// Benjamini-Hochberg false-discovery rate across features tested in the
	// same invocation.
	fdrQ = 0.05

	// Bootstrap CI for revenue-per-email differences.
	bootstrapResamples = 1000
	bootstrapSeed      = 1

	// Subject length bins, in runes.
	shortMax  = 30
	mediumMax = 60

	minCampaignsOverall = 5
)

// Options tunes one invocation.
type Options struct {
	Metric Metric
	// SegmentID, when non-empty, restricts the analysis to campaigns sent to
	// that segment.
	SegmentID string
	Observer  analytics.Observer
}

// Feature is one measured subject-line trait.
type Feature struct {
	Key   string `json:"key"`
	Label string `json:"label"`

	Campaigns  int   `json:"campaigns"`
	EmailsSent int64 `json:"emails_sent"`

	Value float64        `json:"value"`
	Lift  analytics.Lift `json:"lift"`

	// Reliable means the feature passed both the volume gate and the
	// significance gate; only reliable features belong in the primary
	// recommendation view.
	Reliable   bool    `json:"reliable"`
	VolumeOK   bool    `json:"volume_ok"`
	PValue     float64 `json:"p_value,omitempty"`
	CILow      float64 `json:"ci_low,omitempty"`
	CIHigh     float64 `json:"ci_high,omitempty"`
	HasPValue  bool    `json:"has_p_value"`
	HasCI      bool    `json:"has_ci"`
}

// Reuse is one exactly-repeated subject line and its first-vs-latest value.
type Reuse struct {
	Subject    string         `json:"subject"`
	Uses       int            `json:"uses"`
	FirstSent  time.Time      `json:"first_sent"`
	LatestSent time.Time      `json:"latest_sent"`
	FirstValue float64        `json:"first_value"`
	LastValue  float64        `json:"last_value"`
	Change     analytics.Lift `json:"change"`
}

// Analysis is the full subject-line report for one metric.
type Analysis struct {
	Metric            Metric             `json:"metric"`
	Baseline          float64            `json:"baseline"`
	CampaignsAnalyzed int                `json:"campaigns_analyzed"`
	TotalEmails       int64              `json:"total_emails"`
	Features          []Feature          `json:"features"`
	Reuse             []Reuse            `json:"reuse"`
	Guidance          analytics.Guidance `json:"guidance"`
}

// ========== Feature extraction rules ==========

var (
	allCapsWordRe = regexp.MustCompile(`\b[A-Z]{3,}\b`)
	urgencyRe     = regexp.MustCompile(`(?i)\b(now|today|tonight|hurry|final hours?|expires?|last chance|limited time|don'?t miss|ends (tonight|today|soon))\b`)
	priceAnchorRe = regexp.MustCompile(`(?i)[$€£]\s?\d|\b\d+\s?%\s?off\b|\bfree\b|\bbogo\b`)
	personalRe    = regexp.MustCompile(`\{\{|\*\||%%|\{%`)
)

var imperativeVerbs = map[string]bool{
	"shop": true, "get": true, "save": true, "grab": true, "buy": true,
	"discover": true, "unlock": true, "claim": true, "join": true,
	"try": true, "take": true, "meet": true, "see": true, "start": true,
	"enjoy": true, "open": true, "use": true,
}

type featureDef struct {
	key   string
	label string
	match func(subject string) bool
}

// featureDefs is evaluated in a fixed order so the seeded bootstrap and the
// FDR ranking are reproducible run to run.
var featureDefs = []featureDef{
	{"length:short", "Short subject (under 30 chars)", func(s string) bool { return runeLen(s) < shortMax }},
	{"length:medium", "Medium subject (30-60 chars)", func(s string) bool { n := runeLen(s); return n >= shortMax && n <= mediumMax }},
	{"length:long", "Long subject (over 60 chars)", func(s string) bool { return runeLen(s) > mediumMax }},
	{"question", "Contains a question mark", func(s string) bool { return strings.Contains(s, "?") }},
	{"exclamation", "Contains an exclamation mark", func(s string) bool { return strings.Contains(s, "!") }},
	{"all_caps", "Contains an ALL-CAPS word", func(s string) bool { return allCapsWordRe.MatchString(s) }},
	{"urgency", "Urgency or deadline wording", func(s string) bool { return urgencyRe.MatchString(s) }},
	{"personalization", "Personalization token", func(s string) bool { return personalRe.MatchString(s) }},
	{"price_anchor", "Price or discount anchor", func(s string) bool { return priceAnchorRe.MatchString(s) }},
	{"imperative_start", "Starts with an imperative verb", startsImperative},
}

func runeLen(s string) int { return len([]rune(s)) }

func startsImperative(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	first := strings.ToLower(strings.Trim(fields[0], ".,!?:;\"'"))
	return imperativeVerbs[first]
}

// ========== Analysis ==========

// Analyze measures every subject-line feature on the given metric within the
// window.
func Analyze(dc *analytics.DataContext, window timewindow.Window, opts Options) (*Analysis, error) {
	if dc == nil {
		return nil, analytics.ErrNilContext
	}
	if window.End.Before(window.Start) {
		return nil, analytics.ErrInvalidWindow
	}
	if opts.Metric == "" {
		opts.Metric = MetricOpenRate
	}
	obs := opts.Observer
	if obs == nil {
		obs = analytics.NopObserver
	}

	var campaigns []domain.CampaignRecord
	for _, c := range dc.CampaignsBetween(window.Start, window.End) {
		if opts.SegmentID != "" && c.SegmentID != opts.SegmentID {
			continue
		}
		campaigns = append(campaigns, c)
	}

	an := &Analysis{Metric: opts.Metric, CampaignsAnalyzed: len(campaigns)}
	if len(campaigns) < minCampaignsOverall {
		an.Guidance = analytics.InsufficientData(
			"Not enough campaigns for subject analysis",
			"Subject-line patterns need at least 5 campaigns in the window before any comparison is meaningful.",
		)
		return an, nil
	}

	var overall domain.Totals
	for _, c := range campaigns {
		overall.AddCampaign(c)
	}
	an.TotalEmails = overall.EmailsSent
	an.Baseline = metricOf(overall, opts.Metric)
	obs.Trace("subjects.baseline", "metric", string(opts.Metric), "baseline", an.Baseline, "campaigns", len(campaigns))

	an.Features = measureFeatures(campaigns, overall, opts.Metric)
	an.Reuse = reuseFatigue(campaigns, opts.Metric)
	an.Guidance = deriveGuidance(an)
	return an, nil
}

// measureFeatures computes the per-feature pooled value, lift, and the
// volume + significance gates.
func measureFeatures(campaigns []domain.CampaignRecord, overall domain.Totals, metric Metric) []Feature {
	baseline := metricOf(overall, metric)
	rng := rand.New(rand.NewSource(bootstrapSeed))

	features := make([]Feature, 0, len(featureDefs))
	type tested struct {
		idx int
		p   float64
	}
	var rateTested []tested

	for _, def := range featureDefs {
		var in, out domain.Totals
		var inRPE, outRPE []float64
		count := 0
		for _, c := range campaigns {
			if def.match(c.Subject) {
				in.AddCampaign(c)
				inRPE = append(inRPE, c.RevenuePerEmail())
				count++
			} else {
				out.AddCampaign(c)
				outRPE = append(outRPE, c.RevenuePerEmail())
			}
		}

		f := Feature{
			Key:        def.key,
			Label:      def.label,
			Campaigns:  count,
			EmailsSent: in.EmailsSent,
			Value:      metricOf(in, metric),
		}
		f.Lift = analytics.NewLift(f.Value, baseline)
		f.VolumeOK = count >= minCampaignsFeature &&
			float64(in.EmailsSent) >= minEmailShare*float64(overall.EmailsSent)

		if f.VolumeOK {
			if metric == MetricRevenuePerEmail {
				lo, hi, ok := bootstrapMeanDiffCI(rng, inRPE, outRPE)
				if ok {
					f.CILow, f.CIHigh, f.HasCI = lo, hi, true
					// Significant when the CI excludes zero.
					f.Reliable = lo > 0 || hi < 0
				}
			} else {
				p, ok := twoProportionP(in, out, metric)
				if ok {
					f.PValue, f.HasPValue = p, true
					rateTested = append(rateTested, tested{idx: len(features), p: p})
				}
			}
		}
		features = append(features, f)
	}

	// FDR adjustment across the rate features tested in this invocation.
	if len(rateTested) > 0 {
		sort.Slice(rateTested, func(i, j int) bool { return rateTested[i].p < rateTested[j].p })
		m := float64(len(rateTested))
		cutoff := -1
		for rank, t := range rateTested {
			if t.p <= (float64(rank+1)/m)*fdrQ {
				cutoff = rank
			}
		}
		for rank := 0; rank <= cutoff; rank++ {
			features[rateTested[rank].idx].Reliable = true
		}
	}
	return features
}

// twoProportionP runs a pooled two-proportion z-test (feature vs rest) for a
// rate metric and returns the two-sided p-value. ok is false when either
// denominator is zero.
func twoProportionP(in, out domain.Totals, metric Metric) (float64, bool) {
	x1, n1 := rateCounts(in, metric)
	x2, n2 := rateCounts(out, metric)
	if n1 == 0 || n2 == 0 {
		return 0, false
	}
	p1 := x1 / n1
	p2 := x2 / n2
	pooled := (x1 + x2) / (n1 + n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))
	if se == 0 {
		return 0, false
	}
	z := (p1 - p2) / se
	// Two-sided p-value from the normal CDF.
	return math.Erfc(math.Abs(z) / math.Sqrt2), true
}

// rateCounts maps a rate metric onto its successes/trials pair.
func rateCounts(t domain.Totals, metric Metric) (successes, trials float64) {
	switch metric {
	case MetricClickRate:
		return float64(t.UniqueClicks), float64(t.EmailsSent)
	case MetricClickToOpenRate:
		return float64(t.UniqueClicks), float64(t.UniqueOpens)
	default: // open rate
		return float64(t.UniqueOpens), float64(t.EmailsSent)
	}
}

// bootstrapMeanDiffCI resamples both groups with replacement and returns the
// 2.5th/97.5th percentile of the difference in means. Deterministic for a
// given rng state.
func bootstrapMeanDiffCI(rng *rand.Rand, in, out []float64) (lo, hi float64, ok bool) {
	if len(in) == 0 || len(out) == 0 {
		return 0, 0, false
	}
	diffs := make([]float64, bootstrapResamples)
	for i := range diffs {
		diffs[i] = resampleMean(rng, in) - resampleMean(rng, out)
	}
	sort.Float64s(diffs)
	lo = diffs[int(0.025*float64(bootstrapResamples))]
	hi = diffs[int(0.975*float64(bootstrapResamples))-1]
	return lo, hi, true
}

func resampleMean(rng *rand.Rand, values []float64) float64 {
	var sum float64
	for range values {
		sum += values[rng.Intn(len(values))]
	}
	return sum / float64(len(values))
}

// reuseFatigue groups campaigns by exact subject text and reports first-use
// vs most-recent-use value for subjects sent more than once. Exact string
// match only, no fuzzy or semantic grouping.
func reuseFatigue(campaigns []domain.CampaignRecord, metric Metric) []Reuse {
	bySubject := map[string][]domain.CampaignRecord{}
	for _, c := range campaigns {
		bySubject[c.Subject] = append(bySubject[c.Subject], c)
	}

	var out []Reuse
	for subject, group := range bySubject {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].SentAt.Before(group[j].SentAt) })
		first, last := group[0], group[len(group)-1]
		fv := campaignMetric(first, metric)
		lv := campaignMetric(last, metric)
		out = append(out, Reuse{
			Subject:    subject,
			Uses:       len(group),
			FirstSent:  first.SentAt,
			LatestSent: last.SentAt,
			FirstValue: fv,
			LastValue:  lv,
			Change:     analytics.NewLift(lv, fv),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Uses != out[j].Uses {
			return out[i].Uses > out[j].Uses
		}
		return out[i].Subject < out[j].Subject
	})
	return out
}

func campaignMetric(c domain.CampaignRecord, metric Metric) float64 {
	switch metric {
	case MetricClickRate:
		return c.ClickRate()
	case MetricClickToOpenRate:
		return c.ClickToOpenRate()
	case MetricRevenuePerEmail:
		return c.RevenuePerEmail()
	default:
		return c.OpenRate()
	}
}

func metricOf(t domain.Totals, metric Metric) float64 {
	switch metric {
	case MetricClickRate:
		return t.ClickRate()
	case MetricClickToOpenRate:
		return t.ClickToOpenRate()
	case MetricRevenuePerEmail:
		return t.RevenuePerEmail()
	default:
		return t.OpenRate()
	}
}

// deriveGuidance promotes the strongest reliable positive feature, or reports
// that nothing cleared the gates.
func deriveGuidance(an *Analysis) analytics.Guidance {
	var best *Feature
	for i := range an.Features {
		f := &an.Features[i]
		if !f.Reliable || f.Lift.Infinite || f.Lift.Value <= 0 {
			continue
		}
		if best == nil || f.Lift.Value > best.Lift.Value {
			best = f
		}
	}
	if best == nil {
		return analytics.Guidance{
			Kind:    analytics.GuidanceNeutral,
			Title:   "No subject pattern stands out",
			Message: "No subject-line feature cleared both the volume and significance gates with a positive lift. Keep testing; patterns need more sends to separate from noise.",
		}
	}
	return analytics.Guidance{
		Kind:        analytics.GuidanceRecommendation,
		Title:       "Lean into: " + best.Label,
		Message:     "Campaigns with this trait outperform the baseline, and the difference holds up statistically, not just directionally.",
		TargetLabel: best.Key,
		Confidence:  analytics.ConfidenceMedium,
	}
}
