// Package stats implements the numeric primitives shared by every analyzer:
// IQR outlier limits, recency-weighted mean/stddev, percentile lookups, and
// quantile / natural-breaks bucket boundaries.
//
// All functions are deterministic, allocate at most one copy of their input,
// and never return NaN for well-formed input.
package stats

import (
	"math"
	"sort"
	"time"
)

// Percentile returns the p-quantile (0 <= p <= 1) of values using the
// floor(p*(n-1)) index rule. It copies and sorts the input. Returns 0 for an
// empty slice.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return PercentileSorted(sorted, p)
}

// PercentileSorted is Percentile over an already ascending-sorted slice.
func PercentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	idx := int(math.Floor(p * float64(n-1)))
	return sorted[idx]
}

// Median returns the 50th percentile of values.
func Median(values []float64) float64 {
	return Percentile(values, 0.5)
}

// IQRLimit returns the upper outlier limit Q3 + 1.5*(Q3-Q1). With fewer than
// 4 values there is no meaningful spread, so the limit is +Inf (nothing is
// an outlier).
func IQRLimit(values []float64) float64 {
	if len(values) < 4 {
		return math.Inf(1)
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := PercentileSorted(sorted, 0.25)
	q3 := PercentileSorted(sorted, 0.75)
	return q3 + 1.5*(q3-q1)
}

// WeightedPoint pairs a value with the timestamp that determines its recency
// weight.
type WeightedPoint struct {
	Value float64
	Date  time.Time
}

// RecencyWeight computes the weight of a date within [spanStart, spanEnd]:
// linear position in the span floored at 0.01. A degenerate (zero or
// inverted) span gives every point weight 1.
func RecencyWeight(date, spanStart, spanEnd time.Time) float64 {
	span := spanEnd.Sub(spanStart)
	if span <= 0 {
		return 1
	}
	w := float64(date.Sub(spanStart)) / float64(span)
	if w < 0.01 {
		return 0.01
	}
	if w > 1 {
		return 1
	}
	return w
}

// WeightedMeanStdDev computes the recency-weighted mean and standard
// deviation of points within [spanStart, spanEnd]. The variance uses a
// Bessel-style correction: denominator ((n-1)/n)*sum(weights) for n>1,
// sum(weights) otherwise. With uniform weights it matches the unweighted
// sample statistics. Returns (0, 0) for an empty slice.
func WeightedMeanStdDev(points []WeightedPoint, spanStart, spanEnd time.Time) (mean, stddev float64) {
	n := len(points)
	if n == 0 {
		return 0, 0
	}

	var sumW, sumWV float64
	weights := make([]float64, n)
	for i, p := range points {
		w := RecencyWeight(p.Date, spanStart, spanEnd)
		weights[i] = w
		sumW += w
		sumWV += w * p.Value
	}
	if sumW == 0 {
		return 0, 0
	}
	mean = sumWV / sumW

	var sumWD float64
	for i, p := range points {
		d := p.Value - mean
		sumWD += weights[i] * d * d
	}
	denom := sumW
	if n > 1 {
		denom = (float64(n-1) / float64(n)) * sumW
	}
	if denom == 0 {
		return mean, 0
	}
	stddev = math.Sqrt(sumWD / denom)
	return mean, stddev
}

// WeightedMean computes sum(value*weight)/sum(weight); 0 when the weights
// sum to zero.
func WeightedMean(values, weights []float64) float64 {
	var sumW, sumWV float64
	for i, v := range values {
		sumWV += v * weights[i]
		sumW += weights[i]
	}
	if sumW == 0 {
		return 0
	}
	return sumWV / sumW
}

// QuantileBoundaries returns up to buckets-1 ascending, deduplicated
// cut-points that split sorted into even-count buckets. A value v belongs to
// the first bucket whose boundary satisfies v <= boundary (the last bucket is
// unbounded).
func QuantileBoundaries(sorted []float64, buckets int) []float64 {
	n := len(sorted)
	if n == 0 || buckets < 2 {
		return nil
	}
	out := make([]float64, 0, buckets-1)
	for i := 1; i < buckets; i++ {
		idx := i * n / buckets
		if idx >= n {
			idx = n - 1
		}
		b := sorted[idx]
		if len(out) == 0 || b > out[len(out)-1] {
			out = append(out, b)
		}
	}
	return out
}

// maxNaturalBreaks caps gap-derived breakpoints at 5 (6 buckets).
const maxNaturalBreaks = 5

// BucketBoundaries computes cut-points for a dynamic bucketing of sorted
// values into roughly target buckets. It prefers natural-breaks gap
// detection — the largest gaps between consecutive sorted values, where a
// gap is significant when it exceeds 10% of the total range or twice the
// median gap — and falls back to an even quantile split when there are fewer
// than 6 data points or no significant gaps.
//
// This is a gap heuristic, not a true Jenks natural-breaks optimization.
// Boundaries are deduplicated and strictly increasing.
func BucketBoundaries(sorted []float64, target int) []float64 {
	n := len(sorted)
	if n == 0 || target < 2 {
		return nil
	}
	if n < 6 {
		return QuantileBoundaries(sorted, target)
	}

	breaks := naturalBreakpoints(sorted, minInt(target-1, maxNaturalBreaks))
	if len(breaks) == 0 {
		return QuantileBoundaries(sorted, target)
	}
	return breaks
}

type gap struct {
	size     float64
	boundary float64 // midpoint of the gap
}

// naturalBreakpoints finds up to maxBreaks significant gaps in sorted values
// and returns their midpoints as ascending boundaries. Returns nil when no
// gap is significant.
func naturalBreakpoints(sorted []float64, maxBreaks int) []float64 {
	n := len(sorted)
	totalRange := sorted[n-1] - sorted[0]
	if totalRange == 0 {
		return nil
	}

	gaps := make([]gap, 0, n-1)
	sizes := make([]float64, 0, n-1)
	for i := 0; i < n-1; i++ {
		size := sorted[i+1] - sorted[i]
		gaps = append(gaps, gap{size: size, boundary: sorted[i] + size/2})
		sizes = append(sizes, size)
	}
	medianGap := Median(sizes)

	significant := gaps[:0:0]
	for _, g := range gaps {
		if g.size > 0.10*totalRange || (medianGap > 0 && g.size > 2*medianGap) {
			significant = append(significant, g)
		}
	}
	if len(significant) == 0 {
		return nil
	}

	// Largest gaps first, then cap and restore ascending order.
	sort.Slice(significant, func(i, j int) bool { return significant[i].size > significant[j].size })
	if len(significant) > maxBreaks {
		significant = significant[:maxBreaks]
	}
	out := make([]float64, 0, len(significant))
	for _, g := range significant {
		out = append(out, g.boundary)
	}
	sort.Float64s(out)

	dedup := out[:0]
	for i, b := range out {
		if i == 0 || b > dedup[len(dedup)-1] {
			dedup = append(dedup, b)
		}
	}
	return dedup
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
