package stats

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIQRLimit_WorkedExample(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 100}
	limit := IQRLimit(values)
	// Q1=3, Q3=9 -> limit = 9 + 1.5*6 = 18; the 100 spike sits above it.
	assert.InDelta(t, 18.0, limit, 0.0001)
	assert.Greater(t, 100.0, limit)
	assert.Less(t, 11.0, limit)
}

func TestIQRLimit_TooFewValues(t *testing.T) {
	assert.True(t, math.IsInf(IQRLimit([]float64{1, 2, 3}), 1))
	assert.True(t, math.IsInf(IQRLimit(nil), 1))
}

func TestPercentile(t *testing.T) {
	values := []float64{5, 1, 3, 2, 4}
	assert.Equal(t, 1.0, Percentile(values, 0))
	assert.Equal(t, 3.0, Percentile(values, 0.5))
	assert.Equal(t, 5.0, Percentile(values, 1))
	assert.Equal(t, 0.0, Percentile(nil, 0.5))
}

func TestWeightedMeanStdDev_UniformWeightsMatchUnweighted(t *testing.T) {
	// Degenerate span -> every weight is 1 -> plain sample statistics.
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	points := []WeightedPoint{
		{Value: 2, Date: day},
		{Value: 4, Date: day},
		{Value: 6, Date: day},
		{Value: 8, Date: day},
	}
	mean, stddev := WeightedMeanStdDev(points, day, day)
	assert.InDelta(t, 5.0, mean, 1e-9)
	// Sample stddev of {2,4,6,8} = sqrt(20/3)
	assert.InDelta(t, math.Sqrt(20.0/3.0), stddev, 1e-9)
}

func TestWeightedMeanStdDev_RecencyBias(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	points := []WeightedPoint{
		{Value: 10, Date: start}, // weight floored at 0.01
		{Value: 20, Date: end},   // weight 1
	}
	mean, _ := WeightedMeanStdDev(points, start, end)
	// Recent value dominates: (10*0.01 + 20*1) / 1.01
	assert.InDelta(t, 20.1/1.01, mean, 1e-9)
	assert.Greater(t, mean, 15.0)
}

func TestWeightedMeanStdDev_Empty(t *testing.T) {
	mean, stddev := WeightedMeanStdDev(nil, time.Time{}, time.Time{})
	assert.Zero(t, mean)
	assert.Zero(t, stddev)
}

func TestRecencyWeight_Floor(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 100)
	assert.Equal(t, 0.01, RecencyWeight(start, start, end))
	assert.Equal(t, 1.0, RecencyWeight(end, start, end))
	assert.InDelta(t, 0.5, RecencyWeight(start.AddDate(0, 0, 50), start, end), 1e-9)
}

func TestQuantileBoundaries(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	bounds := QuantileBoundaries(sorted, 4)
	assert.Equal(t, []float64{3, 5, 7}, bounds)
}

func TestQuantileBoundaries_Dedup(t *testing.T) {
	sorted := []float64{1, 1, 1, 1, 1, 1, 2, 9}
	bounds := QuantileBoundaries(sorted, 4)
	for i := 1; i < len(bounds); i++ {
		assert.Greater(t, bounds[i], bounds[i-1])
	}
}

func TestBucketBoundaries_NaturalBreakIsolatesOutlier(t *testing.T) {
	// Tightly clustered values plus one extreme outlier: gap detection must
	// produce a boundary that puts the outlier in its own bucket.
	sorted := []float64{100, 101, 102, 103, 104, 105, 5000}
	bounds := BucketBoundaries(sorted, 4)
	assert.NotEmpty(t, bounds)
	last := bounds[len(bounds)-1]
	assert.Greater(t, last, 105.0)
	assert.Less(t, last, 5000.0)
}

func TestBucketBoundaries_QuantileFallbackSmallInput(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	bounds := BucketBoundaries(sorted, 4)
	assert.Equal(t, QuantileBoundaries(sorted, 4), bounds)
}

func TestBucketBoundaries_QuantileFallbackNoGaps(t *testing.T) {
	// Perfectly even spacing: every gap equals the median gap and is well
	// under 10% of the range, so quantile split applies.
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	bounds := BucketBoundaries(sorted, 4)
	assert.Equal(t, QuantileBoundaries(sorted, 4), bounds)
}

func TestBucketBoundaries_MonotonicDedup(t *testing.T) {
	sorted := []float64{1, 1, 1, 50, 50, 50, 1000, 1000, 1000}
	bounds := BucketBoundaries(sorted, 4)
	for i := 1; i < len(bounds); i++ {
		assert.Greater(t, bounds[i], bounds[i-1])
	}
}

func TestWeightedMean(t *testing.T) {
	assert.InDelta(t, 3.0, WeightedMean([]float64{2, 4}, []float64{1, 1}), 1e-9)
	assert.Zero(t, WeightedMean([]float64{2, 4}, []float64{0, 0}))
}
