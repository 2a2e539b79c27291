package periods

import (
	"testing"
	"time"

	"github.com/ignite/campaign-insights/internal/analytics/timewindow"
	"github.com/ignite/campaign-insights/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func campaign(id string, sentAt time.Time, revenue float64) domain.CampaignRecord {
	return domain.CampaignRecord{ID: id, SentAt: sentAt, Revenue: revenue, EmailsSent: 1000}
}

func TestWeekStart_MondayAnchor(t *testing.T) {
	// 2024-03-13 is a Wednesday; its week starts Monday 2024-03-11.
	wed := time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), WeekStart(wed))

	// Sunday belongs to the week that began the previous Monday.
	sun := time.Date(2024, 3, 17, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), WeekStart(sun))

	mon := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, mon, WeekStart(mon))
}

func TestBuildSeries_WeeklyCoversWindowWithEmptyBuckets(t *testing.T) {
	// Monday 2024-03-04 through Sunday 2024-03-31: four full weeks.
	window := timewindow.Window{
		Start: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC),
	}
	campaigns := []domain.CampaignRecord{
		campaign("a", time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), 100),
		campaign("b", time.Date(2024, 3, 19, 10, 0, 0, 0, time.UTC), 200),
		campaign("c", time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC), 300),
	}

	series := BuildSeries(campaigns, Weekly, window)
	require.Len(t, series, 4)

	assert.Equal(t, 1, series[0].Totals.Campaigns)
	assert.True(t, series[1].IsZeroSend(), "zero-send week must still appear")
	assert.Equal(t, 2, series[2].Totals.Campaigns)
	assert.True(t, series[3].IsZeroSend())

	for _, b := range series {
		assert.False(t, b.Incomplete)
	}
}

func TestBuildSeries_RevenueConservation(t *testing.T) {
	window := timewindow.Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC),
	}
	campaigns := []domain.CampaignRecord{
		campaign("a", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 10),
		campaign("b", time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), 20),
		campaign("c", time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC), 30),
		campaign("out", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), 999),
	}

	for _, g := range []Granularity{Daily, Weekly, Monthly} {
		series := BuildSeries(campaigns, g, window)
		var sum float64
		var count int
		for _, b := range series {
			sum += b.Totals.Revenue
			count += b.Totals.Campaigns
		}
		assert.InDelta(t, 60.0, sum, 1e-9, "granularity %s", g)
		assert.Equal(t, 3, count, "granularity %s", g)
	}
}

func TestBuildSeries_IncompleteEdgeWeeks(t *testing.T) {
	// Window starts on a Wednesday and ends on a Friday: both edge weeks are
	// partial and must be flagged.
	window := timewindow.Window{
		Start: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),  // Wednesday
		End:   time.Date(2024, 3, 22, 23, 59, 59, 0, time.UTC), // Friday
	}
	series := BuildSeries(nil, Weekly, window)
	require.Len(t, series, 3)
	assert.True(t, series[0].Incomplete)
	assert.False(t, series[1].Incomplete)
	assert.True(t, series[2].Incomplete)

	// Clipping keeps bucket bounds inside the window.
	assert.Equal(t, window.Start, series[0].Start)
	assert.Equal(t, window.End, series[2].End)
}

func TestBuildSeries_MonthlyLabels(t *testing.T) {
	window := timewindow.Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC),
	}
	series := BuildSeries(nil, Monthly, window)
	require.Len(t, series, 2)
	assert.Equal(t, "January 2024", series[0].Label)
	assert.Equal(t, "February 2024", series[1].Label)
}

func TestBuildSeries_InvertedWindow(t *testing.T) {
	window := timewindow.Window{
		Start: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	assert.Nil(t, BuildSeries(nil, Weekly, window))
}
