package timewindow

import (
	"testing"
	"time"

	"github.com/ignite/campaign-insights/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolve_30dAnchored(t *testing.T) {
	anchor := time.Date(2024, 3, 31, 14, 30, 0, 0, time.UTC)
	res, err := Resolve(Selection{Range: "30d", Compare: ComparePrevPeriod}, anchor, time.Time{}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, date(2024, 3, 2), res.Current.Start)
	assert.Equal(t, time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC), res.Current.End)
	assert.Equal(t, 30, res.Current.Days())

	require.NotNil(t, res.Compare)
	assert.Equal(t, date(2024, 2, 1), res.Compare.Start)
	assert.Equal(t, time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC), res.Compare.End)
	assert.Equal(t, 30, res.Compare.Days())
	// No overlap: comparison ends strictly before the current window starts.
	assert.True(t, res.Compare.End.Before(res.Current.Start))
}

func TestResolve_Custom(t *testing.T) {
	res, err := Resolve(Selection{
		Range:      "custom",
		CustomFrom: date(2024, 1, 10),
		CustomTo:   date(2024, 1, 19),
	}, time.Time{}, time.Time{}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 10, res.Current.Days())
	require.NotNil(t, res.Compare)
	assert.Equal(t, 10, res.Compare.Days())
	assert.Equal(t, date(2023, 12, 31), res.Compare.Start)
}

func TestResolve_CustomInverted(t *testing.T) {
	_, err := Resolve(Selection{
		Range:      "custom",
		CustomFrom: date(2024, 2, 1),
		CustomTo:   date(2024, 1, 1),
	}, time.Time{}, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, analytics.ErrInvalidWindow)
}

func TestResolve_All(t *testing.T) {
	res, err := Resolve(Selection{Range: "all"}, time.Time{}, date(2023, 5, 1), date(2024, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, date(2023, 5, 1), res.Current.Start)
	assert.Nil(t, res.Compare)
}

func TestResolve_AllEmptyDataset(t *testing.T) {
	_, err := Resolve(Selection{Range: "all"}, time.Time{}, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, analytics.ErrNoData)
}

func TestResolve_EmptyAnchor(t *testing.T) {
	_, err := Resolve(Selection{Range: "30d"}, time.Time{}, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, analytics.ErrNoData)
}

func TestResolve_BadToken(t *testing.T) {
	for _, token := range []string{"", "monthly", "0d", "-5d", "xd"} {
		_, err := Resolve(Selection{Range: token}, date(2024, 1, 1), time.Time{}, time.Time{})
		assert.ErrorIs(t, err, analytics.ErrInvalidWindow, "token %q", token)
	}
}

func TestResolve_PrevYear(t *testing.T) {
	res, err := Resolve(Selection{
		Range:      "custom",
		CustomFrom: date(2024, 3, 1),
		CustomTo:   date(2024, 3, 30),
		Compare:    ComparePrevYear,
	}, time.Time{}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.NotNil(t, res.Compare)
	assert.Equal(t, date(2023, 3, 1), res.Compare.Start)
	assert.Equal(t, 30, res.Compare.Days())
}

func TestResolve_PrevYearFeb29FallsBackToFeb28(t *testing.T) {
	// 2024-02-29 shifted to 2023 (non-leap) must land on Feb 28, not Mar 1.
	res, err := Resolve(Selection{
		Range:      "custom",
		CustomFrom: date(2024, 2, 29),
		CustomTo:   date(2024, 3, 5),
		Compare:    ComparePrevYear,
	}, time.Time{}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.NotNil(t, res.Compare)
	assert.Equal(t, date(2023, 2, 28), res.Compare.Start)
}

func TestWindow_SpanHelpers(t *testing.T) {
	w := Window{Start: date(2024, 1, 1), End: time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)}
	assert.Equal(t, 91, w.Days())
	assert.InDelta(t, 13.0, w.Weeks(), 0.01)
	assert.True(t, w.Contains(date(2024, 2, 15)))
	assert.False(t, w.Contains(date(2024, 4, 1)))
}
