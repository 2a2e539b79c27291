// Package timewindow resolves UI date-range selections into concrete window
// boundaries and derives the matching comparison window.
package timewindow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/campaign-insights/internal/analytics"
)

// CompareMode selects how the comparison window relates to the current one.
type CompareMode string

const (
	// ComparePrevPeriod is the window immediately preceding the current one
	// with the same span length (no gap, no overlap).
	ComparePrevPeriod CompareMode = "prev-period"
	// ComparePrevYear is the same calendar window shifted back one year.
	ComparePrevYear CompareMode = "prev-year"
)

// Selection is the raw UI date-range input.
type Selection struct {
	// Range is "{N}d" (e.g. "30d", "90d"), "all", or "custom".
	Range      string
	CustomFrom time.Time // inclusive calendar date, used when Range=="custom"
	CustomTo   time.Time // inclusive calendar date, used when Range=="custom"
	Compare    CompareMode
}

// Window is a resolved inclusive [Start, End] span. Start is at 00:00:00 and
// End at 23:59:59 of their respective calendar days.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the inclusive span length in calendar days.
func (w Window) Days() int {
	return int(startOfDay(w.End).Sub(startOfDay(w.Start)).Hours()/24) + 1
}

// Weeks returns the span length in (fractional) weeks.
func (w Window) Weeks() float64 { return float64(w.Days()) / 7 }

// Months returns the span length in average-length (30.44 day) months.
func (w Window) Months() float64 { return float64(w.Days()) / 30.44 }

// Contains reports whether t falls inside the window (inclusive).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Resolved is the output of Resolve: the current window plus the optional
// comparison window ("all" has none).
type Resolved struct {
	Current Window  `json:"current"`
	Compare *Window `json:"compare,omitempty"`
}

// Resolve turns a selection plus the dataset anchor into concrete window
// boundaries.
//
// Rules:
//   - "Nd": [anchor-(N-1) days @00:00, anchor @23:59:59]
//   - "custom": [CustomFrom @00:00, CustomTo @23:59:59]
//   - "all": [dataset min, dataset max] snapped to day bounds; no comparison
//
// Returns ErrNoData for an empty dataset (zero anchor, or "all" with a zero
// span) and ErrInvalidWindow for inverted custom ranges or unparseable
// tokens.
func Resolve(sel Selection, anchor time.Time, datasetMin, datasetMax time.Time) (Resolved, error) {
	var cur Window

	switch {
	case sel.Range == "all":
		if datasetMin.IsZero() || datasetMax.IsZero() {
			return Resolved{}, analytics.ErrNoData
		}
		cur = Window{Start: startOfDay(datasetMin), End: endOfDay(datasetMax)}
		if cur.End.Before(cur.Start) {
			return Resolved{}, analytics.ErrInvalidWindow
		}
		// No comparison window for "all": there is no prior period left.
		return Resolved{Current: cur}, nil

	case sel.Range == "custom":
		if sel.CustomFrom.IsZero() || sel.CustomTo.IsZero() {
			return Resolved{}, fmt.Errorf("%w: custom range requires from and to", analytics.ErrInvalidWindow)
		}
		cur = Window{Start: startOfDay(sel.CustomFrom), End: endOfDay(sel.CustomTo)}
		if cur.End.Before(cur.Start) {
			return Resolved{}, fmt.Errorf("%w: custom range is inverted", analytics.ErrInvalidWindow)
		}

	default:
		n, err := parseDayToken(sel.Range)
		if err != nil {
			return Resolved{}, err
		}
		if anchor.IsZero() {
			return Resolved{}, analytics.ErrNoData
		}
		end := endOfDay(anchor)
		start := startOfDay(anchor).AddDate(0, 0, -(n - 1))
		cur = Window{Start: start, End: end}
	}

	res := Resolved{Current: cur}
	cmp := comparisonWindow(cur, sel.Compare)
	res.Compare = &cmp
	return res, nil
}

// comparisonWindow derives the prior window for the given mode. The default
// mode is prev-period.
func comparisonWindow(cur Window, mode CompareMode) Window {
	if mode == ComparePrevYear {
		return Window{
			Start: startOfDay(shiftYearBack(cur.Start)),
			End:   endOfDay(shiftYearBack(cur.End)),
		}
	}
	days := cur.Days()
	prevEndDay := startOfDay(cur.Start).AddDate(0, 0, -1)
	prevStartDay := prevEndDay.AddDate(0, 0, -(days - 1))
	return Window{Start: prevStartDay, End: endOfDay(prevEndDay)}
}

// shiftYearBack moves a date back exactly one year. Feb 29 shifted into a
// non-leap year lands on Feb 28 (never Mar 1), so a comparison window can
// never start in a different month than the current one.
func shiftYearBack(t time.Time) time.Time {
	if t.Month() == time.February && t.Day() == 29 {
		return time.Date(t.Year()-1, time.February, 28, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	}
	return time.Date(t.Year()-1, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// parseDayToken parses "{N}d" into N.
func parseDayToken(token string) (int, error) {
	if !strings.HasSuffix(token, "d") {
		return 0, fmt.Errorf("%w: unknown range token %q", analytics.ErrInvalidWindow, token)
	}
	n, err := strconv.Atoi(strings.TrimSuffix(token, "d"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: unknown range token %q", analytics.ErrInvalidWindow, token)
	}
	return n, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// StartOfDay exposes day-floor snapping for other packages.
func StartOfDay(t time.Time) time.Time { return startOfDay(t) }

// EndOfDay exposes day-ceiling snapping for other packages.
func EndOfDay(t time.Time) time.Time { return endOfDay(t) }
