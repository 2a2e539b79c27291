// Package periods groups time-stamped records into calendar buckets (day,
// Monday-anchored week, month), producing ordered series that cover a window
// completely — zero-record buckets included, so downstream gap detection can
// see silent periods.
package periods

import (
	"fmt"
	"time"

	"github.com/ignite/campaign-insights/internal/analytics/timewindow"
	"github.com/ignite/campaign-insights/internal/domain"
)

// Granularity selects the calendar unit for a bucket series.
type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// Bucket is one calendar unit of a series. Start/End are clipped to the
// window; buckets whose calendar unit extends past the window are marked
// Incomplete so comparisons can exclude or flag them.
type Bucket struct {
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	Label      string        `json:"label"`
	Incomplete bool          `json:"incomplete"`
	Totals     domain.Totals `json:"totals"`
}

// IsZeroSend reports whether no campaign fell into the bucket.
func (b Bucket) IsZeroSend() bool { return b.Totals.Campaigns == 0 }

// WeekStart snaps t to the Monday 00:00 of its week.
func WeekStart(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started the prior Monday
	}
	return time.Date(t.Year(), t.Month(), t.Day()-(weekday-1), 0, 0, 0, 0, t.Location())
}

// unitStart snaps t to the start of its calendar unit.
func unitStart(t time.Time, g Granularity) time.Time {
	switch g {
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case Weekly:
		return WeekStart(t)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

// nextUnit advances a unit start to the following unit.
func nextUnit(t time.Time, g Granularity) time.Time {
	switch g {
	case Monthly:
		return t.AddDate(0, 1, 0)
	case Weekly:
		return t.AddDate(0, 0, 7)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// BuildSeries produces the ordered bucket series covering the window at the
// given granularity. Every calendar unit intersecting the window appears
// exactly once, and every in-window campaign lands in exactly one bucket.
func BuildSeries(campaigns []domain.CampaignRecord, g Granularity, window timewindow.Window) []Bucket {
	if window.End.Before(window.Start) {
		return nil
	}

	// Lay out the empty calendar grid first.
	var buckets []Bucket
	index := make(map[time.Time]int)
	for us := unitStart(window.Start, g); !us.After(window.End); us = nextUnit(us, g) {
		ue := nextUnit(us, g).Add(-time.Second)
		b := Bucket{Start: us, End: ue}
		incomplete := false
		if b.Start.Before(window.Start) {
			b.Start = window.Start
			incomplete = true
		}
		if b.End.After(window.End) {
			b.End = window.End
			incomplete = true
		}
		b.Incomplete = incomplete
		b.Label = label(us, ue, g)
		index[us] = len(buckets)
		buckets = append(buckets, b)
	}

	// Single pass assignment via the unit-start key.
	for _, c := range campaigns {
		if !window.Contains(c.SentAt) {
			continue
		}
		i, ok := index[unitStart(c.SentAt, g)]
		if !ok {
			continue
		}
		buckets[i].Totals.AddCampaign(c)
	}

	return buckets
}

func label(us, ue time.Time, g Granularity) string {
	switch g {
	case Monthly:
		return us.Format("January 2006")
	case Weekly:
		end := ue
		if us.Month() == end.Month() {
			return fmt.Sprintf("%s – %s, %d", us.Format("Jan 2"), end.Format("2"), us.Year())
		}
		return fmt.Sprintf("%s – %s, %d", us.Format("Jan 2"), end.Format("Jan 2"), end.Year())
	default:
		return us.Format("Jan 2, 2006")
	}
}
