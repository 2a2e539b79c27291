package analytics

import (
	"fmt"
	"time"

	"github.com/ignite/campaign-insights/internal/domain"
)

// DataContext is an explicit, caller-constructed snapshot of one dataset.
// It replaces the implicit global data manager of the original dashboard:
// every analyzer call receives a context, so tests and multi-tenant callers
// can hold independent snapshots side by side.
//
// The contents are treated as immutable; rebuild a new context (with a
// bumped generation) instead of mutating slices in place.
type DataContext struct {
	DatasetID   string
	Generation  uint64
	Campaigns   []domain.CampaignRecord
	Flows       []domain.FlowMessageRecord
	Subscribers []domain.SubscriberRecord

	// AsOf anchors relative windows ("30d"). Zero means derive it from the
	// latest record timestamp.
	AsOf time.Time
}

// NewDataContext builds a snapshot over the given records. AsOf defaults to
// the latest campaign/flow timestamp when left zero.
func NewDataContext(datasetID string, generation uint64, campaigns []domain.CampaignRecord, flows []domain.FlowMessageRecord, subscribers []domain.SubscriberRecord) *DataContext {
	return &DataContext{
		DatasetID:   datasetID,
		Generation:  generation,
		Campaigns:   campaigns,
		Flows:       flows,
		Subscribers: subscribers,
	}
}

// Anchor returns the reference "as of" date: AsOf when set, otherwise the
// latest campaign or flow timestamp. ok is false for an empty dataset.
func (dc *DataContext) Anchor() (time.Time, bool) {
	if !dc.AsOf.IsZero() {
		return dc.AsOf, true
	}
	var latest time.Time
	for _, c := range dc.Campaigns {
		if c.SentAt.After(latest) {
			latest = c.SentAt
		}
	}
	for _, m := range dc.Flows {
		if m.SentDate.After(latest) {
			latest = m.SentDate
		}
	}
	if latest.IsZero() {
		return time.Time{}, false
	}
	return latest, true
}

// CampaignSpan returns the earliest and latest campaign timestamps; ok is
// false when there are no campaigns.
func (dc *DataContext) CampaignSpan() (min, max time.Time, ok bool) {
	for _, c := range dc.Campaigns {
		if min.IsZero() || c.SentAt.Before(min) {
			min = c.SentAt
		}
		if c.SentAt.After(max) {
			max = c.SentAt
		}
	}
	return min, max, !min.IsZero()
}

// CampaignsBetween returns campaigns with start <= SentAt <= end, preserving
// input order.
func (dc *DataContext) CampaignsBetween(start, end time.Time) []domain.CampaignRecord {
	out := make([]domain.CampaignRecord, 0, len(dc.Campaigns))
	for _, c := range dc.Campaigns {
		if !c.SentAt.Before(start) && !c.SentAt.After(end) {
			out = append(out, c)
		}
	}
	return out
}

// FlowMessagesBetween returns flow messages for one flow with
// start <= SentDate <= end, preserving input order.
func (dc *DataContext) FlowMessagesBetween(flowID string, start, end time.Time) []domain.FlowMessageRecord {
	out := make([]domain.FlowMessageRecord, 0)
	for _, m := range dc.Flows {
		if m.FlowID != flowID {
			continue
		}
		if !m.SentDate.Before(start) && !m.SentDate.After(end) {
			out = append(out, m)
		}
	}
	return out
}

// CacheKey derives a memoization key component for this snapshot. The
// generation counter replaces the original dashboard's event-driven cache
// invalidation: bumping it invalidates every derived result at once.
func (dc *DataContext) CacheKey() string {
	return fmt.Sprintf("%s:g%d", dc.DatasetID, dc.Generation)
}
