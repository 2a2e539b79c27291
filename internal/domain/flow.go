package domain

import "time"

// FlowMessageStatus enumerates the lifecycle states of an automation message.
type FlowMessageStatus string

const (
	FlowMessageLive  FlowMessageStatus = "live"
	FlowMessageDraft FlowMessageStatus = "draft"
)

// FlowMessageRecord is one message within an automation flow, keyed by
// (FlowID, FlowMessageID, SequencePosition, sent-date bucket). A flow is the
// set of all messages sharing FlowID; ordering is defined by
// SequencePosition, not arrival order. Duplicate email names at the same
// position can occur in A/B-tested steps and must be flagged by consumers,
// never silently merged.
type FlowMessageRecord struct {
	FlowID           string            `json:"flow_id" db:"flow_id"`
	FlowName         string            `json:"flow_name" db:"flow_name"`
	FlowMessageID    string            `json:"flow_message_id" db:"flow_message_id"`
	EmailName        string            `json:"email_name" db:"email_name"`
	Subject          string            `json:"subject" db:"subject"`
	Status           FlowMessageStatus `json:"status" db:"status"`
	SequencePosition int               `json:"sequence_position" db:"sequence_position"`
	SentDate         time.Time         `json:"sent_date" db:"sent_date"`

	EmailsSent   int64   `json:"emails_sent" db:"emails_sent"`
	Revenue      float64 `json:"revenue" db:"revenue"`
	Orders       int64   `json:"orders" db:"orders"`
	UniqueOpens  int64   `json:"unique_opens" db:"unique_opens"`
	UniqueClicks int64   `json:"unique_clicks" db:"unique_clicks"`
	Unsubscribes int64   `json:"unsubscribes" db:"unsubscribes"`
	Bounces      int64   `json:"bounces" db:"bounces"`
	SpamReports  int64   `json:"spam_reports" db:"spam_reports"`
}

// RevenuePerEmail returns revenue per email sent, 0 when nothing was sent.
func (m FlowMessageRecord) RevenuePerEmail() float64 {
	return safeRatio(m.Revenue, float64(m.EmailsSent))
}

// SpamRate returns spam complaints per email sent, 0 when nothing was sent.
func (m FlowMessageRecord) SpamRate() float64 {
	return safeRatio(float64(m.SpamReports), float64(m.EmailsSent))
}

// UnsubscribeRate returns unsubscribes per email sent, 0 when nothing was sent.
func (m FlowMessageRecord) UnsubscribeRate() float64 {
	return safeRatio(float64(m.Unsubscribes), float64(m.EmailsSent))
}

// BounceRate returns bounces per email sent, 0 when nothing was sent.
func (m FlowMessageRecord) BounceRate() float64 {
	return safeRatio(float64(m.Bounces), float64(m.EmailsSent))
}
