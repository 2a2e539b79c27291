package domain

import "time"

// Channel identifies the delivery channel of a campaign.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// CampaignRecord is one sent email campaign as parsed from a platform CSV
// export. Records are immutable once parsed; the analytics core only reads
// them.
type CampaignRecord struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Subject    string    `json:"subject" db:"subject"`
	SentAt     time.Time `json:"sent_at" db:"sent_at"`
	Channel    Channel   `json:"channel" db:"channel"`
	ListID     string    `json:"list_id" db:"list_id"`
	SegmentID  string    `json:"segment_id" db:"segment_id"`
	Tags       []string  `json:"tags" db:"-"`

	EmailsSent   int64   `json:"emails_sent" db:"emails_sent"`
	Revenue      float64 `json:"revenue" db:"revenue"`
	Orders       int64   `json:"orders" db:"orders"`
	UniqueOpens  int64   `json:"unique_opens" db:"unique_opens"`
	UniqueClicks int64   `json:"unique_clicks" db:"unique_clicks"`
	Unsubscribes int64   `json:"unsubscribes" db:"unsubscribes"`
	Bounces      int64   `json:"bounces" db:"bounces"`
	SpamReports  int64   `json:"spam_reports" db:"spam_reports"`
}

// OpenRate returns unique opens per email sent, 0 when nothing was sent.
func (c CampaignRecord) OpenRate() float64 {
	return safeRatio(float64(c.UniqueOpens), float64(c.EmailsSent))
}

// ClickRate returns unique clicks per email sent, 0 when nothing was sent.
func (c CampaignRecord) ClickRate() float64 {
	return safeRatio(float64(c.UniqueClicks), float64(c.EmailsSent))
}

// ClickToOpenRate returns unique clicks per unique open, 0 when no opens.
func (c CampaignRecord) ClickToOpenRate() float64 {
	return safeRatio(float64(c.UniqueClicks), float64(c.UniqueOpens))
}

// RevenuePerEmail returns revenue per email sent, 0 when nothing was sent.
func (c CampaignRecord) RevenuePerEmail() float64 {
	return safeRatio(c.Revenue, float64(c.EmailsSent))
}

// UnsubscribeRate returns unsubscribes per email sent, 0 when nothing was sent.
func (c CampaignRecord) UnsubscribeRate() float64 {
	return safeRatio(float64(c.Unsubscribes), float64(c.EmailsSent))
}

// BounceRate returns bounces per email sent, 0 when nothing was sent.
func (c CampaignRecord) BounceRate() float64 {
	return safeRatio(float64(c.Bounces), float64(c.EmailsSent))
}

// SpamRate returns spam complaints per email sent, 0 when nothing was sent.
func (c CampaignRecord) SpamRate() float64 {
	return safeRatio(float64(c.SpamReports), float64(c.EmailsSent))
}

// AOV returns the average order value, 0 when there are no orders.
func (c CampaignRecord) AOV() float64 {
	return safeRatio(c.Revenue, float64(c.Orders))
}

// safeRatio divides num by den, resolving a zero denominator to 0 rather
// than NaN/Inf.
func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
