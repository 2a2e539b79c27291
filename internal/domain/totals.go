package domain

// Totals accumulates the raw performance sums shared by campaign and flow
// records. Derived ratios are computed on demand so a Totals is always
// consistent with the records added to it.
type Totals struct {
	Campaigns    int     `json:"campaigns"`
	EmailsSent   int64   `json:"emails_sent"`
	Revenue      float64 `json:"revenue"`
	Orders       int64   `json:"orders"`
	UniqueOpens  int64   `json:"unique_opens"`
	UniqueClicks int64   `json:"unique_clicks"`
	Unsubscribes int64   `json:"unsubscribes"`
	Bounces      int64   `json:"bounces"`
	SpamReports  int64   `json:"spam_reports"`
}

// AddCampaign accumulates one campaign record.
func (t *Totals) AddCampaign(c CampaignRecord) {
	t.Campaigns++
	t.EmailsSent += c.EmailsSent
	t.Revenue += c.Revenue
	t.Orders += c.Orders
	t.UniqueOpens += c.UniqueOpens
	t.UniqueClicks += c.UniqueClicks
	t.Unsubscribes += c.Unsubscribes
	t.Bounces += c.Bounces
	t.SpamReports += c.SpamReports
}

// AddFlowMessage accumulates one flow message record.
func (t *Totals) AddFlowMessage(m FlowMessageRecord) {
	t.Campaigns++
	t.EmailsSent += m.EmailsSent
	t.Revenue += m.Revenue
	t.Orders += m.Orders
	t.UniqueOpens += m.UniqueOpens
	t.UniqueClicks += m.UniqueClicks
	t.Unsubscribes += m.Unsubscribes
	t.Bounces += m.Bounces
	t.SpamReports += m.SpamReports
}

// Merge adds another Totals into this one.
func (t *Totals) Merge(o Totals) {
	t.Campaigns += o.Campaigns
	t.EmailsSent += o.EmailsSent
	t.Revenue += o.Revenue
	t.Orders += o.Orders
	t.UniqueOpens += o.UniqueOpens
	t.UniqueClicks += o.UniqueClicks
	t.Unsubscribes += o.Unsubscribes
	t.Bounces += o.Bounces
	t.SpamReports += o.SpamReports
}

// OpenRate returns unique opens per email sent, 0 when nothing was sent.
func (t Totals) OpenRate() float64 {
	return safeRatio(float64(t.UniqueOpens), float64(t.EmailsSent))
}

// ClickRate returns unique clicks per email sent, 0 when nothing was sent.
func (t Totals) ClickRate() float64 {
	return safeRatio(float64(t.UniqueClicks), float64(t.EmailsSent))
}

// ClickToOpenRate returns unique clicks per unique open, 0 when no opens.
func (t Totals) ClickToOpenRate() float64 {
	return safeRatio(float64(t.UniqueClicks), float64(t.UniqueOpens))
}

// RevenuePerEmail returns revenue per email sent, 0 when nothing was sent.
func (t Totals) RevenuePerEmail() float64 {
	return safeRatio(t.Revenue, float64(t.EmailsSent))
}

// UnsubscribeRate returns unsubscribes per email sent, 0 when nothing was sent.
func (t Totals) UnsubscribeRate() float64 {
	return safeRatio(float64(t.Unsubscribes), float64(t.EmailsSent))
}

// BounceRate returns bounces per email sent, 0 when nothing was sent.
func (t Totals) BounceRate() float64 {
	return safeRatio(float64(t.Bounces), float64(t.EmailsSent))
}

// SpamRate returns spam complaints per email sent, 0 when nothing was sent.
func (t Totals) SpamRate() float64 {
	return safeRatio(float64(t.SpamReports), float64(t.EmailsSent))
}

// AOV returns the average order value, 0 when there are no orders.
func (t Totals) AOV() float64 {
	return safeRatio(t.Revenue, float64(t.Orders))
}

// RevenuePerCampaign returns average revenue per campaign, 0 when empty.
func (t Totals) RevenuePerCampaign() float64 {
	return safeRatio(t.Revenue, float64(t.Campaigns))
}
