package ingest

import "strings"

// Field is a normalized column name used across all export sources.
type Field string

const (
	// Shared performance metrics.
	FieldEmailsSent   Field = "emails_sent"
	FieldRevenue      Field = "revenue"
	FieldOrders       Field = "orders"
	FieldUniqueOpens  Field = "unique_opens"
	FieldUniqueClicks Field = "unique_clicks"
	FieldUnsubscribes Field = "unsubscribes"
	FieldBounces      Field = "bounces"
	FieldSpamReports  Field = "spam_reports"

	// Campaign exports.
	FieldCampaignID   Field = "campaign_id"
	FieldCampaignName Field = "campaign_name"
	FieldSubject      Field = "subject"
	FieldSentAt       Field = "sent_at"
	FieldChannel      Field = "channel"
	FieldListID       Field = "list_id"
	FieldSegmentID    Field = "segment_id"
	FieldTags         Field = "tags"

	// Flow exports.
	FieldFlowID           Field = "flow_id"
	FieldFlowName         Field = "flow_name"
	FieldFlowMessageID    Field = "flow_message_id"
	FieldEmailName        Field = "email_name"
	FieldStatus           Field = "status"
	FieldSequencePosition Field = "sequence_position"
	FieldSentDate         Field = "sent_date"

	// Subscriber exports.
	FieldEmail         Field = "email"
	FieldSubscriberID  Field = "subscriber_id"
	FieldCreatedAt     Field = "created_at"
	FieldFirstActiveAt Field = "first_active_at"
	FieldConsented     Field = "consented"
	FieldConsentedAt   Field = "consented_at"
	FieldLifetimeValue Field = "lifetime_value"
	FieldOrderCount    Field = "order_count"
	FieldLastOrderAt   Field = "last_order_at"
)

// metricAliases are shared by campaign and flow exports.
var metricAliases = map[string]Field{
	"emails sent":      FieldEmailsSent,
	"total recipients": FieldEmailsSent,
	"recipients":       FieldEmailsSent,
	"sends":            FieldEmailsSent,
	"delivered":        FieldEmailsSent,

	"revenue":          FieldRevenue,
	"conversion value": FieldRevenue,
	"total revenue":    FieldRevenue,

	"orders":            FieldOrders,
	"total orders":      FieldOrders,
	"conversions":       FieldOrders,
	"placed order":      FieldOrders,
	"unique placed order": FieldOrders,

	"unique opens": FieldUniqueOpens,
	"opens":        FieldUniqueOpens,
	"opened":       FieldUniqueOpens,

	"unique clicks": FieldUniqueClicks,
	"clicks":        FieldUniqueClicks,
	"clicked":       FieldUniqueClicks,

	"unsubscribes": FieldUnsubscribes,
	"unsubs":       FieldUnsubscribes,
	"unsubscribed": FieldUnsubscribes,

	"bounces": FieldBounces,
	"bounced": FieldBounces,

	"spam reports":    FieldSpamReports,
	"spam complaints": FieldSpamReports,
	"abuse reports":   FieldSpamReports,
	"complaints":      FieldSpamReports,
}

var campaignAliases = map[string]Field{
	"campaign id": FieldCampaignID,
	"id":          FieldCampaignID,

	"campaign name": FieldCampaignName,
	"name":          FieldCampaignName,
	"campaign":      FieldCampaignName,

	"subject":      FieldSubject,
	"subject line": FieldSubject,

	"sent at":   FieldSentAt,
	"send time": FieldSentAt,
	"send date": FieldSentAt,
	"sent time": FieldSentAt,
	"date sent": FieldSentAt,

	"channel": FieldChannel,
	"medium":  FieldChannel,

	"list":    FieldListID,
	"list id": FieldListID,

	"segment":    FieldSegmentID,
	"segment id": FieldSegmentID,

	"tags":   FieldTags,
	"labels": FieldTags,
}

var flowAliases = map[string]Field{
	"flow id":   FieldFlowID,
	"flow name": FieldFlowName,
	"flow":      FieldFlowName,

	"flow message id": FieldFlowMessageID,
	"message id":      FieldFlowMessageID,

	"email name":   FieldEmailName,
	"message name": FieldEmailName,

	"status":         FieldStatus,
	"message status": FieldStatus,

	"sequence position": FieldSequencePosition,
	"position":          FieldSequencePosition,
	"step":              FieldSequencePosition,
	"step number":       FieldSequencePosition,

	"sent date": FieldSentDate,
	"week of":   FieldSentDate,
	"date":      FieldSentDate,

	"subject":      FieldSubject,
	"subject line": FieldSubject,
}

var subscriberAliases = map[string]Field{
	"email":         FieldEmail,
	"email address": FieldEmail,
	"e mail":        FieldEmail, // headers are normalized before lookup; "e-mail" lands here

	"id":            FieldSubscriberID,
	"profile id":    FieldSubscriberID,
	"subscriber id": FieldSubscriberID,

	"created":     FieldCreatedAt,
	"created at":  FieldCreatedAt,
	"signup date": FieldCreatedAt,
	"date added":  FieldCreatedAt,

	"first active":    FieldFirstActiveAt,
	"first active at": FieldFirstActiveAt,
	"first activity":  FieldFirstActiveAt,

	"consented":         FieldConsented,
	"consent":           FieldConsented,
	"accepts marketing": FieldConsented,
	"email marketing consent": FieldConsented,

	"consented at": FieldConsentedAt,
	"consent date": FieldConsentedAt,

	"lifetime value": FieldLifetimeValue,
	"ltv":            FieldLifetimeValue,
	"total spent":    FieldLifetimeValue,
	"clv":            FieldLifetimeValue,

	"orders":      FieldOrderCount,
	"order count": FieldOrderCount,
	"total orders": FieldOrderCount,

	"last order":      FieldLastOrderAt,
	"last order date": FieldLastOrderAt,
	"last order at":   FieldLastOrderAt,
}

// Mapping resolves canonical fields to CSV column indices.
type Mapping map[Field]int

// Index returns the column index of a field, or -1 when absent.
func (m Mapping) Index(f Field) int {
	if i, ok := m[f]; ok {
		return i
	}
	return -1
}

// MapColumns resolves a CSV header against one or more alias maps. When the
// same header appears twice, the first occurrence wins. Headers that match no
// alias are ignored; unknown columns are common in platform exports.
func MapColumns(header []string, aliasMaps ...map[string]Field) Mapping {
	m := Mapping{}
	for i, h := range header {
		key := normalizeHeader(h)
		for _, aliases := range aliasMaps {
			if field, ok := aliases[key]; ok {
				if _, taken := m[field]; !taken {
					m[field] = i
				}
				break
			}
		}
	}
	return m
}

// normalizeHeader lowercases a header and squashes underscore/dash/space
// variants so "Sent_At", "sent-at" and " Sent At " all resolve alike.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.Trim(h, "\"'")
	h = strings.ReplaceAll(h, "_", " ")
	h = strings.ReplaceAll(h, "-", " ")
	return strings.Join(strings.Fields(h), " ")
}
