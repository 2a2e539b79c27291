package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-insights/internal/domain"
)

func TestParseCampaigns(t *testing.T) {
	csvData := "\xef\xbb\xbf" + `Campaign ID,Campaign Name,Subject Line,Send Time,Total Recipients,Revenue,Unique Opens,Unique Clicks,Unsubscribes,Bounces,Spam Complaints,Tags
c-1,January Promo,Big savings inside,2024-01-15 09:30:00,"12,500","$4,231.50",2500,430,12,95,3,promo;weekly
c-2,Newsletter 4,This week at the shop,2024-01-22,8000,0,1600,210,8,40,1,
c-3,Broken Row,No send time,,1000,50,100,10,0,0,0,
`
	records, report, err := ParseCampaigns(strings.NewReader(csvData))
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalRows)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, records, 2)

	c := records[0]
	assert.Equal(t, "c-1", c.ID)
	assert.Equal(t, "January Promo", c.Name)
	assert.Equal(t, "Big savings inside", c.Subject)
	assert.Equal(t, time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC), c.SentAt)
	assert.Equal(t, int64(12500), c.EmailsSent)
	assert.InDelta(t, 4231.50, c.Revenue, 0.001)
	assert.Equal(t, int64(2500), c.UniqueOpens)
	assert.Equal(t, int64(3), c.SpamReports)
	assert.Equal(t, []string{"promo", "weekly"}, c.Tags)

	// Date-only send times parse at midnight UTC.
	assert.Equal(t, time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC), records[1].SentAt)
}

func TestParseCampaigns_MissingRequiredColumns(t *testing.T) {
	_, _, err := ParseCampaigns(strings.NewReader("Name,Revenue\nA,100\n"))
	assert.Error(t, err)

	_, _, err = ParseCampaigns(strings.NewReader("Send Time,Revenue\n2024-01-01,100\n"))
	assert.Error(t, err)
}

func TestParseCampaigns_GeneratesIDWhenAbsent(t *testing.T) {
	csvData := `Campaign Name,Send Time,Recipients
Promo,2024-01-15,1000
`
	records, _, err := ParseCampaigns(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].ID)
}

func TestParseFlowMessages(t *testing.T) {
	csvData := `Flow ID,Flow Name,Message ID,Email Name,Status,Step,Week Of,Delivered,Revenue
f-1,Welcome Series,m-1,Welcome 1,live,0,2024-01-08,5000,1250.00
f-1,Welcome Series,m-2,Welcome 2,Draft,1,2024-01-08,0,0
f-1,Welcome Series,m-3,Welcome 2,live,not-a-number,2024-01-08,100,10
`
	records, report, err := ParseFlowMessages(strings.NewReader(csvData))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, records, 2)

	assert.Equal(t, "f-1", records[0].FlowID)
	assert.Equal(t, 0, records[0].SequencePosition)
	assert.Equal(t, domain.FlowMessageLive, records[0].Status)
	assert.Equal(t, domain.FlowMessageDraft, records[1].Status)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), records[0].SentDate)
}

func TestParseSubscribers(t *testing.T) {
	csvData := `Email,Profile ID,Signup Date,First Active,Accepts Marketing,Consent Date,Total Spent,Order Count,Last Order Date
jane@example.com,p-1,2023-06-01,2023-06-03,yes,,250.75,3,2024-01-10
john@example.com,p-2,2023-07-01,,,2023-07-02,0,0,
no-email-here,p-3,2023-08-01,,,,,0,
`
	records, report, err := ParseSubscribers(strings.NewReader(csvData))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, records, 2)

	jane := records[0]
	assert.Equal(t, "jane@example.com", jane.Email)
	assert.True(t, jane.Consented)
	assert.InDelta(t, 250.75, jane.LifetimeValue, 0.001)
	assert.Equal(t, int64(3), jane.OrderCount)
	require.NotNil(t, jane.FirstActiveAt)
	require.NotNil(t, jane.LastOrderAt)

	// Consent timestamp implies consent even without a flag value.
	john := records[1]
	assert.True(t, john.Consented)
	require.NotNil(t, john.ConsentedAt)
	assert.Nil(t, john.LastOrderAt)
}

func TestMapColumns_NormalizesHeaderVariants(t *testing.T) {
	m := MapColumns([]string{" Sent_At ", "TOTAL-RECIPIENTS", "unknown column"}, campaignAliases, metricAliases)
	assert.Equal(t, 0, m.Index(FieldSentAt))
	assert.Equal(t, 1, m.Index(FieldEmailsSent))
	assert.Equal(t, -1, m.Index(FieldRevenue))
}

func TestCoercion(t *testing.T) {
	assert.Equal(t, int64(1234), parseCount("1,234"))
	assert.Equal(t, int64(1234), parseCount("1234.0"))
	assert.Equal(t, int64(0), parseCount("n/a"))
	assert.InDelta(t, 4231.5, parseMoney("$4,231.50"), 0.0001)
	assert.InDelta(t, 99.0, parseMoney("€ 99"), 0.0001)
	assert.True(t, parseBool("TRUE"))
	assert.True(t, parseBool("opted in"))
	assert.False(t, parseBool("no"))
}

func TestParseTime_Layouts(t *testing.T) {
	for _, s := range []string{
		"2024-03-05T14:30:00Z",
		"2024-03-05 14:30:00",
		"2024-03-05",
		"03/05/2024",
	} {
		got, ok := parseTime(s)
		assert.True(t, ok, "input %q", s)
		assert.Equal(t, 2024, got.Year())
		assert.Equal(t, time.March, got.Month())
	}
	_, ok := parseTime("last tuesday")
	assert.False(t, ok)
}
