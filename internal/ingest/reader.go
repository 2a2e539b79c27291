// Package ingest parses campaign, flow, and subscriber CSV exports into
// domain records. Exports from different platforms disagree on header names,
// date formats, and number formatting; everything here exists to absorb those
// differences once so the analytics core never sees them.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-insights/internal/domain"
)

// Report summarizes one parse pass.
type Report struct {
	TotalRows int      `json:"total_rows"`
	Imported  int      `json:"imported"`
	Skipped   int      `json:"skipped"`
	Warnings  []string `json:"warnings,omitempty"`
}

const maxWarnings = 20

func (r *Report) skip(row int, reason string) {
	r.Skipped++
	if len(r.Warnings) < maxWarnings {
		r.Warnings = append(r.Warnings, fmt.Sprintf("row %d: %s", row, reason))
	}
}

// ParseCampaigns reads a campaign export. Rows without a parseable send
// timestamp are skipped, never guessed.
func ParseCampaigns(r io.Reader) ([]domain.CampaignRecord, *Report, error) {
	header, rows, err := readAll(r)
	if err != nil {
		return nil, nil, err
	}
	mapping := MapColumns(header, campaignAliases, metricAliases)
	if mapping.Index(FieldSentAt) < 0 {
		return nil, nil, fmt.Errorf("ingest: no send-time column in header %v", header)
	}
	if mapping.Index(FieldEmailsSent) < 0 {
		return nil, nil, fmt.Errorf("ingest: no recipients column in header %v", header)
	}

	report := &Report{}
	out := make([]domain.CampaignRecord, 0, len(rows))
	for i, row := range rows {
		report.TotalRows++
		sentAt, ok := parseTime(cell(row, mapping, FieldSentAt))
		if !ok {
			report.skip(i+2, "unparseable send time")
			continue
		}
		c := domain.CampaignRecord{
			ID:        cell(row, mapping, FieldCampaignID),
			Name:      cell(row, mapping, FieldCampaignName),
			Subject:   cell(row, mapping, FieldSubject),
			SentAt:    sentAt,
			Channel:   domain.Channel(cell(row, mapping, FieldChannel)),
			ListID:    cell(row, mapping, FieldListID),
			SegmentID: cell(row, mapping, FieldSegmentID),
			Tags:      splitTags(cell(row, mapping, FieldTags)),

			EmailsSent:   parseCount(cell(row, mapping, FieldEmailsSent)),
			Revenue:      parseMoney(cell(row, mapping, FieldRevenue)),
			Orders:       parseCount(cell(row, mapping, FieldOrders)),
			UniqueOpens:  parseCount(cell(row, mapping, FieldUniqueOpens)),
			UniqueClicks: parseCount(cell(row, mapping, FieldUniqueClicks)),
			Unsubscribes: parseCount(cell(row, mapping, FieldUnsubscribes)),
			Bounces:      parseCount(cell(row, mapping, FieldBounces)),
			SpamReports:  parseCount(cell(row, mapping, FieldSpamReports)),
		}
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		out = append(out, c)
		report.Imported++
	}
	return out, report, nil
}

// ParseFlowMessages reads a flow export.
func ParseFlowMessages(r io.Reader) ([]domain.FlowMessageRecord, *Report, error) {
	header, rows, err := readAll(r)
	if err != nil {
		return nil, nil, err
	}
	mapping := MapColumns(header, flowAliases, metricAliases)
	for _, required := range []Field{FieldFlowID, FieldSequencePosition, FieldSentDate} {
		if mapping.Index(required) < 0 {
			return nil, nil, fmt.Errorf("ingest: no %s column in header %v", required, header)
		}
	}

	report := &Report{}
	out := make([]domain.FlowMessageRecord, 0, len(rows))
	for i, row := range rows {
		report.TotalRows++
		sentDate, ok := parseTime(cell(row, mapping, FieldSentDate))
		if !ok {
			report.skip(i+2, "unparseable sent date")
			continue
		}
		pos, err := strconv.Atoi(strings.TrimSpace(cell(row, mapping, FieldSequencePosition)))
		if err != nil {
			report.skip(i+2, "unparseable sequence position")
			continue
		}
		m := domain.FlowMessageRecord{
			FlowID:           cell(row, mapping, FieldFlowID),
			FlowName:         cell(row, mapping, FieldFlowName),
			FlowMessageID:    cell(row, mapping, FieldFlowMessageID),
			EmailName:        cell(row, mapping, FieldEmailName),
			Subject:          cell(row, mapping, FieldSubject),
			Status:           parseStatus(cell(row, mapping, FieldStatus)),
			SequencePosition: pos,
			SentDate:         sentDate,

			EmailsSent:   parseCount(cell(row, mapping, FieldEmailsSent)),
			Revenue:      parseMoney(cell(row, mapping, FieldRevenue)),
			Orders:       parseCount(cell(row, mapping, FieldOrders)),
			UniqueOpens:  parseCount(cell(row, mapping, FieldUniqueOpens)),
			UniqueClicks: parseCount(cell(row, mapping, FieldUniqueClicks)),
			Unsubscribes: parseCount(cell(row, mapping, FieldUnsubscribes)),
			Bounces:      parseCount(cell(row, mapping, FieldBounces)),
			SpamReports:  parseCount(cell(row, mapping, FieldSpamReports)),
		}
		if m.FlowMessageID == "" {
			m.FlowMessageID = uuid.New().String()
		}
		out = append(out, m)
		report.Imported++
	}
	return out, report, nil
}

// ParseSubscribers reads a subscriber export. Rows without an email are
// skipped.
func ParseSubscribers(r io.Reader) ([]domain.SubscriberRecord, *Report, error) {
	header, rows, err := readAll(r)
	if err != nil {
		return nil, nil, err
	}
	mapping := MapColumns(header, subscriberAliases)
	if mapping.Index(FieldEmail) < 0 {
		return nil, nil, fmt.Errorf("ingest: no email column in header %v", header)
	}

	report := &Report{}
	out := make([]domain.SubscriberRecord, 0, len(rows))
	for i, row := range rows {
		report.TotalRows++
		email := strings.TrimSpace(cell(row, mapping, FieldEmail))
		if email == "" || !strings.Contains(email, "@") {
			report.skip(i+2, "missing or malformed email")
			continue
		}
		s := domain.SubscriberRecord{
			ID:            cell(row, mapping, FieldSubscriberID),
			Email:         email,
			LifetimeValue: parseMoney(cell(row, mapping, FieldLifetimeValue)),
			OrderCount:    parseCount(cell(row, mapping, FieldOrderCount)),
		}
		if t, ok := parseTime(cell(row, mapping, FieldCreatedAt)); ok {
			s.CreatedAt = t
		}
		if t, ok := parseTime(cell(row, mapping, FieldFirstActiveAt)); ok {
			s.FirstActiveAt = &t
		}
		if t, ok := parseTime(cell(row, mapping, FieldConsentedAt)); ok {
			s.ConsentedAt = &t
		}
		if t, ok := parseTime(cell(row, mapping, FieldLastOrderAt)); ok {
			s.LastOrderAt = &t
		}
		// A consent timestamp implies consent even when the flag column is
		// missing.
		s.Consented = parseBool(cell(row, mapping, FieldConsented)) || s.ConsentedAt != nil
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		out = append(out, s)
		report.Imported++
	}
	return out, report, nil
}

// readAll consumes the CSV stream: header first, then every data row. Ragged
// rows are tolerated; missing cells read as empty.
func readAll(r io.Reader) (header []string, rows [][]string, err error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err = reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, fmt.Errorf("ingest: empty file")
		}
		return nil, nil, fmt.Errorf("ingest: read header: %w", err)
	}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("ingest: read row: %w", err)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := r.Read(buf)
	if err != nil || n < 3 {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}

func cell(row []string, m Mapping, f Field) string {
	idx := m.Index(f)
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// timeLayouts covers the formats seen across platform exports, most specific
// first.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseCount reads an integer, tolerating thousands separators and float
// formatting ("1,234", "1234.0"). Unparseable values read as 0.
func parseCount(s string) int64 {
	s = cleanNumber(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

// parseMoney reads a currency amount, tolerating symbols and separators.
func parseMoney(s string) float64 {
	s = cleanNumber(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	for _, cut := range []string{"$", "€", "£", ",", " "} {
		s = strings.ReplaceAll(s, cut, "")
	}
	return s
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "t", "subscribed", "opted_in", "opted in":
		return true
	default:
		return false
	}
}

func parseStatus(s string) domain.FlowMessageStatus {
	if strings.EqualFold(strings.TrimSpace(s), string(domain.FlowMessageDraft)) {
		return domain.FlowMessageDraft
	}
	return domain.FlowMessageLive
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	if len(parts) == 1 {
		parts = strings.Split(s, "|")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
