package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-insights/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestGeneration_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT generation FROM datasets").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"generation"}))

	_, err := store.Generation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceCampaigns_BumpsGeneration(t *testing.T) {
	store, mock := newMockStore(t)
	sentAt := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM campaigns").
		WithArgs("ds-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO campaigns").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO datasets").
		WithArgs("ds-1").
		WillReturnRows(sqlmock.NewRows([]string{"generation"}).AddRow(4))
	mock.ExpectCommit()

	gen, err := store.ReplaceCampaigns(context.Background(), "ds-1", []domain.CampaignRecord{
		{ID: "c-1", Name: "Promo", SentAt: sentAt, EmailsSent: 1000, Revenue: 250},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), gen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceCampaigns_RollsBackOnInsertError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM campaigns").
		WithArgs("ds-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO campaigns").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := store.ReplaceCampaigns(context.Background(), "ds-1", []domain.CampaignRecord{
		{ID: "c-1", SentAt: time.Now()},
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadCampaigns(t *testing.T) {
	store, mock := newMockStore(t)
	sentAt := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "name", "subject", "sent_at", "channel", "list_id", "segment_id", "tags",
		"emails_sent", "revenue", "orders", "unique_opens", "unique_clicks", "unsubscribes", "bounces", "spam_reports",
	}).AddRow("c-1", "Promo", "Big savings", sentAt, "email", "l-1", "", "{promo,weekly}",
		12500, 4231.5, 120, 2500, 430, 12, 95, 3)

	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WithArgs("ds-1").
		WillReturnRows(rows)

	out, err := store.LoadCampaigns(context.Background(), "ds-1")
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0]
	assert.Equal(t, "c-1", c.ID)
	assert.Equal(t, sentAt, c.SentAt)
	assert.Equal(t, int64(12500), c.EmailsSent)
	assert.InDelta(t, 4231.5, c.Revenue, 0.001)
	assert.Equal(t, []string{"promo", "weekly"}, []string(c.Tags))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSubscribers_NullTimes(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{
		"id", "email", "created_at", "first_active_at", "consented", "consented_at",
		"lifetime_value", "order_count", "last_order_at",
	}).AddRow("s-1", "jane@example.com", nil, nil, true, nil, 250.75, 3, nil)

	mock.ExpectQuery("SELECT (.+) FROM subscribers").
		WithArgs("ds-1").
		WillReturnRows(rows)

	out, err := store.LoadSubscribers(context.Background(), "ds-1")
	require.NoError(t, err)
	require.Len(t, out, 1)

	s := out[0]
	assert.True(t, s.CreatedAt.IsZero())
	assert.Nil(t, s.FirstActiveAt)
	assert.Nil(t, s.LastOrderAt)
	assert.True(t, s.Consented)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadContext(t *testing.T) {
	store, mock := newMockStore(t)
	sentAt := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT generation FROM datasets").
		WithArgs("ds-1").
		WillReturnRows(sqlmock.NewRows([]string{"generation"}).AddRow(2))
	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WithArgs("ds-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "subject", "sent_at", "channel", "list_id", "segment_id", "tags",
			"emails_sent", "revenue", "orders", "unique_opens", "unique_clicks", "unsubscribes", "bounces", "spam_reports",
		}).AddRow("c-1", "", "", sentAt, "", "", "", "{}", 100, 10.0, 1, 20, 5, 0, 0, 0))
	mock.ExpectQuery("SELECT (.+) FROM flow_messages").
		WithArgs("ds-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"flow_id", "flow_name", "flow_message_id", "email_name", "subject", "status", "sequence_position", "sent_date",
			"emails_sent", "revenue", "orders", "unique_opens", "unique_clicks", "unsubscribes", "bounces", "spam_reports",
		}))
	mock.ExpectQuery("SELECT (.+) FROM subscribers").
		WithArgs("ds-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "created_at", "first_active_at", "consented", "consented_at",
			"lifetime_value", "order_count", "last_order_at",
		}))

	dc, err := store.LoadContext(context.Background(), "ds-1")
	require.NoError(t, err)
	assert.Equal(t, "ds-1", dc.DatasetID)
	assert.Equal(t, uint64(2), dc.Generation)
	assert.Len(t, dc.Campaigns, 1)
	assert.Equal(t, "ds-1:g2", dc.CacheKey())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAndListUploads(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2024, 3, 31, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO uploads").
		WithArgs("u1", "ds-1", "campaigns", "march.csv", "uploads/ds-1/x", "abc123", 10, 9, 1, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.RecordUpload(context.Background(), Upload{
		ID: "u1", DatasetID: "ds-1", Kind: "campaigns", Filename: "march.csv",
		ArchiveKey: "uploads/ds-1/x", Checksum: "abc123",
		TotalRows: 10, Imported: 9, Skipped: 1, UploadedAt: at,
	})
	require.NoError(t, err)

	cols := []string{"id", "dataset_id", "kind", "filename", "archive_key", "checksum",
		"total_rows", "imported", "skipped", "uploaded_at"}
	mock.ExpectQuery("SELECT (.+) FROM uploads").
		WithArgs("ds-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("u1", "ds-1", "campaigns", "march.csv", "uploads/ds-1/x", "abc123", 10, 9, 1, at))

	uploads, err := store.ListUploads(context.Background(), "ds-1")
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "abc123", uploads[0].Checksum)
	assert.Equal(t, 9, uploads[0].Imported)

	assert.NoError(t, mock.ExpectationsWereMet())
}
