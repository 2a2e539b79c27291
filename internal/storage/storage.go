// Package storage persists ingested datasets and upload history in
// PostgreSQL. A dataset is the unit of analysis: each successful ingest
// replaces the dataset's records and bumps its generation so cached analyzer
// results keyed on the old generation die naturally.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/campaign-insights/internal/analytics"
	"github.com/ignite/campaign-insights/internal/config"
	"github.com/ignite/campaign-insights/internal/domain"
)

// ErrNotFound signals a missing dataset or upload.
var ErrNotFound = errors.New("storage: not found")

// Store wraps the Postgres connection.
type Store struct{ db *sql.DB }

// New wraps an existing connection, mainly for tests.
func New(db *sql.DB) *Store { return &Store{db: db} }

// Open connects to Postgres using the lib/pq driver.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the schema when absent.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			id         TEXT PRIMARY KEY,
			generation BIGINT NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS uploads (
			id          TEXT PRIMARY KEY,
			dataset_id  TEXT NOT NULL,
			kind        TEXT NOT NULL,
			filename    TEXT NOT NULL,
			archive_key TEXT NOT NULL DEFAULT '',
			checksum    TEXT NOT NULL DEFAULT '',
			total_rows  INT NOT NULL,
			imported    INT NOT NULL,
			skipped     INT NOT NULL,
			uploaded_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS campaigns (
			dataset_id    TEXT NOT NULL,
			id            TEXT NOT NULL,
			name          TEXT NOT NULL DEFAULT '',
			subject       TEXT NOT NULL DEFAULT '',
			sent_at       TIMESTAMPTZ NOT NULL,
			channel       TEXT NOT NULL DEFAULT '',
			list_id       TEXT NOT NULL DEFAULT '',
			segment_id    TEXT NOT NULL DEFAULT '',
			tags          TEXT[] NOT NULL DEFAULT '{}',
			emails_sent   BIGINT NOT NULL DEFAULT 0,
			revenue       DOUBLE PRECISION NOT NULL DEFAULT 0,
			orders        BIGINT NOT NULL DEFAULT 0,
			unique_opens  BIGINT NOT NULL DEFAULT 0,
			unique_clicks BIGINT NOT NULL DEFAULT 0,
			unsubscribes  BIGINT NOT NULL DEFAULT 0,
			bounces       BIGINT NOT NULL DEFAULT 0,
			spam_reports  BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (dataset_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS flow_messages (
			dataset_id        TEXT NOT NULL,
			flow_id           TEXT NOT NULL,
			flow_name         TEXT NOT NULL DEFAULT '',
			flow_message_id   TEXT NOT NULL,
			email_name        TEXT NOT NULL DEFAULT '',
			subject           TEXT NOT NULL DEFAULT '',
			status            TEXT NOT NULL DEFAULT 'live',
			sequence_position INT NOT NULL,
			sent_date         TIMESTAMPTZ NOT NULL,
			emails_sent   BIGINT NOT NULL DEFAULT 0,
			revenue       DOUBLE PRECISION NOT NULL DEFAULT 0,
			orders        BIGINT NOT NULL DEFAULT 0,
			unique_opens  BIGINT NOT NULL DEFAULT 0,
			unique_clicks BIGINT NOT NULL DEFAULT 0,
			unsubscribes  BIGINT NOT NULL DEFAULT 0,
			bounces       BIGINT NOT NULL DEFAULT 0,
			spam_reports  BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (dataset_id, flow_id, flow_message_id, sequence_position, sent_date)
		)`,
		`CREATE TABLE IF NOT EXISTS subscribers (
			dataset_id      TEXT NOT NULL,
			id              TEXT NOT NULL,
			email           TEXT NOT NULL,
			created_at      TIMESTAMPTZ,
			first_active_at TIMESTAMPTZ,
			consented       BOOLEAN NOT NULL DEFAULT false,
			consented_at    TIMESTAMPTZ,
			lifetime_value  DOUBLE PRECISION NOT NULL DEFAULT 0,
			order_count     BIGINT NOT NULL DEFAULT 0,
			last_order_at   TIMESTAMPTZ,
			PRIMARY KEY (dataset_id, id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Upload is one recorded ingest.
type Upload struct {
	ID         string    `json:"id"`
	DatasetID  string    `json:"dataset_id"`
	Kind       string    `json:"kind"`
	Filename   string    `json:"filename"`
	ArchiveKey string    `json:"archive_key,omitempty"`
	Checksum   string    `json:"checksum,omitempty"` // sha256 of the raw file
	TotalRows  int       `json:"total_rows"`
	Imported   int       `json:"imported"`
	Skipped    int       `json:"skipped"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// RecordUpload stores one upload history entry.
func (s *Store) RecordUpload(ctx context.Context, u Upload) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO uploads (id, dataset_id, kind, filename, archive_key, checksum, total_rows, imported, skipped, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, u.ID, u.DatasetID, u.Kind, u.Filename, u.ArchiveKey, u.Checksum, u.TotalRows, u.Imported, u.Skipped, u.UploadedAt)
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// ListUploads returns a dataset's upload history, newest first.
func (s *Store) ListUploads(ctx context.Context, datasetID string) ([]Upload, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dataset_id, kind, filename, archive_key, checksum, total_rows, imported, skipped, uploaded_at
		FROM uploads
		WHERE dataset_id = $1
		ORDER BY uploaded_at DESC
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var out []Upload
	for rows.Next() {
		var u Upload
		if err := rows.Scan(&u.ID, &u.DatasetID, &u.Kind, &u.Filename, &u.ArchiveKey, &u.Checksum,
			&u.TotalRows, &u.Imported, &u.Skipped, &u.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Generation returns the dataset's current generation counter.
func (s *Store) Generation(ctx context.Context, datasetID string) (uint64, error) {
	var gen uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT generation FROM datasets WHERE id = $1`, datasetID).Scan(&gen)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("dataset generation: %w", err)
	}
	return gen, nil
}

// bumpGeneration creates the dataset row on first ingest and increments the
// counter on every later one.
func bumpGeneration(ctx context.Context, tx *sql.Tx, datasetID string) (uint64, error) {
	var gen uint64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO datasets (id, generation, updated_at) VALUES ($1, 1, now())
		ON CONFLICT (id) DO UPDATE SET generation = datasets.generation + 1, updated_at = now()
		RETURNING generation
	`, datasetID).Scan(&gen)
	if err != nil {
		return 0, fmt.Errorf("bump generation: %w", err)
	}
	return gen, nil
}

// ReplaceCampaigns swaps the dataset's campaign records atomically and
// returns the new generation.
func (s *Store) ReplaceCampaigns(ctx context.Context, datasetID string, records []domain.CampaignRecord) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM campaigns WHERE dataset_id = $1`, datasetID); err != nil {
		return 0, fmt.Errorf("clear campaigns: %w", err)
	}
	for _, c := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO campaigns (dataset_id, id, name, subject, sent_at, channel, list_id, segment_id, tags,
				emails_sent, revenue, orders, unique_opens, unique_clicks, unsubscribes, bounces, spam_reports)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`, datasetID, c.ID, c.Name, c.Subject, c.SentAt, c.Channel, c.ListID, c.SegmentID, pq.Array(c.Tags),
			c.EmailsSent, c.Revenue, c.Orders, c.UniqueOpens, c.UniqueClicks, c.Unsubscribes, c.Bounces, c.SpamReports)
		if err != nil {
			return 0, fmt.Errorf("insert campaign %s: %w", c.ID, err)
		}
	}
	gen, err := bumpGeneration(ctx, tx, datasetID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return gen, nil
}

// ReplaceFlowMessages swaps the dataset's flow records atomically.
func (s *Store) ReplaceFlowMessages(ctx context.Context, datasetID string, records []domain.FlowMessageRecord) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM flow_messages WHERE dataset_id = $1`, datasetID); err != nil {
		return 0, fmt.Errorf("clear flow messages: %w", err)
	}
	for _, m := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO flow_messages (dataset_id, flow_id, flow_name, flow_message_id, email_name, subject,
				status, sequence_position, sent_date,
				emails_sent, revenue, orders, unique_opens, unique_clicks, unsubscribes, bounces, spam_reports)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`, datasetID, m.FlowID, m.FlowName, m.FlowMessageID, m.EmailName, m.Subject,
			string(m.Status), m.SequencePosition, m.SentDate,
			m.EmailsSent, m.Revenue, m.Orders, m.UniqueOpens, m.UniqueClicks, m.Unsubscribes, m.Bounces, m.SpamReports)
		if err != nil {
			return 0, fmt.Errorf("insert flow message %s: %w", m.FlowMessageID, err)
		}
	}
	gen, err := bumpGeneration(ctx, tx, datasetID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return gen, nil
}

// ReplaceSubscribers swaps the dataset's subscriber records atomically.
func (s *Store) ReplaceSubscribers(ctx context.Context, datasetID string, records []domain.SubscriberRecord) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscribers WHERE dataset_id = $1`, datasetID); err != nil {
		return 0, fmt.Errorf("clear subscribers: %w", err)
	}
	for _, sub := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO subscribers (dataset_id, id, email, created_at, first_active_at,
				consented, consented_at, lifetime_value, order_count, last_order_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, datasetID, sub.ID, sub.Email, nullTime(sub.CreatedAt), sub.FirstActiveAt,
			sub.Consented, sub.ConsentedAt, sub.LifetimeValue, sub.OrderCount, sub.LastOrderAt)
		if err != nil {
			return 0, fmt.Errorf("insert subscriber %s: %w", sub.ID, err)
		}
	}
	gen, err := bumpGeneration(ctx, tx, datasetID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return gen, nil
}

// LoadCampaigns returns the dataset's campaigns ordered by send time.
func (s *Store) LoadCampaigns(ctx context.Context, datasetID string) ([]domain.CampaignRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, subject, sent_at, channel, list_id, segment_id, tags,
		       emails_sent, revenue, orders, unique_opens, unique_clicks, unsubscribes, bounces, spam_reports
		FROM campaigns
		WHERE dataset_id = $1
		ORDER BY sent_at ASC
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("load campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.CampaignRecord
	for rows.Next() {
		var c domain.CampaignRecord
		var tags pq.StringArray
		if err := rows.Scan(&c.ID, &c.Name, &c.Subject, &c.SentAt, &c.Channel, &c.ListID, &c.SegmentID, &tags,
			&c.EmailsSent, &c.Revenue, &c.Orders, &c.UniqueOpens, &c.UniqueClicks, &c.Unsubscribes, &c.Bounces, &c.SpamReports); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		c.Tags = tags
		out = append(out, c)
	}
	return out, rows.Err()
}

// LoadFlowMessages returns the dataset's flow messages ordered by flow, step,
// and date.
func (s *Store) LoadFlowMessages(ctx context.Context, datasetID string) ([]domain.FlowMessageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flow_id, flow_name, flow_message_id, email_name, subject, status, sequence_position, sent_date,
		       emails_sent, revenue, orders, unique_opens, unique_clicks, unsubscribes, bounces, spam_reports
		FROM flow_messages
		WHERE dataset_id = $1
		ORDER BY flow_id, sequence_position, sent_date
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("load flow messages: %w", err)
	}
	defer rows.Close()

	var out []domain.FlowMessageRecord
	for rows.Next() {
		var m domain.FlowMessageRecord
		var status string
		if err := rows.Scan(&m.FlowID, &m.FlowName, &m.FlowMessageID, &m.EmailName, &m.Subject, &status,
			&m.SequencePosition, &m.SentDate,
			&m.EmailsSent, &m.Revenue, &m.Orders, &m.UniqueOpens, &m.UniqueClicks, &m.Unsubscribes, &m.Bounces, &m.SpamReports); err != nil {
			return nil, fmt.Errorf("scan flow message: %w", err)
		}
		m.Status = domain.FlowMessageStatus(status)
		out = append(out, m)
	}
	return out, rows.Err()
}

// LoadSubscribers returns the dataset's subscribers.
func (s *Store) LoadSubscribers(ctx context.Context, datasetID string) ([]domain.SubscriberRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, created_at, first_active_at, consented, consented_at, lifetime_value, order_count, last_order_at
		FROM subscribers
		WHERE dataset_id = $1
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.SubscriberRecord
	for rows.Next() {
		var sub domain.SubscriberRecord
		var created sql.NullTime
		if err := rows.Scan(&sub.ID, &sub.Email, &created, &sub.FirstActiveAt,
			&sub.Consented, &sub.ConsentedAt, &sub.LifetimeValue, &sub.OrderCount, &sub.LastOrderAt); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		if created.Valid {
			sub.CreatedAt = created.Time
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// LoadContext assembles the full analytics snapshot for a dataset.
func (s *Store) LoadContext(ctx context.Context, datasetID string) (*analytics.DataContext, error) {
	gen, err := s.Generation(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	campaigns, err := s.LoadCampaigns(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	flows, err := s.LoadFlowMessages(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	subscribers, err := s.LoadSubscribers(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	return analytics.NewDataContext(datasetID, gen, campaigns, flows, subscribers), nil
}

// nullTime maps the zero time onto SQL NULL.
func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
