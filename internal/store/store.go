// Package store persists analysis reports in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion/batch"
	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/resilience"
)

// Schema creates the reports table. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS dispersion_reports (
	    id         UUID PRIMARY KEY,
	    kind       TEXT NOT NULL,
	    request_id TEXT NOT NULL DEFAULT '',
	    parts      INTEGER NOT NULL,
	    words      INTEGER NOT NULL,
	    data       JSONB NOT NULL,
	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS dispersion_reports_created_at_idx
	    ON dispersion_reports (created_at DESC)`,
}

// Report is a persisted batch or corpus analysis.
type Report struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	RequestID string             `json:"request_id,omitempty"`
	Parts     int                `json:"parts"`
	Words     int                `json:"words"`
	Indices   []dispersion.Index `json:"indices"`
	Records   []batch.Record     `json:"records"`
	CreatedAt time.Time          `json:"created_at"`
}

// Summary is the listing form of a Report.
type Summary struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Parts     int       `json:"parts"`
	Words     int       `json:"words"`
	CreatedAt time.Time `json:"created_at"`
}

// payload is the JSONB column; the scalar columns are not repeated in it.
type payload struct {
	Indices []dispersion.Index `json:"indices"`
	Records []batch.Record     `json:"records"`
}

type Store struct {
	db      *postgres.Client
	retry   resilience.RetryConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Store on db. m may be nil.
func New(db *postgres.Client, m *metrics.Metrics) *Store {
	return &Store{
		db: db,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
			Retryable:    retryable,
		},
		metrics: m,
		logger:  slog.Default().With("component", "report-store"),
		now:     time.Now,
	}
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.Migrate(ctx, Schema...)
}

// Save assigns r an id and creation time and inserts it, retrying transient
// failures.
func (s *Store) Save(ctx context.Context, r *Report) error {
	data, err := json.Marshal(payload{Indices: r.Indices, Records: r.Records})
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	r.ID = uuid.NewString()
	r.CreatedAt = s.now().UTC()

	err = resilience.Retry(ctx, "save report", s.retry, func(ctx context.Context) error {
		_, err := s.db.DB.ExecContext(ctx,
			`INSERT INTO dispersion_reports (id, kind, request_id, parts, words, data, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.ID, r.Kind, r.RequestID, r.Parts, r.Words, data, r.CreatedAt,
		)
		return err
	})
	s.observe(err)
	if err != nil {
		return apperrors.Newf(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "saving report: %v", err)
	}
	s.logger.Info("report saved", "id", r.ID, "kind", r.Kind, "words", r.Words, "parts", r.Parts)
	return nil
}

// Get loads a report by id.
func (s *Store) Get(ctx context.Context, id string) (*Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "report %q not found", id)
	}

	var (
		r    Report
		data []byte
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, kind, request_id, parts, words, data, created_at
		 FROM dispersion_reports WHERE id = $1`, id,
	).Scan(&r.ID, &r.Kind, &r.RequestID, &r.Parts, &r.Words, &data, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "report %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying report %s: %w", id, err)
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling report %s: %w", id, err)
	}
	r.Indices, r.Records = p.Indices, p.Records
	return &r, nil
}

// List returns up to limit report summaries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, kind, parts, words, created_at
		 FROM dispersion_reports ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0, limit)
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Kind, &sum.Parts, &sum.Words, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

func (s *Store) observe(err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.ReportsSavedTotal.WithLabelValues(status).Inc()
}

func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
