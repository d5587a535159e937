package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/dataguardian/dataguardian/internal/report"
)

const reportsSchema = `
CREATE TABLE IF NOT EXISTS scan_reports (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	target     TEXT NOT NULL,
	level      TEXT NOT NULL,
	score      INTEGER NOT NULL,
	payload    JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS scan_reports_created_at_idx ON scan_reports (created_at DESC);`

// PostgresStore persists reports in PostgreSQL.
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgresStore connects to the database and ensures the schema.
func NewPostgresStore(config Config, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	store := &PostgresStore{db: db, logger: logger}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Report store initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
	)
	return store, nil
}

func (s *PostgresStore) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, reportsSchema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, r *report.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
		INSERT INTO scan_reports (id, created_at, target, level, score, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query,
		r.ID, r.CreatedAt, r.Target, string(r.Summary.Level), r.Summary.Score, payload,
	); err != nil {
		s.logger.Error("Failed to save report",
			zap.Error(err),
			zap.String("report_id", r.ID),
		)
		return fmt.Errorf("failed to save report: %w", err)
	}

	s.logger.Debug("Report saved",
		zap.String("report_id", r.ID),
		zap.String("level", string(r.Summary.Level)),
	)
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*report.Report, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, "SELECT payload FROM scan_reports WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	var r report.Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("stored report is corrupt: %w", err)
	}
	return &r, nil
}

// List implements Store, newest first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]*report.Report, error) {
	if limit <= 0 {
		limit = 50
	}

	var payloads [][]byte
	err := s.db.SelectContext(ctx, &payloads,
		"SELECT payload FROM scan_reports ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	out := make([]*report.Report, 0, len(payloads))
	for _, payload := range payloads {
		var r report.Report
		if err := json.Unmarshal(payload, &r); err != nil {
			s.logger.Warn("Skipping corrupt stored report", zap.Error(err))
			continue
		}
		out = append(out, &r)
	}
	return out, nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// maskDatabaseURL hides credentials in a connection URL before logging it.
func maskDatabaseURL(url string) string {
	if at := strings.LastIndex(url, "@"); at >= 0 {
		if colon := strings.LastIndex(url[:at], ":"); colon >= 0 {
			return url[:colon+1] + "***" + url[at:]
		}
	}
	return url
}
