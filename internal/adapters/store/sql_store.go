package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/core"
)

const replaceVerdict = `
	REPLACE INTO phishing_verdicts
		(id, overall_probability, body_probability, url_average_probability,
		 predicted_class, is_phishing, url_count, analyzed_at, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// dialect covers what differs between the SQL backends
type dialect struct {
	name     string
	upsert   string
	numbered bool // $1 placeholders instead of ?
}

// sqlStore holds the queries shared by the SQL stores.
// Timestamps are stored as unix milliseconds.
type sqlStore struct {
	db      *sql.DB
	name    string
	dialect dialect
	logger  *zap.Logger
	cleaner *cleaner
	now     func() time.Time
}

func newSQLStore(db *sql.DB, d dialect, schema []string, logger *zap.Logger, cleanupFreq time.Duration) (*sqlStore, error) {
	name := d.name
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create %s schema: %w", name, err)
		}
	}

	if d.upsert == "" {
		d.upsert = replaceVerdict
	}
	s := &sqlStore{
		db:      db,
		name:    name,
		dialect: d,
		logger:  logger,
		now:     time.Now,
	}
	s.cleaner = startCleaner(cleanupFreq, s.Cleanup, logger)
	return s, nil
}

func (s *sqlStore) Save(ctx context.Context, v *core.Verdict) error {
	var urlAverage sql.NullFloat64
	if v.URLAverageProbability != nil {
		urlAverage = sql.NullFloat64{Float64: *v.URLAverageProbability, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.rebind(s.dialect.upsert), v.ID, v.OverallProbability, v.BodyProbability, urlAverage,
		v.PredictedClass, v.IsPhishing, v.URLCount, v.AnalyzedAt.UnixMilli(), v.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save verdict in %s: %w", s.name, err)
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, id string) (*core.Verdict, error) {
	var (
		v          core.Verdict
		urlAverage sql.NullFloat64
		analyzedAt int64
		expiresAt  int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, overall_probability, body_probability, url_average_probability,
		       predicted_class, is_phishing, url_count, analyzed_at, expires_at
		FROM phishing_verdicts
		WHERE id = ?
	`), id).Scan(&v.ID, &v.OverallProbability, &v.BodyProbability, &urlAverage,
		&v.PredictedClass, &v.IsPhishing, &v.URLCount, &analyzedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query verdict in %s: %w", s.name, err)
	}

	if urlAverage.Valid {
		avg := urlAverage.Float64
		v.URLAverageProbability = &avg
	}
	v.AnalyzedAt = time.UnixMilli(analyzedAt).UTC()
	v.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	if s.now().After(v.ExpiresAt) {
		return nil, ErrExpired
	}
	return &v, nil
}

func (s *sqlStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM phishing_verdicts WHERE id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete verdict in %s: %w", s.name, err)
	}
	return nil
}

func (s *sqlStore) Cleanup(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM phishing_verdicts WHERE expires_at <= ?`), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to clean up expired verdicts in %s: %w", s.name, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		s.logger.Debug("Cleaned up expired verdicts",
			zap.String("store", s.name),
			zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

// rebind rewrites ? placeholders for dialects that number them
func (s *sqlStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Stop stops the background cleanup task and closes the database connection
func (s *sqlStore) Stop() {
	s.cleaner.stop()
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.String("store", s.name), zap.Error(err))
	}
}
