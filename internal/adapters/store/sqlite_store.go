package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS phishing_verdicts (
		id TEXT PRIMARY KEY,
		overall_probability REAL NOT NULL,
		body_probability REAL NOT NULL,
		url_average_probability REAL,
		predicted_class INTEGER NOT NULL,
		is_phishing BOOLEAN NOT NULL,
		url_count INTEGER NOT NULL,
		analyzed_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_verdicts_expires_at ON phishing_verdicts(expires_at)`,
}

// SQLiteStore is a SQLite implementation of core.VerdictRepository
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore opens the database at dbPath and creates the schema
func NewSQLiteStore(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// A second connection to ":memory:" would see a different database
	db.SetMaxOpenConns(1)

	s, err := newSQLStore(db, dialect{name: "sqlite"}, sqliteSchema, logger, cleanupFreq)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{sqlStore: s}, nil
}
