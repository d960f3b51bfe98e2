package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS phishing_verdicts (
		id VARCHAR(64) PRIMARY KEY,
		overall_probability DOUBLE NOT NULL,
		body_probability DOUBLE NOT NULL,
		url_average_probability DOUBLE NULL,
		predicted_class TINYINT NOT NULL,
		is_phishing BOOLEAN NOT NULL,
		url_count INT NOT NULL,
		analyzed_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL,
		INDEX idx_verdicts_expires_at (expires_at)
	)`,
}

// MySQLStore is a MySQL implementation of core.VerdictRepository
type MySQLStore struct {
	*sqlStore
}

// NewMySQLStore connects using dsn and creates the schema
func NewMySQLStore(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	s, err := newSQLStore(db, dialect{name: "mysql"}, mysqlSchema, logger, cleanupFreq)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &MySQLStore{sqlStore: s}, nil
}
