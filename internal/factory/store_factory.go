package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/adapters/store"
	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/core"
)

// stoppableRepository is a verdict store with background resources
type stoppableRepository interface {
	core.VerdictRepository
	Stop()
}

// StoreFactory creates verdict stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateVerdictStore creates the configured store. It returns a nil
// repository and a no-op stop func when the store is disabled.
func (f *StoreFactory) CreateVerdictStore(ctx context.Context) (core.VerdictRepository, func(), error) {
	storeCfg := f.cfg.GetStore()
	if !storeCfg.Enabled {
		f.logger.Info("Verdict store disabled")
		return nil, func() {}, nil
	}

	var repo stoppableRepository
	var err error
	switch storeCfg.Type {
	case "memory":
		repo = store.NewMemoryStore(f.logger, storeCfg.CleanupFrequency)
	case "sqlite":
		if dir := filepath.Dir(storeCfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("failed to create SQLite directory: %w", err)
			}
		}
		repo, err = store.NewSQLiteStore(storeCfg.SQLitePath, f.logger, storeCfg.CleanupFrequency)
	case "mysql":
		repo, err = store.NewMySQLStore(storeCfg.MySQLDSN, f.logger, storeCfg.CleanupFrequency)
	case "postgres":
		repo, err = store.NewPostgresStore(storeCfg.PostgresDSN, f.logger, storeCfg.CleanupFrequency)
	case "redis":
		repo, err = store.NewRedisStore(ctx, storeCfg.RedisURL, f.logger)
	default:
		return nil, nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
	if err != nil {
		return nil, nil, err
	}

	f.logger.Info("Created verdict store",
		zap.String("type", storeCfg.Type),
		zap.Duration("retention", storeCfg.Retention))
	return repo, repo.Stop, nil
}
