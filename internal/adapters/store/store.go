package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a verdict is not stored
	ErrNotFound = errors.New("verdict not found")
	// ErrExpired is returned when a verdict is past its retention
	ErrExpired = errors.New("verdict expired")
)

// cleaner runs a repository's Cleanup on a fixed period until stopped
type cleaner struct {
	freq   time.Duration
	fn     func(ctx context.Context) error
	logger *zap.Logger
	stopCh chan struct{}
}

func startCleaner(freq time.Duration, fn func(ctx context.Context) error, logger *zap.Logger) *cleaner {
	c := &cleaner{
		freq:   freq,
		fn:     fn,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	if freq > 0 {
		go c.run()
	}
	return c
}

func (c *cleaner) run() {
	ticker := time.NewTicker(c.freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.fn(context.Background()); err != nil {
				c.logger.Error("Failed to clean up verdict store", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

func (c *cleaner) stop() {
	close(c.stopCh)
}
