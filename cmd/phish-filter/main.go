package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/di"
	"github.com/mikey/phish-scorer/internal/factory"
	"github.com/mikey/phish-scorer/internal/ports"
)

func main() {
	configFile := flag.String("config", "", "Path to config file (searches the default locations if empty)")
	flag.Parse()

	container, err := di.BuildContainer(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	emailFilter ports.EmailFilter,
	classifiers *factory.ClassifierFactory,
	stopStore di.StoreStopper,
) error {
	defer logger.Sync()

	if err := emailFilter.Start(); err != nil {
		logger.Error("Failed to start filter", zap.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	if err := emailFilter.Stop(); err != nil {
		logger.Error("Failed to stop filter", zap.Error(err))
	}
	if err := classifiers.Close(); err != nil {
		logger.Error("Failed to close classifiers", zap.Error(err))
	}
	stopStore()

	logger.Info("Shutdown complete")
	return nil
}
