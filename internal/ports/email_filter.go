package ports

import (
	"context"

	"github.com/mikey/phish-scorer/internal/core"
)

// EmailFilter defines the interface for email filtering
type EmailFilter interface {
	// ProcessEmail scores an email and returns the fused result
	ProcessEmail(ctx context.Context, email *core.Email) (*core.FusedResult, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}
