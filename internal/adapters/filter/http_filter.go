package filter

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/adapters/store"
	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/core"
)

// PredictRequest is the body of POST /
type PredictRequest struct {
	Subject     string  `json:"subject"`
	Body        *string `json:"body"`
	NumFeatures *int    `json:"num_features"`
}

type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// HTTPFilter serves the scoring pipeline over HTTP
type HTTPFilter struct {
	scorer      *Scorer
	logger      *zap.Logger
	listenAddr  string
	numFeatures int
	app         *fiber.App
}

// NewHTTPFilter creates the fiber app and registers the routes. registry may
// be nil, in which case /metrics is not served.
func NewHTTPFilter(
	scorer *Scorer,
	logger *zap.Logger,
	listenAddr string,
	cfg config.HTTPConfig,
	registry *prometheus.Registry,
	numFeatures int,
) *HTTPFilter {
	if numFeatures <= 0 {
		numFeatures = core.DefaultNumFeatures
	}
	f := &HTTPFilter{
		scorer:      scorer,
		logger:      logger,
		listenAddr:  listenAddr,
		numFeatures: numFeatures,
	}

	fc := fiber.Config{
		AppName:               "phish-scorer",
		DisableStartupMessage: true,
		ErrorHandler:          f.handleError,
	}
	if cfg.BodyLimit > 0 {
		fc.BodyLimit = cfg.BodyLimit
	}
	if cfg.ReadTimeout > 0 {
		fc.ReadTimeout = cfg.ReadTimeout
	}
	app := fiber.New(fc)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept",
		AllowCredentials: false,
	}))

	app.Get("/", f.root)
	app.Post("/", f.predict)
	app.Get("/healthz", f.health)
	app.Get("/verdicts/:id", f.verdict)
	if registry != nil && cfg.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	f.app = app
	return f
}

// App exposes the fiber app, mainly for app.Test
func (f *HTTPFilter) App() *fiber.App {
	return f.app
}

// Start starts listening in the background
func (f *HTTPFilter) Start() error {
	f.logger.Info("HTTP filter starting", zap.String("address", f.listenAddr))
	go func() {
		if err := f.app.Listen(f.listenAddr); err != nil {
			f.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down
func (f *HTTPFilter) Stop() error {
	return f.app.ShutdownWithTimeout(10 * time.Second)
}

// ProcessEmail scores an email with the default explanation size
func (f *HTTPFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.FusedResult, error) {
	return f.scorer.Score(ctx, email, f.numFeatures)
}

func (f *HTTPFilter) root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Hello World"})
}

func (f *HTTPFilter) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (f *HTTPFilter) predict(c *fiber.Ctx) error {
	var req PredictRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.Body == nil {
		return fiber.NewError(fiber.StatusBadRequest, "body is required")
	}

	// Non-positive values fall back to the pipeline default
	numFeatures := f.numFeatures
	if req.NumFeatures != nil {
		numFeatures = *req.NumFeatures
	}

	email := &core.Email{Subject: req.Subject, Body: *req.Body}
	result, err := f.scorer.Score(c.UserContext(), email, numFeatures)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (f *HTTPFilter) verdict(c *fiber.Ctx) error {
	v, err := f.scorer.Verdict(c.UserContext(), c.Params("id"))
	switch {
	case err == nil:
		return c.JSON(v)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrExpired):
		return fiber.NewError(fiber.StatusNotFound, "verdict not found")
	case errors.Is(err, ErrStoreDisabled):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}

// handleError maps pipeline errors onto status codes
func (f *HTTPFilter) handleError(c *fiber.Ctx, err error) error {
	resp := errorResponse{Error: err.Error()}
	status := fiber.StatusInternalServerError

	var fe *fiber.Error
	var se *core.StageError
	switch {
	case errors.As(err, &fe):
		status = fe.Code
		resp.Error = fe.Message
	case errors.As(err, &se):
		resp.Stage = string(se.Stage)
		status = statusForPipelineError(err)
	}

	if status >= fiber.StatusInternalServerError {
		f.logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err))
	}
	return c.Status(status).JSON(resp)
}

func statusForPipelineError(err error) int {
	switch {
	case errors.Is(err, core.ErrCollaboratorUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, core.ErrEmptyExplanation):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}
