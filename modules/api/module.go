package api

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/anon-chat-relay/domain/chat"
	"github.com/example/anon-chat-relay/modules/bus"
	"github.com/example/anon-chat-relay/modules/matchmaker"
	"github.com/example/anon-chat-relay/modules/users"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Relay is the message fan-out the API publishes to and streams from.
type Relay interface {
	Post(msg chat.Message) error
	Subscribe() *bus.Subscription
}

// HealthChecker reports the health of one module for GET /health.
type HealthChecker interface {
	Health(ctx context.Context) mono.HealthStatus
}

// APIModule is the HTTP edge: message ingest, the event stream, pairing
// and the user directory.
type APIModule struct {
	app        *fiber.App
	matchmaker matchmaker.MatchmakerPort
	users      users.UserPort
	relay      Relay
	limiter    fiber.Handler
	health     map[string]HealthChecker

	port      string
	staticDir string
	keepalive time.Duration
	logger    types.Logger

	// ctx bounds every open event stream; Stop cancels it before
	// shutting the server down.
	ctx    context.Context
	cancel context.CancelFunc

	streams atomic.Int64
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule. keepalive is the idle interval after
// which an event stream writes a comment frame; zero disables it.
func NewModule(port, staticDir string, keepalive time.Duration, logger types.Logger) *APIModule {
	if port == "" {
		port = "8000"
	}
	if staticDir == "" {
		staticDir = "static"
	}
	return &APIModule{
		port:      port,
		staticDir: staticDir,
		keepalive: keepalive,
		logger:    logger,
		health:    make(map[string]HealthChecker),
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"matchmaker", "users"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "matchmaker":
		m.matchmaker = matchmaker.NewMatchmakerAdapter(container)
	case "users":
		m.users = users.NewUserAdapter(container)
	}
}

// SetRelay sets the message relay (called from main.go).
func (m *APIModule) SetRelay(relay Relay) {
	m.relay = relay
}

// SetRateLimiter installs middleware in front of POST /message.
func (m *APIModule) SetRateLimiter(limiter fiber.Handler) {
	m.limiter = limiter
}

// RegisterHealthCheck adds a module to the /health report.
func (m *APIModule) RegisterHealthCheck(module HealthChecker, name string) {
	m.health[name] = module
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if err := m.setup(); err != nil {
		return err
	}

	go func() {
		if err := m.app.Listen(":" + m.port); err != nil {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("HTTP server started", "port", m.port, "static_dir", m.staticDir)
	return nil
}

// setup builds the Fiber app and its routes without listening.
func (m *APIModule) setup() error {
	if m.matchmaker == nil {
		return fmt.Errorf("matchmaker dependency not set")
	}
	if m.users == nil {
		return fmt.Errorf("users dependency not set")
	}
	if m.relay == nil {
		return fmt.Errorf("relay not set")
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	m.app.Use(recover.New())
	m.app.Use(m.loggerMiddleware())

	m.setupRoutes()
	return nil
}

// Stop ends all event streams and shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server", "open_streams", m.streams.Load())
	m.cancel()
	return m.app.ShutdownWithContext(ctx)
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port":         m.port,
			"open_streams": m.streams.Load(),
			"rate_limited": m.limiter != nil,
		},
	}
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   errorCode(code),
		Message: message,
	})
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusUnprocessableEntity:
		return "validation_failed"
	case fiber.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "server_error"
	}
}

// loggerMiddleware returns a Fiber middleware for request logging.
func (m *APIModule) loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		m.logger.Debug("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"latency", time.Since(start).String())
		return err
	}
}
