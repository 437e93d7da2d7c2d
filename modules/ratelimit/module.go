package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Module owns the Redis connection behind the ingest rate limiter.
type Module struct {
	client    *redis.Client
	limiter   *SlidingWindowLimiter
	config    Config
	redisAddr string
	password  string
	logger    types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ Limiter                    = (*Module)(nil)
)

// errNotStarted is returned by Allow before Start has connected to Redis.
var errNotStarted = errors.New("rate limiter not started")

// NewModule creates a new rate limiting module.
func NewModule(redisAddr, password string, config Config, logger types.Logger) *Module {
	return &Module{
		redisAddr: redisAddr,
		password:  password,
		config:    config,
		logger:    logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "rate-limiter"
}

// Start connects to Redis and builds the limiter.
func (m *Module) Start(ctx context.Context) error {
	m.client = redis.NewClient(&redis.Options{
		Addr:     m.redisAddr,
		Password: m.password,
	})

	if err := m.client.Ping(ctx).Err(); err != nil {
		_ = m.client.Close()
		m.client = nil
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	m.limiter = NewSlidingWindowLimiter(m.client, m.config)
	m.logger.Info("Connected to Redis",
		"addr", m.redisAddr,
		"limit", m.config.RequestsPerWindow,
		"window", m.config.WindowSize.String())
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			m.logger.Error("Error closing Redis connection", "error", err)
		}
	}
	m.logger.Info("Rate limiter module stopped")
	return nil
}

// Health verifies the Redis connection is healthy.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.client == nil {
		return mono.HealthStatus{Healthy: false, Message: "Redis client not initialized"}
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("Redis ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"addr":   m.redisAddr,
			"limit":  m.config.RequestsPerWindow,
			"window": m.config.WindowSize.String(),
		},
	}
}

// Allow delegates to the Redis limiter once the module has started.
func (m *Module) Allow(ctx context.Context, key string) (*Result, error) {
	if m.limiter == nil {
		return nil, errNotStarted
	}
	return m.limiter.Allow(ctx, key)
}

// Handler returns the Fiber middleware for the ingest route.
func (m *Module) Handler() fiber.Handler {
	return Middleware(m, m.config.RequestsPerWindow, m.logger)
}
