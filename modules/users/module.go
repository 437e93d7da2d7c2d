package users

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// UsersModule stores the IP to username directory via GORM + SQLite.
type UsersModule struct {
	db     *gorm.DB
	repo   *Repository
	dbPath string
	debug  bool
	logger types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*UsersModule)(nil)
var _ mono.ServiceProviderModule = (*UsersModule)(nil)
var _ mono.HealthCheckableModule = (*UsersModule)(nil)

// NewModule creates a new UsersModule backed by the SQLite file at dbPath.
// debug enables GORM query logging.
func NewModule(dbPath string, debug bool, logger types.Logger) *UsersModule {
	if dbPath == "" {
		dbPath = "chat.db"
	}
	return &UsersModule{
		dbPath: dbPath,
		debug:  debug,
		logger: logger,
	}
}

// Name returns the module name.
func (m *UsersModule) Name() string {
	return "users"
}

// Health performs a health check on the users module.
func (m *UsersModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	details := map[string]any{
		"driver": "sqlite",
		"path":   m.dbPath,
	}
	if n, err := m.repo.Count(); err == nil {
		details["users"] = n
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *UsersModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSetUser, json.Unmarshal, json.Marshal, m.setUser,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSetUser, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetUser, json.Unmarshal, json.Marshal, m.getUser,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetUser, err)
	}

	m.logger.Info("Registered services", "services", []string{ServiceSetUser, ServiceGetUser})
	return nil
}

// Start opens the database connection and runs migrations.
func (m *UsersModule) Start(_ context.Context) error {
	m.logger.Info("Connecting to SQLite database", "path", m.dbPath)

	logLevel := logger.Silent
	if m.debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := m.db.AutoMigrate(&UserRecord{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.repo = NewRepository(m.db)

	m.logger.Info("Users module started")
	return nil
}

// Stop closes the database connection.
func (m *UsersModule) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	m.db = nil
	m.logger.Info("Database connection closed")
	return nil
}
