package store

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/gorm"

	"github.com/example/realtime-chat/config"
)

// Module owns the database connection shared by the domain modules.
//
// The connection is opened in NewModule rather than Start so the repository
// can be handed to other modules while they are being constructed.
type Module struct {
	db     *gorm.DB
	repo   *Repository
	driver string
	logger types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule opens and migrates the database.
func NewModule(cfg config.DatabaseConfig, logger types.Logger) (*Module, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Module{
		db:     db,
		repo:   NewRepository(db),
		driver: cfg.Driver,
		logger: logger.WithModule("store"),
	}, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Repository returns the persistence adapter.
func (m *Module) Repository() *Repository {
	return m.repo
}

// Start logs the active backend.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Store module started", "driver", m.driver)
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	m.logger.Info("Store module stopped")
	return nil
}

// Health pings the database.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.repo.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	sqlDB, _ := m.db.DB()
	stats := sqlDB.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver":           m.driver,
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
		},
	}
}
