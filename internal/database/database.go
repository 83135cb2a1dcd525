// Package database opens the PostgreSQL connection and applies the SQL
// migrations.
package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/carlosmourajunior/minhasfinancas/internal/logger"
)

// Manager owns the GORM connection and the migration source.
type Manager struct {
	db     *gorm.DB
	config *Config
}

// NewManager connects to PostgreSQL.
func NewManager(config *Config) (*Manager, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  config.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Manager{db: db, config: config}, nil
}

// DB returns the underlying GORM database instance.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RunMigrations applies every pending migration.
func (m *Manager) RunMigrations() error {
	logger.Get().Info("Running database migrations...")
	if err := MigrateUp(m.config); err != nil {
		return err
	}
	logger.Get().Info("Database migrations completed successfully")
	return nil
}

// withMigrator opens a migrate instance for config and closes it after fn.
func withMigrator(config *Config, fn func(*migrate.Migrate) error) error {
	mig, err := migrate.New(config.sourceURL(), config.URL())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := mig.Close()
		if srcErr != nil {
			logger.Get().Warnw("migrate source close error", "error", srcErr)
		}
		if dbErr != nil {
			logger.Get().Warnw("migrate database close error", "error", dbErr)
		}
	}()
	return fn(mig)
}

// MigrateUp applies every pending migration. Having nothing to apply is not
// an error.
func MigrateUp(config *Config) error {
	return withMigrator(config, func(mig *migrate.Migrate) error {
		if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration up failed: %w", err)
		}
		return nil
	})
}

// MigrateDown rolls back the last steps migrations.
func MigrateDown(config *Config, steps int) error {
	if steps < 1 {
		return fmt.Errorf("invalid step count %d", steps)
	}
	return withMigrator(config, func(mig *migrate.Migrate) error {
		if err := mig.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration down failed: %w", err)
		}
		return nil
	})
}

// MigrationVersion reports the applied version and whether the last
// migration left the schema dirty.
func MigrationVersion(config *Config) (version uint, dirty bool, err error) {
	err = withMigrator(config, func(mig *migrate.Migrate) error {
		version, dirty, err = mig.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			version, dirty, err = 0, false, nil
		}
		return err
	})
	return version, dirty, err
}
