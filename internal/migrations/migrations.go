package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/telecare/billingcore/internal/config"
	"github.com/telecare/billingcore/internal/logger"
)

//go:embed sql/*.sql
var files embed.FS

// Migrator applies the embedded schema migrations
type Migrator struct {
	m      *migrate.Migrate
	logger *logger.Logger
}

func NewMigrator(cfg *config.Configuration, logger *logger.Logger) (*Migrator, error) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.Postgres.GetURL())
	if err != nil {
		return nil, fmt.Errorf("failed to initialise migrations: %w", err)
	}

	return &Migrator{m: m, logger: logger}, nil
}

// Up applies all pending migrations
func (mg *Migrator) Up() error {
	err := mg.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		mg.logger.Info("no pending migrations")
		return nil
	}
	if err != nil {
		return err
	}
	mg.logger.Info("migrations applied")
	return nil
}

// Down rolls back the last migration
func (mg *Migrator) Down() error {
	return mg.m.Steps(-1)
}

// Goto migrates up or down to the given version
func (mg *Migrator) Goto(version uint) error {
	err := mg.m.Migrate(version)
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// Version returns the applied version, zero when nothing was applied yet
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (mg *Migrator) Close() {
	if sourceErr, dbErr := mg.m.Close(); sourceErr != nil || dbErr != nil {
		mg.logger.Errorw("failed to close migration resources", "source_error", sourceErr, "db_error", dbErr)
	}
}
