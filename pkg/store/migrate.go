package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/migrations"
)

// Migrate applies the base schema: the city/state abbreviation dictionaries
// the Silver tier joins against, and the pipeline_runs registry. Idempotent;
// only pending migrations run.
func (s *SQLStore) Migrate(ctx context.Context) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	var driver database.Driver
	switch s.dialect {
	case sqliteDialect:
		driver, err = migratesqlite.WithInstance(s.dbx.DB, &migratesqlite.Config{})
	default:
		driver, err = migratepostgres.WithInstance(s.dbx.DB, &migratepostgres.Config{})
	}
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, s.dialect, driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		s.logger.Debug("base schema up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply base schema: %w", err)
	}

	version, _, _ := m.Version()
	s.logger.Info("applied base schema", zap.Uint("version", version))
	return nil
}
