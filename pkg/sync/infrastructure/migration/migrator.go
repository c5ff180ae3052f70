// Package migration applies the embedded schema migrations for the sync
// metadata tables before the engine starts.
package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"

	"github.com/syncline/syncline/pkg/sync/core/config"
	"github.com/syncline/syncline/pkg/sync/support/util/exception"
	logger "github.com/syncline/syncline/pkg/sync/support/util/logger"
)

const moduleName = "migration"

// Run applies all pending up-migrations from migrationsFS/dir against the
// database described by cfg. A database that is already up to date is not an
// error.
func Run(cfg config.DatabaseConfig, migrationsFS fs.FS, dir string) error {
	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return exception.NewSyncErrorf(moduleName, "failed to open migration source", err)
	}

	dsn, err := databaseURL(cfg)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return exception.NewSyncErrorf(moduleName, "failed to initialize migrator", err)
	}
	defer func() {
		if serr, derr := m.Close(); serr != nil || derr != nil {
			logger.Warnf("Migrator close reported errors (source: %v, database: %v).", serr, derr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debugf("Schema is up to date; no migrations applied.")
			return nil
		}
		return exception.NewSyncErrorf(moduleName, "migration failed", err)
	}
	logger.Infof("Schema migrations applied for %s database '%s'.", cfg.Type, cfg.Database)
	return nil
}

// databaseURL builds the migrate-compatible connection URL for one database
// configuration.
func databaseURL(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Type {
	case "sqlite":
		return fmt.Sprintf("sqlite3://%s", cfg.Database), nil
	case "postgres":
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password),
			cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode), nil
	case "mysql":
		return fmt.Sprintf("mysql://%s:%s@tcp(%s:%d)/%s",
			url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password),
			cfg.Host, cfg.Port, cfg.Database), nil
	default:
		return "", exception.NewSyncErrorf(moduleName, "unsupported database type: %q", cfg.Type,
			exception.ErrValidation)
	}
}
