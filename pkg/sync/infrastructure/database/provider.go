// Package database opens gorm connections for the named database entries of
// the engine configuration. Supported types are sqlite, postgres, and mysql.
package database

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/syncline/syncline/pkg/sync/core/config"
	"github.com/syncline/syncline/pkg/sync/support/util/exception"
)

const moduleName = "database"

// Open connects to the database described by cfg. gorm's own logger is
// silenced; query-level logging goes through the engine logger where needed.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	switch cfg.Type {
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.Database), gormCfg)
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)
		return gorm.Open(postgres.Open(dsn), gormCfg)
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
		return gorm.Open(mysql.Open(dsn), gormCfg)
	default:
		return nil, exception.NewSyncErrorf(moduleName, "unsupported database type: %q", cfg.Type,
			exception.ErrValidation)
	}
}

// OpenFromConfig opens the connection named by the repository_db_ref entry.
func OpenFromConfig(cfg *config.Config) (*gorm.DB, error) {
	name := cfg.Syncline.Infrastructure.RepositoryDBRef
	dbCfg, ok := cfg.Syncline.Databases[name]
	if !ok {
		return nil, exception.NewSyncErrorf(moduleName, "database connection %q is not configured", name,
			exception.ErrValidation)
	}
	return Open(dbCfg)
}
