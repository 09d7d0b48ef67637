package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mahamart/commerce-backend/internal/config"
)

// Open connects to the configured database. TranslateError makes the drivers
// surface unique and foreign key violations as gorm.ErrDuplicatedKey and
// gorm.ErrForeignKeyViolated, which the repositories rely on.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}
	switch cfg.DatabaseDriver {
	case "", "postgres":
		return gorm.Open(postgres.Open(cfg.DatabaseURL), gcfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(sqliteDSN(cfg.DatabaseURL)), gcfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

// sqliteDSN turns on foreign keys through the connection string so every
// pooled connection enforces them, not only the one that ran a PRAGMA.
func sqliteDSN(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.Contains(lower, "_foreign_keys=") || strings.Contains(lower, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}
