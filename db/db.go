package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/rs/zerolog"

	"olafo/models"
)

// Connect opens the journal database (sqlite3 by default) and migrates the
// relay_events table.
//
// For postgres, dsn is a libpq connection string
// ("host=... port=... user=... dbname=... password=... sslmode=...").
// For sqlite3 it is a file path, or ":memory:".
func Connect(dialect, dsn string, logger zerolog.Logger) (*gorm.DB, error) {
	if dialect == "" {
		dialect = "sqlite3"
	}

	var (
		db  *gorm.DB
		err error
	)

	switch dialect {
	case "postgres", "postgresql":
		logger.Info().Msg("using postgres journal database")
		db, err = gorm.Open("postgres", dsn)
	case "sqlite3", "sqlite":
		logger.Info().Str("path", dsn).Msg("using sqlite3 journal database")
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("db: create dir: %w", err)
			}
		}
		db, err = gorm.Open("sqlite3", dsn)
	default:
		return nil, fmt.Errorf("db: unsupported dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", dialect, err)
	}

	if dsn == ":memory:" {
		// cada conexão nova do pool seria um banco vazio
		db.DB().SetMaxOpenConns(1)
	}
	db.LogMode(logger.GetLevel() <= zerolog.DebugLevel)

	if err := db.AutoMigrate(&models.Event{}).Error; err != nil {
		db.Close()
		return nil, fmt.Errorf("db: migrate: %w", err)
	}
	return db, nil
}
