package recorder

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openDB opens the recording database for the configured backend type.
func openDB(cfg Config) (*gorm.DB, error) {
	switch cfg.Type {
	case "sqlite":
		path := cfg.Path
		if path == "" {
			// In-memory database; recordings are lost on exit but the sink
			// still exercises the full write path.
			path = "file::memory:?cache=shared"
		}
		db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
			PrepareStmt:            true,
			SkipDefaultTransaction: true,
			CreateBatchSize:        2000,
			Logger:                 logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("opening sqlite recording db: %w", err)
		}
		return db, nil
	case "postgres":
		db, err := gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			SkipDefaultTransaction: true,
			CreateBatchSize:        10000,
			Logger:                 logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres recording db: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown recorder db type: %s", cfg.Type)
	}
}
