package storage

import (
	"fmt"

	"emojidb/internal/common/errors"
	"emojidb/internal/config"
)

// TypeNone disables the database mirror
const TypeNone = "none"

// NewStorage creates the record store selected by configuration. It returns
// a nil store and nil error when no database is configured.
func NewStorage(cfg *config.Config) (RecordStore, error) {
	var storageConfig StorageConfig

	switch cfg.DatabaseType {
	case "", TypeNone:
		return nil, nil

	case "sqlite":
		storageConfig = GenericConfig{
			"type": "sqlite",
			"path": cfg.DatabasePath,
		}

	case "postgres":
		storageConfig = GenericConfig{
			"type":              "postgres",
			"connection_string": cfg.DatabaseURL,
		}

	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported database type: %s", cfg.DatabaseType))
	}

	return Open(cfg.DatabaseType, storageConfig)
}
