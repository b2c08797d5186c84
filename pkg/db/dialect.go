package db

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/smallbiznis/cloudnest/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const defaultSQLiteFile = "cloudnest.db"

// Dialect picks the gorm driver for DATABASE_TYPE. Every dialect stores
// timestamps in UTC so due dates compare the same way everywhere.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	switch normalizeType(cfg.DBType) {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return sqlite.Open(dsn), nil
	}
}

// DSN renders the connection string for the configured dialect.
func DSN(cfg config.Config) (string, error) {
	switch normalizeType(cfg.DBType) {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName,
		), nil
	case "postgres":
		sslMode := cfg.DBSSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, sslMode,
		), nil
	case "sqlite":
		name := strings.TrimSpace(cfg.DBName)
		if name == "" {
			name = defaultSQLiteFile
		}
		if strings.Contains(name, "?") {
			return name, nil
		}
		params := url.Values{}
		params.Set("_foreign_keys", "on")
		params.Set("_busy_timeout", "5000")
		return name + "?" + params.Encode(), nil
	default:
		return "", fmt.Errorf("unsupported database type %q", cfg.DBType)
	}
}

func normalizeType(dbType string) string {
	switch t := strings.ToLower(strings.TrimSpace(dbType)); t {
	case "postgresql", "pg":
		return "postgres"
	default:
		return t
	}
}
