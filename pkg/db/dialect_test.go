package db

import (
	"testing"

	"github.com/smallbiznis/cloudnest/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	base := config.Config{
		DBHost:     "db.internal",
		DBPort:     "5432",
		DBName:     "billing",
		DBUser:     "cloudnest",
		DBPassword: "pw",
	}

	pg := base
	pg.DBType = "postgresql"
	dsn, err := DSN(pg)
	require.NoError(t, err)
	require.Equal(t, "host=db.internal user=cloudnest password=pw dbname=billing port=5432 sslmode=disable TimeZone=UTC", dsn)

	my := base
	my.DBType = "mysql"
	my.DBPort = "3306"
	dsn, err = DSN(my)
	require.NoError(t, err)
	require.Equal(t, "cloudnest:pw@tcp(db.internal:3306)/billing?charset=utf8mb4&parseTime=True&loc=UTC", dsn)

	dsn, err = DSN(config.Config{DBType: "sqlite"})
	require.NoError(t, err)
	require.Equal(t, "cloudnest.db?_busy_timeout=5000&_foreign_keys=on", dsn)

	dsn, err = DSN(config.Config{DBType: "sqlite", DBName: "file::memory:?cache=shared"})
	require.NoError(t, err)
	require.Equal(t, "file::memory:?cache=shared", dsn)

	_, err = DSN(config.Config{DBType: "oracle"})
	require.Error(t, err)
}
