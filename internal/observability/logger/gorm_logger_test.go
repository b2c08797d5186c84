package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestDescribeSQL(t *testing.T) {
	cases := []struct {
		sql, op, table string
	}{
		{`SELECT * FROM "invoices" WHERE "status" = $1`, "SELECT", "invoices"},
		{"INSERT INTO `wallet_transactions` (`id`) VALUES (?)", "INSERT", "wallet_transactions"},
		{`UPDATE "servers" SET "status"='suspended'`, "UPDATE", "servers"},
		{`DELETE FROM tickets WHERE id = 1`, "DELETE", "tickets"},
		{`WITH due AS (SELECT id FROM servers) SELECT * FROM due`, "SELECT", "servers"},
		{``, "UNKNOWN", ""},
	}
	for _, tc := range cases {
		op, table := describeSQL(tc.sql)
		require.Equal(t, tc.op, op, tc.sql)
		require.Equal(t, tc.table, table, tc.sql)
	}
}

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), GormLoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        100 * time.Millisecond,
		IgnoreRecordNotFound: true,
	})
	query := func() (string, int64) { return `SELECT * FROM "orders"`, 1 }

	l.Trace(context.Background(), time.Now(), query, gormlogger.ErrRecordNotFound)
	require.Zero(t, logs.Len())

	l.Trace(context.Background(), time.Now(), query, errors.New("boom"))
	require.Equal(t, 1, logs.FilterMessage("db.query").Len())

	l.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)
	slow := logs.FilterMessage("db.slow_query").All()
	require.Len(t, slow, 1)
	require.Equal(t, "orders", slow[0].ContextMap()["table"])

	quiet := l.LogMode(gormlogger.Silent)
	quiet.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)
	require.Equal(t, 2, logs.Len())
}
