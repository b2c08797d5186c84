// Package testutil opens throwaway databases for service tests.
package testutil

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/internal/migration"
	userdomain "github.com/smallbiznis/cloudnest/internal/user/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Epoch is the default instant for fake clocks in tests.
var Epoch = time.Date(2026, time.January, 15, 9, 0, 0, 0, time.UTC)

// OpenDB returns an in-memory SQLite database private to the test with every
// table migrated.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migration.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func NewNode(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func NewClock() *clock.FakeClock {
	return clock.NewFakeClock(Epoch)
}

// CreateUser inserts a customer with the given starting balance in cents.
func CreateUser(t testing.TB, conn *gorm.DB, node *snowflake.Node, email string, balance int64) userdomain.User {
	t.Helper()
	user := userdomain.User{
		ID:            node.Generate(),
		Email:         email,
		FullName:      "Test " + strings.Split(email, "@")[0],
		Role:          userdomain.RoleUser,
		WalletBalance: balance,
		Verified:      true,
		CreatedAt:     Epoch,
		UpdatedAt:     Epoch,
	}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreateStaff inserts an admin account.
func CreateStaff(t testing.TB, conn *gorm.DB, node *snowflake.Node, email string) userdomain.User {
	t.Helper()
	user := userdomain.User{
		ID:        node.Generate(),
		Email:     email,
		FullName:  "Staff",
		Role:      userdomain.RoleAdmin,
		Verified:  true,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("create staff: %v", err)
	}
	return user
}
