package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/pkg/db/option"
	"gorm.io/gorm"
)

type Repository interface {
	// ApplyDelta adds delta to the balance only if the result stays
	// non-negative. It reports false when no row was changed.
	ApplyDelta(ctx context.Context, db *gorm.DB, userID snowflake.ID, delta int64, now time.Time) (bool, error)
	Balance(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, bool, error)
	InsertTransaction(ctx context.Context, db *gorm.DB, txn *Transaction) error
	ListTransactions(ctx context.Context, db *gorm.DB, userID snowflake.ID, opts ...option.QueryOption) ([]*Transaction, error)
	SumTransactions(ctx context.Context, db *gorm.DB, userID snowflake.ID, typ TransactionType) (int64, error)

	InsertTopUp(ctx context.Context, db *gorm.DB, req *TopUpRequest) error
	FindTopUp(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TopUpRequest, error)
	ReviewTopUp(ctx context.Context, db *gorm.DB, id snowflake.ID, status TopUpStatus, notes string, reviewer snowflake.ID, now time.Time) (bool, error)
	ListTopUps(ctx context.Context, db *gorm.DB, filter TopUpFilter) ([]*TopUpRequest, error)
}

type TopUpFilter struct {
	UserID snowflake.ID
	Status TopUpStatus
}
