package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/pkg/db/option"
	"gorm.io/gorm"
)

type ListFilter struct {
	UserID        snowflake.ID
	PaymentStatus PaymentStatus
	Status        Status
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	TransitionPayment(ctx context.Context, db *gorm.DB, id snowflake.ID, from []PaymentStatus, to PaymentStatus, now time.Time) (bool, error)
	TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []Status, to Status, fields map[string]any) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, opts ...option.QueryOption) ([]*Order, error)
	Count(ctx context.Context, db *gorm.DB, filter ListFilter) (int64, error)
}
