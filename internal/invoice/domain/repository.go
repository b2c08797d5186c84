package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/pkg/db/option"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	UserID   snowflake.ID
	OrderID  snowflake.ID
	ServerID snowflake.ID
	Status   Status
	Kind     Kind
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, inv *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)

	// Transition moves the invoice to status only if it is currently in one
	// of from. It reports false when the guard did not match.
	Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from []Status, to Status, fields map[string]any) (bool, error)

	List(ctx context.Context, db *gorm.DB, filter ListFilter, opts ...option.QueryOption) ([]*Invoice, error)
	FindLatest(ctx context.Context, db *gorm.DB, filter ListFilter, statuses []Status) (*Invoice, error)
	ListOverdue(ctx context.Context, db *gorm.DB, dueBefore time.Time, after *pagination.Keyset, limit int) ([]*Invoice, error)
	Count(ctx context.Context, db *gorm.DB, filter ListFilter) (int64, error)
	SumPaid(ctx context.Context, db *gorm.DB) (int64, error)
}
