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
	UserID snowflake.ID
	Status Status
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, server *Server) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Server, error)
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*Server, error)

	// Transition changes status only if the server is currently in from.
	Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, fields map[string]any) (bool, error)

	// AdvanceRenewal moves renewal_date from old to next only if it still
	// equals old, so two sweeps cannot both advance the same period.
	AdvanceRenewal(ctx context.Context, db *gorm.DB, id snowflake.ID, old, next time.Time, now time.Time) (bool, error)

	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, opts ...option.QueryOption) ([]*Server, error)
	ListDueForRenewal(ctx context.Context, db *gorm.DB, before time.Time, after *pagination.Keyset, limit int) ([]*Server, error)
	Count(ctx context.Context, db *gorm.DB, filter ListFilter) (int64, error)
}
