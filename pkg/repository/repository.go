package repository

import (
	"context"

	"github.com/smallbiznis/cloudnest/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm-backed store keyed by a numeric id column.
// Zero-valued fields of the query struct are ignored by gorm, so boolean and
// zero filters go through option.WithWhere.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	FindByID(ctx context.Context, id int64) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, id int64, fields map[string]any) (int64, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}
