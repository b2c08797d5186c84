package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/internal/provisioning/domain"
	"github.com/smallbiznis/cloudnest/pkg/db/option"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, server *domain.Server) error {
	return db.WithContext(ctx).Create(server).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Server, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*domain.Server, error) {
	return r.findOne(ctx, db, "order_id = ?", orderID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Server, error) {
	var item domain.Server
	err := db.WithContext(ctx).Where(query, args...).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repo) Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, fields map[string]any) (bool, error) {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	res := db.WithContext(ctx).Model(&domain.Server{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) AdvanceRenewal(ctx context.Context, db *gorm.DB, id snowflake.ID, old, next time.Time, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.Server{}).
		Where("id = ? AND renewal_date = ?", id, old).
		Updates(map[string]any{
			"renewal_date": next,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) (int64, error) {
	res := db.WithContext(ctx).Model(&domain.Server{}).Where("id = ?", id).Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, opts ...option.QueryOption) ([]*domain.Server, error) {
	var items []*domain.Server
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.Server{}), filter)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	if err := stmt.Order("created_at desc, id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListDueForRenewal(ctx context.Context, db *gorm.DB, before time.Time, after *pagination.Keyset, limit int) ([]*domain.Server, error) {
	var items []*domain.Server
	stmt := db.WithContext(ctx).
		Where("status = ? AND renewal_date <= ?", domain.StatusActive, before)
	stmt = after.After(stmt, "renewal_date").Order("renewal_date asc, id asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB, filter domain.ListFilter) (int64, error) {
	var count int64
	err := applyFilter(db.WithContext(ctx).Model(&domain.Server{}), filter).Count(&count).Error
	return count, err
}

func applyFilter(stmt *gorm.DB, filter domain.ListFilter) *gorm.DB {
	if filter.UserID != 0 {
		stmt = stmt.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	return stmt
}
