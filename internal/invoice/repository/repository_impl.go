package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/internal/invoice/domain"
	"github.com/smallbiznis/cloudnest/pkg/db/option"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, inv *domain.Invoice) error {
	return db.WithContext(ctx).Create(inv).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var item domain.Invoice
	err := db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repo) Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.Status, to domain.Status, fields map[string]any) (bool, error) {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	res := db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, opts ...option.QueryOption) ([]*domain.Invoice, error) {
	var items []*domain.Invoice
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.Invoice{}), filter)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	if err := stmt.Order("created_at desc, id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindLatest(ctx context.Context, db *gorm.DB, filter domain.ListFilter, statuses []domain.Status) (*domain.Invoice, error) {
	var item domain.Invoice
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.Invoice{}), filter)
	if len(statuses) > 0 {
		stmt = stmt.Where("status IN ?", statuses)
	}
	err := stmt.Order("created_at desc, id desc").First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repo) ListOverdue(ctx context.Context, db *gorm.DB, dueBefore time.Time, after *pagination.Keyset, limit int) ([]*domain.Invoice, error) {
	var items []*domain.Invoice
	stmt := db.WithContext(ctx).
		Where("status = ? AND due_date < ?", domain.StatusUnpaid, dueBefore)
	stmt = after.After(stmt, "due_date").Order("due_date asc, id asc")
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
	err := applyFilter(db.WithContext(ctx).Model(&domain.Invoice{}), filter).Count(&count).Error
	return count, err
}

func (r *repo) SumPaid(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Invoice{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("status = ?", domain.StatusPaid).
		Scan(&total).Error
	return total, err
}

func applyFilter(stmt *gorm.DB, filter domain.ListFilter) *gorm.DB {
	if filter.UserID != 0 {
		stmt = stmt.Where("user_id = ?", filter.UserID)
	}
	if filter.OrderID != 0 {
		stmt = stmt.Where("order_id = ?", filter.OrderID)
	}
	if filter.ServerID != 0 {
		stmt = stmt.Where("server_id = ?", filter.ServerID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Kind != "" {
		stmt = stmt.Where("kind = ?", filter.Kind)
	}
	return stmt
}
