package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/internal/order/domain"
	"github.com/smallbiznis/cloudnest/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repo) TransitionPayment(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.PaymentStatus, to domain.PaymentStatus, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND payment_status IN ?", id, from).
		Updates(map[string]any{
			"payment_status": to,
			"updated_at":     now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.Status, to domain.Status, fields map[string]any) (bool, error) {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["order_status"] = to

	res := db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND order_status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, opts ...option.QueryOption) ([]*domain.Order, error) {
	var items []*domain.Order
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.Order{}), filter)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	if err := stmt.Order("created_at desc, id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB, filter domain.ListFilter) (int64, error) {
	var count int64
	err := applyFilter(db.WithContext(ctx).Model(&domain.Order{}), filter).Count(&count).Error
	return count, err
}

func applyFilter(stmt *gorm.DB, filter domain.ListFilter) *gorm.DB {
	if filter.UserID != 0 {
		stmt = stmt.Where("user_id = ?", filter.UserID)
	}
	if filter.PaymentStatus != "" {
		stmt = stmt.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.Status != "" {
		stmt = stmt.Where("order_status = ?", filter.Status)
	}
	return stmt
}
