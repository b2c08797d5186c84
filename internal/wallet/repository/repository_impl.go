package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/internal/wallet/domain"
	"github.com/smallbiznis/cloudnest/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ApplyDelta(ctx context.Context, db *gorm.DB, userID snowflake.ID, delta int64, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET wallet_balance = wallet_balance + ?, updated_at = ?
		 WHERE id = ? AND wallet_balance + ? >= 0`,
		delta,
		now,
		userID,
		delta,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Balance(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, bool, error) {
	var rows []struct {
		WalletBalance int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT wallet_balance FROM users WHERE id = ?`,
		userID,
	).Scan(&rows).Error
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].WalletBalance, true, nil
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Create(txn).Error
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, userID snowflake.ID, opts ...option.QueryOption) ([]*domain.Transaction, error) {
	var items []*domain.Transaction
	stmt := db.WithContext(ctx).Model(&domain.Transaction{}).Where("user_id = ?", userID)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	if err := stmt.Order("created_at desc, id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SumTransactions(ctx context.Context, db *gorm.DB, userID snowflake.ID, typ domain.TransactionType) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type = ?", userID, typ).
		Scan(&total).Error
	return total, err
}

func (r *repo) InsertTopUp(ctx context.Context, db *gorm.DB, req *domain.TopUpRequest) error {
	return db.WithContext(ctx).Create(req).Error
}

func (r *repo) FindTopUp(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.TopUpRequest, error) {
	var item domain.TopUpRequest
	err := db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ReviewTopUp moves a pending request to its final status. It reports false
// when the request is missing or was already reviewed.
func (r *repo) ReviewTopUp(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.TopUpStatus, notes string, reviewer snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.TopUpRequest{}).
		Where("id = ? AND status = ?", id, domain.TopUpStatusPending).
		Updates(map[string]any{
			"status":      status,
			"admin_notes": notes,
			"reviewed_by": reviewer,
			"reviewed_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ListTopUps(ctx context.Context, db *gorm.DB, filter domain.TopUpFilter) ([]*domain.TopUpRequest, error) {
	var items []*domain.TopUpRequest
	stmt := db.WithContext(ctx).Model(&domain.TopUpRequest{})
	if filter.UserID != 0 {
		stmt = stmt.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if err := stmt.Order("created_at desc, id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
