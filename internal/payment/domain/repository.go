package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert reports false when the invoice already has a payment.
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) (bool, error)
	FindByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (*Payment, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]*Payment, error)
}
