// Package testing rewrites lifecycle dates so sweep behaviour can be
// exercised without waiting out grace windows.
package testing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type TimeAccelerator struct {
	db *gorm.DB
}

func NewTimeAccelerator(db *gorm.DB) *TimeAccelerator {
	return &TimeAccelerator{db: db}
}

// SetRenewalDate moves a server's renewal date.
func (ta *TimeAccelerator) SetRenewalDate(ctx context.Context, serverID snowflake.ID, at time.Time) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE servers SET renewal_date = ? WHERE id = ?`,
		at.UTC(), serverID,
	).Error
}

// SetSuspendedAt backdates when a server was suspended.
func (ta *TimeAccelerator) SetSuspendedAt(ctx context.Context, serverID snowflake.ID, at time.Time) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE servers SET suspended_at = ? WHERE id = ? AND status = ?`,
		at.UTC(), serverID, "suspended",
	).Error
}

// SetDueDate moves an open invoice's due date.
func (ta *TimeAccelerator) SetDueDate(ctx context.Context, invoiceID snowflake.ID, due time.Time) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE invoices SET due_date = ? WHERE id = ? AND status IN (?, ?)`,
		due.UTC(), invoiceID, "unpaid", "pending",
	).Error
}

// CountInvoices returns how many invoices exist for a server.
func (ta *TimeAccelerator) CountInvoices(ctx context.Context, serverID snowflake.ID) (int64, error) {
	var count int64
	err := ta.db.WithContext(ctx).Table("invoices").Where("server_id = ?", serverID).Count(&count).Error
	return count, err
}
