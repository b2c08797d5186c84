// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status represents invoice lifecycle states.
type Status string

const (
	StatusUnpaid    Status = "unpaid"
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Kind records what an invoice bills for.
type Kind string

const (
	KindOrder   Kind = "order"
	KindRenewal Kind = "renewal"
)

// Invoice is a billable document for an order or a renewal period.
type Invoice struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id"`
	Number           string            `gorm:"type:varchar(32);not null;uniqueIndex" json:"number"`
	UserID           snowflake.ID      `gorm:"not null;index" json:"user_id"`
	OrderID          *snowflake.ID     `gorm:"index" json:"order_id,omitempty"`
	ServerID         *snowflake.ID     `gorm:"index" json:"server_id,omitempty"`
	Kind             Kind              `gorm:"type:varchar(16);not null" json:"kind"`
	Amount           int64             `gorm:"not null" json:"amount"`
	Status           Status            `gorm:"type:varchar(16);not null;index" json:"status"`
	Description      string            `gorm:"type:varchar(512);not null" json:"description"`
	DueDate          time.Time         `gorm:"not null;index" json:"due_date"`
	PaidDate         *time.Time        `json:"paid_date,omitempty"`
	PaymentReference string            `gorm:"type:varchar(255)" json:"payment_reference,omitempty"`
	IdempotencyKey   string            `gorm:"type:varchar(128);not null;uniqueIndex" json:"-"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Overdue reports whether the invoice is unpaid more than grace past its due
// date. Invoices with a payment proof under review do not escalate.
func (i Invoice) Overdue(now time.Time, grace time.Duration) bool {
	if i.Status != StatusUnpaid {
		return false
	}
	return now.Sub(i.DueDate) > grace
}
