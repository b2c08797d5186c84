package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/internal/pricing"
	"gorm.io/datatypes"
)

type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCrypto       PaymentMethod = "crypto"
	PaymentMethodWallet       PaymentMethod = "wallet"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodCrypto, PaymentMethodWallet:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// Order captures a purchase. Amount is fixed when the order is placed and
// never recomputed, even if the plan's prices change later.
type Order struct {
	ID            snowflake.ID                `gorm:"primaryKey" json:"id"`
	UserID        snowflake.ID                `gorm:"not null;index" json:"user_id"`
	PlanID        snowflake.ID                `gorm:"not null;index" json:"plan_id"`
	PlanName      string                      `gorm:"type:varchar(255);not null" json:"plan_name"`
	DataCenterID  *snowflake.ID               `json:"datacenter_id,omitempty"`
	BillingCycle  pricing.BillingCycle        `gorm:"type:varchar(16);not null" json:"billing_cycle"`
	OS            string                      `gorm:"type:varchar(128)" json:"os,omitempty"`
	ControlPanel  string                      `gorm:"type:varchar(128)" json:"control_panel,omitempty"`
	AddOnIDs      datatypes.JSONSlice[string] `json:"addon_ids"`
	Amount        int64                       `gorm:"not null" json:"amount"`
	PaymentMethod PaymentMethod               `gorm:"type:varchar(32);not null" json:"payment_method"`
	PaymentStatus PaymentStatus               `gorm:"type:varchar(16);not null;index" json:"payment_status"`
	Status        Status                      `gorm:"column:order_status;type:varchar(16);not null;index" json:"order_status"`
	Notes         string                      `gorm:"type:text" json:"notes,omitempty"`
	CancelReason  string                      `gorm:"type:varchar(512)" json:"cancel_reason,omitempty"`
	CreatedAt     time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time                   `gorm:"not null" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }
