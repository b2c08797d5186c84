package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

// Transaction is an append-only wallet ledger entry. Amount is always
// positive; Type carries the direction.
type Transaction struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID       snowflake.ID    `gorm:"not null;index" json:"user_id"`
	Type         TransactionType `gorm:"type:varchar(16);not null" json:"type"`
	Amount       int64           `gorm:"not null" json:"amount"`
	BalanceAfter int64           `gorm:"not null" json:"balance_after"`
	Description  string          `gorm:"type:varchar(512);not null" json:"description"`
	Reference    string          `gorm:"type:varchar(128);index" json:"reference,omitempty"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
}

func (Transaction) TableName() string { return "wallet_transactions" }

type TopUpStatus string

const (
	TopUpStatusPending  TopUpStatus = "pending"
	TopUpStatusApproved TopUpStatus = "approved"
	TopUpStatusRejected TopUpStatus = "rejected"
)

type TopUpMethod string

const (
	TopUpMethodBankTransfer TopUpMethod = "bank_transfer"
	TopUpMethodCrypto       TopUpMethod = "crypto"
)

func (m TopUpMethod) Valid() bool {
	return m == TopUpMethodBankTransfer || m == TopUpMethodCrypto
}

// TopUpRequest is a customer's claim that funds were sent outside the
// platform. The wallet is credited only when staff approve it.
type TopUpRequest struct {
	ID               snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID           snowflake.ID  `gorm:"not null;index" json:"user_id"`
	Amount           int64         `gorm:"not null" json:"amount"`
	PaymentMethod    TopUpMethod   `gorm:"type:varchar(32);not null" json:"payment_method"`
	PaymentReference string        `gorm:"type:varchar(255)" json:"payment_reference,omitempty"`
	Status           TopUpStatus   `gorm:"type:varchar(16);not null;index" json:"status"`
	AdminNotes       string        `gorm:"type:text" json:"admin_notes,omitempty"`
	ReviewedBy       *snowflake.ID `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time    `json:"reviewed_at,omitempty"`
	CreatedAt        time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"not null" json:"updated_at"`
}

func (TopUpRequest) TableName() string { return "wallet_topup_requests" }
