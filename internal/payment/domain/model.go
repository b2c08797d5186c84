package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Method string

const (
	MethodWallet       Method = "wallet"
	MethodBankTransfer Method = "bank_transfer"
	MethodCrypto       Method = "crypto"
	MethodManual       Method = "manual"
)

// Payment records how an invoice was settled. An invoice has at most one.
type Payment struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	InvoiceID  snowflake.ID      `gorm:"not null;uniqueIndex" json:"invoice_id"`
	UserID     snowflake.ID      `gorm:"not null;index" json:"user_id"`
	Method     Method            `gorm:"type:varchar(32);not null" json:"method"`
	Amount     int64             `gorm:"not null" json:"amount"`
	Reference  string            `gorm:"type:varchar(255)" json:"reference,omitempty"`
	RecordedBy *snowflake.ID     `json:"recorded_by,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (Payment) TableName() string { return "payments" }
