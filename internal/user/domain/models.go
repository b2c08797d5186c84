package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// IsStaff reports whether the role may use the back office.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User is a customer or staff account. WalletBalance is owned by the wallet
// ledger and is only changed through it.
type User struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	Email         string       `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	FullName      string       `gorm:"type:varchar(255);not null" json:"full_name"`
	Company       string       `gorm:"type:varchar(255)" json:"company,omitempty"`
	Phone         string       `gorm:"type:varchar(64)" json:"phone,omitempty"`
	Role          Role         `gorm:"type:varchar(32);not null;default:'user'" json:"role"`
	WalletBalance int64        `gorm:"not null;default:0" json:"wallet_balance"`
	Verified      bool         `gorm:"not null;default:false" json:"verified"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }
