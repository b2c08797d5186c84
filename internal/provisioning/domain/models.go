// Package domain holds provisioned servers and their lifecycle.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/internal/pricing"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// Server is a hosting instance bound to exactly one order. The unique index
// on order_id is what enforces that, not a lookup before insert.
type Server struct {
	ID           snowflake.ID         `gorm:"primaryKey" json:"id"`
	OrderID      snowflake.ID         `gorm:"not null;uniqueIndex" json:"order_id"`
	UserID       snowflake.ID         `gorm:"not null;index" json:"user_id"`
	PlanName     string               `gorm:"type:varchar(255);not null" json:"plan_name"`
	Status       Status               `gorm:"type:varchar(16);not null;index" json:"status"`
	BillingCycle pricing.BillingCycle `gorm:"type:varchar(16);not null" json:"billing_cycle"`
	Amount       int64                `gorm:"not null" json:"amount"`
	RenewalDate  time.Time            `gorm:"not null;index" json:"renewal_date"`
	SuspendedAt  *time.Time           `json:"suspended_at,omitempty"`
	CancelledAt  *time.Time           `json:"cancelled_at,omitempty"`
	CancelReason string               `gorm:"type:varchar(512)" json:"cancel_reason,omitempty"`
	Hostname     string               `gorm:"type:varchar(255);not null" json:"hostname"`
	IPAddress    string               `gorm:"type:varchar(64);not null" json:"ip_address"`
	Username     string               `gorm:"type:varchar(128);not null" json:"username"`
	Password     string               `gorm:"type:varchar(255);not null" json:"password,omitempty"`
	SSHPort      int                  `gorm:"not null" json:"ssh_port"`
	OS           string               `gorm:"type:varchar(128)" json:"os,omitempty"`
	ControlPanel string               `gorm:"type:varchar(128)" json:"control_panel,omitempty"`
	PanelURL     string               `gorm:"type:varchar(512)" json:"panel_url,omitempty"`
	CreatedAt    time.Time            `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time            `gorm:"not null" json:"updated_at"`
}

func (Server) TableName() string { return "servers" }

// Credentials are the access details staff hand over at provisioning time.
type Credentials struct {
	Hostname     string `json:"hostname"`
	IPAddress    string `json:"ip_address"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	SSHPort      int    `json:"ssh_port"`
	OS           string `json:"os"`
	ControlPanel string `json:"control_panel"`
	PanelURL     string `json:"panel_url"`
}
