package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Status string

const (
	StatusOpen     Status = "open"
	StatusAnswered Status = "answered"
	StatusClosed   Status = "closed"
)

func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusAnswered || s == StatusClosed
}

type Ticket struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID  `gorm:"not null;index" json:"user_id"`
	OrderID   *snowflake.ID `json:"order_id,omitempty"`
	ServerID  *snowflake.ID `json:"server_id,omitempty"`
	Subject   string        `gorm:"type:varchar(255);not null" json:"subject"`
	Priority  Priority      `gorm:"type:varchar(16);not null" json:"priority"`
	Status    Status        `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null" json:"updated_at"`
}

func (Ticket) TableName() string { return "tickets" }

type TicketMessage struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TicketID  snowflake.ID `gorm:"not null;index" json:"ticket_id"`
	UserID    snowflake.ID `gorm:"not null" json:"user_id"`
	Body      string       `gorm:"type:text;not null" json:"body"`
	IsStaff   bool         `gorm:"not null" json:"is_staff"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (TicketMessage) TableName() string { return "ticket_messages" }

// Thread is a ticket with its messages, oldest first.
type Thread struct {
	Ticket
	Messages []TicketMessage `json:"messages"`
}
