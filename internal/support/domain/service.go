package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
)

type OpenRequest struct {
	UserID   snowflake.ID
	OrderID  *snowflake.ID
	ServerID *snowflake.ID
	Subject  string
	Priority Priority
	Message  string
}

type ReplyRequest struct {
	TicketID string
	UserID   snowflake.ID
	Body     string
	IsStaff  bool
}

type ListTicketsRequest struct {
	UserID snowflake.ID
	Status Status
	pagination.Pagination
}

type ListTicketsResponse struct {
	pagination.PageInfo
	Tickets []Ticket `json:"tickets"`
}

type Service interface {
	Open(ctx context.Context, req OpenRequest) (Ticket, error)
	// Reply appends to the thread. A staff reply marks the ticket answered,
	// a customer reply reopens it.
	Reply(ctx context.Context, req ReplyRequest) (TicketMessage, error)
	SetStatus(ctx context.Context, id string, status Status) (Ticket, error)
	Get(ctx context.Context, id string) (Thread, error)
	GetForUser(ctx context.Context, userID snowflake.ID, id string) (Thread, error)
	List(ctx context.Context, req ListTicketsRequest) (ListTicketsResponse, error)
	Count(ctx context.Context, status Status) (int64, error)
}

var (
	ErrInvalidID       = errors.New("invalid_ticket_id")
	ErrInvalidSubject  = errors.New("invalid_subject")
	ErrInvalidMessage  = errors.New("invalid_message")
	ErrInvalidPriority = errors.New("invalid_priority")
	ErrInvalidStatus   = errors.New("invalid_ticket_status")
	ErrNotFound        = errors.New("ticket_not_found")
)
