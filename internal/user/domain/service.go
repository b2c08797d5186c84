package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
)

type CreateUserRequest struct {
	Email    string
	FullName string
	Company  string
	Phone    string
	Role     Role
	Verified bool
}

type UpdateUserRequest struct {
	ID       string
	FullName *string
	Company  *string
	Phone    *string
	Role     *Role
	Verified *bool
}

type ListFilter struct {
	Role  Role
	Email string
}

type ListUsersRequest struct {
	ListFilter
	pagination.Pagination
}

type ListUsersResponse struct {
	pagination.PageInfo
	Users []User `json:"users"`
}

type Service interface {
	Create(ctx context.Context, req CreateUserRequest) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, req ListUsersRequest) (ListUsersResponse, error)
	Update(ctx context.Context, req UpdateUserRequest) (User, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
}

var (
	ErrInvalidID    = errors.New("invalid_user_id")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidRole  = errors.New("invalid_role")
	ErrEmailTaken   = errors.New("email_taken")
	ErrNotFound     = errors.New("user_not_found")
)
