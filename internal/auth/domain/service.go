// Package domain defines bearer-token authentication for the API.
package domain

import (
	"context"
	"errors"
	"time"

	userdomain "github.com/smallbiznis/cloudnest/internal/user/domain"
)

// Gateway resolves bearer tokens to users. Tokens are issued by the identity
// service; IssueToken exists for bootstrap tooling and tests.
type Gateway interface {
	Authenticate(ctx context.Context, bearer string) (*userdomain.User, error)
	IssueToken(user userdomain.User, ttl time.Duration) (string, time.Time, error)
}

var (
	ErrMissingToken  = errors.New("missing_token")
	ErrInvalidToken  = errors.New("invalid_token")
	ErrUnknownUser   = errors.New("unknown_user")
	ErrNotConfigured = errors.New("auth_not_configured")
)
