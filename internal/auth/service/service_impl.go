package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/cloudnest/internal/auth/domain"
	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/internal/config"
	userdomain "github.com/smallbiznis/cloudnest/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Claims carries the subject user id and the role it was issued for. The
// stored role wins when they disagree.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Clock  clock.Clock
	Users  userdomain.Service
}

type Service struct {
	secret []byte
	issuer string
	log    *zap.Logger
	clock  clock.Clock
	users  userdomain.Service
}

func New(p Params) domain.Gateway {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	secret := strings.TrimSpace(p.Config.AuthJWTSecret)
	if secret == "" {
		p.Log.Warn("AUTH_JWT_SECRET is empty, every bearer token will be rejected")
	}
	return &Service{
		secret: []byte(secret),
		issuer: strings.TrimSpace(p.Config.AuthJWTIssuer),
		log:    p.Log.Named("auth.gateway"),
		clock:  clk,
		users:  p.Users,
	}
}

func (s *Service) Authenticate(ctx context.Context, bearer string) (*userdomain.User, error) {
	raw := strings.TrimSpace(bearer)
	if raw == "" {
		return nil, domain.ErrMissingToken
	}
	if len(s.secret) == 0 {
		return nil, domain.ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		s.log.Debug("bearer token rejected", zap.Error(err))
		return nil, domain.ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, domain.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, userdomain.ErrNotFound) || errors.Is(err, userdomain.ErrInvalidID) {
			return nil, domain.ErrUnknownUser
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) IssueToken(user userdomain.User, ttl time.Duration) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, domain.ErrNotConfigured
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := s.clock.Now()
	expiry := now.Add(ttl)
	claims := &Claims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiry, nil
}
