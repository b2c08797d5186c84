package server

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/cloudnest/internal/observability/context"
	"github.com/smallbiznis/cloudnest/internal/observability/logger"
	"github.com/smallbiznis/cloudnest/internal/ratelimit"
	userdomain "github.com/smallbiznis/cloudnest/internal/user/domain"
	"go.uber.org/zap"
)

const contextUserKey = "user"

// AuthRequired resolves the bearer token to a user and stores it on the
// gin context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.authGateway.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		actorType := obscontext.ActorTypeUser
		if user.Role.IsStaff() {
			actorType = obscontext.ActorTypeStaff
		}
		ctx := obscontext.WithActor(c.Request.Context(), actorType, user.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextUserKey, *user)
		c.Next()
	}
}

// RequireStaff admits admin and super_admin accounts.
func (s *Server) RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !user.Role.IsStaff() {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

// RateLimit throttles the policy per authenticated user.
func (s *Server) RateLimit(policy string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		subject := rateLimitSubject(c)
		ctx := c.Request.Context()
		res, err := s.limiter.Allow(ctx, policy, subject)
		if res != nil && res.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		}
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, ratelimit.ErrRateLimited):
			logger.FromContext(ctx).Warn("rate limit exceeded",
				zap.String("policy", policy),
				zap.String("subject", subject),
			)
			s.obsMetrics.RecordRateLimitDenied(ctx, policy)
			retryAfter := 1
			if res != nil && res.RetryAfter > 0 {
				retryAfter = int(math.Ceil(res.RetryAfter.Seconds()))
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ErrRateLimited)
		default:
			AbortWithError(c, err)
		}
	}
}

func currentUser(c *gin.Context) (userdomain.User, bool) {
	value, ok := c.Get(contextUserKey)
	if !ok {
		return userdomain.User{}, false
	}
	user, ok := value.(userdomain.User)
	return user, ok
}

// Signed-in callers are limited per account, anonymous ones per client IP.
func rateLimitSubject(c *gin.Context) string {
	if user, ok := currentUser(c); ok {
		return user.ID.String()
	}
	return "ip:" + c.ClientIP()
}
