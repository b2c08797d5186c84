package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("rate_limited")

const keyPattern = "cloudnest:ratelimit:%s:%s"

type Policy struct {
	Name      string
	PerMinute float64
	Burst     int
}

func (p Policy) perSecond() float64 {
	return p.PerMinute / 60
}

const (
	PolicyPlaceOrder = "place_order"
	PolicyTopUp      = "topup"
	PolicyContact    = "contact"
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Clock  clock.Clock
	Redis  *redis.Client `optional:"true"`
}

// Limiter throttles customer write paths. It uses a shared Redis bucket
// when a client is available and per-process buckets otherwise.
type Limiter struct {
	enabled  bool
	log      *zap.Logger
	clock    clock.Clock
	bucket   *TokenBucket
	local    *localBuckets
	policies map[string]Policy
}

func NewLimiter(p Params) *Limiter {
	cfg := p.Config.RateLimit
	l := &Limiter{
		enabled: cfg.Enabled,
		log:     p.Log.Named("ratelimit"),
		clock:   p.Clock,
		bucket:  NewTokenBucket(p.Redis),
		local:   newLocalBuckets(),
		policies: map[string]Policy{
			PolicyPlaceOrder: {Name: PolicyPlaceOrder, PerMinute: cfg.OrdersPerMinute, Burst: cfg.OrderBurst},
			PolicyTopUp:      {Name: PolicyTopUp, PerMinute: cfg.TopUpsPerMinute, Burst: cfg.TopUpBurst},
			PolicyContact:    {Name: PolicyContact, PerMinute: cfg.ContactsPerMinute, Burst: cfg.ContactBurst},
		},
	}
	if l.clock == nil {
		l.clock = clock.SystemClock{}
	}
	return l
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow consumes one event for subject under the named policy. A denied
// event returns the result together with ErrRateLimited.
func (l *Limiter) Allow(ctx context.Context, policy, subject string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	pol, ok := l.policies[policy]
	if !ok {
		return nil, fmt.Errorf("unknown rate limit policy %q", policy)
	}
	subject = strings.TrimSpace(subject)
	key := fmt.Sprintf(keyPattern, pol.Name, subject)
	if err := validate(subject, pol.perSecond(), pol.Burst); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	if l.bucket != nil {
		res, err = l.bucket.Allow(ctx, key, pol.perSecond(), pol.Burst)
		if err != nil {
			l.log.Warn("redis rate limit unavailable, using local bucket",
				zap.String("policy", pol.Name),
				zap.Error(err),
			)
			res = nil
		}
	}
	if res == nil {
		res = l.local.allow(key, pol, l.clock.Now())
	}
	if !res.Allowed {
		return res, ErrRateLimited
	}
	return res, nil
}

type localBuckets struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newLocalBuckets() *localBuckets {
	return &localBuckets{limiters: make(map[string]*rate.Limiter)}
}

func (b *localBuckets) get(key string, pol Policy) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	lim, ok := b.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(pol.perSecond()), pol.Burst)
		b.limiters[key] = lim
	}
	return lim
}

func (b *localBuckets) allow(key string, pol Policy, now time.Time) *Result {
	lim := b.get(key, pol)
	res := &Result{Limit: pol.Burst}

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return res
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
		res.RetryAfter = delay
		res.ResetTime = now.Add(delay)
		res.Remaining = 0
		return res
	}
	res.Allowed = true
	res.Remaining = int(lim.TokensAt(now))
	res.ResetTime = now
	return res
}
