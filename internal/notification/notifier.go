// Package notification delivers customer email off the request path.
//
// Notify never blocks and never reports delivery problems to the caller:
// messages go onto a bounded queue drained by a small worker pool, and a
// full queue drops the message with a warning. State changes that trigger a
// notification are committed before Notify is called, so a failed or dropped
// email never undoes them.
package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/cloudnest/internal/config"
	"github.com/smallbiznis/cloudnest/internal/observability/metrics"
	"github.com/smallbiznis/cloudnest/internal/providers/email"
	userdomain "github.com/smallbiznis/cloudnest/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	TemplateOrderPlaced       = "order_placed"
	TemplateOrderUpdated      = "order_updated"
	TemplateInvoiceCreated    = "invoice_created"
	TemplateInvoicePaid       = "invoice_paid"
	TemplateServerProvisioned = "server_provisioned"
	TemplateServerCredentials = "server_credentials"
	TemplateServerSuspended   = "server_suspended"
	TemplateServerUnsuspended = "server_unsuspended"
	TemplateServerCancelled   = "server_cancelled"
	TemplateRenewalCharged    = "renewal_charged"
	TemplateTopUpReviewed     = "topup_reviewed"
	TemplateTicketUpdated     = "ticket_updated"
	TemplateContactReceived   = "contact_received"
)

const (
	outcomeSent    = "sent"
	outcomeFailed  = "failed"
	outcomeDropped = "dropped"
)

// Message addresses a user by id or a raw email address.
type Message struct {
	UserID   snowflake.ID
	Email    string
	Template string
	Data     map[string]any
}

type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

type Params struct {
	fx.In

	Lc       fx.Lifecycle
	Cfg      config.Config
	Log      *zap.Logger
	Provider email.Provider
	Users    userdomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Queue struct {
	log      *zap.Logger
	provider email.Provider
	users    userdomain.Service
	metrics  *metrics.Metrics

	workers     int
	sendTimeout time.Duration
	maxAttempts uint

	jobs chan Message
	// ctx bounds every delivery; Shutdown cancels it once its deadline passes
	// so retries in flight stop too.
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

func New(p Params) *Queue {
	q := NewQueue(p.Log, p.Provider, p.Users, p.Metrics, p.Cfg.Notifier)
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			q.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return q.Shutdown(ctx)
		},
	})
	return q
}

func NewQueue(log *zap.Logger, provider email.Provider, users userdomain.Service, m *metrics.Metrics, cfg config.NotifierConfig) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = 3
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		log:         log.Named("notification"),
		provider:    provider,
		users:       users,
		metrics:     m,
		workers:     workers,
		sendTimeout: timeout,
		maxAttempts: attempts,
		jobs:        make(chan Message, size),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
}

// Shutdown stops accepting messages and waits for queued ones to drain or
// for ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

func (q *Queue) Notify(ctx context.Context, msg Message) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		q.drop(ctx, msg, "notifier stopped")
		return
	}
	select {
	case q.jobs <- msg:
	default:
		q.drop(ctx, msg, "queue full")
	}
}

func (q *Queue) drop(ctx context.Context, msg Message, reason string) {
	q.log.Warn("notification dropped",
		zap.String("template", msg.Template),
		zap.String("user_id", msg.UserID.String()),
		zap.String("reason", reason),
	)
	q.metrics.RecordNotification(ctx, msg.Template, outcomeDropped)
}

func (q *Queue) run() {
	defer q.wg.Done()
	for msg := range q.jobs {
		if q.ctx.Err() != nil {
			return
		}
		q.deliver(q.ctx, msg)
	}
}

func (q *Queue) deliver(ctx context.Context, msg Message) {
	log := q.log.With(zap.String("template", msg.Template), zap.String("user_id", msg.UserID.String()))

	to, data, err := q.resolve(ctx, msg)
	if err != nil {
		log.Warn("notification recipient not resolved", zap.Error(err))
		q.metrics.RecordNotification(ctx, msg.Template, outcomeFailed)
		return
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 5 * time.Second

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, q.sendTimeout)
		defer cancel()
		return struct{}{}, q.provider.SendTemplate(attemptCtx, []string{to}, msg.Template, data)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(q.maxAttempts),
	)
	if err != nil {
		log.Error("notification delivery failed", zap.Error(err))
		q.metrics.RecordNotification(ctx, msg.Template, outcomeFailed)
		return
	}
	log.Debug("notification sent")
	q.metrics.RecordNotification(ctx, msg.Template, outcomeSent)
}

func (q *Queue) resolve(ctx context.Context, msg Message) (string, map[string]any, error) {
	data := make(map[string]any, len(msg.Data)+1)
	for k, v := range msg.Data {
		data[k] = v
	}
	if msg.Email != "" {
		return msg.Email, data, nil
	}
	if msg.UserID == 0 || q.users == nil {
		return "", nil, errors.New("message has no recipient")
	}
	user, err := q.users.GetByID(ctx, msg.UserID.String())
	if err != nil {
		return "", nil, err
	}
	if _, ok := data["name"]; !ok {
		data["name"] = user.FullName
	}
	return user.Email, data, nil
}

var _ Notifier = (*Queue)(nil)

// Discard is a Notifier that drops everything. Tools that run lifecycle
// operations without a mail setup use it.
type Discard struct{}

func (Discard) Notify(context.Context, Message) {}
