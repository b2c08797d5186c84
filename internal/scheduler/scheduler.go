package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cloudnest/internal/clock"
	"github.com/smallbiznis/cloudnest/internal/config"
	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	"github.com/smallbiznis/cloudnest/internal/notification"
	obslogger "github.com/smallbiznis/cloudnest/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/cloudnest/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/cloudnest/internal/order/domain"
	provisioningdomain "github.com/smallbiznis/cloudnest/internal/provisioning/domain"
	"github.com/smallbiznis/cloudnest/internal/ratelimit"
	walletdomain "github.com/smallbiznis/cloudnest/internal/wallet/domain"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobRenewal      = "renewal"
	JobSuspension   = "suspension"
	JobCancellation = "cancellation"

	lockKeyPrefix = "cloudnest:scheduler:"
)

var (
	ErrInvalidConfig = errors.New("invalid_scheduler_config")
	ErrUnknownJob    = errors.New("unknown_scheduler_job")
)

// Result summarises one pass for the on-demand admin endpoints.
type Result struct {
	Job       string `json:"job"`
	Processed int    `json:"processed"`
	Errors    int    `json:"errors"`
}

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Invoices     invoicedomain.Service
	Orders       orderdomain.Service
	Provisioning provisioningdomain.Service
	Wallet       walletdomain.Service
	Lifecycle    *config.LifecycleConfigHolder
	Locker       *ratelimit.Locker     `optional:"true"`
	Notifier     notification.Notifier `optional:"true"`
	Config       Config                `optional:"true"`
}

type Scheduler struct {
	db           *gorm.DB
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	invoices     invoicedomain.Service
	orders       orderdomain.Service
	provisioning provisioningdomain.Service
	wallet       walletdomain.Service
	lifecycle    *config.LifecycleConfigHolder
	locker       *ratelimit.Locker
	notifier     notification.Notifier
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil ||
		p.Invoices == nil || p.Orders == nil || p.Provisioning == nil || p.Wallet == nil {
		return nil, ErrInvalidConfig
	}
	notifier := p.Notifier
	if notifier == nil {
		notifier = notification.Discard{}
	}
	lifecycle := p.Lifecycle
	if lifecycle == nil {
		lifecycle = config.NewStaticLifecycleConfigHolder(config.DefaultLifecycleConfig())
	}
	return &Scheduler{
		db:           p.DB,
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		genID:        p.GenID,
		clock:        p.Clock,
		invoices:     p.Invoices,
		orders:       p.Orders,
		provisioning: p.Provisioning,
		wallet:       p.Wallet,
		lifecycle:    lifecycle,
		locker:       p.Locker,
		notifier:     notifier,
	}, nil
}

// runJob executes fn under the sweep lease for name. Another process holding
// the lease defers the pass rather than failing it.
func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) (Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := obslogger.WithJob(s.logger(ctx), name, run.runID)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	ran, err := s.locker.WithLock(ctx, lockKeyPrefix+name, timeout, fn)
	if errors.Is(err, ratelimit.ErrLockUnavailable) {
		log.Warn("sweep lock unavailable, relying on database guards", zap.Error(err))
		ran, err = true, fn(ctx)
	}
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if !ran && err == nil {
		s.logDeferred(ctx, name, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
	}
	if owner {
		if err != nil && run.Errors == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return run.result(), nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return run.result(), nil
	}

	return run.result(), fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) jobs() []struct {
	Name string
	Run  func(context.Context) error
} {
	return []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobRenewal, s.RenewalJob},
		{JobSuspension, s.SuspensionJob},
		{JobCancellation, s.CancellationJob},
	}
}

// RunOnce runs the enabled passes in order: renewal, suspension,
// cancellation.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	for _, job := range s.jobs() {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		if parent.Err() != nil {
			return errors.Join(err, parent.Err())
		}
		_, jobErr := s.runJob(parent, job.Name, s.cfg.BatchSize, s.cfg.JobTimeout, job.Run)
		err = errors.Join(err, jobErr)
	}
	return err
}

// Run executes a single pass on demand regardless of EnabledJobs.
func (s *Scheduler) Run(ctx context.Context, name string) (Result, error) {
	for _, job := range s.jobs() {
		if job.Name == name {
			return s.runJob(ctx, job.Name, s.cfg.BatchSize, s.cfg.JobTimeout, job.Run)
		}
	}
	return Result{}, ErrUnknownJob
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// eachPage walks every candidate fetch returns, page by page, until a short
// page. Rows the visitor skips still advance the key, so a backlog of
// ineligible rows cannot starve newer candidates.
func eachPage[T any](
	ctx context.Context,
	size int,
	fetch func(after *pagination.Keyset) ([]T, error),
	key func(T) pagination.Keyset,
	visit func(T),
) error {
	var after *pagination.Keyset
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		items, err := fetch(after)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			visit(item)
		}
		if size <= 0 || len(items) < size {
			return nil
		}
		next := key(items[len(items)-1])
		after = &next
	}
}
