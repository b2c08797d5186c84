package scheduler

import (
	"context"
	"errors"
	"time"

	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	"github.com/smallbiznis/cloudnest/internal/notification"
	obsmetrics "github.com/smallbiznis/cloudnest/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/cloudnest/internal/order/domain"
	provisioningdomain "github.com/smallbiznis/cloudnest/internal/provisioning/domain"
	"github.com/smallbiznis/cloudnest/internal/scheduler/guard"
	"github.com/smallbiznis/cloudnest/pkg/db"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cancelReasonNonPayment = "non-payment"

// SuspensionJob suspends active servers with an unpaid invoice overdue past
// the suspension grace window.
func (s *Scheduler) SuspensionJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobSuspension, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	cfg := s.lifecycle.Get()
	now := s.clock.Now()
	cutoff := overdueCutoff(now, cfg.SuspendGraceDays)

	var jobErr error
	processed := 0
	err := eachPage(ctx, s.cfg.BatchSize, s.overdueFetcher(ctx, run, JobSuspension, cutoff), overdueKey, func(inv invoicedomain.Invoice) {
		server, err := s.serverForInvoice(ctx, s.db, inv)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.logSchedulerError(ctx, run, "scheduler.suspension.lookup.failed", JobSuspension, err,
				zap.String("invoice_id", inv.ID.String()),
			)
			return
		}
		if server == nil {
			return
		}
		if err := guard.EnsureCanSuspend(*server, inv, now, cfg.SuspendGraceDays); err != nil {
			s.logDeferred(ctx, JobSuspension, guard.Reason(err), zap.String("server_id", server.ID.String()))
			return
		}

		var suspended provisioningdomain.Server
		err = db.Retry(ctx, func(ctx context.Context) error {
			return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				var err error
				suspended, err = s.provisioning.SuspendTx(ctx, tx, server.ID, inv.ID)
				return err
			})
		})
		if errors.Is(err, provisioningdomain.ErrInvalidTransition) {
			s.logDeferred(ctx, JobSuspension, "concurrent_transition", zap.String("server_id", server.ID.String()))
			return
		}
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.logSchedulerError(ctx, run, "scheduler.suspension.failed", JobSuspension, err,
				zap.String("server_id", server.ID.String()),
				zap.String("invoice_id", inv.ID.String()),
			)
			return
		}

		obsmetrics.Scheduler().IncTransition(obsmetrics.EntityServer,
			string(provisioningdomain.StatusActive), string(provisioningdomain.StatusSuspended))
		s.provisioning.NotifySuspended(ctx, suspended, inv)
		processed++
		run.AddProcessed(1)
	})
	if err != nil {
		return errors.Join(jobErr, err)
	}

	obsmetrics.Scheduler().AddBatchProcessed(JobSuspension, obsmetrics.EntityServer, processed)
	return jobErr
}

// CancellationJob cancels suspended servers whose invoice is overdue past the
// cancellation grace window, together with their order and that invoice.
// Orders that were never provisioned are cancelled once their invoice passes
// the same window.
func (s *Scheduler) CancellationJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobCancellation, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	cfg := s.lifecycle.Get()
	now := s.clock.Now()
	cutoff := overdueCutoff(now, cfg.CancelGraceDays)

	var jobErr error
	processed := 0
	err := eachPage(ctx, s.cfg.BatchSize, s.overdueFetcher(ctx, run, JobCancellation, cutoff), overdueKey, func(inv invoicedomain.Invoice) {
		server, err := s.serverForInvoice(ctx, s.db, inv)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.logSchedulerError(ctx, run, "scheduler.cancellation.lookup.failed", JobCancellation, err,
				zap.String("invoice_id", inv.ID.String()),
			)
			return
		}

		var done bool
		if server == nil {
			done, err = s.cancelUnprovisioned(ctx, inv)
		} else {
			if gErr := guard.EnsureCanCancel(*server, inv, now, cfg.SuspendGraceDays, cfg.CancelGraceDays); gErr != nil {
				s.logDeferred(ctx, JobCancellation, guard.Reason(gErr), zap.String("server_id", server.ID.String()))
				return
			}
			done, err = s.cancelServer(ctx, *server, inv)
		}
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.logSchedulerError(ctx, run, "scheduler.cancellation.failed", JobCancellation, err,
				zap.String("invoice_id", inv.ID.String()),
			)
			return
		}
		if done {
			processed++
			run.AddProcessed(1)
		}
	})
	if err != nil {
		return errors.Join(jobErr, err)
	}

	obsmetrics.Scheduler().AddBatchProcessed(JobCancellation, obsmetrics.EntityServer, processed)
	return jobErr
}

func (s *Scheduler) cancelServer(ctx context.Context, server provisioningdomain.Server, inv invoicedomain.Invoice) (bool, error) {
	var cancelled provisioningdomain.Server
	err := db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			cancelled, err = s.provisioning.CancelTx(ctx, tx, server.ID, inv.ID, cancelReasonNonPayment)
			return err
		})
	})
	if errors.Is(err, provisioningdomain.ErrInvalidTransition) {
		s.logDeferred(ctx, JobCancellation, "concurrent_transition", zap.String("server_id", server.ID.String()))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncTransition(obsmetrics.EntityServer,
		string(provisioningdomain.StatusSuspended), string(provisioningdomain.StatusCancelled))
	schedMetrics.IncTransition(obsmetrics.EntityOrder,
		string(orderdomain.StatusActive), string(orderdomain.StatusCancelled))
	s.provisioning.NotifyCancelled(ctx, cancelled)
	return true, nil
}

// cancelUnprovisioned drops an order whose invoice was never paid and for
// which no server exists. Renewal invoices always have a server, so only
// order invoices reach here.
func (s *Scheduler) cancelUnprovisioned(ctx context.Context, inv invoicedomain.Invoice) (bool, error) {
	if inv.Kind != invoicedomain.KindOrder || inv.OrderID == nil {
		return false, nil
	}

	var (
		order   orderdomain.Order
		changed bool
	)
	err := db.Retry(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := s.orders.GetTx(ctx, tx, *inv.OrderID)
			if err != nil {
				return err
			}
			if current.Status != orderdomain.StatusPending {
				return nil
			}
			order, changed, err = s.orders.CancelTx(ctx, tx, current.ID, cancelReasonNonPayment)
			if err != nil {
				return err
			}
			_, _, err = s.invoices.MarkCancelledTx(ctx, tx, inv.ID, cancelReasonNonPayment)
			return err
		})
	})
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	obsmetrics.Scheduler().IncTransition(obsmetrics.EntityOrder,
		string(orderdomain.StatusPending), string(orderdomain.StatusCancelled))
	s.logger(ctx).Info("unpaid order cancelled",
		zap.String("order_id", order.ID.String()),
		zap.String("invoice_id", inv.ID.String()),
	)
	s.notifier.Notify(ctx, notification.Message{
		UserID:   order.UserID,
		Template: notification.TemplateOrderUpdated,
		Data: map[string]any{
			"order_id":       order.ID.String(),
			"payment_status": string(order.PaymentStatus),
			"order_status":   string(order.Status),
		},
	})
	return true, nil
}

func (s *Scheduler) overdueFetcher(ctx context.Context, run *jobRun, job string, cutoff time.Time) func(*pagination.Keyset) ([]invoicedomain.Invoice, error) {
	return func(after *pagination.Keyset) ([]invoicedomain.Invoice, error) {
		invoices, err := s.invoices.ListOverdue(ctx, cutoff, after, s.cfg.BatchSize)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler."+job+".list.failed", job, err)
		}
		return invoices, err
	}
}

func overdueKey(inv invoicedomain.Invoice) pagination.Keyset {
	return pagination.Keyset{At: inv.DueDate, ID: inv.ID}
}

// serverForInvoice resolves the server an overdue invoice belongs to, or nil
// when the order behind it was never provisioned.
func (s *Scheduler) serverForInvoice(ctx context.Context, conn *gorm.DB, inv invoicedomain.Invoice) (*provisioningdomain.Server, error) {
	if inv.ServerID != nil {
		server, err := s.provisioning.GetTx(ctx, conn.WithContext(ctx), *inv.ServerID)
		if errors.Is(err, provisioningdomain.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &server, nil
	}
	if inv.OrderID == nil {
		return nil, nil
	}
	return s.provisioning.FindByOrderTx(ctx, conn.WithContext(ctx), *inv.OrderID)
}
