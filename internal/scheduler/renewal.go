package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	invoiceservice "github.com/smallbiznis/cloudnest/internal/invoice/service"
	"github.com/smallbiznis/cloudnest/internal/notification"
	obsmetrics "github.com/smallbiznis/cloudnest/internal/observability/metrics"
	provisioningdomain "github.com/smallbiznis/cloudnest/internal/provisioning/domain"
	provisioningservice "github.com/smallbiznis/cloudnest/internal/provisioning/service"
	"github.com/smallbiznis/cloudnest/internal/scheduler/guard"
	walletdomain "github.com/smallbiznis/cloudnest/internal/wallet/domain"
	"github.com/smallbiznis/cloudnest/pkg/db"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type renewalOutcome int

const (
	renewalSkipped renewalOutcome = iota
	renewalCharged
	renewalInvoiced
)

type renewal struct {
	outcome renewalOutcome
	server  provisioningdomain.Server
	invoice invoicedomain.Invoice
	balance int64
}

// RenewalJob bills every active server whose renewal date is within the lead
// window. Each server is handled in its own transaction: the wallet is
// debited and the period advanced when the balance covers the renewal,
// otherwise an unpaid invoice due on the renewal date is raised.
func (s *Scheduler) RenewalJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobRenewal, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	cfg := s.lifecycle.Get()
	now := s.clock.Now()
	before := now.AddDate(0, 0, cfg.RenewalLeadDays)

	var jobErr error
	processed := 0
	fetch := func(after *pagination.Keyset) ([]provisioningdomain.Server, error) {
		servers, err := s.provisioning.ListDueForRenewal(ctx, before, after, s.cfg.BatchSize)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.renewal.list.failed", JobRenewal, err)
		}
		return servers, err
	}
	key := func(server provisioningdomain.Server) pagination.Keyset {
		return pagination.Keyset{At: server.RenewalDate, ID: server.ID}
	}
	err := eachPage(ctx, s.cfg.BatchSize, fetch, key, func(server provisioningdomain.Server) {
		if err := guard.EnsureServerCanRenew(server, now, cfg.RenewalLeadDays); err != nil {
			s.logDeferred(ctx, JobRenewal, guard.Reason(err), zap.String("server_id", server.ID.String()))
			return
		}

		res, err := s.renewServer(ctx, server)
		if err != nil {
			if isLostRace(err) {
				s.logDeferred(ctx, JobRenewal, "concurrent_renewal", zap.String("server_id", server.ID.String()))
				return
			}
			jobErr = errors.Join(jobErr, err)
			s.logSchedulerError(ctx, run, "scheduler.renewal.failed", JobRenewal, err,
				zap.String("server_id", server.ID.String()),
			)
			return
		}

		switch res.outcome {
		case renewalSkipped:
			s.logDeferred(ctx, JobRenewal, "open_renewal_invoice", zap.String("server_id", server.ID.String()))
			return
		case renewalCharged:
			s.notifier.Notify(ctx, notification.Message{
				UserID:   res.server.UserID,
				Template: notification.TemplateRenewalCharged,
				Data: map[string]any{
					"hostname":       res.server.Hostname,
					"invoice_number": res.invoice.Number,
					"amount":         res.invoice.Amount,
					"balance":        res.balance,
					"renewal_date":   res.server.RenewalDate.Format("2006-01-02"),
				},
			})
		case renewalInvoiced:
			s.notifier.Notify(ctx, notification.Message{
				UserID:   res.invoice.UserID,
				Template: notification.TemplateInvoiceCreated,
				Data:     invoiceservice.NotificationData(res.invoice),
			})
		}
		processed++
		run.AddProcessed(1)
	})
	if err != nil {
		return errors.Join(jobErr, err)
	}

	obsmetrics.Scheduler().AddBatchProcessed(JobRenewal, obsmetrics.EntityServer, processed)
	return jobErr
}

func (s *Scheduler) renewServer(ctx context.Context, candidate provisioningdomain.Server) (renewal, error) {
	var out renewal
	err := db.Retry(ctx, func(ctx context.Context) error {
		out = renewal{}
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			server, err := s.provisioning.GetTx(ctx, tx, candidate.ID)
			if err != nil {
				return err
			}
			if server.Status != provisioningdomain.StatusActive || !server.RenewalDate.Equal(candidate.RenewalDate) {
				return nil
			}
			open, err := s.invoices.FindOpenRenewalTx(ctx, tx, server.ID)
			if err != nil {
				return err
			}
			if open != nil {
				return nil
			}

			req := provisioningservice.RenewalInvoiceRequest(server)
			txn, err := s.wallet.DebitTx(ctx, tx, walletdomain.DebitRequest{
				UserID:      server.UserID,
				Amount:      server.Amount,
				Description: fmt.Sprintf("Auto-renewal: %s", server.Hostname),
				Reference:   req.IdempotencyKey,
			})
			switch {
			case errors.Is(err, walletdomain.ErrInsufficientBalance):
				inv, err := s.invoices.CreateTx(ctx, tx, req)
				if err != nil {
					return err
				}
				out = renewal{outcome: renewalInvoiced, server: server, invoice: inv}
				return nil
			case err != nil:
				return err
			}

			req.Paid = true
			req.PaymentReference = "wallet"
			inv, err := s.invoices.CreateTx(ctx, tx, req)
			if err != nil {
				return err
			}
			advanced, err := s.provisioning.AdvanceRenewalTx(ctx, tx, server)
			if err != nil {
				return err
			}
			out = renewal{outcome: renewalCharged, server: advanced, invoice: inv, balance: txn.BalanceAfter}
			return nil
		})
	})
	if err != nil {
		return renewal{}, err
	}
	if out.outcome == renewalCharged {
		s.logger(ctx).Info("server renewed from wallet",
			zap.String("server_id", out.server.ID.String()),
			zap.String("invoice_id", out.invoice.ID.String()),
			zap.Int64("amount", out.invoice.Amount),
			zap.Time("renewal_date", out.server.RenewalDate),
		)
		obsmetrics.Scheduler().IncTransition(obsmetrics.EntityInvoice, "", string(invoicedomain.StatusPaid))
	}
	if out.outcome == renewalInvoiced {
		s.logger(ctx).Info("renewal invoice raised",
			zap.String("server_id", out.server.ID.String()),
			zap.String("invoice_id", out.invoice.ID.String()),
			zap.Time("due_date", out.invoice.DueDate),
		)
		obsmetrics.Scheduler().IncTransition(obsmetrics.EntityInvoice, "", string(invoicedomain.StatusUnpaid))
	}
	return out, nil
}

// isLostRace reports errors that mean another sweep already handled the
// server in the same period. The transaction was rolled back, so nothing was
// charged twice.
func isLostRace(err error) bool {
	return errors.Is(err, invoicedomain.ErrDuplicate) ||
		errors.Is(err, provisioningdomain.ErrInvalidTransition)
}

func overdueCutoff(now time.Time, graceDays int) time.Time {
	return now.AddDate(0, 0, -graceDays)
}
