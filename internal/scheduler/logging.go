package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/cloudnest/internal/observability/context"
	obslogger "github.com/smallbiznis/cloudnest/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/cloudnest/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun accumulates the outcome of one sweep. Nested sweeps (an on-demand
// renewal check that triggers escalation) share the outer run.
type jobRun struct {
	Result
	runID     string
	batchSize int
	startedAt time.Time
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(n int) {
	if r != nil && n > 0 {
		r.Processed += n
	}
}

func (r *jobRun) IncError() {
	if r != nil {
		r.Errors++
	}
}

func (r *jobRun) result() Result {
	if r == nil {
		return Result{}
	}
	return r.Result
}

// ensureJobRun returns the run already on ctx or starts a new one. owner
// reports whether the caller started it and so must log its finish.
func (s *Scheduler) ensureJobRun(ctx context.Context, job string, batchSize int) (_ context.Context, run *jobRun, owner bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing, ok := ctx.Value(jobRunKey{}).(*jobRun); ok && existing != nil {
		return ctx, existing, false
	}
	run = &jobRun{
		Result:    Result{Job: job},
		runID:     s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: time.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	return obscontext.WithActor(ctx, "system", "scheduler"), run, true
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) runLogger(ctx context.Context, run *jobRun) *zap.Logger {
	return obslogger.WithJob(s.logger(ctx), run.Job, run.runID)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	s.runLogger(ctx, run).Info("scheduler.job.start", zap.Int("batch_size", run.batchSize))
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	log := s.runLogger(ctx, run)
	fields := []zap.Field{
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.Processed),
		zap.Int("error_count", run.Errors),
	}
	if run.Errors == 0 {
		log.Info("scheduler.job.finish", fields...)
		return
	}
	log.Warn("scheduler.job.finish", fields...)
}

// logSchedulerError counts err against run and logs it with its retry class.
func (s *Scheduler) logSchedulerError(ctx context.Context, run *jobRun, msg string, job string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	run.IncError()
	s.logger(ctx).Error(msg, append([]zap.Field{
		zap.String("job", job),
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	}, fields...)...)
}

func (s *Scheduler) logDeferred(ctx context.Context, job string, reason string, fields ...zap.Field) {
	obsmetrics.Scheduler().IncBatchDeferred(job, reason)
	s.logger(ctx).Debug("scheduler.item.deferred", append([]zap.Field{
		zap.String("job", job),
		zap.String("reason", reason),
	}, fields...)...)
}
