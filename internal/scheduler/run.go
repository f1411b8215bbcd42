package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"clinicremind/internal/db"
	"clinicremind/internal/types"
)

// finishTimeout bounds the best-effort bookkeeping after a run, which happens
// even when the run context has expired.
const finishTimeout = 10 * time.Second

// TenantSource loads tenants with their reminder policies.
type TenantSource interface {
	ListReminderTenants(ctx context.Context) ([]types.Tenant, error)
}

// JobRecorder writes the job history row of a run.
type JobRecorder interface {
	Start(ctx context.Context, jobType, runID string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, jobErr error) error
}

// RunnerConfig carries the run tunables.
type RunnerConfig struct {
	TenantConcurrency int
	RunTimeout        time.Duration
}

// Runner executes one scheduler tick across all tenants.
type Runner struct {
	tenants     TenantSource
	scanner     *Scanner
	dispatcher  *Dispatcher
	jobs        JobRecorder
	metrics     Metrics
	validate    *validator.Validate
	concurrency int
	timeout     time.Duration
	clock       func() time.Time
	logger      *slog.Logger
}

func NewRunner(tenants TenantSource, scanner *Scanner, dispatcher *Dispatcher, jobs JobRecorder, metrics Metrics, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if cfg.TenantConcurrency < 1 {
		cfg.TenantConcurrency = 1
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 50 * time.Minute
	}
	return &Runner{
		tenants:     tenants,
		scanner:     scanner,
		dispatcher:  dispatcher,
		jobs:        jobs,
		metrics:     metrics,
		validate:    validator.New(),
		concurrency: cfg.TenantConcurrency,
		timeout:     cfg.RunTimeout,
		clock:       time.Now,
		logger:      logger,
	}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Run executes a tick at now under a new run id.
func (r *Runner) Run(ctx context.Context, now time.Time) *types.RunReport {
	return r.RunWithID(ctx, NewRunID(), now)
}

// RunWithID executes a tick at now. It never panics and never returns an
// error: failures are recorded in the report at the level they occurred.
func (r *Runner) RunWithID(ctx context.Context, runID string, now time.Time) (report *types.RunReport) {
	started := r.clock()
	report = &types.RunReport{
		RunID:     runID,
		StartedAt: started.UTC(),
		Results:   []types.TenantResult{},
	}

	log := r.logger.With("run_id", runID)
	ctx = types.WithLogger(types.WithRunID(ctx, runID), log)
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	jobID, jobErr := r.jobs.Start(ctx, db.JobTypeReminderRun, runID)
	if jobErr != nil {
		log.WarnContext(ctx, "failed to record job start", "error", jobErr)
	}

	defer func() {
		if p := recover(); p != nil {
			log.ErrorContext(ctx, "reminder run panicked",
				"panic", p,
				"stack", string(debug.Stack()),
			)
			report.Success = false
			report.Error = fmt.Sprintf("%s: %v", types.ErrCodeInternalUnexpected, p)
		}
		report.FinishedAt = r.clock().UTC()
		elapsed := report.FinishedAt.Sub(report.StartedAt)

		fctx, fcancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
		defer fcancel()
		if jobErr == nil {
			r.finishJob(fctx, jobID, report)
		}
		r.metrics.RecordRun(fctx, report, elapsed)

		log.InfoContext(ctx, "reminder run finished",
			"success", report.Success,
			"tenants", len(report.Results),
			"sent", report.TotalSent(),
			"failed", report.TotalFailed(),
			"duration_ms", elapsed.Milliseconds(),
		)
	}()

	tenants, err := r.tenants.ListReminderTenants(ctx)
	if err != nil {
		log.ErrorContext(ctx, "failed to load tenants", "error", err)
		report.Error = err.Error()
		return report
	}
	log.InfoContext(ctx, "reminder run started", "tenants", len(tenants), "tick", now.UTC())

	results := make([]types.TenantResult, len(tenants))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, t := range tenants {
		g.Go(func() error {
			results[i] = r.runTenant(ctx, t, now)
			return nil
		})
	}
	_ = g.Wait()

	report.Results = results
	report.Success = true
	return report
}

func (r *Runner) finishJob(ctx context.Context, id int64, report *types.RunReport) {
	status := db.JobStatusSuccess
	var jobErr error
	if !report.Success {
		status = db.JobStatusFailed
		jobErr = errors.New(report.Error)
	}
	if err := r.jobs.Finish(ctx, id, status, report.TotalSent(), jobErr); err != nil {
		r.logger.WarnContext(ctx, "failed to record job finish", "error", err, "run_id", report.RunID)
	}
}

// runTenant processes every enabled tier of one tenant, then its follow-ups.
// A panic is contained to the tenant.
func (r *Runner) runTenant(ctx context.Context, t types.Tenant, now time.Time) (res types.TenantResult) {
	res = types.TenantResult{TenantID: t.ID, TenantName: t.Name}
	log := types.LoggerFromContext(ctx, r.logger).With("tenant_id", t.ID)

	defer func() {
		if p := recover(); p != nil {
			log.ErrorContext(ctx, "tenant processing panicked",
				"panic", p,
				"stack", string(debug.Stack()),
			)
			res.Error = fmt.Sprintf("%s: %v", types.ErrCodeInternalUnexpected, p)
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Error = types.NewAppError(types.ErrCodeInternalUnexpected, "run deadline reached before tenant was processed", err).Error()
		return res
	}
	if err := r.validatePolicy(t); err != nil {
		log.WarnContext(ctx, "skipping tenant with invalid reminder policy", "error", err)
		res.Error = err.Error()
		return res
	}
	if !t.HasMessaging() {
		res.SkipReason = types.SkipMessagingMissing
		return res
	}
	if err := r.dispatcher.CheckTenant(t); err != nil {
		log.WarnContext(ctx, "skipping tenant with unusable messaging configuration", "error", err)
		res.SkipReason = types.SkipMessagingMissing
		return res
	}
	if len(t.Policy.EnabledTiers) == 0 && !t.Policy.FollowUpEnabled {
		res.SkipReason = types.SkipNoTiersEnabled
		return res
	}

	for _, tier := range types.AllTiers {
		if !t.Policy.TierEnabled(tier) {
			continue
		}
		scan, err := r.scanner.Scan(ctx, t, tier, now)
		res.Tiers = append(res.Tiers, r.dispatchAll(ctx, t, tier, scan, err, now))
	}
	if t.Policy.FollowUpEnabled {
		scan, err := r.scanner.ScanFollowUps(ctx, t, now)
		res.Tiers = append(res.Tiers, r.dispatchAll(ctx, t, types.FollowUpTier, scan, err, now))
	}
	return res
}

func (r *Runner) dispatchAll(ctx context.Context, t types.Tenant, tier types.Tier, scan ScanResult, scanErr error, now time.Time) types.TierResult {
	res := types.TierResult{Tier: tier}
	log := types.LoggerFromContext(ctx, r.logger).With("tenant_id", t.ID, "tier", tier)

	if scanErr != nil {
		log.ErrorContext(ctx, "tier scan failed", "error", scanErr)
		res.Error = scanErr.Error()
		return res
	}
	if !scan.Window.Evaluate {
		res.SkipReason = types.SkipOutsideSendHour
		return res
	}

	res.Evaluated = true
	res.Candidates = scan.Candidates
	res.Matched = scan.Matched
	for reason, n := range scan.Skipped {
		if res.Skipped == nil {
			res.Skipped = make(map[string]int, len(scan.Skipped))
		}
		res.Skipped[reason] += n
	}

	for _, a := range scan.Due {
		if err := ctx.Err(); err != nil {
			res.Error = types.NewAppError(types.ErrCodeInternalUnexpected, "run deadline reached", err).Error()
			break
		}
		out := r.dispatcher.Dispatch(ctx, t, a, tier, now)
		switch out.Status {
		case OutcomeSent:
			res.Sent++
		case OutcomeFailed:
			res.Failed++
		case OutcomeSkipped:
			res.AddSkip(out.Reason)
		}
	}

	log.InfoContext(ctx, "tier processed",
		"candidates", res.Candidates,
		"matched", res.Matched,
		"sent", res.Sent,
		"failed", res.Failed,
	)
	return res
}

func (r *Runner) validatePolicy(t types.Tenant) error {
	if err := r.validate.Struct(t.Policy); err != nil {
		return types.NewAppError(types.ErrCodeConfigInvalidPolicy, "reminder policy failed validation", err)
	}
	if _, err := LoadLocation(t.Timezone); err != nil {
		return types.NewAppError(types.ErrCodeConfigInvalidPolicy, "invalid tenant timezone", err)
	}
	return nil
}
