package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-books/internal/jobs"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Recomputer rebuilds cached account balances.
type Recomputer interface {
	RecomputeAll(ctx context.Context, scope shared.Scope) (*shared.PartialFailure, error)
}

// BalanceRefreshJob recomputes cached balances for every tenant.
type BalanceRefreshJob struct {
	Balances Recomputer
	Tenants  TenantLister
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewBalanceRefreshJob constructs the refresh handler.
func NewBalanceRefreshJob(bal Recomputer, tenants TenantLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *BalanceRefreshJob {
	return &BalanceRefreshJob{Balances: bal, Tenants: tenants, Logger: logger, Metrics: metrics}
}

// Handle executes the refresh for the task payload.
func (j *BalanceRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Balances == nil {
		return errors.New("balance refresh: dependencies not configured")
	}
	payload, err := decodeTenantPayload(t)
	if err != nil {
		return err
	}
	_, err = j.Run(ctx, payload.TenantID)
	return err
}

// Run refreshes one tenant, or all when tenantID is zero. Per-account
// failures are logged with their account codes and returned joined.
func (j *BalanceRefreshJob) Run(ctx context.Context, tenantID int64) (reports map[int64]*shared.PartialFailure, err error) {
	tracker := pick(j.Metrics).Track(TaskBalanceRefresh)
	defer func() { err = tracker.End(err) }()
	logger := jobLogger(j.Logger, TaskBalanceRefresh)

	tenants, err := resolveTenants(ctx, j.Tenants, tenantID)
	if err != nil {
		return nil, err
	}
	reports = make(map[int64]*shared.PartialFailure, len(tenants))
	var errs []error
	for _, id := range tenants {
		report, err := j.Balances.RecomputeAll(ctx, tenantScope(id))
		if report == nil {
			logger.ErrorContext(ctx, "balance refresh failed", slog.Int64("tenant_id", id), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("tenant %d: %w", id, err))
			continue
		}
		reports[id] = report
		if len(report.Failed) == 0 {
			logger.InfoContext(ctx, "balances refreshed", slog.Int64("tenant_id", id), slog.Int("accounts", len(report.Succeeded)))
			continue
		}
		pick(j.Metrics).AddFindings("balance_refresh_failure", id, len(report.Failed))
		for _, code := range slices.Sorted(maps.Keys(report.Failed)) {
			logger.WarnContext(ctx, "account balance not refreshed",
				slog.Int64("tenant_id", id),
				slog.String("account", code),
				slog.Any("error", report.Failed[code]))
		}
		errs = append(errs, fmt.Errorf("tenant %d: %w", id, err))
	}
	return reports, errors.Join(errs...)
}
