package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-books/internal/jobs"
	"github.com/odyssey-erp/odyssey-books/internal/lifecycle"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// OverdueMarker flags open documents past their due date.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, scope shared.Scope, asOf time.Time) (lifecycle.OverdueReport, error)
}

// OverdueSweepJob runs MarkOverdue for every tenant.
type OverdueSweepJob struct {
	Lifecycle OverdueMarker
	Tenants   TenantLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewOverdueSweepJob constructs the sweep handler.
func NewOverdueSweepJob(marker OverdueMarker, tenants TenantLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueSweepJob {
	return &OverdueSweepJob{
		Lifecycle: marker,
		Tenants:   tenants,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the sweep date for deterministic tests.
func (j *OverdueSweepJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}

// Handle executes the sweep for the task payload.
func (j *OverdueSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Lifecycle == nil {
		return errors.New("overdue sweep: dependencies not configured")
	}
	payload, err := decodeTenantPayload(t)
	if err != nil {
		return err
	}
	_, err = j.Run(ctx, payload.TenantID)
	return err
}

// Run sweeps one tenant, or all when tenantID is zero. A failing tenant
// does not stop the others; the failures are joined into the result.
func (j *OverdueSweepJob) Run(ctx context.Context, tenantID int64) (swept map[int64]lifecycle.OverdueReport, err error) {
	tracker := pick(j.Metrics).Track(TaskOverdueSweep)
	defer func() { err = tracker.End(err) }()
	logger := jobLogger(j.Logger, TaskOverdueSweep)

	tenants, err := resolveTenants(ctx, j.Tenants, tenantID)
	if err != nil {
		return nil, err
	}
	asOf := j.now()
	swept = make(map[int64]lifecycle.OverdueReport, len(tenants))
	var errs []error
	for _, id := range tenants {
		report, err := j.Lifecycle.MarkOverdue(ctx, tenantScope(id), asOf)
		if err != nil {
			logger.ErrorContext(ctx, "overdue sweep failed", slog.Int64("tenant_id", id), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		swept[id] = report
		if len(report.Invoices)+len(report.Bills) > 0 {
			logger.InfoContext(ctx, "documents marked overdue",
				slog.Int64("tenant_id", id),
				slog.Any("invoices", report.Invoices),
				slog.Any("bills", report.Bills))
		}
	}
	return swept, errors.Join(errs...)
}

func (j *OverdueSweepJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
