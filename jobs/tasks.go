package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-books/internal/jobs"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGLIntegrity audits posted entries and control accounts.
	TaskGLIntegrity = "ledger:gl_integrity"
	// TaskOverdueSweep flags invoices and bills past their due date.
	TaskOverdueSweep = "ledger:overdue_sweep"
	// TaskBalanceRefresh recomputes every cached account balance.
	TaskBalanceRefresh = "ledger:balance_refresh"
)

// systemActor is recorded in audit rows written by jobs.
const systemActor int64 = 0

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// TenantPayload scopes a ledger task. TenantID zero means every tenant.
type TenantPayload struct {
	TenantID int64 `json:"tenant_id"`
}

// TenantLister discovers the tenants a task fans out to.
type TenantLister interface {
	ListTenants(ctx context.Context) ([]int64, error)
}

// NewTenantTask builds a ledger task for one tenant, or all when tenantID is zero.
func NewTenantTask(taskType string, tenantID int64) (*asynq.Task, error) {
	switch taskType {
	case TaskGLIntegrity, TaskOverdueSweep, TaskBalanceRefresh:
	default:
		return nil, fmt.Errorf("jobs: unknown task type %q", taskType)
	}
	if tenantID < 0 {
		return nil, fmt.Errorf("jobs: tenant id must not be negative")
	}
	body, err := json.Marshal(TenantPayload{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}

func decodeTenantPayload(t *asynq.Task) (TenantPayload, error) {
	var payload TenantPayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if payload.TenantID < 0 {
		return payload, fmt.Errorf("%s: negative tenant id: %w", t.Type(), asynq.SkipRetry)
	}
	return payload, nil
}

func resolveTenants(ctx context.Context, lister TenantLister, tenantID int64) ([]int64, error) {
	if tenantID > 0 {
		return []int64{tenantID}, nil
	}
	if lister == nil {
		return nil, fmt.Errorf("jobs: tenant lister not configured")
	}
	return lister.ListTenants(ctx)
}

func tenantScope(tenantID int64) shared.Scope {
	return shared.Scope{TenantID: tenantID, ActorID: systemActor}
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}

func pick(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}
