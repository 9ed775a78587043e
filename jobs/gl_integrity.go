package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/balances"
	jobmetrics "github.com/odyssey-erp/odyssey-books/internal/jobs"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// UnbalancedFinder lists posted entries whose debits and credits differ.
type UnbalancedFinder interface {
	UnbalancedEntries(ctx context.Context, scope shared.Scope) ([]journals.JournalEntry, error)
}

// Reconciler compares control accounts with open documents.
type Reconciler interface {
	Reconcile(ctx context.Context, scope shared.Scope) (balances.ReconcileReport, error)
}

// IntegrityFinding is one tenant's audit outcome.
type IntegrityFinding struct {
	TenantID   int64
	Unbalanced []string
	Reconcile  *balances.ReconcileReport
	// Skipped names why reconciliation did not run, e.g. unmapped roles.
	Skipped string
}

// Clean reports whether the tenant passed every check that ran.
func (f IntegrityFinding) Clean() bool {
	return len(f.Unbalanced) == 0 && (f.Reconcile == nil || f.Reconcile.Balanced())
}

// GLIntegrityJob audits the ledger of every tenant.
type GLIntegrityJob struct {
	Ledger   UnbalancedFinder
	Balances Reconciler
	Tenants  TenantLister
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewGLIntegrityJob constructs the integrity handler.
func NewGLIntegrityJob(ledger UnbalancedFinder, bal Reconciler, tenants TenantLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{Ledger: ledger, Balances: bal, Tenants: tenants, Logger: logger, Metrics: metrics}
}

// Handle executes the integrity audit for the task payload.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil || j.Balances == nil {
		return errors.New("gl integrity: dependencies not configured")
	}
	payload, err := decodeTenantPayload(t)
	if err != nil {
		return err
	}
	_, err = j.Run(ctx, payload.TenantID)
	return err
}

// Run audits one tenant, or all when tenantID is zero. Findings are not
// errors; only failures to read the ledger are.
func (j *GLIntegrityJob) Run(ctx context.Context, tenantID int64) (findings []IntegrityFinding, err error) {
	tracker := pick(j.Metrics).Track(TaskGLIntegrity)
	defer func() { err = tracker.End(err) }()
	logger := jobLogger(j.Logger, TaskGLIntegrity)

	tenants, err := resolveTenants(ctx, j.Tenants, tenantID)
	if err != nil {
		return nil, err
	}
	for _, id := range tenants {
		finding, err := j.audit(ctx, logger, id)
		if err != nil {
			logger.ErrorContext(ctx, "integrity audit failed", slog.Int64("tenant_id", id), slog.Any("error", err))
			return findings, err
		}
		findings = append(findings, finding)
	}
	return findings, nil
}

func (j *GLIntegrityJob) audit(ctx context.Context, logger *slog.Logger, tenantID int64) (IntegrityFinding, error) {
	scope := tenantScope(tenantID)
	finding := IntegrityFinding{TenantID: tenantID}

	unbalanced, err := j.Ledger.UnbalancedEntries(ctx, scope)
	if err != nil {
		return finding, err
	}
	for _, entry := range unbalanced {
		finding.Unbalanced = append(finding.Unbalanced, entry.Number)
		debit, credit := lineSums(entry)
		logger.WarnContext(ctx, "unbalanced journal entry",
			slog.Int64("tenant_id", tenantID),
			slog.Int64("entry_id", entry.ID),
			slog.String("number", entry.Number),
			slog.String("line_debits", debit.String()),
			slog.String("line_credits", credit.String()),
			slog.String("stored_debits", entry.TotalDebits.String()))
	}
	pick(j.Metrics).AddFindings("unbalanced_entry", tenantID, len(unbalanced))

	report, err := j.Balances.Reconcile(ctx, scope)
	switch {
	case errors.Is(err, shared.ErrConfiguration):
		finding.Skipped = err.Error()
		logger.WarnContext(ctx, "reconciliation skipped", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
	case err != nil:
		return finding, err
	default:
		finding.Reconcile = &report
		if !report.ReceivableDiff.IsZero() {
			pick(j.Metrics).AddFindings("receivable_drift", tenantID, 1)
		}
		if !report.PayableDiff.IsZero() {
			pick(j.Metrics).AddFindings("payable_drift", tenantID, 1)
		}
	}

	attrs := []any{
		slog.Int64("tenant_id", tenantID),
		slog.Int("unbalanced", len(finding.Unbalanced)),
	}
	if finding.Reconcile != nil {
		attrs = append(attrs,
			slog.String("receivable_difference", report.ReceivableDiff.String()),
			slog.String("payable_difference", report.PayableDiff.String()))
	}
	if finding.Clean() {
		logger.InfoContext(ctx, "ledger integrity ok", attrs...)
	} else {
		logger.WarnContext(ctx, "ledger integrity findings", attrs...)
	}
	return finding, nil
}

func lineSums(entry journals.JournalEntry) (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range entry.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}
