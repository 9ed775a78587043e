package jobs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	jobmetrics "github.com/odyssey-erp/odyssey-books/internal/jobs"
	"github.com/odyssey-erp/odyssey-books/internal/lifecycle"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
	"github.com/odyssey-erp/odyssey-books/internal/testing/booktest"
	"github.com/odyssey-erp/odyssey-books/jobs"
)

var ctx = context.Background()

func metrics() *jobmetrics.Metrics { return jobmetrics.NewMetrics(prometheus.NewRegistry()) }

func sendInvoice(t *testing.T, b *booktest.Books, dueOffset int, amount string) documents.Invoice {
	t.Helper()
	c := b.Customer(t, "Acme")
	inv, err := b.Lifecycle.CreateInvoice(ctx, b.Scope, lifecycle.InvoiceInput{
		CustomerID: c.ID,
		IssueDate:  booktest.Today.AddDate(0, 0, dueOffset-10),
		DueDate:    booktest.Today.AddDate(0, 0, dueOffset),
		Lines:      []documents.LineInput{booktest.Line("1", amount)},
	})
	require.NoError(t, err)
	sent, err := b.Lifecycle.SendInvoice(ctx, b.Scope, inv.ID)
	require.NoError(t, err)
	return sent
}

func manual(t *testing.T, b *booktest.Books, debit, credit accounts.Role, amount string) journals.JournalEntry {
	t.Helper()
	entry, err := b.Journals.CreateEntry(ctx, b.Scope, journals.EntryInput{
		Memo: "Manual",
		Post: true,
		Lines: []journals.PostingLineInput{
			journals.Debit(b.ByRole[debit].ID, booktest.D(amount)),
			journals.Credit(b.ByRole[credit].ID, booktest.D(amount)),
		},
	})
	require.NoError(t, err)
	return entry
}

func TestNewTenantTask(t *testing.T) {
	task, err := jobs.NewTenantTask(jobs.TaskOverdueSweep, 4)
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskOverdueSweep, task.Type())
	assert.JSONEq(t, `{"tenant_id":4}`, string(task.Payload()))

	_, err = jobs.NewTenantTask("mail:send", 1)
	require.Error(t, err)
	_, err = jobs.NewTenantTask(jobs.TaskGLIntegrity, -1)
	require.Error(t, err)
}

func TestHandleRejectsBadPayloadWithoutRetry(t *testing.T) {
	b := booktest.New(t)
	job := jobs.NewBalanceRefreshJob(b.Balances, b.Store, booktest.Logger(), metrics())
	err := job.Handle(ctx, asynq.NewTask(jobs.TaskBalanceRefresh, []byte(`{"tenant_id":`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(ctx, asynq.NewTask(jobs.TaskBalanceRefresh, []byte(`{"tenant_id":-3}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	require.Error(t, (&jobs.GLIntegrityJob{}).Handle(ctx, asynq.NewTask(jobs.TaskGLIntegrity, nil)))
}

func TestGLIntegrityCleanLedger(t *testing.T) {
	b := booktest.New(t)
	sendInvoice(t, b, 30, "80")
	job := jobs.NewGLIntegrityJob(b.Journals, b.Balances, b.Store, booktest.Logger(), metrics())

	task, err := jobs.NewTenantTask(jobs.TaskGLIntegrity, 0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))

	findings, err := job.Run(ctx, 0)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.True(t, findings[0].Clean())
	require.NotNil(t, findings[0].Reconcile)
	booktest.RequireDecimal(t, "80", findings[0].Reconcile.ReceivableLedger)
}

func TestGLIntegrityReportsProblems(t *testing.T) {
	b := booktest.New(t)
	sendInvoice(t, b, 30, "80")
	broken := manual(t, b, accounts.RoleBank, accounts.RoleDefaultRevenue, "25")
	b.Store.CorruptEntry(broken.ID, broken.Lines[:1])
	manual(t, b, accounts.RoleAccountsReceivable, accounts.RoleDefaultRevenue, "7")

	job := jobs.NewGLIntegrityJob(b.Journals, b.Balances, b.Store, booktest.Logger(), metrics())
	findings, err := job.Run(ctx, b.Scope.TenantID)
	require.NoError(t, err, "findings are not job failures")
	require.Len(t, findings, 1)

	f := findings[0]
	assert.False(t, f.Clean())
	assert.Equal(t, []string{broken.Number}, f.Unbalanced)
	require.NotNil(t, f.Reconcile)
	booktest.RequireDecimal(t, "7", f.Reconcile.ReceivableDiff)
	assert.True(t, f.Reconcile.PayableDiff.IsZero())
}

func TestGLIntegritySkipsReconcileWithoutControlAccounts(t *testing.T) {
	b := booktest.New(t)
	other := booktest.New(t, booktest.WithTenant(2, b.Store), booktest.WithoutRoles(accounts.RoleAccountsPayable))
	require.Equal(t, int64(2), other.Scope.TenantID)

	job := jobs.NewGLIntegrityJob(b.Journals, b.Balances, b.Store, booktest.Logger(), metrics())
	findings, err := job.Run(ctx, 0)
	require.NoError(t, err)
	require.Len(t, findings, 2)

	assert.Equal(t, int64(1), findings[0].TenantID)
	assert.Empty(t, findings[0].Skipped)
	assert.Equal(t, int64(2), findings[1].TenantID)
	assert.Nil(t, findings[1].Reconcile)
	assert.Contains(t, findings[1].Skipped, string(accounts.RoleAccountsPayable))
	assert.True(t, findings[1].Clean())
}

func TestOverdueSweep(t *testing.T) {
	b := booktest.New(t)
	late := sendInvoice(t, b, -5, "40")
	sendInvoice(t, b, 5, "60")

	job := jobs.NewOverdueSweepJob(b.Lifecycle, b.Store, booktest.Logger(), metrics())
	job.WithClock(booktest.Now)

	swept, err := job.Run(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{late.Number}, swept[b.Scope.TenantID].Invoices)
	assert.Empty(t, swept[b.Scope.TenantID].Bills)

	got, err := b.Lifecycle.GetInvoice(ctx, b.Scope, late.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.InvoiceStatusOverdue, got.Status)

	again, err := job.Run(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, again[b.Scope.TenantID].Invoices, "overdue documents are not swept twice")
}

func TestBalanceRefresh(t *testing.T) {
	b := booktest.New(t)
	sendInvoice(t, b, 30, "80")

	job := jobs.NewBalanceRefreshJob(b.Balances, b.Store, booktest.Logger(), metrics())
	reports, err := job.Run(ctx, b.Scope.TenantID)
	require.NoError(t, err)
	require.Contains(t, reports, b.Scope.TenantID)
	assert.Len(t, reports[b.Scope.TenantID].Succeeded, len(booktest.Chart))
	assert.Empty(t, reports[b.Scope.TenantID].Failed)

	account, err := b.Accounts.GetAccount(ctx, b.Scope, b.ByRole[accounts.RoleAccountsReceivable].ID)
	require.NoError(t, err)
	booktest.RequireDecimal(t, "80", account.Balance)
}

type flakyBalances struct{}

func (flakyBalances) RecomputeAll(_ context.Context, scope shared.Scope) (*shared.PartialFailure, error) {
	if scope.TenantID == 3 {
		return nil, errors.New("connection reset")
	}
	report := &shared.PartialFailure{}
	report.Add("1000", nil)
	report.Add("1100", errors.New("row locked"))
	return report, report.Err()
}

type fixedTenants []int64

func (f fixedTenants) ListTenants(context.Context) ([]int64, error) { return f, nil }

func TestBalanceRefreshCollectsFailures(t *testing.T) {
	job := jobs.NewBalanceRefreshJob(flakyBalances{}, fixedTenants{1, 3}, booktest.Logger(), metrics())
	reports, err := job.Run(ctx, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant 3: connection reset")
	assert.Contains(t, err.Error(), "tenant 1")

	require.Contains(t, reports, int64(1))
	assert.Equal(t, []string{"1000"}, reports[1].Succeeded)
	assert.Contains(t, reports[1].Failed, "1100")
	assert.NotContains(t, reports, int64(3))
}
