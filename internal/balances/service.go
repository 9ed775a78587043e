package balances

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Ledger sums posted lines.
type Ledger interface {
	AccountTotals(ctx context.Context, scope shared.Scope, accountID int64, asOf *time.Time) (journals.Totals, error)
}

// RoleResolver resolves the control accounts used by Reconcile.
type RoleResolver interface {
	ResolveAll(ctx context.Context, scope shared.Scope, roles ...accounts.Role) (accounts.RoleSet, error)
}

const defaultWorkers = 4

// Service derives balances from the ledger and the documents.
type Service struct {
	repo    RepositoryPort
	ledger  Ledger
	roles   RoleResolver
	logger  *slog.Logger
	workers int
	now     func() time.Time
}

// NewService constructs the balance calculator.
func NewService(repo RepositoryPort, ledger Ledger, roles RoleResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, roles: roles, logger: logger, workers: defaultWorkers, now: time.Now}
}

// WithWorkers bounds RecomputeAll parallelism.
func (s *Service) WithWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// AccountBalance sums posted lines of the account and applies its sign
// convention. Without asOf the result is written to the cached balance
// under a row lock; a dated balance is read only.
func (s *Service) AccountBalance(ctx context.Context, scope shared.Scope, accountID int64, asOf *time.Time) (Result, error) {
	if err := scope.Validate(); err != nil {
		return Result{}, err
	}
	if asOf != nil {
		account, err := s.repo.GetAccount(ctx, scope.TenantID, accountID)
		if err != nil {
			return Result{}, err
		}
		return s.compute(ctx, scope, account, asOf)
	}
	var result Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = s.refreshAccount(ctx, scope, tx, accountID)
		return err
	})
	return result, err
}

func (s *Service) compute(ctx context.Context, scope shared.Scope, account accounts.Account, asOf *time.Time) (Result, error) {
	totals, err := s.ledger.AccountTotals(ctx, scope, account.ID, asOf)
	if err != nil {
		return Result{}, fmt.Errorf("balances: totals for %s: %w", account.Code, err)
	}
	return Result{
		AccountID:   account.ID,
		Balance:     account.Type.SignedBalance(totals.Debit, totals.Credit),
		DebitTotal:  totals.Debit,
		CreditTotal: totals.Credit,
	}, nil
}

func (s *Service) refreshAccount(ctx context.Context, scope shared.Scope, tx TxRepository, accountID int64) (Result, error) {
	account, err := tx.LockAccount(ctx, scope.TenantID, accountID)
	if err != nil {
		return Result{}, err
	}
	result, err := s.compute(ctx, scope, account, nil)
	if err != nil {
		return Result{}, err
	}
	if result.Balance.Equal(account.Balance) {
		return result, nil
	}
	return result, tx.SetAccountBalance(ctx, scope.TenantID, accountID, result.Balance, s.now())
}

// CustomerBalance recomputes the open receivable of a customer.
func (s *Service) CustomerBalance(ctx context.Context, scope shared.Scope, customerID int64) (decimal.Decimal, error) {
	if err := scope.Validate(); err != nil {
		return decimal.Zero, err
	}
	var balance decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		balance, err = s.refreshCustomer(ctx, scope, tx, customerID)
		return err
	})
	return balance, err
}

func (s *Service) refreshCustomer(ctx context.Context, scope shared.Scope, tx TxRepository, id int64) (decimal.Decimal, error) {
	if err := tx.LockCustomer(ctx, scope.TenantID, id); err != nil {
		return decimal.Zero, err
	}
	balance, err := tx.OpenInvoiceBalance(ctx, scope.TenantID, id)
	if err != nil {
		return decimal.Zero, err
	}
	return balance, tx.SetCustomerBalance(ctx, scope.TenantID, id, balance, s.now())
}

// VendorBalance recomputes the open payable of a vendor.
func (s *Service) VendorBalance(ctx context.Context, scope shared.Scope, vendorID int64) (decimal.Decimal, error) {
	if err := scope.Validate(); err != nil {
		return decimal.Zero, err
	}
	var balance decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		balance, err = s.refreshVendor(ctx, scope, tx, vendorID)
		return err
	})
	return balance, err
}

func (s *Service) refreshVendor(ctx context.Context, scope shared.Scope, tx TxRepository, id int64) (decimal.Decimal, error) {
	if err := tx.LockVendor(ctx, scope.TenantID, id); err != nil {
		return decimal.Zero, err
	}
	balance, err := tx.OpenBillBalance(ctx, scope.TenantID, id)
	if err != nil {
		return decimal.Zero, err
	}
	return balance, tx.SetVendorBalance(ctx, scope.TenantID, id, balance, s.now())
}

// Refresh recomputes every cached balance a posting touched. Rows are
// locked in ascending id order.
func (s *Service) Refresh(ctx context.Context, scope shared.Scope, affected Affected) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if affected.Empty() {
		return nil
	}
	affected = affected.sorted()
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, id := range affected.AccountIDs {
			if _, err := s.refreshAccount(ctx, scope, tx, id); err != nil {
				return err
			}
		}
		for _, id := range affected.CustomerIDs {
			if _, err := s.refreshCustomer(ctx, scope, tx, id); err != nil {
				return err
			}
		}
		for _, id := range affected.VendorIDs {
			if _, err := s.refreshVendor(ctx, scope, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecomputeAll refreshes every account of the tenant. Accounts are
// independent; failures are collected instead of aborting the batch.
func (s *Service) RecomputeAll(ctx context.Context, scope shared.Scope) (*shared.PartialFailure, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	list, err := s.repo.ListAccounts(ctx, scope.TenantID)
	if err != nil {
		return nil, err
	}
	var (
		mu     sync.Mutex
		report = &shared.PartialFailure{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, account := range list {
		g.Go(func() error {
			_, err := s.AccountBalance(gctx, scope, account.ID, nil)
			mu.Lock()
			report.Add(account.Code, err)
			mu.Unlock()
			if err != nil {
				s.logger.WarnContext(ctx, "balance recompute failed",
					slog.Int64("tenant_id", scope.TenantID),
					slog.String("account", account.Code),
					slog.Any("error", err))
			}
			return nil
		})
	}
	_ = g.Wait()
	s.logger.InfoContext(ctx, "balances recomputed",
		slog.Int64("tenant_id", scope.TenantID),
		slog.Int("succeeded", len(report.Succeeded)),
		slog.Int("failed", len(report.Failed)))
	return report, report.Err()
}

// Reconcile compares the receivable and payable control accounts with the
// open documents. The ledger side is authoritative.
func (s *Service) Reconcile(ctx context.Context, scope shared.Scope) (ReconcileReport, error) {
	if err := scope.Validate(); err != nil {
		return ReconcileReport{}, err
	}
	roles, err := s.roles.ResolveAll(ctx, scope, accounts.RoleAccountsReceivable, accounts.RoleAccountsPayable)
	if err != nil {
		return ReconcileReport{}, err
	}
	ar, err := s.compute(ctx, scope, roles[accounts.RoleAccountsReceivable], nil)
	if err != nil {
		return ReconcileReport{}, err
	}
	ap, err := s.compute(ctx, scope, roles[accounts.RoleAccountsPayable], nil)
	if err != nil {
		return ReconcileReport{}, err
	}
	receivable, payable, err := s.repo.OpenBalances(ctx, scope.TenantID)
	if err != nil {
		return ReconcileReport{}, err
	}
	customerCredit, vendorCredit, err := s.repo.UnappliedCredits(ctx, scope.TenantID)
	if err != nil {
		return ReconcileReport{}, err
	}
	report := ReconcileReport{
		ReceivableLedger:    ar.Balance,
		CustomerBalances:    receivable,
		UnappliedReceipts:   customerCredit,
		ReceivableDiff:      ar.Balance.Sub(receivable.Sub(customerCredit)),
		PayableLedger:       ap.Balance,
		VendorBalances:      payable,
		UnappliedDisbursals: vendorCredit,
		PayableDiff:         ap.Balance.Sub(payable.Sub(vendorCredit)),
	}
	if !report.Balanced() {
		s.logger.WarnContext(ctx, "control accounts out of balance",
			slog.Int64("tenant_id", scope.TenantID),
			slog.String("receivable_difference", report.ReceivableDiff.StringFixed(2)),
			slog.String("payable_difference", report.PayableDiff.StringFixed(2)))
	}
	return report, nil
}
