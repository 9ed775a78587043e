// Package posting turns business documents into balanced journal entries
// and stock movements.
package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/balances"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/inventory"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Roles resolves posting accounts up front.
type Roles interface {
	ResolveAll(ctx context.Context, scope shared.Scope, roles ...accounts.Role) (accounts.RoleSet, error)
	GetAccount(ctx context.Context, scope shared.Scope, id int64) (accounts.Account, error)
}

// Ledger persists and voids journal entries.
type Ledger interface {
	CreateEntry(ctx context.Context, scope shared.Scope, input journals.EntryInput) (journals.JournalEntry, error)
	VoidBySource(ctx context.Context, scope shared.Scope, sourceType journals.SourceType, sourceID int64, reason string) ([]journals.JournalEntry, error)
}

// Stock records inventory effects of documents.
type Stock interface {
	GetProduct(ctx context.Context, scope shared.Scope, id int64) (inventory.Product, error)
	RecordMovement(ctx context.Context, scope shared.Scope, input inventory.MovementInput) (inventory.Movement, error)
	ReverseReference(ctx context.Context, scope shared.Scope, ref inventory.Reference, date time.Time, memo string) ([]inventory.Movement, error)
}

// Result lists what a posting wrote.
type Result struct {
	Entries   []journals.JournalEntry
	Movements []inventory.Movement
	Affected  balances.Affected
}

func (r *Result) addEntry(entry journals.JournalEntry) {
	r.Entries = append(r.Entries, entry)
	r.Affected.AccountIDs = appendIDs(r.Affected.AccountIDs, entry.AccountIDs()...)
}

func (r *Result) merge(other Result) {
	r.Entries = append(r.Entries, other.Entries...)
	r.Movements = append(r.Movements, other.Movements...)
	r.Affected.Merge(other.Affected)
}

// PrimaryEntryID is the id of the first entry written, if any.
func (r Result) PrimaryEntryID() *int64 {
	if len(r.Entries) == 0 {
		return nil
	}
	id := r.Entries[0].ID
	return &id
}

func appendIDs(dst []int64, ids ...int64) []int64 {
	a := balances.Affected{AccountIDs: dst}
	a.Merge(balances.Affected{AccountIDs: ids})
	return a.AccountIDs
}

// Poster applies the accounting rules of each document type. Every method
// joins the transaction carried by ctx, resolves all roles before its first
// write and returns the balances it touched.
type Poster struct {
	docs    documents.RepositoryPort
	roles   Roles
	ledger  Ledger
	stock   Stock
	logger  *slog.Logger
	retries int
	now     func() time.Time
}

// NewPoster constructs the document poster.
func NewPoster(docs documents.RepositoryPort, roles Roles, ledger Ledger, stock Stock, logger *slog.Logger) *Poster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poster{docs: docs, roles: roles, ledger: ledger, stock: stock, logger: logger, retries: shared.DefaultNumberRetries, now: time.Now}
}

// WithNow overrides the clock for testing.
func (p *Poster) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// WithRetryLimit overrides the number of fallback numbering attempts.
func (p *Poster) WithRetryLimit(n int) {
	if n > 0 {
		p.retries = n
	}
}

// lineProducts loads the products referenced by lines.
func (p *Poster) lineProducts(ctx context.Context, scope shared.Scope, lines []documents.Line) (map[int64]inventory.Product, error) {
	products := make(map[int64]inventory.Product)
	for _, l := range lines {
		if l.ProductID == nil {
			continue
		}
		if _, ok := products[*l.ProductID]; ok {
			continue
		}
		product, err := p.stock.GetProduct(ctx, scope, *l.ProductID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.Invalid("lines", "product %d does not exist", *l.ProductID)
			}
			return nil, err
		}
		products[product.ID] = product
	}
	return products, nil
}

func tracked(l documents.Line, products map[int64]inventory.Product) (inventory.Product, bool) {
	if l.ProductID == nil {
		return inventory.Product{}, false
	}
	product, ok := products[*l.ProductID]
	return product, ok && product.TrackInventory
}

// checkAccount ensures an account named directly on a line is usable.
func (p *Poster) checkAccount(ctx context.Context, scope shared.Scope, id int64, want accounts.AccountType) error {
	account, err := p.roles.GetAccount(ctx, scope, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Invalid("lines", "account %d does not exist", id)
		}
		return err
	}
	if !account.IsActive {
		return shared.InvalidWrap("lines", journals.ErrInactiveAccount, "account %s is inactive", account.Code)
	}
	if account.Type != want {
		return shared.Invalid("lines", "account %s must be %s, is %s", account.Code, want, account.Type)
	}
	return nil
}

// amounts accumulates signed amounts per account in first-seen order;
// positive is a debit.
type amounts struct {
	order []int64
	byID  map[int64]decimal.Decimal
}

func newAmounts() *amounts {
	return &amounts{byID: make(map[int64]decimal.Decimal)}
}

func (a *amounts) add(accountID int64, amount decimal.Decimal) {
	if _, ok := a.byID[accountID]; !ok {
		a.order = append(a.order, accountID)
	}
	a.byID[accountID] = a.byID[accountID].Add(amount)
}

func (a *amounts) lines(memo string) []journals.PostingLineInput {
	out := make([]journals.PostingLineInput, 0, len(a.order))
	for _, id := range a.order {
		v := a.byID[id]
		switch {
		case v.IsPositive():
			out = append(out, journals.PostingLineInput{AccountID: id, Debit: v, Memo: memo})
		case v.IsNegative():
			out = append(out, journals.PostingLineInput{AccountID: id, Credit: v.Neg(), Memo: memo})
		}
	}
	return out
}

// signed builds a debit for positive and a credit for negative amounts.
func signed(accountID int64, amount decimal.Decimal) (journals.PostingLineInput, bool) {
	switch {
	case amount.IsPositive():
		return journals.Debit(accountID, amount), true
	case amount.IsNegative():
		return journals.Credit(accountID, amount.Neg()), true
	}
	return journals.PostingLineInput{}, false
}

func (p *Poster) post(ctx context.Context, scope shared.Scope, input journals.EntryInput) (journals.JournalEntry, error) {
	entry, err := p.ledger.CreateEntry(ctx, scope, input)
	if err != nil {
		return journals.JournalEntry{}, fmt.Errorf("posting: %s %d: %w", input.SourceType, input.SourceID, err)
	}
	return entry, nil
}

// EntryAffected lists the accounts and the customers or vendors named on
// the lines of entry.
func EntryAffected(entry journals.JournalEntry) balances.Affected {
	affected := balances.Affected{AccountIDs: entry.AccountIDs()}
	for _, l := range entry.Lines {
		switch l.EntityType {
		case journals.EntityCustomer:
			affected.CustomerIDs = appendIDs(affected.CustomerIDs, l.EntityID)
		case journals.EntityVendor:
			affected.VendorIDs = appendIDs(affected.VendorIDs, l.EntityID)
		}
	}
	return affected
}

// ReverseDocument voids every entry linked to the document and restores
// the quantity effect of its stock movements.
func (p *Poster) ReverseDocument(ctx context.Context, scope shared.Scope, sourceType journals.SourceType, id int64, date time.Time, reason string) (Result, error) {
	if err := scope.Validate(); err != nil {
		return Result{}, err
	}
	var result Result
	voided, err := p.ledger.VoidBySource(ctx, scope, sourceType, id, reason)
	if err != nil {
		return Result{}, err
	}
	for _, entry := range voided {
		result.Entries = append(result.Entries, entry)
		result.Affected.Merge(EntryAffected(entry))
	}
	counters, err := p.stock.ReverseReference(ctx, scope, inventory.Reference{Type: sourceType, ID: id}, date, "Void: "+reason)
	if err != nil {
		return Result{}, err
	}
	result.Movements = counters
	p.logger.InfoContext(ctx, "document reversed",
		slog.Int64("tenant_id", scope.TenantID),
		slog.String("source_type", string(sourceType)),
		slog.Int64("source_id", id),
		slog.Int("entries", len(voided)),
		slog.Int("movements", len(counters)))
	return result, nil
}
