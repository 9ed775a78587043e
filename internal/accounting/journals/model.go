package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft  JournalStatus = "DRAFT"
	JournalStatusPosted JournalStatus = "POSTED"
	JournalStatusVoid   JournalStatus = "VOID"
)

// SourceType identifies the document an entry was posted from.
type SourceType string

const (
	SourceManual        SourceType = "MANUAL"
	SourceInvoice       SourceType = "INVOICE"
	SourceBill          SourceType = "BILL"
	SourcePayment       SourceType = "PAYMENT"
	SourceCreditMemo    SourceType = "CREDIT_MEMO"
	SourceStockMovement SourceType = "STOCK_MOVEMENT"
	SourceReversal      SourceType = "REVERSAL"
)

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	switch s {
	case SourceManual, SourceInvoice, SourceBill, SourcePayment, SourceCreditMemo, SourceStockMovement, SourceReversal:
		return true
	}
	return false
}

// EntityType tags a line with a sub-ledger party.
type EntityType string

const (
	EntityNone     EntityType = ""
	EntityCustomer EntityType = "CUSTOMER"
	EntityVendor   EntityType = "VENDOR"
	EntityProduct  EntityType = "PRODUCT"
)

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID           int64           `json:"id"`
	TenantID     int64           `json:"tenant_id"`
	Number       string          `json:"number"`
	Date         time.Time       `json:"date"`
	Memo         string          `json:"memo"`
	Status       JournalStatus   `json:"status"`
	SourceType   SourceType      `json:"source_type"`
	SourceID     int64           `json:"source_id"`
	SourceRef    *uuid.UUID      `json:"source_ref,omitempty"`
	ReversalOf   *int64          `json:"reversal_of,omitempty"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	CreatedBy    int64           `json:"created_by"`
	PostedBy     int64           `json:"posted_by"`
	PostedAt     *time.Time      `json:"posted_at,omitempty"`
	VoidReason   string          `json:"void_reason"`
	VoidedAt     *time.Time      `json:"voided_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Lines        []JournalLine   `json:"lines,omitempty"`
}

// AccountIDs lists the distinct accounts touched by the entry.
func (e JournalEntry) AccountIDs() []int64 {
	seen := make(map[int64]bool, len(e.Lines))
	var ids []int64
	for _, l := range e.Lines {
		if !seen[l.AccountID] {
			seen[l.AccountID] = true
			ids = append(ids, l.AccountID)
		}
	}
	return ids
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID         int64           `json:"id"`
	EntryID    int64           `json:"entry_id"`
	AccountID  int64           `json:"account_id"`
	Debit      decimal.Decimal `json:"debit"`
	Credit     decimal.Decimal `json:"credit"`
	EntityType EntityType      `json:"entity_type"`
	EntityID   int64           `json:"entity_id"`
	Memo       string          `json:"memo"`
}

// LedgerLine is one row of the general ledger.
type LedgerLine struct {
	EntryID     int64           `json:"entry_id"`
	EntryNumber string          `json:"entry_number"`
	Date        time.Time       `json:"date"`
	LineID      int64           `json:"line_id"`
	AccountID   int64           `json:"account_id"`
	Memo        string          `json:"memo"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	EntityType  EntityType      `json:"entity_type"`
	EntityID    int64           `json:"entity_id"`
	SourceType  SourceType      `json:"source_type"`
	SourceID    int64           `json:"source_id"`
	Balance     decimal.Decimal `json:"balance"`
}

// Totals sums posted debits and credits.
type Totals struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// AccountActivity is the posted totals of one account.
type AccountActivity struct {
	AccountID int64
	Totals
}

// Constraint names on journal_entries.
const (
	ConstraintNumber    = "uq_journal_entries_number"
	ConstraintSourceRef = "uq_journal_entries_source_ref"
)

// NumberPrefix is the journal entry series.
const NumberPrefix = "JE"
