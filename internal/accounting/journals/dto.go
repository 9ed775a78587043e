package journals

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

var (
	// ErrUnbalanced rejects entries whose debits differ from credits.
	ErrUnbalanced = errors.New("journal entry is not balanced")
	// ErrInvalidStatus rejects a transition from the current status.
	ErrInvalidStatus = errors.New("journal status invalid for operation")
	// ErrSourceAlreadyLinked rejects posting the same event twice.
	ErrSourceAlreadyLinked = errors.New("source already linked to a journal entry")
	// ErrInactiveAccount rejects lines on deactivated accounts.
	ErrInactiveAccount = errors.New("account inactive")
)

// PostingLineInput describes a journal line for posting request.
type PostingLineInput struct {
	AccountID  int64
	Debit      decimal.Decimal
	Credit     decimal.Decimal
	EntityType EntityType
	EntityID   int64
	Memo       string
}

// Debit builds a debit line.
func Debit(accountID int64, amount decimal.Decimal) PostingLineInput {
	return PostingLineInput{AccountID: accountID, Debit: amount}
}

// Credit builds a credit line.
func Credit(accountID int64, amount decimal.Decimal) PostingLineInput {
	return PostingLineInput{AccountID: accountID, Credit: amount}
}

// For tags the line with a sub-ledger entity.
func (l PostingLineInput) For(entity EntityType, id int64) PostingLineInput {
	l.EntityType = entity
	l.EntityID = id
	return l
}

// EntryInput groups fields required to create a journal entry.
type EntryInput struct {
	Number     string
	Date       time.Time
	Memo       string
	SourceType SourceType
	SourceID   int64
	SourceRef  *uuid.UUID
	Post       bool
	Lines      []PostingLineInput
}

// normalize validates the input and rounds amounts. It returns the totals.
func (in *EntryInput) normalize() (decimal.Decimal, decimal.Decimal, error) {
	in.Memo = strings.TrimSpace(in.Memo)
	if in.Memo == "" {
		return decimal.Zero, decimal.Zero, shared.Invalid("memo", "description is required")
	}
	if in.SourceType == "" {
		in.SourceType = SourceManual
	}
	if !in.SourceType.Valid() {
		return decimal.Zero, decimal.Zero, shared.Invalid("source_type", "unknown source type %q", in.SourceType)
	}
	if len(in.Lines) < 2 {
		return decimal.Zero, decimal.Zero, shared.Invalid("lines", "at least two lines are required")
	}
	debits, credits := decimal.Zero, decimal.Zero
	for i := range in.Lines {
		line := &in.Lines[i]
		if line.AccountID == 0 {
			return decimal.Zero, decimal.Zero, shared.Invalid("lines", "line %d has no account", i+1)
		}
		line.Debit = shared.RoundMoney(line.Debit)
		line.Credit = shared.RoundMoney(line.Credit)
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return decimal.Zero, decimal.Zero, shared.Invalid("lines", "line %d has a negative amount", i+1)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return decimal.Zero, decimal.Zero, shared.Invalid("lines", "line %d must have exactly one of debit or credit", i+1)
		}
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}
	if !debits.Equal(credits) {
		return decimal.Zero, decimal.Zero, shared.InvalidWrap("lines", ErrUnbalanced, "debits %s do not equal credits %s", debits.StringFixed(2), credits.StringFixed(2))
	}
	return debits, credits, nil
}

// ReverseInput requests a reversing entry.
type ReverseInput struct {
	EntryID int64
	Date    time.Time
	Memo    string
}

// ListFilter narrows ListEntries.
type ListFilter struct {
	Status     JournalStatus
	SourceType SourceType
	SourceID   int64
	From       *time.Time
	To         *time.Time
	Limit      int

	withLines bool
}

// GLFilter narrows the general ledger.
type GLFilter struct {
	AccountID *int64
	From      *time.Time
	To        *time.Time
}
