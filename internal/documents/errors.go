package documents

import "errors"

var (
	// ErrInvalidTransition rejects a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrImmutable rejects edits to documents past draft.
	ErrImmutable = errors.New("document is not editable")
	// ErrOverApplied rejects payments exceeding the balance due or the payment amount.
	ErrOverApplied = errors.New("application exceeds balance")
	// ErrPartyMismatch rejects applying a document of another customer or vendor.
	ErrPartyMismatch = errors.New("document belongs to another party")
	// ErrHasPayments rejects voiding documents with amounts paid.
	ErrHasPayments = errors.New("document has payments")
)
