package httpapi

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/inventory"
	"github.com/odyssey-erp/odyssey-books/internal/lifecycle"
	"github.com/odyssey-erp/odyssey-books/internal/posting"
)

// Date is a calendar date encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

// UnmarshalJSON accepts "2006-01-02" or null.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return fmt.Errorf("date %q: want YYYY-MM-DD", s)
	}
	d.Time = t
	return nil
}

// MarshalJSON writes the date part only.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(time.DateOnly))
}

func (d *Date) ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

func (d *Date) value() time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}

// newValidator returns a validator that checks decimals as numbers and
// reports json field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type lineRequest struct {
	ProductID   *int64          `json:"product_id" validate:"omitempty,gt=0"`
	AccountID   *int64          `json:"account_id" validate:"omitempty,gt=0"`
	Description string          `json:"description" validate:"max=500"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0"`
	DiscountPct decimal.Decimal `json:"discount_pct" validate:"gte=0,lte=100"`
	TaxPct      decimal.Decimal `json:"tax_pct" validate:"gte=0,lte=100"`
}

func toLines(in []lineRequest) []documents.LineInput {
	out := make([]documents.LineInput, 0, len(in))
	for _, l := range in {
		out = append(out, documents.LineInput{
			ProductID:   l.ProductID,
			AccountID:   l.AccountID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			DiscountPct: l.DiscountPct,
			TaxPct:      l.TaxPct,
		})
	}
	return out
}

type invoiceRequest struct {
	Number     string          `json:"number" validate:"max=40"`
	CustomerID int64           `json:"customer_id" validate:"required,gt=0"`
	IssueDate  *Date           `json:"issue_date"`
	DueDate    *Date           `json:"due_date"`
	Discount   decimal.Decimal `json:"discount" validate:"gte=0"`
	Notes      string          `json:"notes" validate:"max=2000"`
	Lines      []lineRequest   `json:"lines" validate:"required,min=1,dive"`
}

func (r invoiceRequest) input() lifecycle.InvoiceInput {
	return lifecycle.InvoiceInput{
		Number:     r.Number,
		CustomerID: r.CustomerID,
		IssueDate:  r.IssueDate.value(),
		DueDate:    r.DueDate.value(),
		Discount:   r.Discount,
		Notes:      r.Notes,
		Lines:      toLines(r.Lines),
	}
}

type billRequest struct {
	Number   string        `json:"number" validate:"max=40"`
	VendorID int64         `json:"vendor_id" validate:"required,gt=0"`
	BillDate *Date         `json:"bill_date"`
	DueDate  *Date         `json:"due_date"`
	Notes    string        `json:"notes" validate:"max=2000"`
	Lines    []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (r billRequest) input() lifecycle.BillInput {
	return lifecycle.BillInput{
		Number:   r.Number,
		VendorID: r.VendorID,
		BillDate: r.BillDate.value(),
		DueDate:  r.DueDate.value(),
		Notes:    r.Notes,
		Lines:    toLines(r.Lines),
	}
}

type creditMemoRequest struct {
	Number     string        `json:"number" validate:"max=40"`
	CustomerID int64         `json:"customer_id" validate:"required,gt=0"`
	InvoiceID  *int64        `json:"invoice_id" validate:"omitempty,gt=0"`
	Date       *Date         `json:"date"`
	Reason     string        `json:"reason" validate:"max=500"`
	Lines      []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (r creditMemoRequest) input() lifecycle.CreditMemoInput {
	return lifecycle.CreditMemoInput{
		Number:     r.Number,
		CustomerID: r.CustomerID,
		InvoiceID:  r.InvoiceID,
		Date:       r.Date.value(),
		Reason:     r.Reason,
		Lines:      toLines(r.Lines),
	}
}

type orderRequest struct {
	Number       string        `json:"number" validate:"max=40"`
	PartyID      int64         `json:"party_id" validate:"required,gt=0"`
	OrderDate    *Date         `json:"order_date"`
	ExpectedDate *Date         `json:"expected_date"`
	Notes        string        `json:"notes" validate:"max=2000"`
	Lines        []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (r orderRequest) input() lifecycle.OrderInput {
	return lifecycle.OrderInput{
		Number:       r.Number,
		PartyID:      r.PartyID,
		OrderDate:    r.OrderDate.value(),
		ExpectedDate: r.ExpectedDate.ptr(),
		Notes:        r.Notes,
		Lines:        toLines(r.Lines),
	}
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type applicationRequest struct {
	DocumentID int64           `json:"document_id" validate:"required,gt=0"`
	Amount     decimal.Decimal `json:"amount" validate:"gt=0"`
}

type paymentRequest struct {
	Number       string               `json:"number" validate:"max=40"`
	Direction    string               `json:"direction" validate:"required,oneof=RECEIVED SENT"`
	PartyID      int64                `json:"party_id" validate:"required,gt=0"`
	Amount       decimal.Decimal      `json:"amount" validate:"gt=0"`
	Date         *Date                `json:"date"`
	Method       string               `json:"method" validate:"max=40"`
	Reference    string               `json:"reference" validate:"max=120"`
	Applications []applicationRequest `json:"applications" validate:"dive"`
}

func (r paymentRequest) input() posting.PaymentInput {
	apps := make([]posting.ApplicationInput, 0, len(r.Applications))
	for _, a := range r.Applications {
		apps = append(apps, posting.ApplicationInput{DocumentID: a.DocumentID, Amount: a.Amount})
	}
	return posting.PaymentInput{
		Number:       r.Number,
		Direction:    documents.PaymentDirection(r.Direction),
		PartyID:      r.PartyID,
		Amount:       r.Amount,
		Date:         r.Date.value(),
		Method:       r.Method,
		Reference:    r.Reference,
		Applications: apps,
	}
}

type stockMovementRequest struct {
	ProductID   int64            `json:"product_id" validate:"required,gt=0"`
	Quantity    decimal.Decimal  `json:"quantity" validate:"ne=0"`
	UnitCost    *decimal.Decimal `json:"unit_cost" validate:"omitempty,gte=0"`
	Type        string           `json:"type" validate:"required,oneof=PURCHASE SALE ADJUSTMENT RETURN SALE_RETURN"`
	Date        *Date            `json:"date"`
	Memo        string           `json:"memo" validate:"max=500"`
	PostJournal bool             `json:"post_journal"`
	OffsetRole  string           `json:"offset_role" validate:"omitempty,max=40"`
	VendorID    int64            `json:"vendor_id" validate:"omitempty,gt=0"`
}

func (r stockMovementRequest) input() inventory.MovementInput {
	return inventory.MovementInput{
		ProductID:   r.ProductID,
		Quantity:    r.Quantity,
		UnitCost:    r.UnitCost,
		Type:        inventory.MovementType(r.Type),
		Date:        r.Date.value(),
		Memo:        r.Memo,
		PostJournal: r.PostJournal,
		OffsetRole:  accounts.Role(r.OffsetRole),
		VendorID:    r.VendorID,
	}
}

type partyRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"omitempty,email"`
}

type accountRequest struct {
	Code     string `json:"code" validate:"required,numeric,max=10"`
	Name     string `json:"name" validate:"required,max=200"`
	Type     string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
}

type rolesRequest struct {
	Roles map[string]int64 `json:"roles" validate:"required,min=1,dive,keys,required,endkeys,gt=0"`
}

type productRequest struct {
	SKU              string          `json:"sku" validate:"required,max=60"`
	Name             string          `json:"name" validate:"required,max=200"`
	TrackInventory   bool            `json:"track_inventory"`
	SalesPrice       decimal.Decimal `json:"sales_price" validate:"gte=0"`
	Cost             decimal.Decimal `json:"cost" validate:"gte=0"`
	RevenueAccountID *int64          `json:"revenue_account_id" validate:"omitempty,gt=0"`
	ExpenseAccountID *int64          `json:"expense_account_id" validate:"omitempty,gt=0"`
	OpeningQuantity  decimal.Decimal `json:"opening_quantity" validate:"gte=0"`
	OpeningDate      *Date           `json:"opening_date"`
}

func (r productRequest) input() inventory.ProductInput {
	return inventory.ProductInput{
		SKU:              r.SKU,
		Name:             r.Name,
		TrackInventory:   r.TrackInventory,
		SalesPrice:       r.SalesPrice,
		Cost:             r.Cost,
		RevenueAccountID: r.RevenueAccountID,
		ExpenseAccountID: r.ExpenseAccountID,
		OpeningQuantity:  r.OpeningQuantity,
		OpeningDate:      r.OpeningDate.value(),
	}
}

type journalLineRequest struct {
	AccountID int64           `json:"account_id" validate:"required,gt=0"`
	Debit     decimal.Decimal `json:"debit" validate:"gte=0"`
	Credit    decimal.Decimal `json:"credit" validate:"gte=0"`
	Memo      string          `json:"memo" validate:"max=500"`
}

type journalEntryRequest struct {
	Date  *Date                `json:"date"`
	Memo  string               `json:"memo" validate:"max=500"`
	Post  bool                 `json:"post"`
	Lines []journalLineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (r journalEntryRequest) input() journals.EntryInput {
	lines := make([]journals.PostingLineInput, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, journals.PostingLineInput{AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Memo: l.Memo})
	}
	return journals.EntryInput{
		Date:       r.Date.value(),
		Memo:       r.Memo,
		SourceType: journals.SourceManual,
		Post:       r.Post,
		Lines:      lines,
	}
}
