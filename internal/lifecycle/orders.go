package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// DefaultPaymentTermsDays sets the due date of documents converted from
// orders.
const DefaultPaymentTermsDays = 30

// OrderInput creates a purchase or sales order draft. PartyID is the vendor
// of a purchase order and the customer of a sales order.
type OrderInput struct {
	Number       string
	PartyID      int64
	OrderDate    time.Time
	ExpectedDate *time.Time
	Notes        string
	Lines        []documents.LineInput
}

type orderDraft struct {
	number   string
	date     time.Time
	expected *time.Time
	notes    string
	lines    []documents.Line
	totals   documents.Totals
}

func (s *Service) draftOrder(field string, in OrderInput) (orderDraft, error) {
	if in.PartyID == 0 {
		return orderDraft{}, shared.Invalid(field, "party is required")
	}
	if err := documents.ValidateLines(in.Lines, decimal.Zero); err != nil {
		return orderDraft{}, err
	}
	date, _, err := s.dates(in.OrderDate, time.Time{})
	if err != nil {
		return orderDraft{}, err
	}
	var expected *time.Time
	if in.ExpectedDate != nil {
		_, e, err := s.dates(date, *in.ExpectedDate)
		if err != nil {
			return orderDraft{}, shared.Invalid("expected_date", "expected date is before the order date")
		}
		expected = &e
	}
	lines, totals := documents.CalculateTotals(in.Lines, decimal.Zero)
	return orderDraft{
		number:   strings.TrimSpace(in.Number),
		date:     date,
		expected: expected,
		notes:    strings.TrimSpace(in.Notes),
		lines:    lines,
		totals:   totals,
	}, nil
}

// CreatePurchaseOrder stores a draft purchase order.
func (s *Service) CreatePurchaseOrder(ctx context.Context, scope shared.Scope, in OrderInput) (documents.PurchaseOrder, error) {
	d, err := s.draftOrder("vendor_id", in)
	if err != nil {
		return documents.PurchaseOrder{}, err
	}
	now := s.now()
	po := documents.PurchaseOrder{
		TenantID:     scope.TenantID,
		VendorID:     in.PartyID,
		OrderDate:    d.date,
		ExpectedDate: d.expected,
		Status:       documents.OrderStatusDraft,
		Subtotal:     d.totals.Subtotal,
		TaxAmount:    d.totals.Tax,
		TotalAmount:  d.totals.Total,
		Notes:        d.notes,
		CreatedBy:    scope.ActorID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Lines:        d.lines,
	}
	var created documents.PurchaseOrder
	err = s.run(ctx, scope, "purchase_order.create", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		if _, err := s.vendor(ctx, scope, tx, po.VendorID); err != nil {
			return outcome{}, err
		}
		_, err := s.assign(ctx, scope, tx, documents.SeriesPurchaseOrder, d.number, func(ctx context.Context, number string) error {
			po.Number = number
			stored, err := tx.InsertPurchaseOrder(ctx, po)
			if err != nil {
				return err
			}
			created = stored
			return nil
		})
		if err != nil {
			return outcome{}, err
		}
		return outcome{entity: "purchase_order", entityID: created.ID, meta: map[string]any{"number": created.Number}}, nil
	})
	if err != nil {
		return documents.PurchaseOrder{}, err
	}
	return created, nil
}

func (s *Service) movePurchaseOrder(ctx context.Context, scope shared.Scope, op string, id int64, to documents.OrderStatus) (documents.PurchaseOrder, error) {
	var moved documents.PurchaseOrder
	err := s.run(ctx, scope, op, func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		po, err := tx.GetPurchaseOrderForUpdate(ctx, scope.TenantID, id)
		if err != nil {
			return outcome{}, err
		}
		if err := documents.CheckOrder("purchase order", po.Number, po.Status, to); err != nil {
			return outcome{}, err
		}
		po.Status = to
		po.UpdatedAt = s.now()
		if err := tx.UpdatePurchaseOrder(ctx, po); err != nil {
			return outcome{}, err
		}
		moved = po
		return outcome{entity: "purchase_order", entityID: po.ID}, nil
	})
	if err != nil {
		return documents.PurchaseOrder{}, err
	}
	return moved, nil
}

// SendPurchaseOrder moves a draft purchase order to SENT.
func (s *Service) SendPurchaseOrder(ctx context.Context, scope shared.Scope, id int64) (documents.PurchaseOrder, error) {
	return s.movePurchaseOrder(ctx, scope, "purchase_order.send", id, documents.OrderStatusSent)
}

// CancelPurchaseOrder cancels a draft or sent purchase order.
func (s *Service) CancelPurchaseOrder(ctx context.Context, scope shared.Scope, id int64) (documents.PurchaseOrder, error) {
	return s.movePurchaseOrder(ctx, scope, "purchase_order.cancel", id, documents.OrderStatusCancelled)
}

// ConvertPOToBill creates a bill from a sent purchase order, approves it and
// marks the order CONVERTED, all in one transaction.
func (s *Service) ConvertPOToBill(ctx context.Context, scope shared.Scope, id int64) (documents.Bill, error) {
	var approved documents.Bill
	err := s.run(ctx, scope, "purchase_order.convert", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		po, err := tx.GetPurchaseOrderForUpdate(ctx, scope.TenantID, id)
		if err != nil {
			return outcome{}, err
		}
		if err := documents.CheckOrder("purchase order", po.Number, po.Status, documents.OrderStatusConverted); err != nil {
			return outcome{}, err
		}
		date := s.today()
		draft, err := s.draftBill(scope, BillInput{
			VendorID: po.VendorID,
			BillDate: date,
			DueDate:  date.AddDate(0, 0, DefaultPaymentTermsDays),
			Notes:    po.Notes,
			Lines:    documents.Inputs(po.Lines),
		})
		if err != nil {
			return outcome{}, err
		}
		draft.PurchaseOrderID = &po.ID
		bill, err := s.insertBill(ctx, scope, tx, draft)
		if err != nil {
			return outcome{}, err
		}
		bill, result, err := s.approveBill(ctx, scope, tx, bill)
		if err != nil {
			return outcome{}, err
		}
		po.Status = documents.OrderStatusConverted
		po.ConvertedBillID = &bill.ID
		po.UpdatedAt = s.now()
		if err := tx.UpdatePurchaseOrder(ctx, po); err != nil {
			return outcome{}, err
		}
		approved = bill
		return outcome{result: result, entity: "purchase_order", entityID: po.ID,
			meta: map[string]any{"purchase_order": po.Number, "bill": bill.Number}}, nil
	})
	if err != nil {
		return documents.Bill{}, err
	}
	return approved, nil
}

// CreateSalesOrder stores a draft sales order.
func (s *Service) CreateSalesOrder(ctx context.Context, scope shared.Scope, in OrderInput) (documents.SalesOrder, error) {
	d, err := s.draftOrder("customer_id", in)
	if err != nil {
		return documents.SalesOrder{}, err
	}
	now := s.now()
	so := documents.SalesOrder{
		TenantID:     scope.TenantID,
		CustomerID:   in.PartyID,
		OrderDate:    d.date,
		ExpectedDate: d.expected,
		Status:       documents.OrderStatusDraft,
		Subtotal:     d.totals.Subtotal,
		TaxAmount:    d.totals.Tax,
		TotalAmount:  d.totals.Total,
		Notes:        d.notes,
		CreatedBy:    scope.ActorID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Lines:        d.lines,
	}
	var created documents.SalesOrder
	err = s.run(ctx, scope, "sales_order.create", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		if _, err := s.customer(ctx, scope, tx, so.CustomerID); err != nil {
			return outcome{}, err
		}
		_, err := s.assign(ctx, scope, tx, documents.SeriesSalesOrder, d.number, func(ctx context.Context, number string) error {
			so.Number = number
			stored, err := tx.InsertSalesOrder(ctx, so)
			if err != nil {
				return err
			}
			created = stored
			return nil
		})
		if err != nil {
			return outcome{}, err
		}
		return outcome{entity: "sales_order", entityID: created.ID, meta: map[string]any{"number": created.Number}}, nil
	})
	if err != nil {
		return documents.SalesOrder{}, err
	}
	return created, nil
}

func (s *Service) moveSalesOrder(ctx context.Context, scope shared.Scope, op string, id int64, to documents.OrderStatus) (documents.SalesOrder, error) {
	var moved documents.SalesOrder
	err := s.run(ctx, scope, op, func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		so, err := tx.GetSalesOrderForUpdate(ctx, scope.TenantID, id)
		if err != nil {
			return outcome{}, err
		}
		if err := documents.CheckOrder("sales order", so.Number, so.Status, to); err != nil {
			return outcome{}, err
		}
		so.Status = to
		so.UpdatedAt = s.now()
		if err := tx.UpdateSalesOrder(ctx, so); err != nil {
			return outcome{}, err
		}
		moved = so
		return outcome{entity: "sales_order", entityID: so.ID}, nil
	})
	if err != nil {
		return documents.SalesOrder{}, err
	}
	return moved, nil
}

// SendSalesOrder moves a draft sales order to SENT.
func (s *Service) SendSalesOrder(ctx context.Context, scope shared.Scope, id int64) (documents.SalesOrder, error) {
	return s.moveSalesOrder(ctx, scope, "sales_order.send", id, documents.OrderStatusSent)
}

// CancelSalesOrder cancels a draft or sent sales order.
func (s *Service) CancelSalesOrder(ctx context.Context, scope shared.Scope, id int64) (documents.SalesOrder, error) {
	return s.moveSalesOrder(ctx, scope, "sales_order.cancel", id, documents.OrderStatusCancelled)
}

// ConvertSOToInvoice creates an invoice from a sent sales order, sends it
// and marks the order CONVERTED, all in one transaction.
func (s *Service) ConvertSOToInvoice(ctx context.Context, scope shared.Scope, id int64) (documents.Invoice, error) {
	var sent documents.Invoice
	err := s.run(ctx, scope, "sales_order.convert", func(ctx context.Context, tx documents.TxRepository) (outcome, error) {
		so, err := tx.GetSalesOrderForUpdate(ctx, scope.TenantID, id)
		if err != nil {
			return outcome{}, err
		}
		if err := documents.CheckOrder("sales order", so.Number, so.Status, documents.OrderStatusConverted); err != nil {
			return outcome{}, err
		}
		issue := s.today()
		draft, err := s.draftInvoice(scope, documents.KindInvoice, InvoiceInput{
			CustomerID: so.CustomerID,
			IssueDate:  issue,
			DueDate:    issue.AddDate(0, 0, DefaultPaymentTermsDays),
			Notes:      so.Notes,
			Lines:      documents.Inputs(so.Lines),
		})
		if err != nil {
			return outcome{}, err
		}
		draft.SalesOrderID = &so.ID
		inv, err := s.insertInvoice(ctx, scope, tx, draft)
		if err != nil {
			return outcome{}, err
		}
		inv, result, err := s.sendInvoice(ctx, scope, tx, inv)
		if err != nil {
			return outcome{}, err
		}
		so.Status = documents.OrderStatusConverted
		so.ConvertedInvoiceID = &inv.ID
		so.UpdatedAt = s.now()
		if err := tx.UpdateSalesOrder(ctx, so); err != nil {
			return outcome{}, err
		}
		sent = inv
		return outcome{result: result, entity: "sales_order", entityID: so.ID,
			meta: map[string]any{"sales_order": so.Number, "invoice": inv.Number}}, nil
	})
	if err != nil {
		return documents.Invoice{}, err
	}
	return sent, nil
}

// GetPurchaseOrder returns a purchase order with its lines.
func (s *Service) GetPurchaseOrder(ctx context.Context, scope shared.Scope, id int64) (documents.PurchaseOrder, error) {
	if err := scope.Validate(); err != nil {
		return documents.PurchaseOrder{}, err
	}
	return s.docs.GetPurchaseOrder(ctx, scope.TenantID, id)
}

// GetSalesOrder returns a sales order with its lines.
func (s *Service) GetSalesOrder(ctx context.Context, scope shared.Scope, id int64) (documents.SalesOrder, error) {
	if err := scope.Validate(); err != nil {
		return documents.SalesOrder{}, err
	}
	return s.docs.GetSalesOrder(ctx, scope.TenantID, id)
}
