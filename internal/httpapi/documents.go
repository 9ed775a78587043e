package httpapi

import (
	"net/http"

	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/reports"
)

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.svc.Lifecycle.CreateInvoice(r.Context(), scopeOf(r), req.input())
	h.respond(w, r, http.StatusCreated, inv, err)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := reports.InvoiceQuery{
		Kind:   documents.InvoiceKind(r.URL.Query().Get("kind")),
		Status: documents.InvoiceStatus(r.URL.Query().Get("status")),
	}
	var err error
	if q.CustomerID, err = queryInt64(r, "customer_id"); err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := queryInt64(r, "page")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	perPage, err := queryInt64(r, "per_page")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q.Page, q.PerPage = int(page), int(perPage)
	result, err := h.svc.Reports.ListInvoices(r.Context(), scopeOf(r), q)
	h.respond(w, r, http.StatusOK, result, err)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request, id int64) {
	inv, err := h.svc.Lifecycle.GetInvoice(r.Context(), scopeOf(r), id)
	h.respond(w, r, http.StatusOK, inv, err)
}

func (h *Handler) sendInvoice(w http.ResponseWriter, r *http.Request, id int64) {
	inv, err := h.svc.Lifecycle.SendInvoice(r.Context(), scopeOf(r), id)
	h.respond(w, r, http.StatusOK, inv, err)
}

func (h *Handler) voidInvoice(w http.ResponseWriter, r *http.Request, id int64) {
	var req voidRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.svc.Lifecycle.VoidInvoice(r.Context(), scopeOf(r), id, req.Reason)
	h.respond(w, r, http.StatusOK, inv, err)
}

func (h *Handler) createQuotation(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	quo, err := h.svc.Lifecycle.CreateQuotation(r.Context(), scopeOf(r), req.input())
	h.respond(w, r, http.StatusCreated, quo, err)
}

func (h *Handler) convertQuotation(w http.ResponseWriter, r *http.Request, id int64) {
	inv, err := h.svc.Lifecycle.ConvertQuotationToInvoice(r.Context(), scopeOf(r), id)
	h.respond(w, r, http.StatusCreated, inv, err)
}

func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	var req billRequest
	if !h.decode(w, r, &req) {
		return
	}
	bill, err := h.svc.Lifecycle.CreateBill(r.Context(), scopeOf(r), req.input())
	h.respond(w, r, http.StatusCreated, bill, err)
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request, id int64) {
	bill, err := h.svc.Lifecycle.GetBill(r.Context(), scopeOf(r), id)
	h.respond(w, r, http.StatusOK, bill, err)
}

func (h *Handler) approveBill(w http.ResponseWriter, r *http.Request, id int64) {
	bill, err := h.svc.Lifecycle.ApproveBill(r.Context(), scopeOf(r), id)
	h.respond(w, r, http.StatusOK, bill, err)
}

func (h *Handler) voidBill(w http.ResponseWriter, r *http.Request, id int64) {
	var req voidRequest
	if !h.decode(w, r, &req) {
		return
	}
	bill, err := h.svc.Lifecycle.VoidBill(r.Context(), scopeOf(r), id, req.Reason)
	h.respond(w, r, http.StatusOK, bill, err)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	pay, err := h.svc.Lifecycle.RecordPayment(r.Context(), scopeOf(r), req.input())
	h.respond(w, r, http.StatusCreated, pay, err)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request, id int64) {
	pay, err := h.svc.Lifecycle.GetPayment(r.Context(), scopeOf(r), id)
	h.respond(w, r, http.StatusOK, pay, err)
}

func (h *Handler) createCreditMemo(w http.ResponseWriter, r *http.Request) {
	var req creditMemoRequest
	if !h.decode(w, r, &req) {
		return
	}
	memo, err := h.svc.Lifecycle.CreateCreditMemo(r.Context(), scopeOf(r), req.input())
	h.respond(w, r, http.StatusCreated, memo, err)
}

func (h *Handler) issueCreditMemo(w http.ResponseWriter, r *http.Request, id int64) {
	memo, err := h.svc.Lifecycle.IssueCreditMemo(r.Context(), scopeOf(r), id)
	h.respond(w, r, http.StatusOK, memo, err)
}

func (h *Handler) voidCreditMemo(w http.ResponseWriter, r *http.Request, id int64) {
	var req voidRequest
	if !h.decode(w, r, &req) {
		return
	}
	memo, err := h.svc.Lifecycle.VoidCreditMemo(r.Context(), scopeOf(r), id, req.Reason)
	h.respond(w, r, http.StatusOK, memo, err)
}

func (h *Handler) recordStockMovement(w http.ResponseWriter, r *http.Request) {
	var req stockMovementRequest
	if !h.decode(w, r, &req) {
		return
	}
	mv, err := h.svc.Lifecycle.RecordStockMovement(r.Context(), scopeOf(r), req.input())
	h.respond(w, r, http.StatusCreated, mv, err)
}

func (h *Handler) createPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !h.decode(w, r, &req) {
		return
	}
	po, err := h.svc.Lifecycle.CreatePurchaseOrder(r.Context(), scopeOf(r), req.input())
	h.respond(w, r, http.StatusCreated, po, err)
}

func (h *Handler) convertPurchaseOrder(w http.ResponseWriter, r *http.Request, id int64) {
	bill, err := h.svc.Lifecycle.ConvertPOToBill(r.Context(), scopeOf(r), id)
	h.respond(w, r, http.StatusCreated, bill, err)
}

func (h *Handler) createSalesOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !h.decode(w, r, &req) {
		return
	}
	so, err := h.svc.Lifecycle.CreateSalesOrder(r.Context(), scopeOf(r), req.input())
	h.respond(w, r, http.StatusCreated, so, err)
}

func (h *Handler) convertSalesOrder(w http.ResponseWriter, r *http.Request, id int64) {
	inv, err := h.svc.Lifecycle.ConvertSOToInvoice(r.Context(), scopeOf(r), id)
	h.respond(w, r, http.StatusCreated, inv, err)
}
