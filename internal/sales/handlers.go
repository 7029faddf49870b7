package sales

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-fieldsales/internal/common"
)

// Handler exposes invoice endpoints.
type Handler struct {
	Svc *Service
}

type deliveryRequest struct {
	Status string `json:"status"`
}

// Quote prices a basket without recording it.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var in QuoteInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	inv, err := h.Svc.Quote(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, inv)
}

// Create records an invoice.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	receipt, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, receipt)
}

// List returns an employee's sales history.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.ListByEmployee(r.Context(), r.URL.Query().Get("employeeCode"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.List(w, r, items, 20)
}

// Get returns one invoice summary.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Svc.Get(r.Context(), strings.TrimSpace(chi.URLParam(r, "number")))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, summary)
}

// UpdateDelivery changes the delivery status of an invoice.
func (h *Handler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	var in deliveryRequest
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	number := strings.TrimSpace(chi.URLParam(r, "number"))
	n, err := h.Svc.UpdateDelivery(r.Context(), number, in.Status)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"invoiceNumber": number, "rowsUpdated": n})
}

// UpdatePayment records a payment against an invoice.
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	var in PaymentInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	number := strings.TrimSpace(chi.URLParam(r, "number"))
	n, err := h.Svc.UpdatePayment(r.Context(), number, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"invoiceNumber": number, "rowsUpdated": n})
}
