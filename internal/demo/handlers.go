package demo

import (
	"net/http"

	"github.com/noah-isme/backend-fieldsales/internal/common"
)

// Handler exposes demo endpoints.
type Handler struct {
	Svc *Service
}

// Create records a demo.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	d, err := h.Svc.Record(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, d)
}

// List returns an employee's demos.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	demos, err := h.Svc.ListByEmployee(r.Context(), r.URL.Query().Get("employeeCode"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.List(w, r, demos, 20)
}
