package visit

import (
	"net/http"

	"github.com/noah-isme/backend-fieldsales/internal/common"
)

// Handler exposes visit endpoints.
type Handler struct {
	Svc *Service
}

// Create records a visit.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	v, err := h.Svc.Record(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, v)
}

// List returns an employee's visits.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	visits, err := h.Svc.ListByEmployee(r.Context(), r.URL.Query().Get("employeeCode"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.List(w, r, visits, 20)
}
