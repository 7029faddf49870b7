package ticket

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-fieldsales/internal/common"
)

// Handler exposes ticket endpoints.
type Handler struct {
	Svc *Service
}

// Raise opens a ticket.
func (h *Handler) Raise(w http.ResponseWriter, r *http.Request) {
	var in RaiseInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	t, err := h.Svc.Raise(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, t)
}

// Resolve closes the ticket named in the path.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var in ResolveInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	t, err := h.Svc.Resolve(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, t)
}

// Get returns one ticket.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, t)
}

// List returns tickets filtered by ?employeeCode and ?status.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tickets, err := h.Svc.List(r.Context(), Filter{EmployeeCode: q.Get("employeeCode"), Status: q.Get("status")})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.List(w, r, tickets, 20)
}
