package travel

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-fieldsales/internal/common"
)

// Handler exposes travel request endpoints.
type Handler struct {
	Svc *Service
}

// Create files a booking request.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in RequestInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	req, err := h.Svc.Request(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, req)
}

// Decide approves or rejects the request named in the path.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	var in DecideInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	req, err := h.Svc.Decide(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, req)
}

// Get returns one request.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, req)
}

// List returns requests filtered by ?employeeCode and ?status.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reqs, err := h.Svc.ListByEmployee(r.Context(), q.Get("employeeCode"), q.Get("status"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.List(w, r, reqs, 20)
}
