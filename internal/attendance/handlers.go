package attendance

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-fieldsales/internal/common"
)

// Handler exposes attendance endpoints.
type Handler struct {
	Svc *Service
}

// Mark records today's attendance.
func (h *Handler) Mark(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	rec, err := h.Svc.Mark(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, rec)
}

// Today reports whether the employee has marked attendance today.
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "employeeCode")
	marked, err := h.Svc.HasMarked(r.Context(), code)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"employeeCode": code, "marked": marked})
}

// List returns attendance rows filtered by ?employeeCode and ?date.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := h.Svc.List(r.Context(), q.Get("employeeCode"), q.Get("date"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.List(w, r, records, 50)
}
