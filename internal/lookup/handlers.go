// Package lookup serves the reference tables the field app builds its
// pickers from.
package lookup

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-fieldsales/internal/common"
	"github.com/noah-isme/backend-fieldsales/internal/refdata"
)

// Handler exposes read-only catalog endpoints.
type Handler struct {
	Catalog *refdata.Catalog
}

type productView struct {
	ID         string                     `json:"id"`
	Name       string                     `json:"name"`
	Category   string                     `json:"category"`
	BasePrice  decimal.Decimal            `json:"basePrice"`
	TierPrices map[string]decimal.Decimal `json:"tierPrices,omitempty"`
}

type employeeView struct {
	Name             string `json:"name"`
	Code             string `json:"code"`
	Designation      string `json:"designation"`
	DiscountCategory string `json:"discountCategory,omitempty"`
}

type outletView struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Address string `json:"address"`
	State   string `json:"state"`
	City    string `json:"city"`
	GST     string `json:"gst,omitempty"`
}

type distributorView struct {
	FirmName      string `json:"firmName"`
	ID            string `json:"id"`
	ContactPerson string `json:"contactPerson"`
	ContactNumber string `json:"contactNumber"`
	Email         string `json:"email,omitempty"`
	Territory     string `json:"territory"`
}

// Products lists the catalog, optionally narrowed by ?category.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	out := []productView{}
	for _, p := range h.Catalog.Products() {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		out = append(out, productView{ID: p.ID, Name: p.Name, Category: p.Category, BasePrice: p.BasePrice, TierPrices: p.TierPrices})
	}
	common.List(w, r, out, 100)
}

// Employee returns one employee by code. The field app uses it as its sign-in lookup.
func (h *Handler) Employee(w http.ResponseWriter, r *http.Request) {
	e, err := h.Catalog.EmployeeByCode(chi.URLParam(r, "code"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, employeeView(e))
}

// Outlets lists outlets, optionally narrowed by ?state and ?city.
func (h *Handler) Outlets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state, city := strings.TrimSpace(q.Get("state")), strings.TrimSpace(q.Get("city"))
	out := []outletView{}
	for _, o := range h.Catalog.Outlets() {
		if (state != "" && o.State != state) || (city != "" && o.City != city) {
			continue
		}
		out = append(out, outletView(o))
	}
	common.List(w, r, out, 100)
}

// Distributors lists distributors.
func (h *Handler) Distributors(w http.ResponseWriter, r *http.Request) {
	out := []distributorView{}
	for _, d := range h.Catalog.Distributors() {
		out = append(out, distributorView(d))
	}
	common.List(w, r, out, 100)
}

// States lists the known states.
func (h *Handler) States(w http.ResponseWriter, _ *http.Request) {
	common.Data(w, http.StatusOK, h.Catalog.States())
}

// Cities lists the cities of the state in the path.
func (h *Handler) Cities(w http.ResponseWriter, r *http.Request) {
	state := chi.URLParam(r, "state")
	cities := h.Catalog.Cities(state)
	if len(cities) == 0 {
		common.WriteError(w, &refdata.LookupError{Kind: "state", Key: state})
		return
	}
	common.Data(w, http.StatusOK, cities)
}
