package common

import (
	"net/http"
	"strconv"
)

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination extracts page and per-page parameters from query values.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		perPage = l
	}
	return
}

// Paginate slices items for the requested page. Ledger tables are read in
// full, so paging happens in memory.
func Paginate[T any](items []T, page, perPage int) ([]T, Pagination) {
	meta := Pagination{Page: page, PerPage: perPage, TotalItems: len(items)}
	if page < 1 || perPage < 1 {
		return items, meta
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}, meta
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], meta
}

// List writes a paginated {"data": ..., "pagination": ...} response.
func List[T any](w http.ResponseWriter, r *http.Request, items []T, defaultPerPage int) {
	page, perPage := ParsePagination(r, defaultPerPage)
	data, meta := Paginate(items, page, perPage)
	JSON(w, http.StatusOK, map[string]any{"data": data, "pagination": meta})
}
