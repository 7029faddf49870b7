package ticket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-fieldsales/internal/common"
	"github.com/noah-isme/backend-fieldsales/internal/refdata"
	"github.com/noah-isme/backend-fieldsales/internal/testkit"
	"github.com/noah-isme/backend-fieldsales/internal/ticket"
)

func newService(t *testing.T) *ticket.Service {
	t.Helper()
	adapter, _ := testkit.Ledger(t)
	return &ticket.Service{Store: adapter, Catalog: testkit.Catalog(t), IDs: testkit.IDs(t)}
}

func TestRaiseResolveLifecycle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	raised, err := svc.Raise(ctx, ticket.RaiseInput{
		EmployeeCode: "E02",
		Category:     "Product Quality",
		Subject:      "Leaking caps",
		Description:  "Three bottles leaked in transit",
		OutletName:   "Glow Store",
	})
	require.NoError(t, err)
	require.Regexp(t, `^TKT-20260314-`, raised.ID)
	require.Equal(t, ticket.StatusOpen, raised.Status)
	require.Equal(t, "medium", raised.Priority)
	require.Equal(t, "14-03-2026 10:30:00", raised.RaisedAt)

	open, err := svc.List(ctx, ticket.Filter{Status: ticket.StatusOpen})
	require.NoError(t, err)
	require.Len(t, open, 1)

	resolved, err := svc.Resolve(ctx, raised.ID, ticket.ResolveInput{ResolvedBy: "Asha Verma", Resolution: "Replaced stock"})
	require.NoError(t, err)
	require.Equal(t, ticket.StatusResolved, resolved.Status)
	require.Equal(t, "Replaced stock", resolved.Resolution)

	stored, err := svc.Get(ctx, raised.ID)
	require.NoError(t, err)
	require.Equal(t, resolved, stored)

	_, err = svc.Resolve(ctx, raised.ID, ticket.ResolveInput{ResolvedBy: "Asha Verma", Resolution: "again"})
	require.ErrorIs(t, err, ticket.ErrAlreadyResolved)
	require.Equal(t, http.StatusConflict, common.Classify(err).HTTPStatus)

	open, err = svc.List(ctx, ticket.Filter{Status: ticket.StatusOpen})
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestRaiseValidation(t *testing.T) {
	svc := newService(t)
	_, err := svc.Raise(context.Background(), ticket.RaiseInput{EmployeeCode: "E01", Category: "Gossip", Subject: "x", Description: "y"})
	require.Equal(t, common.CodeValidation, common.Classify(err).Code)

	_, err = svc.Raise(context.Background(), ticket.RaiseInput{EmployeeCode: "E01", Category: "Stock", Subject: "x", Description: "y", OutletName: "Nowhere"})
	require.ErrorIs(t, err, refdata.ErrNotFound)
}

func TestResolveUnknown(t *testing.T) {
	svc := newService(t)
	_, err := svc.Resolve(context.Background(), "TKT-20260314-NOPE", ticket.ResolveInput{ResolvedBy: "a", Resolution: "b"})
	require.ErrorIs(t, err, ticket.ErrTicketNotFound)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestHandlerResolve(t *testing.T) {
	svc := newService(t)
	raised, err := svc.Raise(context.Background(), ticket.RaiseInput{EmployeeCode: "E01", Category: "Delivery", Priority: "high", Subject: "Late", Description: "Two days late"})
	require.NoError(t, err)

	h := &ticket.Handler{Svc: svc}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/"+raised.ID+"/resolve", strings.NewReader(`{"resolvedBy":"Ravi Kumar","resolution":"Courier escalated"}`))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", raised.ID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h.Resolve(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"resolved"`)
}
