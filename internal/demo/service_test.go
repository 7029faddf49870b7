package demo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-fieldsales/internal/common"
	"github.com/noah-isme/backend-fieldsales/internal/demo"
	"github.com/noah-isme/backend-fieldsales/internal/refdata"
	"github.com/noah-isme/backend-fieldsales/internal/testkit"
)

func newService(t *testing.T) *demo.Service {
	t.Helper()
	adapter, _ := testkit.Ledger(t)
	return &demo.Service{Store: adapter, Catalog: testkit.Catalog(t), IDs: testkit.IDs(t)}
}

func TestRecordAndList(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)

	d, err := svc.Record(ctx, demo.Input{
		EmployeeCode: "E01",
		Outlet:       refdata.OutletRef{Name: "Glow Store"},
		Products:     []string{"Face Wash", " Soap "},
		Attendees:    4,
		Outcome:      "Order Placed",
		StartTime:    start,
		EndTime:      start.Add(45 * time.Minute),
	})
	require.NoError(t, err)
	require.Regexp(t, `^DEMO-20260314-`, d.ID)
	require.Equal(t, []string{"Face Wash", "Soap"}, d.Products)
	require.Equal(t, "11:30:00", d.StartTime)
	require.Equal(t, "4", d.Attendees)

	demos, err := svc.ListByEmployee(ctx, "E01")
	require.NoError(t, err)
	require.Equal(t, []demo.Demo{d}, demos)
}

func TestRecordRejectsUnknownProduct(t *testing.T) {
	svc := newService(t)
	start := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	_, err := svc.Record(context.Background(), demo.Input{
		EmployeeCode: "E01", Outlet: refdata.OutletRef{Name: "Glow Store"},
		Products: []string{"Shampoo"}, Outcome: "Interested", StartTime: start, EndTime: start,
	})
	require.ErrorIs(t, err, refdata.ErrNotFound)

	rows, err := svc.ListByEmployee(context.Background(), "E01")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestRecordValidation(t *testing.T) {
	svc := newService(t)
	start := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	_, err := svc.Record(context.Background(), demo.Input{
		EmployeeCode: "E01", Outlet: refdata.OutletRef{Name: "Glow Store"},
		Products: []string{"Soap"}, Outcome: "Interested", StartTime: start, EndTime: start.Add(-time.Minute),
	})
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.Record(context.Background(), demo.Input{
		EmployeeCode: "E01", Outlet: refdata.OutletRef{Name: "Glow Store"},
		Products: []string{"Soap"}, Outcome: "Maybe", StartTime: start, EndTime: start,
	})
	require.Equal(t, common.CodeValidation, common.Classify(err).Code)
}

func TestHandlerRejectsUnknownFields(t *testing.T) {
	h := &demo.Handler{Svc: newService(t)}
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/demos", strings.NewReader(`{"employeeCode":"E01","bogus":1}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
