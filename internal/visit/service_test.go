package visit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-fieldsales/internal/common"
	"github.com/noah-isme/backend-fieldsales/internal/refdata"
	"github.com/noah-isme/backend-fieldsales/internal/testkit"
	"github.com/noah-isme/backend-fieldsales/internal/visit"
)

func newService(t *testing.T) *visit.Service {
	t.Helper()
	adapter, _ := testkit.Ledger(t)
	return &visit.Service{Store: adapter, Catalog: testkit.Catalog(t), IDs: testkit.IDs(t)}
}

func TestDuration(t *testing.T) {
	entry := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	d, err := visit.Duration(entry, entry.Add(42*time.Minute+20*time.Second))
	require.NoError(t, err)
	require.Equal(t, "42.33", d.StringFixed(2))

	_, err = visit.Duration(entry, entry.Add(-time.Minute))
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestRecordAndList(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	entry := time.Date(2026, 3, 14, 5, 0, 0, 0, time.UTC)

	v, err := svc.Record(ctx, visit.Input{
		EmployeeCode: "E01",
		Outlet:       refdata.OutletRef{Name: "Glow Store"},
		Purpose:      "Sales",
		Notes:        "restocked",
		EntryTime:    entry,
		ExitTime:     entry.Add(90 * time.Minute),
	})
	require.NoError(t, err)
	require.Regexp(t, `^VISIT-20260314-`, v.ID)
	require.Equal(t, "14-03-2026", v.Date)
	require.Equal(t, "10:30:00", v.EntryTime)
	require.Equal(t, "90", v.DurationMinutes.String())
	require.Equal(t, visit.StatusCompleted, v.Status)

	visits, err := svc.ListByEmployee(ctx, "E01")
	require.NoError(t, err)
	require.Equal(t, []visit.Visit{v}, visits)

	none, err := svc.ListByEmployee(ctx, "E02")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestRecordValidation(t *testing.T) {
	svc := newService(t)
	entry := time.Date(2026, 3, 14, 5, 0, 0, 0, time.UTC)
	base := visit.Input{EmployeeCode: "E01", Outlet: refdata.OutletRef{Name: "Glow Store"}, Purpose: "Sales", EntryTime: entry, ExitTime: entry.Add(time.Minute)}

	in := base
	in.Purpose = "Lunch"
	_, err := svc.Record(context.Background(), in)
	require.ErrorIs(t, err, common.ErrValidation)

	in = base
	in.Outlet = refdata.OutletRef{Name: "Unknown"}
	_, err = svc.Record(context.Background(), in)
	require.ErrorIs(t, err, refdata.ErrNotFound)

	in = base
	in.Outlet = refdata.OutletRef{Name: "Pop-up", Manual: true}
	_, err = svc.Record(context.Background(), in)
	require.ErrorIs(t, err, refdata.ErrIncompleteOutlet)
}

func TestHandlerCreate(t *testing.T) {
	h := &visit.Handler{Svc: newService(t)}
	body := `{"employeeCode":"E01","outlet":{"name":"Glow Store"},"purpose":"Other",
		"entryTime":"2026-03-14T10:00:00+05:30","exitTime":"2026-03-14T10:15:30+05:30"}`
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/visits", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"durationMinutes":"15.5"`)
}
