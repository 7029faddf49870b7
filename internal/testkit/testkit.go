// Package testkit builds the small fixtures shared by service tests.
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-fieldsales/internal/ids"
	"github.com/noah-isme/backend-fieldsales/internal/ledger"
	"github.com/noah-isme/backend-fieldsales/internal/refdata"
	"github.com/noah-isme/backend-fieldsales/internal/resilience"
	"github.com/noah-isme/backend-fieldsales/internal/tablestore"
)

// Now is the fixed clock used by fixtures: 14 March 2026, 10:30 IST.
var Now = time.Date(2026, 3, 14, 5, 0, 0, 0, time.UTC)

// Catalog returns a two-product, two-employee reference set.
func Catalog(t testing.TB) *refdata.Catalog {
	t.Helper()
	catalog, err := refdata.NewCatalog(refdata.Tables{
		Products: []refdata.Product{
			{ID: "P-1", Name: "Face Wash", Category: "Skin", BasePrice: decimal.NewFromInt(200),
				TierPrices: map[string]decimal.Decimal{"Gold": decimal.NewFromInt(180)}},
			{ID: "P-2", Name: "Soap", Category: "Bath", BasePrice: decimal.RequireFromString("49.99")},
		},
		Employees: []refdata.Employee{
			{Name: "Asha Verma", Code: "E01", Designation: "ASM", DiscountCategory: "Gold"},
			{Name: "Ravi Kumar", Code: "E02", Designation: "SO"},
		},
		Outlets: []refdata.Outlet{
			{Name: "Glow Store", Contact: "9999900000", Address: "MG Road", State: "Uttar Pradesh", City: "Noida", GST: "09ABCDE1234F1Z5"},
		},
		Distributors: []refdata.Distributor{
			{FirmName: "North Traders", ID: "D-9", ContactPerson: "Mohan", ContactNumber: "8888800000", Territory: "NCR"},
		},
		Locations: []refdata.Location{{State: "Uttar Pradesh", City: "Noida"}},
	})
	require.NoError(t, err)
	return catalog
}

// Ledger returns an adapter over an in-memory store that never sleeps.
func Ledger(t testing.TB) (*ledger.Adapter, *tablestore.Memory) {
	t.Helper()
	mem := tablestore.NewMemory()
	return &ledger.Adapter{
		Conn: mem,
		Retry: resilience.RetryPolicy{Attempts: 3, Base: time.Millisecond, Sleep: func(context.Context, time.Duration) error {
			return nil
		}},
		Now: func() time.Time { return Now },
	}, mem
}

// IDs returns a generator pinned to the fixture clock.
func IDs(t testing.TB) *ids.Generator {
	t.Helper()
	seq, err := ids.NewSnowflakeSequence(1)
	require.NoError(t, err)
	return &ids.Generator{Seq: seq, Location: ids.LoadLocation(ids.DefaultTimezone), Now: func() time.Time { return Now }}
}
