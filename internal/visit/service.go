package visit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-fieldsales/internal/common"
	"github.com/noah-isme/backend-fieldsales/internal/ids"
	"github.com/noah-isme/backend-fieldsales/internal/ledger"
	"github.com/noah-isme/backend-fieldsales/internal/obs"
	"github.com/noah-isme/backend-fieldsales/internal/refdata"
)

// Purposes lists the accepted visit purposes.
var Purposes = []string{"Sales", "Product Demonstration", "Relationship Building", "Issue Resolution", "Other"}

// StatusCompleted is written on every recorded visit.
const StatusCompleted = "completed"

// Schema is the Visits table.
var Schema = ledger.Schema{
	Table: "Visits",
	Columns: []string{
		"Visit ID", "Employee Name", "Employee Code", "Designation",
		"Outlet Name", "Outlet Contact", "Outlet Address", "Outlet State", "Outlet City",
		"Visit Date", "Entry Time", "Exit Time", "Visit Duration (minutes)",
		"Visit Purpose", "Visit Notes", "Visit Selfie Path", "Visit Status",
	},
	Key: []string{"Visit ID"},
}

// Input describes a finished visit.
type Input struct {
	EmployeeCode string            `json:"employeeCode" validate:"required"`
	Outlet       refdata.OutletRef `json:"outlet"`
	Purpose      string            `json:"purpose" validate:"required"`
	Notes        string            `json:"notes"`
	SelfiePath   string            `json:"selfiePath"`
	EntryTime    time.Time         `json:"entryTime" validate:"required"`
	ExitTime     time.Time         `json:"exitTime" validate:"required"`
}

// Visit is the stored record.
type Visit struct {
	ID              string          `json:"id"`
	EmployeeCode    string          `json:"employeeCode"`
	EmployeeName    string          `json:"employeeName"`
	OutletName      string          `json:"outletName"`
	Date            string          `json:"date"`
	EntryTime       string          `json:"entryTime"`
	ExitTime        string          `json:"exitTime"`
	DurationMinutes decimal.Decimal `json:"durationMinutes"`
	Purpose         string          `json:"purpose"`
	Notes           string          `json:"notes,omitempty"`
	Status          string          `json:"status"`
}

// Service records outlet visits.
type Service struct {
	Store   ledger.Store
	Catalog *refdata.Catalog
	IDs     *ids.Generator
	Logger  zerolog.Logger
}

// Duration returns the visit length in minutes rounded to two decimals.
func Duration(entry, exit time.Time) (decimal.Decimal, error) {
	if exit.Before(entry) {
		return decimal.Zero, fmt.Errorf("exit time precedes entry time: %w", common.ErrValidation)
	}
	seconds := decimal.NewFromInt(int64(exit.Sub(entry) / time.Second))
	return seconds.Div(decimal.NewFromInt(60)).Round(2), nil
}

// Record appends one visit.
func (s *Service) Record(ctx context.Context, in Input) (Visit, error) {
	if err := common.Validate(in); err != nil {
		return Visit{}, err
	}
	if !contains(Purposes, in.Purpose) {
		return Visit{}, fmt.Errorf("visit purpose %q: %w", in.Purpose, common.ErrValidation)
	}
	emp, err := s.Catalog.EmployeeByCode(strings.TrimSpace(in.EmployeeCode))
	if err != nil {
		return Visit{}, err
	}
	outlet, err := s.Catalog.ResolveOutlet(in.Outlet)
	if err != nil {
		return Visit{}, err
	}
	minutes, err := Duration(in.EntryTime, in.ExitTime)
	if err != nil {
		return Visit{}, err
	}
	id, err := s.IDs.Unique(ctx, ids.Visit, func(ctx context.Context, id string) (bool, error) {
		return ledger.Exists(ctx, s.Store, Schema, "Visit ID", id)
	})
	if err != nil {
		return Visit{}, err
	}

	loc := s.IDs.Today().Location()
	entry, exit := in.EntryTime.In(loc), in.ExitTime.In(loc)
	row := ledger.Row{
		"Visit ID":                 id,
		"Employee Name":            emp.Name,
		"Employee Code":            emp.Code,
		"Designation":              emp.Designation,
		"Outlet Name":              outlet.Name,
		"Outlet Contact":           outlet.Contact,
		"Outlet Address":           outlet.Address,
		"Outlet State":             outlet.State,
		"Outlet City":              outlet.City,
		"Visit Date":               entry.Format("02-01-2006"),
		"Entry Time":               entry.Format("15:04:05"),
		"Exit Time":                exit.Format("15:04:05"),
		"Visit Duration (minutes)": minutes.StringFixed(2),
		"Visit Purpose":            in.Purpose,
		"Visit Notes":              in.Notes,
		"Visit Selfie Path":        in.SelfiePath,
		"Visit Status":             StatusCompleted,
	}
	if err := s.Store.AppendRows(ctx, Schema, []ledger.Row{row}); err != nil {
		return Visit{}, err
	}
	s.Logger.Info().Str("visit_id", id).Str("employee_code", emp.Code).Str("outlet", outlet.Name).Msg("visit_recorded")
	obs.RecordWritten("visit")
	return fromRow(row), nil
}

// ListByEmployee returns the employee's visits in stored order.
func (s *Service) ListByEmployee(ctx context.Context, employeeCode string) ([]Visit, error) {
	if strings.TrimSpace(employeeCode) == "" {
		return nil, fmt.Errorf("employee code is required: %w", common.ErrValidation)
	}
	rows, err := s.Store.ReadTable(ctx, Schema)
	if err != nil {
		return nil, err
	}
	out := []Visit{}
	for _, r := range ledger.Filter(rows, ledger.Where("Employee Code", employeeCode)) {
		out = append(out, fromRow(r))
	}
	return out, nil
}

func fromRow(r ledger.Row) Visit {
	minutes, _ := decimal.NewFromString(r["Visit Duration (minutes)"])
	return Visit{
		ID:              r["Visit ID"],
		EmployeeCode:    r["Employee Code"],
		EmployeeName:    r["Employee Name"],
		OutletName:      r["Outlet Name"],
		Date:            r["Visit Date"],
		EntryTime:       r["Entry Time"],
		ExitTime:        r["Exit Time"],
		DurationMinutes: minutes,
		Purpose:         r["Visit Purpose"],
		Notes:           r["Visit Notes"],
		Status:          r["Visit Status"],
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
