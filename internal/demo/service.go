package demo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-fieldsales/internal/common"
	"github.com/noah-isme/backend-fieldsales/internal/ids"
	"github.com/noah-isme/backend-fieldsales/internal/ledger"
	"github.com/noah-isme/backend-fieldsales/internal/obs"
	"github.com/noah-isme/backend-fieldsales/internal/refdata"
)

// Outcomes lists the accepted demo results.
var Outcomes = []string{"Interested", "Not Interested", "Follow-up Required", "Order Placed"}

// Schema is the Demos table.
var Schema = ledger.Schema{
	Table: "Demos",
	Columns: []string{
		"Demo ID", "Employee Name", "Employee Code", "Designation",
		"Outlet Name", "Outlet Contact", "Outlet State", "Outlet City",
		"Demo Date", "Start Time", "End Time", "Products Demonstrated",
		"Attendees", "Outcome", "Feedback", "Demo Photo Path",
	},
	Key: []string{"Demo ID"},
}

// Input records a product demonstration.
type Input struct {
	EmployeeCode string            `json:"employeeCode" validate:"required"`
	Outlet       refdata.OutletRef `json:"outlet"`
	Products     []string          `json:"products" validate:"required,min=1,dive,required"`
	Attendees    int               `json:"attendees" validate:"gte=0"`
	Outcome      string            `json:"outcome" validate:"required,oneof=Interested 'Not Interested' 'Follow-up Required' 'Order Placed'"`
	Feedback     string            `json:"feedback"`
	PhotoPath    string            `json:"photoPath"`
	StartTime    time.Time         `json:"startTime" validate:"required"`
	EndTime      time.Time         `json:"endTime" validate:"required"`
}

// Demo is a stored demo row.
type Demo struct {
	ID           string   `json:"id"`
	EmployeeCode string   `json:"employeeCode"`
	EmployeeName string   `json:"employeeName"`
	OutletName   string   `json:"outletName"`
	Date         string   `json:"date"`
	StartTime    string   `json:"startTime"`
	EndTime      string   `json:"endTime"`
	Products     []string `json:"products"`
	Attendees    string   `json:"attendees"`
	Outcome      string   `json:"outcome"`
	Feedback     string   `json:"feedback,omitempty"`
}

// Service records product demonstrations at outlets.
type Service struct {
	Store   ledger.Store
	Catalog *refdata.Catalog
	IDs     *ids.Generator
	Logger  zerolog.Logger
}

// Record appends one demo. Every demonstrated product must exist in the
// catalog.
func (s *Service) Record(ctx context.Context, in Input) (Demo, error) {
	if err := common.Validate(in); err != nil {
		return Demo{}, err
	}
	if in.EndTime.Before(in.StartTime) {
		return Demo{}, fmt.Errorf("end time precedes start time: %w", common.ErrValidation)
	}
	emp, err := s.Catalog.EmployeeByCode(strings.TrimSpace(in.EmployeeCode))
	if err != nil {
		return Demo{}, err
	}
	outlet, err := s.Catalog.ResolveOutlet(in.Outlet)
	if err != nil {
		return Demo{}, err
	}
	products := make([]string, 0, len(in.Products))
	for _, name := range in.Products {
		p, err := s.Catalog.Product(strings.TrimSpace(name))
		if err != nil {
			return Demo{}, err
		}
		products = append(products, p.Name)
	}

	id, err := s.IDs.Unique(ctx, ids.Demo, func(ctx context.Context, id string) (bool, error) {
		return ledger.Exists(ctx, s.Store, Schema, "Demo ID", id)
	})
	if err != nil {
		return Demo{}, err
	}
	loc := s.IDs.Today().Location()
	start, end := in.StartTime.In(loc), in.EndTime.In(loc)
	row := ledger.Row{
		"Demo ID":               id,
		"Employee Name":         emp.Name,
		"Employee Code":         emp.Code,
		"Designation":           emp.Designation,
		"Outlet Name":           outlet.Name,
		"Outlet Contact":        outlet.Contact,
		"Outlet State":          outlet.State,
		"Outlet City":           outlet.City,
		"Demo Date":             start.Format("02-01-2006"),
		"Start Time":            start.Format("15:04:05"),
		"End Time":              end.Format("15:04:05"),
		"Products Demonstrated": strings.Join(products, ", "),
		"Attendees":             fmt.Sprint(in.Attendees),
		"Outcome":               in.Outcome,
		"Feedback":              in.Feedback,
		"Demo Photo Path":       in.PhotoPath,
	}
	if err := s.Store.AppendRows(ctx, Schema, []ledger.Row{row}); err != nil {
		return Demo{}, err
	}
	s.Logger.Info().Str("demo_id", id).Str("employee_code", emp.Code).Str("outcome", in.Outcome).Msg("demo_recorded")
	obs.RecordWritten("demo")
	return fromRow(row), nil
}

// ListByEmployee returns the employee's demos in stored order.
func (s *Service) ListByEmployee(ctx context.Context, employeeCode string) ([]Demo, error) {
	if strings.TrimSpace(employeeCode) == "" {
		return nil, fmt.Errorf("employee code is required: %w", common.ErrValidation)
	}
	rows, err := s.Store.ReadTable(ctx, Schema)
	if err != nil {
		return nil, err
	}
	out := []Demo{}
	for _, r := range ledger.Filter(rows, ledger.Where("Employee Code", employeeCode)) {
		out = append(out, fromRow(r))
	}
	return out, nil
}

func fromRow(r ledger.Row) Demo {
	var products []string
	for _, p := range strings.Split(r["Products Demonstrated"], ",") {
		if p = strings.TrimSpace(p); p != "" {
			products = append(products, p)
		}
	}
	return Demo{
		ID:           r["Demo ID"],
		EmployeeCode: r["Employee Code"],
		EmployeeName: r["Employee Name"],
		OutletName:   r["Outlet Name"],
		Date:         r["Demo Date"],
		StartTime:    r["Start Time"],
		EndTime:      r["End Time"],
		Products:     products,
		Attendees:    r["Attendees"],
		Outcome:      r["Outcome"],
		Feedback:     r["Feedback"],
	}
}
