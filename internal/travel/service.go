package travel

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

// Booking kinds.
const (
	KindTravel = "travel"
	KindHotel  = "hotel"
	KindBoth   = "both"
)

// Request statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

const (
	colID          = "Request ID"
	colEmpCode     = "Employee Code"
	colStatus      = "Status"
	dateLayout     = "02-01-2006"
	dateTimeLayout = "02-01-2006 15:04:05"
)

// Schema is the Travel table.
var Schema = ledger.Schema{
	Table: "Travel",
	Columns: []string{
		colID, "Employee Name", colEmpCode, "Designation", "Booking Type",
		"From City", "To City", "Travel Mode", "Departure Date", "Return Date",
		"Hotel City", "Check-in Date", "Check-out Date", "Purpose",
		colStatus, "Requested At", "Decided By", "Decided At", "Decision Note",
	},
	Key: []string{colID},
}

var (
	// ErrRequestNotFound is returned for an unknown request ID.
	ErrRequestNotFound = fmt.Errorf("travel: request %w", common.ErrNotFound)
	// ErrAlreadyDecided is returned when deciding a non-pending request.
	ErrAlreadyDecided = fmt.Errorf("travel: request already decided: %w", common.ErrTransition)
)

// RequestInput asks for a travel and/or hotel booking. Dates are
// yyyy-mm-dd.
type RequestInput struct {
	EmployeeCode  string `json:"employeeCode" validate:"required"`
	Kind          string `json:"kind" validate:"required,oneof=travel hotel both"`
	FromCity      string `json:"fromCity" validate:"required_unless=Kind hotel"`
	ToCity        string `json:"toCity" validate:"required_unless=Kind hotel"`
	Mode          string `json:"mode" validate:"required_unless=Kind hotel,omitempty,oneof=Bus Train Flight Car"`
	DepartureDate string `json:"departureDate" validate:"required_unless=Kind hotel"`
	ReturnDate    string `json:"returnDate"`
	HotelCity     string `json:"hotelCity" validate:"required_unless=Kind travel"`
	CheckIn       string `json:"checkIn" validate:"required_unless=Kind travel"`
	CheckOut      string `json:"checkOut" validate:"required_unless=Kind travel"`
	Purpose       string `json:"purpose" validate:"required"`
}

// DecideInput approves or rejects a pending request.
type DecideInput struct {
	Decision  string `json:"decision" validate:"required,oneof=approved rejected"`
	DecidedBy string `json:"decidedBy" validate:"required"`
	Note      string `json:"note"`
}

// Request is a stored booking request.
type Request struct {
	ID            string `json:"id"`
	EmployeeCode  string `json:"employeeCode"`
	EmployeeName  string `json:"employeeName"`
	Kind          string `json:"kind"`
	FromCity      string `json:"fromCity,omitempty"`
	ToCity        string `json:"toCity,omitempty"`
	Mode          string `json:"mode,omitempty"`
	DepartureDate string `json:"departureDate,omitempty"`
	ReturnDate    string `json:"returnDate,omitempty"`
	HotelCity     string `json:"hotelCity,omitempty"`
	CheckIn       string `json:"checkIn,omitempty"`
	CheckOut      string `json:"checkOut,omitempty"`
	Purpose       string `json:"purpose"`
	Status        string `json:"status"`
	RequestedAt   string `json:"requestedAt"`
	DecidedBy     string `json:"decidedBy,omitempty"`
	DecidedAt     string `json:"decidedAt,omitempty"`
	DecisionNote  string `json:"decisionNote,omitempty"`
}

// Service manages travel and hotel booking requests.
type Service struct {
	Store   ledger.Store
	Catalog *refdata.Catalog
	IDs     *ids.Generator
	Logger  zerolog.Logger
}

// Request appends a pending booking request.
func (s *Service) Request(ctx context.Context, in RequestInput) (Request, error) {
	if err := common.Validate(in); err != nil {
		return Request{}, err
	}
	emp, err := s.Catalog.EmployeeByCode(strings.TrimSpace(in.EmployeeCode))
	if err != nil {
		return Request{}, err
	}
	today := s.IDs.Today()
	row := ledger.Row{
		"Employee Name": emp.Name,
		colEmpCode:      emp.Code,
		"Designation":   emp.Designation,
		"Booking Type":  in.Kind,
		"Purpose":       in.Purpose,
		colStatus:       StatusPending,
		"Requested At":  today.Format(dateTimeLayout),
	}
	if in.Kind != KindHotel {
		dep, ret, err := dateRange(today, in.DepartureDate, in.ReturnDate, "departure", "return")
		if err != nil {
			return Request{}, err
		}
		row["From City"] = in.FromCity
		row["To City"] = in.ToCity
		row["Travel Mode"] = in.Mode
		row["Departure Date"] = dep
		row["Return Date"] = ret
	}
	if in.Kind != KindTravel {
		checkIn, checkOut, err := dateRange(today, in.CheckIn, in.CheckOut, "check-in", "check-out")
		if err != nil {
			return Request{}, err
		}
		row["Hotel City"] = in.HotelCity
		row["Check-in Date"] = checkIn
		row["Check-out Date"] = checkOut
	}

	id, err := s.IDs.Unique(ctx, ids.Travel, func(ctx context.Context, id string) (bool, error) {
		return ledger.Exists(ctx, s.Store, Schema, colID, id)
	})
	if err != nil {
		return Request{}, err
	}
	row[colID] = id
	if err := s.Store.AppendRows(ctx, Schema, []ledger.Row{row}); err != nil {
		return Request{}, err
	}
	s.Logger.Info().Str("request_id", id).Str("employee_code", emp.Code).Str("kind", in.Kind).Msg("travel_requested")
	obs.RecordWritten("travel")
	return fromRow(row), nil
}

// Decide approves or rejects a pending request.
func (s *Service) Decide(ctx context.Context, id string, in DecideInput) (Request, error) {
	if err := common.Validate(in); err != nil {
		return Request{}, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if current.Status != StatusPending {
		return Request{}, ErrAlreadyDecided
	}
	values := map[string]string{
		colStatus:       in.Decision,
		"Decided By":    in.DecidedBy,
		"Decided At":    s.IDs.Today().Format(dateTimeLayout),
		"Decision Note": in.Note,
	}
	n, err := s.Store.UpdateRowsWhere(ctx, Schema,
		ledger.All(ledger.Where(colID, id), ledger.Where(colStatus, StatusPending)), ledger.Set(values))
	if err != nil {
		return Request{}, err
	}
	if n == 0 {
		return Request{}, ErrAlreadyDecided
	}
	s.Logger.Info().Str("request_id", id).Str("decision", in.Decision).Str("decided_by", in.DecidedBy).Msg("travel_decided")
	current.Status = in.Decision
	current.DecidedBy = values["Decided By"]
	current.DecidedAt = values["Decided At"]
	current.DecisionNote = in.Note
	return current, nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, id string) (Request, error) {
	rows, err := s.Store.ReadTable(ctx, Schema)
	if err != nil {
		return Request{}, err
	}
	for _, r := range rows {
		if r[colID] == id {
			return fromRow(r), nil
		}
	}
	return Request{}, ErrRequestNotFound
}

// ListByEmployee returns the employee's requests, optionally by status.
func (s *Service) ListByEmployee(ctx context.Context, employeeCode, status string) ([]Request, error) {
	rows, err := s.Store.ReadTable(ctx, Schema)
	if err != nil {
		return nil, err
	}
	out := []Request{}
	for _, r := range rows {
		if employeeCode != "" && r[colEmpCode] != employeeCode {
			continue
		}
		if status != "" && r[colStatus] != status {
			continue
		}
		out = append(out, fromRow(r))
	}
	return out, nil
}

// dateRange parses yyyy-mm-dd bounds and formats them as stored. The start
// may not lie before today and the end may not precede the start. An empty
// end is allowed.
func dateRange(today time.Time, start, end, startName, endName string) (string, string, error) {
	loc := today.Location()
	from, err := time.ParseInLocation(time.DateOnly, start, loc)
	if err != nil {
		return "", "", fmt.Errorf("%s date %q: %w", startName, start, common.ErrValidation)
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	if from.Before(day) {
		return "", "", fmt.Errorf("%s date is in the past: %w", startName, common.ErrValidation)
	}
	if end == "" {
		return from.Format(dateLayout), "", nil
	}
	to, err := time.ParseInLocation(time.DateOnly, end, loc)
	if err != nil {
		return "", "", fmt.Errorf("%s date %q: %w", endName, end, common.ErrValidation)
	}
	if to.Before(from) {
		return "", "", fmt.Errorf("%s date precedes %s date: %w", endName, startName, common.ErrValidation)
	}
	return from.Format(dateLayout), to.Format(dateLayout), nil
}

func fromRow(r ledger.Row) Request {
	return Request{
		ID:            r[colID],
		EmployeeCode:  r[colEmpCode],
		EmployeeName:  r["Employee Name"],
		Kind:          r["Booking Type"],
		FromCity:      r["From City"],
		ToCity:        r["To City"],
		Mode:          r["Travel Mode"],
		DepartureDate: r["Departure Date"],
		ReturnDate:    r["Return Date"],
		HotelCity:     r["Hotel City"],
		CheckIn:       r["Check-in Date"],
		CheckOut:      r["Check-out Date"],
		Purpose:       r["Purpose"],
		Status:        r[colStatus],
		RequestedAt:   r["Requested At"],
		DecidedBy:     r["Decided By"],
		DecidedAt:     r["Decided At"],
		DecisionNote:  r["Decision Note"],
	}
}
