package attendance

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-fieldsales/internal/common"
	"github.com/noah-isme/backend-fieldsales/internal/ids"
	"github.com/noah-isme/backend-fieldsales/internal/ledger"
	"github.com/noah-isme/backend-fieldsales/internal/obs"
	"github.com/noah-isme/backend-fieldsales/internal/refdata"
)

// Attendance statuses.
const (
	StatusPresent = "Present"
	StatusLeave   = "Leave"
)

// LeaveTypes prefixes the stored leave reason.
var LeaveTypes = []string{"Sick Leave", "Personal Leave", "Vacation", "Other"}

// ErrAlreadyMarked is returned for a second record on the same day.
var ErrAlreadyMarked = fmt.Errorf("attendance: already marked today: %w", common.ErrAlreadyExists)

// Schema is the Attendance table.
var Schema = ledger.Schema{
	Table: "Attendance",
	Columns: []string{
		"Attendance ID", "Employee Name", "Employee Code", "Designation", "Date", "Status",
		"Location Link", "Leave Reason", "Check-in Time", "Check-in Date Time",
	},
	Key: []string{"Attendance ID"},
}

// Input marks the day for an employee.
type Input struct {
	EmployeeCode string `json:"employeeCode" validate:"required"`
	Status       string `json:"status" validate:"required,oneof=Present Leave"`
	LocationLink string `json:"locationLink" validate:"required_if=Status Present"`
	LeaveType    string `json:"leaveType"`
	LeaveReason  string `json:"leaveReason" validate:"required_if=Status Leave"`
}

// Record is a stored attendance row.
type Record struct {
	ID           string `json:"id"`
	EmployeeCode string `json:"employeeCode"`
	EmployeeName string `json:"employeeName"`
	Date         string `json:"date"`
	Status       string `json:"status"`
	LocationLink string `json:"locationLink,omitempty"`
	LeaveReason  string `json:"leaveReason,omitempty"`
	CheckInTime  string `json:"checkInTime"`
}

// Service writes the Attendance table.
type Service struct {
	Store   ledger.Store
	Catalog *refdata.Catalog
	IDs     *ids.Generator
	Logger  zerolog.Logger
}

// Mark records today's attendance. Only one record per employee per day is
// accepted.
func (s *Service) Mark(ctx context.Context, in Input) (Record, error) {
	if err := common.Validate(in); err != nil {
		return Record{}, err
	}
	emp, err := s.Catalog.EmployeeByCode(strings.TrimSpace(in.EmployeeCode))
	if err != nil {
		return Record{}, err
	}
	now := s.IDs.Today()
	marked, err := s.hasMarked(ctx, emp.Code, now.Format("02-01-2006"))
	if err != nil {
		return Record{}, err
	}
	if marked {
		return Record{}, ErrAlreadyMarked
	}

	reason := ""
	if in.Status == StatusLeave {
		reason = strings.TrimSpace(in.LeaveReason)
		if t := strings.TrimSpace(in.LeaveType); t != "" {
			reason = t + ": " + reason
		}
	}
	link := ""
	if in.Status == StatusPresent {
		link = in.LocationLink
	}

	id, err := s.IDs.Unique(ctx, ids.Attendance, func(ctx context.Context, id string) (bool, error) {
		return ledger.Exists(ctx, s.Store, Schema, "Attendance ID", id)
	})
	if err != nil {
		return Record{}, err
	}
	row := ledger.Row{
		"Attendance ID":      id,
		"Employee Name":      emp.Name,
		"Employee Code":      emp.Code,
		"Designation":        emp.Designation,
		"Date":               now.Format("02-01-2006"),
		"Status":             in.Status,
		"Location Link":      link,
		"Leave Reason":       reason,
		"Check-in Time":      now.Format("15:04:05"),
		"Check-in Date Time": now.Format("02-01-2006 15:04:05"),
	}
	if err := s.Store.AppendRows(ctx, Schema, []ledger.Row{row}); err != nil {
		return Record{}, err
	}
	s.Logger.Info().Str("attendance_id", id).Str("employee_code", emp.Code).Str("status", in.Status).Msg("attendance_marked")
	obs.RecordWritten("attendance")
	return fromRow(row), nil
}

// HasMarked reports whether the employee already has a record today.
func (s *Service) HasMarked(ctx context.Context, employeeCode string) (bool, error) {
	emp, err := s.Catalog.EmployeeByCode(strings.TrimSpace(employeeCode))
	if err != nil {
		return false, err
	}
	return s.hasMarked(ctx, emp.Code, s.IDs.Today().Format("02-01-2006"))
}

func (s *Service) hasMarked(ctx context.Context, code, day string) (bool, error) {
	rows, err := s.Store.ReadTable(ctx, Schema)
	if err != nil {
		return false, err
	}
	return len(ledger.Filter(rows, ledger.All(ledger.Where("Employee Code", code), ledger.Where("Date", day)))) > 0, nil
}

// List returns attendance rows, optionally narrowed to one employee and one
// date (dd-mm-yyyy).
func (s *Service) List(ctx context.Context, employeeCode, date string) ([]Record, error) {
	rows, err := s.Store.ReadTable(ctx, Schema)
	if err != nil {
		return nil, err
	}
	out := []Record{}
	for _, r := range rows {
		if employeeCode != "" && r["Employee Code"] != employeeCode {
			continue
		}
		if date != "" && r["Date"] != date {
			continue
		}
		out = append(out, fromRow(r))
	}
	return out, nil
}

func fromRow(r ledger.Row) Record {
	return Record{
		ID:           r["Attendance ID"],
		EmployeeCode: r["Employee Code"],
		EmployeeName: r["Employee Name"],
		Date:         r["Date"],
		Status:       r["Status"],
		LocationLink: r["Location Link"],
		LeaveReason:  r["Leave Reason"],
		CheckInTime:  r["Check-in Time"],
	}
}
