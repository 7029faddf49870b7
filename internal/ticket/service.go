package ticket

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

// Ticket statuses.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
)

const (
	colID          = "Ticket ID"
	colEmpCode     = "Employee Code"
	colStatus      = "Status"
	colResolution  = "Resolution"
	colResolvedBy  = "Resolved By"
	colResolvedAt  = "Resolved At"
	dateTimeLayout = "02-01-2006 15:04:05"
)

// Schema is the Tickets table.
var Schema = ledger.Schema{
	Table: "Tickets",
	Columns: []string{
		colID, "Employee Name", colEmpCode, "Designation", "Category", "Priority",
		"Subject", "Description", "Outlet Name", colStatus, "Raised At",
		colResolution, colResolvedBy, colResolvedAt,
	},
	Key: []string{colID},
}

var (
	// ErrTicketNotFound is returned for an unknown ticket ID.
	ErrTicketNotFound = fmt.Errorf("ticket: %w", common.ErrNotFound)
	// ErrAlreadyResolved is returned when resolving a closed ticket.
	ErrAlreadyResolved = fmt.Errorf("ticket: already resolved: %w", common.ErrTransition)
)

// RaiseInput opens a support ticket.
type RaiseInput struct {
	EmployeeCode string `json:"employeeCode" validate:"required"`
	Category     string `json:"category" validate:"required,oneof='Product Quality' Delivery Payment Stock Other"`
	Priority     string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Subject      string `json:"subject" validate:"required,max=200"`
	Description  string `json:"description" validate:"required"`
	OutletName   string `json:"outletName"`
}

// ResolveInput closes a ticket.
type ResolveInput struct {
	ResolvedBy string `json:"resolvedBy" validate:"required"`
	Resolution string `json:"resolution" validate:"required"`
}

// Ticket is a stored ticket row.
type Ticket struct {
	ID           string `json:"id"`
	EmployeeCode string `json:"employeeCode"`
	EmployeeName string `json:"employeeName"`
	Category     string `json:"category"`
	Priority     string `json:"priority"`
	Subject      string `json:"subject"`
	Description  string `json:"description"`
	OutletName   string `json:"outletName,omitempty"`
	Status       string `json:"status"`
	RaisedAt     string `json:"raisedAt"`
	Resolution   string `json:"resolution,omitempty"`
	ResolvedBy   string `json:"resolvedBy,omitempty"`
	ResolvedAt   string `json:"resolvedAt,omitempty"`
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	EmployeeCode string
	Status       string
}

// Service manages support tickets.
type Service struct {
	Store   ledger.Store
	Catalog *refdata.Catalog
	IDs     *ids.Generator
	Logger  zerolog.Logger
}

// Raise appends an open ticket.
func (s *Service) Raise(ctx context.Context, in RaiseInput) (Ticket, error) {
	if err := common.Validate(in); err != nil {
		return Ticket{}, err
	}
	emp, err := s.Catalog.EmployeeByCode(strings.TrimSpace(in.EmployeeCode))
	if err != nil {
		return Ticket{}, err
	}
	if in.OutletName != "" {
		if _, err := s.Catalog.Outlet(in.OutletName); err != nil {
			return Ticket{}, err
		}
	}
	priority := in.Priority
	if priority == "" {
		priority = "medium"
	}
	id, err := s.IDs.Unique(ctx, ids.Ticket, func(ctx context.Context, id string) (bool, error) {
		return ledger.Exists(ctx, s.Store, Schema, colID, id)
	})
	if err != nil {
		return Ticket{}, err
	}
	row := ledger.Row{
		colID:           id,
		"Employee Name": emp.Name,
		colEmpCode:      emp.Code,
		"Designation":   emp.Designation,
		"Category":      in.Category,
		"Priority":      priority,
		"Subject":       strings.TrimSpace(in.Subject),
		"Description":   in.Description,
		"Outlet Name":   in.OutletName,
		colStatus:       StatusOpen,
		"Raised At":     s.IDs.Today().Format(dateTimeLayout),
	}
	if err := s.Store.AppendRows(ctx, Schema, []ledger.Row{row}); err != nil {
		return Ticket{}, err
	}
	s.Logger.Info().Str("ticket_id", id).Str("employee_code", emp.Code).Str("category", in.Category).Msg("ticket_raised")
	obs.RecordWritten("ticket")
	return fromRow(row), nil
}

// Resolve marks an open ticket resolved.
func (s *Service) Resolve(ctx context.Context, id string, in ResolveInput) (Ticket, error) {
	if err := common.Validate(in); err != nil {
		return Ticket{}, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return Ticket{}, err
	}
	if current.Status == StatusResolved {
		return Ticket{}, ErrAlreadyResolved
	}
	values := map[string]string{
		colStatus:     StatusResolved,
		colResolution: in.Resolution,
		colResolvedBy: in.ResolvedBy,
		colResolvedAt: s.IDs.Today().Format(dateTimeLayout),
	}
	n, err := s.Store.UpdateRowsWhere(ctx, Schema,
		ledger.All(ledger.Where(colID, id), ledger.Where(colStatus, StatusOpen)), ledger.Set(values))
	if err != nil {
		return Ticket{}, err
	}
	if n == 0 {
		// resolved by someone else between the read and the write
		return Ticket{}, ErrAlreadyResolved
	}
	s.Logger.Info().Str("ticket_id", id).Str("resolved_by", in.ResolvedBy).Msg("ticket_resolved")
	current.Status = StatusResolved
	current.Resolution = values[colResolution]
	current.ResolvedBy = values[colResolvedBy]
	current.ResolvedAt = values[colResolvedAt]
	return current, nil
}

// Get returns one ticket.
func (s *Service) Get(ctx context.Context, id string) (Ticket, error) {
	rows, err := s.Store.ReadTable(ctx, Schema)
	if err != nil {
		return Ticket{}, err
	}
	for _, r := range rows {
		if r[colID] == id {
			return fromRow(r), nil
		}
	}
	return Ticket{}, ErrTicketNotFound
}

// List returns tickets matching f in stored order.
func (s *Service) List(ctx context.Context, f Filter) ([]Ticket, error) {
	rows, err := s.Store.ReadTable(ctx, Schema)
	if err != nil {
		return nil, err
	}
	out := []Ticket{}
	for _, r := range rows {
		if f.EmployeeCode != "" && r[colEmpCode] != f.EmployeeCode {
			continue
		}
		if f.Status != "" && r[colStatus] != f.Status {
			continue
		}
		out = append(out, fromRow(r))
	}
	return out, nil
}

func fromRow(r ledger.Row) Ticket {
	return Ticket{
		ID:           r[colID],
		EmployeeCode: r[colEmpCode],
		EmployeeName: r["Employee Name"],
		Category:     r["Category"],
		Priority:     r["Priority"],
		Subject:      r["Subject"],
		Description:  r["Description"],
		OutletName:   r["Outlet Name"],
		Status:       r[colStatus],
		RaisedAt:     r["Raised At"],
		Resolution:   r[colResolution],
		ResolvedBy:   r[colResolvedBy],
		ResolvedAt:   r[colResolvedAt],
	}
}
