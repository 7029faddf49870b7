package tablestore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/noah-isme/backend-fieldsales/internal/ledger"
)

// Sheets stores each table in its own tab of one spreadsheet. Row 1 is the
// header. Writes rewrite the tab whole in a single update request.
type Sheets struct {
	Svc           *sheets.Service
	SpreadsheetID string
}

// NewSheets builds a connector authenticated with a service-account file.
func NewSheets(ctx context.Context, spreadsheetID, credentialsFile string, opts ...option.ClientOption) (*Sheets, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("tablestore: spreadsheet id is required")
	}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, option.WithScopes(sheets.SpreadsheetsScope))
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("tablestore: sheets client: %w", err)
	}
	return &Sheets{Svc: svc, SpreadsheetID: spreadsheetID}, nil
}

// Read fetches the whole tab.
func (s *Sheets) Read(ctx context.Context, table string) (ledger.Snapshot, error) {
	grid, err := s.grid(ctx, table)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	return splitGrid(grid), nil
}

// Write replaces the tab, creating it when missing. The content hash of the
// tab is compared with expected immediately before the write.
func (s *Sheets) Write(ctx context.Context, table string, columns []string, rows []ledger.Row, expected string) (string, error) {
	current, err := s.grid(ctx, table)
	switch {
	case errors.Is(err, ledger.ErrTableNotFound):
		if expected != ledger.AnyVersion {
			return "", ledger.ErrConflict
		}
		if err := s.addTab(ctx, table); err != nil {
			return "", err
		}
	case err != nil:
		return "", err
	case expected != ledger.AnyVersion && splitGrid(current).Version != expected:
		return "", ledger.ErrConflict
	}

	grid := toGrid(columns, rows)
	_, err = s.Svc.Spreadsheets.Values.Update(s.SpreadsheetID, quoteRange(table)+"!A1", &sheets.ValueRange{Values: overwrite(grid, current)}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", classify("update "+table, err)
	}
	return contentVersion(columns, grid[1:]), nil
}

// ListTables returns every tab title.
func (s *Sheets) ListTables(ctx context.Context) ([]string, error) {
	doc, err := s.Svc.Spreadsheets.Get(s.SpreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, classify("list tabs", err)
	}
	names := make([]string, 0, len(doc.Sheets))
	for _, sh := range doc.Sheets {
		if sh.Properties != nil {
			names = append(names, sh.Properties.Title)
		}
	}
	return names, nil
}

// Ping checks the spreadsheet is reachable.
func (s *Sheets) Ping(ctx context.Context) error {
	_, err := s.Svc.Spreadsheets.Get(s.SpreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	return classify("ping", err)
}

func (s *Sheets) grid(ctx context.Context, table string) ([][]string, error) {
	resp, err := s.Svc.Spreadsheets.Values.Get(s.SpreadsheetID, quoteRange(table)).
		ValueRenderOption("FORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		if isMissingRange(err) {
			return nil, ledger.ErrTableNotFound
		}
		return nil, classify("read "+table, err)
	}
	grid := make([][]string, len(resp.Values))
	for i, line := range resp.Values {
		cells := make([]string, len(line))
		for j, v := range line {
			cells[j] = fmt.Sprint(v)
		}
		grid[i] = cells
	}
	return grid, nil
}

func (s *Sheets) addTab(ctx context.Context, table string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{{
		AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: table}},
	}}}
	if _, err := s.Svc.Spreadsheets.BatchUpdate(s.SpreadsheetID, req).Context(ctx).Do(); err != nil {
		return classify("add tab "+table, err)
	}
	return nil
}

// overwrite pads grid with empty strings to cover everything in previous,
// so one update both writes the new table and blanks leftover cells. The
// tab is never cleared on its own, so a failed update leaves it intact.
func overwrite(grid, previous [][]string) [][]interface{} {
	width := 0
	for _, line := range grid {
		width = max(width, len(line))
	}
	for _, line := range previous {
		width = max(width, len(line))
	}
	height := max(len(grid), len(previous))

	values := make([][]interface{}, height)
	for i := range values {
		cells := make([]interface{}, width)
		for j := range cells {
			cells[j] = ""
		}
		if i < len(grid) {
			for j, c := range grid[i] {
				cells[j] = c
			}
		}
		values[i] = cells
	}
	return values
}

func quoteRange(table string) string {
	return "'" + strings.ReplaceAll(table, "'", "''") + "'"
}

func isMissingRange(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest &&
		strings.Contains(gerr.Message, "Unable to parse range")
}

// classify marks authorisation and not-found failures as permanent so they
// are not retried; quota and server errors stay retryable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("tablestore: sheets %s: %w", op, err)
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusBadRequest:
			return ledger.Permanent(wrapped)
		}
	}
	return wrapped
}
