package tablestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/backend-fieldsales/internal/ledger"
)

const scratchSheet = "~ledger_tmp"

// Workbook keeps every table as a worksheet of a local .xlsx file. It is
// meant for single-process offline use; the mutex only serialises callers
// sharing this value.
type Workbook struct {
	Path string
	mu   sync.Mutex
}

// NewWorkbook returns a connector for the workbook at path. The file is
// created on first write.
func NewWorkbook(path string) *Workbook {
	return &Workbook{Path: path}
}

// Read loads one worksheet.
func (w *Workbook) Read(_ context.Context, table string) (ledger.Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.open()
	if err != nil {
		return ledger.Snapshot{}, err
	}
	if f == nil {
		return ledger.Snapshot{}, ledger.ErrTableNotFound
	}
	defer f.Close()
	grid, err := readSheet(f, table)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	return splitGrid(grid), nil
}

// Write replaces one worksheet and saves the file.
func (w *Workbook) Write(_ context.Context, table string, columns []string, rows []ledger.Row, expected string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.open()
	if err != nil {
		return "", err
	}
	fresh := f == nil
	if fresh {
		f = excelize.NewFile()
	}
	defer f.Close()

	current, err := readSheet(f, table)
	exists := err == nil
	if err != nil && !errors.Is(err, ledger.ErrTableNotFound) {
		return "", err
	}
	if expected != ledger.AnyVersion && (!exists || splitGrid(current).Version != expected) {
		return "", ledger.ErrConflict
	}

	grid := toGrid(columns, rows)
	if err := replaceSheet(f, table, grid, fresh); err != nil {
		return "", fmt.Errorf("tablestore: workbook %s: %w", table, err)
	}
	if err := f.SaveAs(w.Path); err != nil {
		return "", fmt.Errorf("tablestore: save workbook: %w", err)
	}
	return contentVersion(columns, grid[1:]), nil
}

// ListTables returns the worksheet names.
func (w *Workbook) ListTables(context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.open()
	if err != nil || f == nil {
		return nil, err
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// Ping checks the workbook can be opened.
func (w *Workbook) Ping(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.open()
	if f != nil {
		_ = f.Close()
	}
	return err
}

// open returns nil without error when the file does not exist yet.
func (w *Workbook) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(w.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ledger.Permanent(fmt.Errorf("tablestore: open workbook: %w", err))
	}
	return f, nil
}

func readSheet(f *excelize.File, table string) ([][]string, error) {
	idx, err := f.GetSheetIndex(table)
	if err != nil || idx < 0 {
		return nil, ledger.ErrTableNotFound
	}
	grid, err := f.GetRows(table)
	if err != nil {
		return nil, fmt.Errorf("tablestore: read sheet %s: %w", table, err)
	}
	return grid, nil
}

// replaceSheet writes grid into a scratch sheet and swaps it in, so the
// previous content is never partially overwritten.
func replaceSheet(f *excelize.File, table string, grid [][]string, fresh bool) error {
	if fresh {
		if err := f.SetSheetName(f.GetSheetName(0), table); err != nil {
			return err
		}
		return fillSheet(f, table, grid)
	}
	idx, _ := f.GetSheetIndex(table)
	if idx < 0 {
		if _, err := f.NewSheet(table); err != nil {
			return err
		}
		return fillSheet(f, table, grid)
	}
	if _, err := f.NewSheet(scratchSheet); err != nil {
		return err
	}
	if err := fillSheet(f, scratchSheet, grid); err != nil {
		return err
	}
	if err := f.DeleteSheet(table); err != nil {
		return err
	}
	return f.SetSheetName(scratchSheet, table)
}

func fillSheet(f *excelize.File, sheet string, grid [][]string) error {
	for i, line := range grid {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(line))
		for j, v := range line {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}
