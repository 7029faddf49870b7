package tablestore

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/noah-isme/backend-fieldsales/internal/ledger"
)

// contentVersion hashes the header and cells. Stores without native
// revision numbers use it as the optimistic version token; it is compared
// right before writing, which narrows the lost-update window without
// closing it.
func contentVersion(columns []string, rows [][]string) string {
	h := sha256.New()
	write := func(cells []string) {
		for _, c := range cells {
			h.Write([]byte(c))
			h.Write([]byte{0x1f})
		}
		h.Write([]byte{0x1e})
	}
	write(columns)
	for _, r := range rows {
		write(trimTrailing(r))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func trimTrailing(cells []string) []string {
	end := len(cells)
	for end > 0 && cells[end-1] == "" {
		end--
	}
	return cells[:end]
}

// splitGrid turns a raw grid whose first line is the header into a snapshot.
func splitGrid(grid [][]string) ledger.Snapshot {
	if len(grid) == 0 {
		return ledger.Snapshot{Version: contentVersion(nil, nil)}
	}
	columns := grid[0]
	body := grid[1:]
	rows := make([]ledger.Row, len(body))
	for i, values := range body {
		rows[i] = ledger.RowFromValues(columns, values)
	}
	return ledger.Snapshot{Columns: columns, Rows: rows, Version: contentVersion(columns, body)}
}

// toGrid renders rows under the header for whole-sheet writes.
func toGrid(columns []string, rows []ledger.Row) [][]string {
	grid := make([][]string, 0, len(rows)+1)
	grid = append(grid, append([]string(nil), columns...))
	for _, r := range rows {
		grid = append(grid, r.Values(columns))
	}
	return grid
}
