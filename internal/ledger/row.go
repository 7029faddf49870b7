package ledger

import "strings"

// Row is one ledger record keyed by column name. Every value is stored as
// text; callers format numbers before writing.
type Row map[string]string

// Empty reports whether every cell is blank.
func (r Row) Empty() bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Clone returns a copy that can be mutated independently.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Values returns the cells in the given column order.
func (r Row) Values(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = r[c]
	}
	return out
}

// RowFromValues zips a header with one record. Missing trailing cells are
// treated as blank.
func RowFromValues(columns, values []string) Row {
	r := make(Row, len(columns))
	for i, c := range columns {
		if c == "" {
			continue
		}
		if i < len(values) {
			r[c] = values[i]
		} else {
			r[c] = ""
		}
	}
	return r
}
