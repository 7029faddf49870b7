package ledger

import (
	"fmt"
	"strings"
)

// Schema declares a table's canonical column order and the natural key used
// for deduplication. An empty Key disables deduplication.
type Schema struct {
	Table   string
	Columns []string
	Key     []string
}

// Validate checks that the schema names a table, has unique columns and
// that every key column is declared.
func (s Schema) Validate() error {
	if strings.TrimSpace(s.Table) == "" {
		return fmt.Errorf("%w: table name is empty", ErrInvalidSchema)
	}
	if strings.Contains(s.Table, backupMarker) {
		return fmt.Errorf("%w: table %q uses the reserved backup marker", ErrInvalidSchema, s.Table)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: table %q declares no columns", ErrInvalidSchema, s.Table)
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if c == "" {
			return fmt.Errorf("%w: table %q has a blank column", ErrInvalidSchema, s.Table)
		}
		if seen[c] {
			return fmt.Errorf("%w: table %q repeats column %q", ErrInvalidSchema, s.Table, c)
		}
		seen[c] = true
	}
	for _, k := range s.Key {
		if !seen[k] {
			return fmt.Errorf("%w: key column %q not declared on %q", ErrInvalidSchema, k, s.Table)
		}
	}
	return nil
}

// Reindex projects r onto the declared columns: unknown columns are dropped
// and missing ones become blank.
func (s Schema) Reindex(r Row) Row {
	out := make(Row, len(s.Columns))
	for _, c := range s.Columns {
		out[c] = r[c]
	}
	return out
}

// KeyOf returns the dedup key of r. Values are trimmed so "INV-1 " and
// "INV-1" collide.
func (s Schema) KeyOf(r Row) string {
	parts := make([]string, len(s.Key))
	for i, k := range s.Key {
		parts[i] = strings.TrimSpace(r[k])
	}
	return strings.Join(parts, "\x1f")
}

// mergeColumns keeps the stored order and appends declared columns the
// stored header lacks.
func (s Schema) mergeColumns(stored []string) []string {
	out := make([]string, 0, len(stored)+len(s.Columns))
	seen := make(map[string]bool, len(stored)+len(s.Columns))
	for _, c := range stored {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	for _, c := range s.Columns {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
