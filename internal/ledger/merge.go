package ledger

import "context"

// Dedup keeps the last occurrence of every key, at the position of that
// last occurrence. Rows are returned unchanged when the schema has no key.
func Dedup(schema Schema, rows []Row) []Row {
	if len(schema.Key) == 0 {
		return rows
	}
	last := make(map[string]int, len(rows))
	for i, r := range rows {
		last[schema.KeyOf(r)] = i
	}
	out := make([]Row, 0, len(last))
	for i, r := range rows {
		if last[schema.KeyOf(r)] == i {
			out = append(out, r)
		}
	}
	return out
}

// Where matches rows whose column equals value exactly.
func Where(column, value string) func(Row) bool {
	return func(r Row) bool { return r[column] == value }
}

// All matches rows satisfying every predicate.
func All(preds ...func(Row) bool) func(Row) bool {
	return func(r Row) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

// Set overwrites the given cells.
func Set(values map[string]string) func(Row) {
	return func(r Row) {
		for k, v := range values {
			r[k] = v
		}
	}
}

func pruneEmpty(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if !r.Empty() {
			out = append(out, r)
		}
	}
	return out
}

// Filter returns the rows matching pred.
func Filter(rows []Row, pred func(Row) bool) []Row {
	var out []Row
	for _, r := range rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// Exists reports whether any stored row has value in column.
func Exists(ctx context.Context, store Store, schema Schema, column, value string) (bool, error) {
	rows, err := store.ReadTable(ctx, schema)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r[column] == value {
			return true, nil
		}
	}
	return false, nil
}
