package runview

import (
	"fmt"
	"slices"
	"sort"
)

// SortedColumns returns a copy of columns ordered by Order, then Key.
func SortedColumns(columns []ColumnConfig) []ColumnConfig {
	out := slices.Clone(columns)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order == out[j].Order {
			return out[i].Key < out[j].Key
		}
		return out[i].Order < out[j].Order
	})
	return out
}

// VisibleColumns returns the visible columns in display order.
func VisibleColumns(columns []ColumnConfig) []ColumnConfig {
	sorted := SortedColumns(columns)
	out := sorted[:0]
	for _, col := range sorted {
		if col.Visible {
			out = append(out, col)
		}
	}
	return out
}

func columnIndex(columns []ColumnConfig, key string) int {
	return slices.IndexFunc(columns, func(c ColumnConfig) bool { return c.Key == key })
}

// ToggleColumnVisible flips the visibility of key. Locked columns stay visible.
func ToggleColumnVisible(columns []ColumnConfig, key string) []ColumnConfig {
	out := slices.Clone(columns)
	idx := columnIndex(out, key)
	if idx < 0 {
		return out
	}
	if out[idx].Locked && out[idx].Visible {
		return out
	}
	out[idx].Visible = !out[idx].Visible
	return out
}

// SetColumnsVisible shows or hides every listed column. Locked columns are
// never hidden.
func SetColumnsVisible(columns []ColumnConfig, visible bool, keys ...string) []ColumnConfig {
	out := slices.Clone(columns)
	for _, key := range keys {
		idx := columnIndex(out, key)
		if idx < 0 {
			continue
		}
		if out[idx].Locked && !visible {
			continue
		}
		out[idx].Visible = visible
	}
	return out
}

// ToggleColumnPinned flips the pinned flag of key.
func ToggleColumnPinned(columns []ColumnConfig, key string) []ColumnConfig {
	out := slices.Clone(columns)
	if idx := columnIndex(out, key); idx >= 0 {
		out[idx].Pinned = !out[idx].Pinned
	}
	return out
}

// ResizeColumn sets the width of key. Pinned columns and non-positive widths
// are ignored.
func ResizeColumn(columns []ColumnConfig, key string, width int) []ColumnConfig {
	out := slices.Clone(columns)
	idx := columnIndex(out, key)
	if idx < 0 || out[idx].Pinned || width <= 0 {
		return out
	}
	out[idx].Width = width
	return out
}

// MoveColumn moves key to position target in display order and renumbers all
// columns 0..n-1.
func MoveColumn(columns []ColumnConfig, key string, target int) []ColumnConfig {
	sorted := SortedColumns(columns)
	idx := columnIndex(sorted, key)
	if idx < 0 {
		return sorted
	}
	col := sorted[idx]
	sorted = slices.Delete(sorted, idx, idx+1)
	target = max(0, min(target, len(sorted)))
	sorted = slices.Insert(sorted, target, col)
	for i := range sorted {
		sorted[i].Order = i
	}
	return sorted
}

// ValidateColumns checks the layout invariants: unique keys, unique order
// values forming 0..n-1 and locked columns visible.
func ValidateColumns(columns []ColumnConfig) []string {
	var problems []string
	keys := make(map[string]struct{}, len(columns))
	orders := make(map[int]struct{}, len(columns))
	for _, col := range columns {
		if col.Key == "" {
			problems = append(problems, "column with empty key")
		}
		if _, dup := keys[col.Key]; dup {
			problems = append(problems, fmt.Sprintf("duplicate column key %q", col.Key))
		}
		keys[col.Key] = struct{}{}
		if _, dup := orders[col.Order]; dup {
			problems = append(problems, fmt.Sprintf("duplicate column order %d", col.Order))
		}
		orders[col.Order] = struct{}{}
		if col.Locked && !col.Visible {
			problems = append(problems, fmt.Sprintf("locked column %q is hidden", col.Key))
		}
	}
	for i := range columns {
		if _, ok := orders[i]; !ok {
			problems = append(problems, fmt.Sprintf("column order is not contiguous: missing %d", i))
			break
		}
	}
	return problems
}
