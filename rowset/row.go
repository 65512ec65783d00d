package rowset

import (
	"fmt"
	"sort"
	"strings"
	"time"

	runview "github.com/goliatone/go-runview"
)

// Row is one fetched item as the page component received it.
type Row map[string]any

// Lookup resolves a column data index against row. Dotted paths walk nested
// maps, so "labels.env" reads row["labels"]["env"]. A key containing dots is
// matched whole before the path is split.
func Lookup(row Row, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	if value, ok := row[path]; ok {
		return value, true
	}
	var current any = map[string]any(row)
	for _, part := range strings.Split(path, ".") {
		next, ok := lookupIn(current, part)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func lookupIn(container any, key string) (any, bool) {
	switch m := container.(type) {
	case Row:
		value, ok := m[key]
		return value, ok
	case map[string]any:
		value, ok := m[key]
		return value, ok
	case map[string]string:
		value, ok := m[key]
		return value, ok
	default:
		return nil, false
	}
}

// fieldPath maps a sort or group field to the data index of the column with
// that key, falling back to the field itself.
func fieldPath(field string, columns []runview.ColumnConfig) string {
	for _, col := range columns {
		if col.Key == field && col.DataIndex != "" {
			return col.DataIndex
		}
	}
	return field
}

// stringify renders a cell value the way search and grouping see it.
func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case time.Time:
		return value.Format(time.RFC3339)
	case fmt.Stringer:
		return value.String()
	case []string:
		return strings.Join(value, " ")
	case []any:
		parts := make([]string, 0, len(value))
		for _, item := range value {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, " ")
	case map[string]string:
		parts := make([]string, 0, len(value))
		for k, v := range value {
			parts = append(parts, k+":"+v)
		}
		return joinSorted(parts)
	case map[string]any:
		parts := make([]string, 0, len(value))
		for k, v := range value {
			parts = append(parts, k+":"+stringify(v))
		}
		return joinSorted(parts)
	case Row:
		return stringify(map[string]any(value))
	default:
		return fmt.Sprint(value)
	}
}

func joinSorted(parts []string) string {
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func toTime(v any) (time.Time, bool) {
	switch value := v.(type) {
	case time.Time:
		return value, true
	case *time.Time:
		if value == nil {
			return time.Time{}, false
		}
		return *value, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}
