package rowset

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	runview "github.com/goliatone/go-runview"
	"github.com/spf13/cast"
	"golang.org/x/text/cases"
)

// Sort returns rows ordered by fields. The first field is the primary key
// and later fields break ties. Missing and nil values sort last in either
// direction. The sort is stable and rows itself is left untouched.
func Sort(rows []Row, fields []runview.SortField, columns []runview.ColumnConfig) []Row {
	out := slices.Clone(rows)
	if len(fields) == 0 || len(out) < 2 {
		return out
	}

	paths := make([]string, len(fields))
	for i, field := range fields {
		paths[i] = fieldPath(field.Field, columns)
	}

	fold := cases.Fold()
	type keyed struct {
		row  Row
		keys []any
	}
	items := make([]keyed, len(out))
	for i, row := range out {
		keys := make([]any, len(paths))
		for j, path := range paths {
			keys[j] = sortKey(row, path, fold)
		}
		items[i] = keyed{row: row, keys: keys}
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		for i, field := range fields {
			av, bv := a.keys[i], b.keys[i]
			switch {
			case av == nil && bv == nil:
				continue
			case av == nil:
				return 1
			case bv == nil:
				return -1
			}
			c := compareValues(av, bv)
			if c == 0 {
				continue
			}
			if field.Order == runview.SortDescending {
				return -c
			}
			return c
		}
		return 0
	})

	for i := range items {
		out[i] = items[i].row
	}
	return out
}

func sortKey(row Row, path string, fold cases.Caser) any {
	value, ok := Lookup(row, path)
	if !ok || isNil(value) {
		return nil
	}
	if s, ok := value.(string); ok {
		if t, ok := toTime(s); ok {
			return t
		}
		return fold.String(s)
	}
	return value
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// compareValues orders two non-nil cell values. Times, strings, bools and
// numbers compare naturally; RFC 3339 strings compare as times against
// times; anything else falls back to its printed form.
func compareValues(a, b any) int {
	if at, ok := a.(time.Time); ok {
		if bt, ok := toTime(b); ok {
			return at.Compare(bt)
		}
	}
	if bt, ok := b.(time.Time); ok {
		if at, ok := toTime(a); ok {
			return at.Compare(bt)
		}
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return compareBools(av, bv)
		}
	}
	if af, ok := number(a); ok {
		if bf, ok := number(b); ok {
			return cmp.Compare(af, bf)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func number(v any) (float64, bool) {
	switch v.(type) {
	case bool, string, time.Time:
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}
