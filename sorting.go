package runview

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// NewSortField returns a sort field with a fresh instance key.
func NewSortField(field string, order SortOrder) SortField {
	if order == "" {
		order = SortAscending
	}
	return SortField{Key: uuid.NewString(), Field: field, Order: order}
}

// AddSortField appends a new lowest-priority field. The returned slice is
// always a new array.
func AddSortField(fields []SortField, field string, order SortOrder) []SortField {
	out := make([]SortField, 0, len(fields)+1)
	out = append(out, fields...)
	return append(out, NewSortField(field, order))
}

// RemoveSortField drops the entry with the given instance key.
func RemoveSortField(fields []SortField, key string) []SortField {
	out := make([]SortField, 0, len(fields))
	for _, f := range fields {
		if f.Key != key {
			out = append(out, f)
		}
	}
	return out
}

// UpdateSortField rewrites the entry with the given instance key.
func UpdateSortField(fields []SortField, key, field string, order SortOrder) []SortField {
	out := slices.Clone(fields)
	for i := range out {
		if out[i].Key != key {
			continue
		}
		if field != "" {
			out[i].Field = field
		}
		if order != "" {
			out[i].Order = order
		}
	}
	if out == nil {
		out = []SortField{}
	}
	return out
}

// ToggleSortOrder flips the direction of the entry with the given key.
func ToggleSortOrder(fields []SortField, key string) []SortField {
	out := slices.Clone(fields)
	for i := range out {
		if out[i].Key == key {
			out[i].Order = out[i].Order.Flip()
		}
	}
	if out == nil {
		out = []SortField{}
	}
	return out
}

// CandidateSortFields lists sortable columns not already referenced by fields,
// in display order. UIs offer these when adding a sort field.
func CandidateSortFields(columns []ColumnConfig, fields []SortField) []ColumnConfig {
	used := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		used[f.Field] = struct{}{}
	}
	var out []ColumnConfig
	for _, col := range SortedColumns(columns) {
		if !col.Sortable {
			continue
		}
		if _, taken := used[col.DataIndex]; taken {
			continue
		}
		out = append(out, col)
	}
	return out
}

// ValidateSortFields reports duplicate fields, duplicate keys and bad orders.
func ValidateSortFields(fields []SortField) []string {
	var problems []string
	seenField := make(map[string]struct{}, len(fields))
	seenKey := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Field == "" {
			problems = append(problems, "sort field with empty field")
		}
		if _, dup := seenField[f.Field]; dup {
			problems = append(problems, fmt.Sprintf("duplicate sort field %q", f.Field))
		}
		seenField[f.Field] = struct{}{}
		if f.Key != "" {
			if _, dup := seenKey[f.Key]; dup {
				problems = append(problems, fmt.Sprintf("duplicate sort key %q", f.Key))
			}
			seenKey[f.Key] = struct{}{}
		}
		if f.Order != SortAscending && f.Order != SortDescending {
			problems = append(problems, fmt.Sprintf("sort field %q has invalid order %q", f.Field, f.Order))
		}
	}
	return problems
}

// ValidateSettings runs every check on settings and returns a
// *ValidationError, or nil when the value is consistent.
func ValidateSettings(ns Namespace, settings SharedTableSettings) error {
	problems := append(ValidateSortFields(settings.SortFields), ValidateColumns(settings.Columns)...)
	if settings.PageSize < 0 {
		problems = append(problems, fmt.Sprintf("negative page size %d", settings.PageSize))
	}
	if settings.CurrentPage < 0 {
		problems = append(problems, fmt.Sprintf("negative current page %d", settings.CurrentPage))
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Namespace: ns, Problems: problems}
}
