package rowset

import runview "github.com/goliatone/go-runview"

// NoGroupLabel labels the group of rows lacking the grouping field.
const NoGroupLabel = "(none)"

// Group is a run of rows sharing one value of the grouping field.
type Group struct {
	Key   any
	Label string
	Rows  []Row
}

// GroupBy partitions rows by field, keeping groups in order of first
// appearance and rows in their input order. Rows without the field form a
// trailing group labelled NoGroupLabel. An empty field yields no groups.
func GroupBy(rows []Row, field string, columns []runview.ColumnConfig) []Group {
	if field == "" {
		return nil
	}
	path := fieldPath(field, columns)

	var groups []Group
	index := map[string]int{}
	var missing []Row
	for _, row := range rows {
		value, ok := Lookup(row, path)
		if !ok || isNil(value) {
			missing = append(missing, row)
			continue
		}
		label := stringify(value)
		i, seen := index[label]
		if !seen {
			i = len(groups)
			index[label] = i
			groups = append(groups, Group{Key: value, Label: label})
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}
	if len(missing) > 0 {
		groups = append(groups, Group{Label: NoGroupLabel, Rows: missing})
	}
	return groups
}

// Pagination describes the page Paginate returned.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
	Pages    int `json:"pages"`
}

// Paginate returns the rows of page (1-based) for pageSize. Out-of-range
// pages clamp to the nearest page. A non-positive pageSize returns every row
// on a single page.
func Paginate(rows []Row, page, pageSize int) ([]Row, Pagination) {
	total := len(rows)
	if pageSize <= 0 {
		return append([]Row(nil), rows...), Pagination{Page: 1, PageSize: total, Total: total, Pages: 1}
	}

	pages := max((total+pageSize-1)/pageSize, 1)
	page = min(max(page, 1), pages)
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)
	return append([]Row(nil), rows[start:end]...), Pagination{
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Pages:    pages,
	}
}
