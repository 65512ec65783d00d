package runview

import "slices"

// SortOrder is the direction of a sort field.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// Flip returns the opposite direction.
func (o SortOrder) Flip() SortOrder {
	if o == SortDescending {
		return SortAscending
	}
	return SortDescending
}

// SortField is one entry in a multi-field sort. List position is priority.
type SortField struct {
	Key   string    `json:"key" yaml:"key"`
	Field string    `json:"field" yaml:"field"`
	Order SortOrder `json:"order" yaml:"order"`
}

// ColumnType hints how a column renders and compares.
type ColumnType string

const (
	ColumnText     ColumnType = "text"
	ColumnNumber   ColumnType = "number"
	ColumnDateTime ColumnType = "datetime"
	ColumnStatus   ColumnType = "status"
	ColumnTags     ColumnType = "tags"
	ColumnActions  ColumnType = "actions"
)

// ColumnConfig is one column of a table layout. Order is a strict total order
// within the table; locked columns cannot be hidden and pinned columns cannot
// be resized.
type ColumnConfig struct {
	Key        string     `json:"key" yaml:"key"`
	Title      string     `json:"title" yaml:"title"`
	DataIndex  string     `json:"data_index" yaml:"data_index"`
	Type       ColumnType `json:"type" yaml:"type"`
	Width      int        `json:"width" yaml:"width"`
	Visible    bool       `json:"visible" yaml:"visible"`
	Pinned     bool       `json:"pinned" yaml:"pinned"`
	Locked     bool       `json:"locked" yaml:"locked"`
	Order      int        `json:"order" yaml:"order"`
	Sortable   bool       `json:"sortable,omitempty" yaml:"sortable,omitempty"`
	Filterable bool       `json:"filterable,omitempty" yaml:"filterable,omitempty"`
}

// CropMode controls how long names are truncated in list views.
type CropMode string

const (
	CropEnd    CropMode = "end"
	CropMiddle CropMode = "middle"
	CropStart  CropMode = "start"
	CropNone   CropMode = "none"
)

// DisplaySettings are list display preferences.
type DisplaySettings struct {
	CropMode  CropMode  `json:"crop_mode" yaml:"crop_mode"`
	SortOrder SortOrder `json:"sort_order" yaml:"sort_order"`
}

// SharedTableSettings is the configuration shared by every view of one namespace.
type SharedTableSettings struct {
	SortFields  []SortField     `json:"sort_fields" yaml:"sort_fields"`
	GroupBy     string          `json:"group_by,omitempty" yaml:"group_by,omitempty"`
	Columns     []ColumnConfig  `json:"columns" yaml:"columns"`
	PageSize    int             `json:"page_size" yaml:"page_size"`
	CurrentPage int             `json:"current_page" yaml:"current_page"`
	SearchText  string          `json:"search_text,omitempty" yaml:"search_text,omitempty"`
	Display     DisplaySettings `json:"display" yaml:"display"`
}

// Clone returns a deep copy so callers never share slices with the store.
func (s SharedTableSettings) Clone() SharedTableSettings {
	out := s
	out.SortFields = slices.Clone(s.SortFields)
	out.Columns = slices.Clone(s.Columns)
	return out
}

// SettingsPatch is a shallow partial update. Nil fields are left untouched;
// a non-nil GroupBy pointing at "" clears grouping.
type SettingsPatch struct {
	SortFields  []SortField
	GroupBy     *string
	Columns     []ColumnConfig
	PageSize    *int
	CurrentPage *int
	SearchText  *string
	Display     *DisplaySettings

	// ClearSort replaces SortFields with an empty list; a nil SortFields slice
	// alone means "unchanged".
	ClearSort bool
}

// IsEmpty reports whether the patch would change nothing.
func (p SettingsPatch) IsEmpty() bool {
	return p.SortFields == nil && p.GroupBy == nil && p.Columns == nil &&
		p.PageSize == nil && p.CurrentPage == nil && p.SearchText == nil &&
		p.Display == nil && !p.ClearSort
}

// Apply returns settings with the patch merged in. Slices are replaced, never
// spliced, so reference-based change detection keeps working.
func (p SettingsPatch) Apply(settings SharedTableSettings) SharedTableSettings {
	out := settings.Clone()
	if p.ClearSort {
		out.SortFields = []SortField{}
	}
	if p.SortFields != nil {
		out.SortFields = slices.Clone(p.SortFields)
	}
	if p.GroupBy != nil {
		out.GroupBy = *p.GroupBy
	}
	if p.Columns != nil {
		out.Columns = slices.Clone(p.Columns)
	}
	if p.PageSize != nil {
		out.PageSize = *p.PageSize
	}
	if p.CurrentPage != nil {
		out.CurrentPage = *p.CurrentPage
	}
	if p.SearchText != nil {
		out.SearchText = *p.SearchText
	}
	if p.Display != nil {
		out.Display = *p.Display
	}
	return out
}

// Ptr is a small helper for building patches.
func Ptr[T any](v T) *T {
	return &v
}
