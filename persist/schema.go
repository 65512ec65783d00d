package persist

import runview "github.com/goliatone/go-runview"

// CurrentVersion is the schema version written by this package.
const CurrentVersion = 2

// Document is the persisted blob. Only whitelisted store fields appear here;
// selection, search overrides and loaded items are never written.
type Document struct {
	Version        int                      `json:"version"`
	Visibility     map[string]bool          `json:"visibility,omitempty"`
	Colors         map[string]string        `json:"colors,omitempty"`
	Tables         map[string]TableDocument `json:"tables,omitempty"`
	PanelCollapsed *bool                    `json:"panel_collapsed,omitempty"`
	PageSize       *int                     `json:"page_size,omitempty"`
	LastNamespace  *string                  `json:"last_namespace,omitempty"`
}

// TableDocument mirrors runview.SharedTableSettings with every field optional,
// so a blob written before a field existed still picks up its default.
type TableDocument struct {
	SortFields  []runview.SortField    `json:"sort_fields" layering:"keep_empty"`
	GroupBy     *string                `json:"group_by,omitempty"`
	Columns     []runview.ColumnConfig `json:"columns,omitempty"`
	PageSize    *int                   `json:"page_size,omitempty"`
	CurrentPage *int                   `json:"current_page,omitempty"`
	SearchText  *string                `json:"search_text,omitempty"`
	Display     *DisplayDocument       `json:"display,omitempty"`
}

// DisplayDocument is merged key by key onto the default display settings.
type DisplayDocument struct {
	CropMode  *runview.CropMode  `json:"crop_mode,omitempty"`
	SortOrder *runview.SortOrder `json:"sort_order,omitempty"`
}
