package runview

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultVisibleCount is how many items Initialize shows when not told otherwise.
	DefaultVisibleCount = 5
	// DefaultPageSize applies to tables and the sidebar list.
	DefaultPageSize = 20
)

// DefaultInjectionSettings returns the built-in layout for the injections table.
func DefaultInjectionSettings() SharedTableSettings {
	return SharedTableSettings{
		SortFields: []SortField{
			{Key: "default-created-at", Field: "created_at", Order: SortDescending},
		},
		Columns: []ColumnConfig{
			{Key: "id", Title: "ID", DataIndex: "id", Type: ColumnNumber, Width: 80, Visible: true, Pinned: true, Locked: true, Order: 0, Sortable: true},
			{Key: "name", Title: "Name", DataIndex: "name", Type: ColumnText, Width: 240, Visible: true, Locked: true, Order: 1, Sortable: true, Filterable: true},
			{Key: "fault_type", Title: "Fault Type", DataIndex: "fault_type", Type: ColumnText, Width: 140, Visible: true, Order: 2, Sortable: true, Filterable: true},
			{Key: "state", Title: "State", DataIndex: "state", Type: ColumnStatus, Width: 120, Visible: true, Order: 3, Sortable: true, Filterable: true},
			{Key: "benchmark", Title: "Benchmark", DataIndex: "benchmark", Type: ColumnText, Width: 160, Visible: true, Order: 4, Sortable: true, Filterable: true},
			{Key: "labels", Title: "Labels", DataIndex: "labels", Type: ColumnTags, Width: 200, Visible: false, Order: 5, Filterable: true},
			{Key: "start_time", Title: "Start", DataIndex: "start_time", Type: ColumnDateTime, Width: 180, Visible: true, Order: 6, Sortable: true},
			{Key: "end_time", Title: "End", DataIndex: "end_time", Type: ColumnDateTime, Width: 180, Visible: false, Order: 7, Sortable: true},
			{Key: "created_at", Title: "Created", DataIndex: "created_at", Type: ColumnDateTime, Width: 180, Visible: true, Order: 8, Sortable: true},
			{Key: "actions", Title: "Actions", DataIndex: "", Type: ColumnActions, Width: 120, Visible: true, Pinned: true, Locked: true, Order: 9},
		},
		PageSize:    DefaultPageSize,
		CurrentPage: 1,
		Display: DisplaySettings{
			CropMode:  CropEnd,
			SortOrder: SortDescending,
		},
	}
}

// DefaultExecutionSettings returns the built-in layout for the executions table.
func DefaultExecutionSettings() SharedTableSettings {
	return SharedTableSettings{
		SortFields: []SortField{
			{Key: "default-created-at", Field: "created_at", Order: SortDescending},
		},
		Columns: []ColumnConfig{
			{Key: "id", Title: "ID", DataIndex: "id", Type: ColumnNumber, Width: 80, Visible: true, Pinned: true, Locked: true, Order: 0, Sortable: true},
			{Key: "algorithm", Title: "Algorithm", DataIndex: "algorithm", Type: ColumnText, Width: 180, Visible: true, Locked: true, Order: 1, Sortable: true, Filterable: true},
			{Key: "dataset", Title: "Dataset", DataIndex: "dataset", Type: ColumnText, Width: 200, Visible: true, Order: 2, Sortable: true, Filterable: true},
			{Key: "status", Title: "Status", DataIndex: "status", Type: ColumnStatus, Width: 120, Visible: true, Order: 3, Sortable: true, Filterable: true},
			{Key: "duration", Title: "Duration", DataIndex: "duration", Type: ColumnNumber, Width: 120, Visible: true, Order: 4, Sortable: true},
			{Key: "injection_id", Title: "Injection", DataIndex: "injection_id", Type: ColumnNumber, Width: 120, Visible: false, Order: 5, Sortable: true},
			{Key: "created_at", Title: "Created", DataIndex: "created_at", Type: ColumnDateTime, Width: 180, Visible: true, Order: 6, Sortable: true},
			{Key: "actions", Title: "Actions", DataIndex: "", Type: ColumnActions, Width: 120, Visible: true, Pinned: true, Locked: true, Order: 7},
		},
		PageSize:    DefaultPageSize,
		CurrentPage: 1,
		Display: DisplaySettings{
			CropMode:  CropMiddle,
			SortOrder: SortDescending,
		},
	}
}

// DefaultsDocument is the YAML layout accepted by LoadDefaultsYAML:
//
//	tables:
//	  injections:
//	    page_size: 50
//	    columns: [...]
type DefaultsDocument struct {
	Tables map[Namespace]SharedTableSettings `yaml:"tables"`
}

// LoadDefaultsYAML reads per-namespace default overrides from r and returns
// namespace specs whose Defaults functions return them. Namespaces missing
// from the document keep the built-in defaults.
func LoadDefaultsYAML(r io.Reader, specs []NamespaceSpec) ([]NamespaceSpec, error) {
	var doc DefaultsDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("runview: decode defaults: %w", err)
	}
	out := make([]NamespaceSpec, len(specs))
	for i, spec := range specs {
		out[i] = spec
		override, ok := doc.Tables[spec.Name]
		if !ok {
			continue
		}
		base := spec.Defaults
		out[i].Defaults = func() SharedTableSettings {
			var merged SharedTableSettings
			if base != nil {
				merged = base()
			}
			return overlayDefaults(merged, override)
		}
	}
	return out, nil
}

// LoadDefaultsFile is LoadDefaultsYAML for a file path.
func LoadDefaultsFile(path string, specs []NamespaceSpec) ([]NamespaceSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("runview: open defaults: %w", err)
	}
	defer f.Close()
	return LoadDefaultsYAML(f, specs)
}

func overlayDefaults(base, override SharedTableSettings) SharedTableSettings {
	out := base.Clone()
	if len(override.SortFields) > 0 {
		out.SortFields = override.Clone().SortFields
	}
	if override.GroupBy != "" {
		out.GroupBy = override.GroupBy
	}
	if len(override.Columns) > 0 {
		out.Columns = override.Clone().Columns
	}
	if override.PageSize > 0 {
		out.PageSize = override.PageSize
	}
	if override.CurrentPage > 0 {
		out.CurrentPage = override.CurrentPage
	}
	if override.SearchText != "" {
		out.SearchText = override.SearchText
	}
	if override.Display.CropMode != "" {
		out.Display.CropMode = override.Display.CropMode
	}
	if override.Display.SortOrder != "" {
		out.Display.SortOrder = override.Display.SortOrder
	}
	return out
}
