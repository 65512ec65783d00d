package persist

import (
	"errors"
	"fmt"
	"sort"

	runview "github.com/goliatone/go-runview"
	"github.com/goliatone/go-runview/layering"
)

// Defaults supplies what a persisted blob is merged onto.
type Defaults interface {
	Codec() *runview.Codec
	Namespaces() []runview.Namespace
	DefaultSettings(ns runview.Namespace) (runview.SharedTableSettings, bool)
}

// Encode converts a store snapshot into the persisted document. Keys that the
// codec cannot encode are skipped and reported together.
func Encode(codec *runview.Codec, snapshot runview.State) (Document, error) {
	doc := Document{
		Version:        CurrentVersion,
		Visibility:     make(map[string]bool, len(snapshot.Visibility)),
		Colors:         make(map[string]string, len(snapshot.Colors)),
		Tables:         make(map[string]TableDocument, len(snapshot.Tables)),
		PanelCollapsed: runview.Ptr(snapshot.PanelCollapsed),
	}
	var errs []error
	for key, visible := range snapshot.Visibility {
		encoded, err := codec.EncodeKey(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		doc.Visibility[encoded] = visible
	}
	for key, color := range snapshot.Colors {
		encoded, err := codec.EncodeKey(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		doc.Colors[encoded] = string(color)
	}
	for ns, settings := range snapshot.Tables {
		doc.Tables[string(ns)] = tableDocument(settings)
	}
	if snapshot.PageSize > 0 {
		doc.PageSize = runview.Ptr(snapshot.PageSize)
	}
	if snapshot.LastNamespace != "" {
		doc.LastNamespace = runview.Ptr(string(snapshot.LastNamespace))
	}
	return doc, errors.Join(errs...)
}

// Decode merges doc onto defaults and returns the state to seed a store with.
// Entries with undecodable keys are dropped and reported; the rest of the
// document still applies.
func Decode(defaults Defaults, doc Document) (runview.State, error) {
	codec := defaults.Codec()
	out := runview.State{
		Visibility: make(map[runview.ItemKey]bool, len(doc.Visibility)),
		Colors:     make(map[runview.ItemKey]runview.Color, len(doc.Colors)),
		Tables:     map[runview.Namespace]runview.SharedTableSettings{},
	}

	var errs []error
	for _, raw := range sortedKeys(doc.Visibility) {
		key, err := codec.Decode(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out.Visibility[key] = doc.Visibility[raw]
	}
	for _, raw := range sortedKeys(doc.Colors) {
		key, err := codec.Decode(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out.Colors[key] = runview.Color(doc.Colors[raw])
	}

	for _, ns := range defaults.Namespaces() {
		base, _ := defaults.DefaultSettings(ns)
		persisted, ok := doc.Tables[string(ns)]
		if !ok {
			out.Tables[ns] = base
			continue
		}
		out.Tables[ns] = MergeTable(persisted, base)
	}
	for name := range doc.Tables {
		if _, ok := codec.Spec(runview.Namespace(name)); !ok {
			errs = append(errs, fmt.Errorf("%w: table %q", runview.ErrUnknownNamespace, name))
		}
	}

	if doc.PanelCollapsed != nil {
		out.PanelCollapsed = *doc.PanelCollapsed
	}
	if doc.PageSize != nil && *doc.PageSize > 0 {
		out.PageSize = *doc.PageSize
	}
	if doc.LastNamespace != nil {
		out.LastNamespace = runview.Namespace(*doc.LastNamespace)
	}
	return out, errors.Join(errs...)
}

// MergeTable layers persisted settings over base. Empty column lists count as
// unset; an empty sort list is kept since users may clear sorting on purpose.
// Display settings merge key by key.
func MergeTable(persisted TableDocument, base runview.SharedTableSettings) runview.SharedTableSettings {
	merged := layering.Merge(
		[]layering.MergeOption{layering.EmptySlicesAsUnset()},
		persisted,
		tableDocument(base),
	)
	return settingsFromDocument(merged)
}

func tableDocument(s runview.SharedTableSettings) TableDocument {
	sortFields := s.SortFields
	if sortFields == nil {
		sortFields = []runview.SortField{}
	}
	cropMode := s.Display.CropMode
	sortOrder := s.Display.SortOrder
	return TableDocument{
		SortFields:  append([]runview.SortField{}, sortFields...),
		GroupBy:     runview.Ptr(s.GroupBy),
		Columns:     append([]runview.ColumnConfig(nil), s.Columns...),
		PageSize:    runview.Ptr(s.PageSize),
		CurrentPage: runview.Ptr(s.CurrentPage),
		SearchText:  runview.Ptr(s.SearchText),
		Display:     &DisplayDocument{CropMode: &cropMode, SortOrder: &sortOrder},
	}
}

func settingsFromDocument(doc TableDocument) runview.SharedTableSettings {
	out := runview.SharedTableSettings{
		SortFields: append([]runview.SortField{}, doc.SortFields...),
		Columns:    append([]runview.ColumnConfig(nil), doc.Columns...),
	}
	if doc.GroupBy != nil {
		out.GroupBy = *doc.GroupBy
	}
	if doc.PageSize != nil {
		out.PageSize = *doc.PageSize
	}
	if doc.CurrentPage != nil {
		out.CurrentPage = *doc.CurrentPage
	}
	if doc.SearchText != nil {
		out.SearchText = *doc.SearchText
	}
	if doc.Display != nil {
		if doc.Display.CropMode != nil {
			out.Display.CropMode = *doc.Display.CropMode
		}
		if doc.Display.SortOrder != nil {
			out.Display.SortOrder = *doc.Display.SortOrder
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
