package runview

import (
	"slices"
	"strings"
)

// Codec returns the identity codec used by the store.
func (s *Store) Codec() *Codec {
	return s.codec
}

// Namespaces lists the registered namespaces in name order.
func (s *Store) Namespaces() []Namespace {
	return s.codec.Namespaces()
}

// Palette returns the assignable colors.
func (s *Store) Palette() Palette {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Palette()
}

// Revision increases by one with every applied mutation.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Settings returns a copy of the table settings for ns.
func (s *Store) Settings(ns Namespace) (SharedTableSettings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.tables[ns]
	if !ok {
		return SharedTableSettings{}, false
	}
	return settings.Clone(), true
}

// DefaultSettings returns the built-in settings for ns.
func (s *Store) DefaultSettings(ns Namespace) (SharedTableSettings, bool) {
	spec, ok := s.specs[ns]
	if !ok {
		return SharedTableSettings{}, false
	}
	return s.defaultsFor(spec), true
}

// Initialized reports whether ns has any visibility entry.
func (s *Store) Initialized(ns Namespace) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Initialized(ns)
}

// VisibleIDs returns the visible ids of ns in no particular order.
func (s *Store) VisibleIDs(ns Namespace) []NativeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.VisibleIDs(ns)
}

// SortedVisibleIDs returns the visible ids of ns in ascending id order.
func (s *Store) SortedVisibleIDs(ns Namespace) []NativeID {
	ids := s.VisibleIDs(ns)
	slices.SortFunc(ids, func(a, b NativeID) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return ids
}

// KnownIDs returns every id of ns that has a visibility or color entry.
func (s *Store) KnownIDs(ns Namespace) []NativeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.KnownIDs(ns)
}

// IsVisible reports whether the item is visible. Items never initialized are not.
func (s *Store) IsVisible(ns Namespace, id NativeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.IsVisible(ns, id)
}

// ColorOf returns the color assigned to the item.
func (s *Store) ColorOf(ns Namespace, id NativeID) (Color, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.ColorOf(ns, id)
}

// Colors returns every color assigned in ns keyed by id.
func (s *Store) Colors(ns Namespace) map[NativeID]Color {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Colors(ns)
}

// HighlightedSortField returns the primary sort field of ns.
func (s *Store) HighlightedSortField(ns Namespace) (SortField, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.tables[ns]
	if !ok || len(settings.SortFields) == 0 {
		return SortField{}, false
	}
	return settings.SortFields[0], true
}

// VisibleColumns returns the visible columns of ns sorted by order.
func (s *Store) VisibleColumns(ns Namespace) []ColumnConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return VisibleColumns(s.tables[ns].Columns)
}

// Selection returns the selected ids of ns.
func (s *Store) Selection(ns Namespace) []NativeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if view, ok := s.views[ns]; ok {
		return slices.Clone(view.selection)
	}
	return nil
}

// SearchOverride returns the transient search of ns, if any.
func (s *Store) SearchOverride(ns Namespace) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if view, ok := s.views[ns]; ok {
		return view.searchOverride
	}
	return ""
}

// EffectiveSearch returns the search override when set and the persisted
// search text otherwise.
func (s *Store) EffectiveSearch(ns Namespace) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if view, ok := s.views[ns]; ok && strings.TrimSpace(view.searchOverride) != "" {
		return view.searchOverride
	}
	return s.tables[ns].SearchText
}

// LoadedItems returns the ids of the currently loaded page.
func (s *Store) LoadedItems(ns Namespace) []NativeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if view, ok := s.views[ns]; ok {
		return slices.Clone(view.loaded)
	}
	return nil
}

// VisibleLoadedItems returns the loaded ids of ns that are visible, in
// display order.
func (s *Store) VisibleLoadedItems(ns Namespace) []NativeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view, ok := s.views[ns]
	if !ok {
		return nil
	}
	out := make([]NativeID, 0, len(view.loaded))
	for _, id := range view.loaded {
		if s.table.IsVisible(ns, id) {
			out = append(out, id)
		}
	}
	return out
}

// PanelCollapsed reports the sidebar panel state.
func (s *Store) PanelCollapsed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.panelCollapsed
}

// PageSize returns the sidebar list page size.
func (s *Store) PageSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageSize
}

// LastNamespace returns the namespace the user looked at last, or "".
func (s *Store) LastNamespace() Namespace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastNamespace
}

// Snapshot copies the durable subset of the store.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	visible, colors := s.table.entries()
	tables := make(map[Namespace]SharedTableSettings, len(s.tables))
	for ns, settings := range s.tables {
		tables[ns] = settings.Clone()
	}
	return State{
		Visibility:     visible,
		Colors:         colors,
		Tables:         tables,
		PanelCollapsed: s.panelCollapsed,
		PageSize:       s.pageSize,
		LastNamespace:  s.lastNamespace,
	}
}
