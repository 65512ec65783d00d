package runview

import "maps"

// State is the durable subset of the store: visibility, colors, per-namespace
// table settings and the persisted UI fields. Selection, search overrides and
// loaded item lists are deliberately absent.
type State struct {
	Visibility     map[ItemKey]bool
	Colors         map[ItemKey]Color
	Tables         map[Namespace]SharedTableSettings
	PanelCollapsed bool
	PageSize       int
	LastNamespace  Namespace
}

// Clone deep-copies the state.
func (s State) Clone() State {
	out := s
	out.Visibility = maps.Clone(s.Visibility)
	out.Colors = maps.Clone(s.Colors)
	if s.Tables != nil {
		out.Tables = make(map[Namespace]SharedTableSettings, len(s.Tables))
		for ns, settings := range s.Tables {
			out.Tables[ns] = settings.Clone()
		}
	}
	return out
}
