package runview

import (
	"math/rand/v2"
	"slices"
	"sort"
)

// VisibilityTable holds per-item visibility and color for every namespace in
// one flat pair of maps. It is not safe for concurrent use; Store guards it.
type VisibilityTable struct {
	visible map[ItemKey]bool
	colors  map[ItemKey]Color
	known   map[Namespace][]ItemKey
	seen    map[ItemKey]struct{}
	palette Palette
	rng     *rand.Rand
}

// NewVisibilityTable builds an empty table. A nil rng gets a randomly seeded one.
func NewVisibilityTable(palette Palette, rng *rand.Rand) *VisibilityTable {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &VisibilityTable{
		visible: map[ItemKey]bool{},
		colors:  map[ItemKey]Color{},
		known:   map[Namespace][]ItemKey{},
		seen:    map[ItemKey]struct{}{},
		palette: slices.Clone(palette),
		rng:     rng,
	}
}

func (t *VisibilityTable) track(key ItemKey) {
	if _, ok := t.seen[key]; ok {
		return
	}
	t.seen[key] = struct{}{}
	t.known[key.Namespace] = append(t.known[key.Namespace], key)
}

// Palette returns a copy of the assignable colors.
func (t *VisibilityTable) Palette() Palette {
	return slices.Clone(t.palette)
}

// Initialized reports whether any visibility entry exists for ns.
func (t *VisibilityTable) Initialized(ns Namespace) bool {
	for _, key := range t.known[ns] {
		if _, ok := t.visible[key]; ok {
			return true
		}
	}
	return false
}

// Initialize marks the first defaultVisible ids visible and the rest hidden,
// assigning palette colors by position to ids without one. It does nothing
// and returns false when ns already has visibility entries, so a refetch never
// clobbers manual edits.
func (t *VisibilityTable) Initialize(ns Namespace, ids []NativeID, defaultVisible int) bool {
	if t.Initialized(ns) {
		return false
	}
	if defaultVisible < 0 {
		defaultVisible = 0
	}
	// Positions count distinct ids; a repeated id keeps its first slot.
	seen := make(map[ItemKey]struct{}, len(ids))
	for _, id := range ids {
		key := KeyOf(ns, id)
		if _, dup := seen[key]; dup {
			continue
		}
		i := len(seen)
		seen[key] = struct{}{}
		t.track(key)
		t.visible[key] = i < defaultVisible
		if _, ok := t.colors[key]; !ok {
			t.colors[key] = t.palette.At(i)
		}
	}
	return len(ids) > 0
}

// SetVisible sets every id unconditionally.
func (t *VisibilityTable) SetVisible(ns Namespace, ids []NativeID, visible bool) {
	for _, id := range ids {
		key := KeyOf(ns, id)
		t.track(key)
		t.visible[key] = visible
	}
}

// Toggle flips one entry. A missing entry counts as visible, so the first
// toggle of an unseen item hides it. It returns the new value.
func (t *VisibilityTable) Toggle(ns Namespace, id NativeID) bool {
	key := KeyOf(ns, id)
	current, ok := t.visible[key]
	if !ok {
		current = true
	}
	t.track(key)
	t.visible[key] = !current
	return !current
}

// SetColor overrides the color of one item.
func (t *VisibilityTable) SetColor(ns Namespace, id NativeID, color Color) {
	key := KeyOf(ns, id)
	t.track(key)
	t.colors[key] = color
}

// RandomizeColors shuffles the colors currently assigned to ns and hands them
// back out in known-key order. The multiset of colors does not change.
func (t *VisibilityTable) RandomizeColors(ns Namespace) {
	keys := make([]ItemKey, 0, len(t.known[ns]))
	colors := make([]Color, 0, len(t.known[ns]))
	for _, key := range t.known[ns] {
		if c, ok := t.colors[key]; ok {
			keys = append(keys, key)
			colors = append(colors, c)
		}
	}
	shuffleColors(colors, t.rng)
	for i, key := range keys {
		t.colors[key] = colors[i]
	}
}

// IsVisible reports the stored visibility. Items never initialized are not visible.
func (t *VisibilityTable) IsVisible(ns Namespace, id NativeID) bool {
	return t.visible[KeyOf(ns, id)]
}

// Lookup returns the stored visibility and whether an entry exists.
func (t *VisibilityTable) Lookup(ns Namespace, id NativeID) (visible, ok bool) {
	visible, ok = t.visible[KeyOf(ns, id)]
	return visible, ok
}

// ColorOf returns the assigned color and whether one exists.
func (t *VisibilityTable) ColorOf(ns Namespace, id NativeID) (Color, bool) {
	c, ok := t.colors[KeyOf(ns, id)]
	return c, ok
}

// VisibleIDs returns the visible ids of ns. Callers that need a specific order
// must sort the result.
func (t *VisibilityTable) VisibleIDs(ns Namespace) []NativeID {
	out := []NativeID{}
	for _, key := range t.known[ns] {
		if t.visible[key] {
			out = append(out, key.ID)
		}
	}
	return out
}

// KnownIDs returns every id of ns with a visibility or color entry, in the
// order they were first seen.
func (t *VisibilityTable) KnownIDs(ns Namespace) []NativeID {
	out := make([]NativeID, 0, len(t.known[ns]))
	for _, key := range t.known[ns] {
		out = append(out, key.ID)
	}
	return out
}

// Colors returns the colors assigned to ns keyed by id.
func (t *VisibilityTable) Colors(ns Namespace) map[NativeID]Color {
	out := make(map[NativeID]Color, len(t.known[ns]))
	for _, key := range t.known[ns] {
		if c, ok := t.colors[key]; ok {
			out[key.ID] = c
		}
	}
	return out
}

// Prune removes entries of ns whose id is not in live and returns how many
// items were dropped.
func (t *VisibilityTable) Prune(ns Namespace, live []NativeID) int {
	keep := make(map[NativeID]struct{}, len(live))
	for _, id := range live {
		keep[id] = struct{}{}
	}
	kept := t.known[ns][:0]
	removed := 0
	for _, key := range t.known[ns] {
		if _, ok := keep[key.ID]; ok {
			kept = append(kept, key)
			continue
		}
		delete(t.visible, key)
		delete(t.colors, key)
		delete(t.seen, key)
		removed++
	}
	t.known[ns] = kept
	return removed
}

// entries exports the raw maps for persistence.
func (t *VisibilityTable) entries() (map[ItemKey]bool, map[ItemKey]Color) {
	visible := make(map[ItemKey]bool, len(t.visible))
	for k, v := range t.visible {
		visible[k] = v
	}
	colors := make(map[ItemKey]Color, len(t.colors))
	for k, v := range t.colors {
		colors[k] = v
	}
	return visible, colors
}

// restore loads persisted entries. Known-key order becomes id order since the
// persisted maps carry none.
func (t *VisibilityTable) restore(visible map[ItemKey]bool, colors map[ItemKey]Color) {
	keys := make([]ItemKey, 0, len(visible)+len(colors))
	for k, v := range visible {
		t.visible[k] = v
		keys = append(keys, k)
	}
	for k, c := range colors {
		t.colors[k] = c
		if _, ok := visible[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Namespace != keys[j].Namespace {
			return keys[i].Namespace < keys[j].Namespace
		}
		return keys[i].ID.Less(keys[j].ID)
	})
	for _, k := range keys {
		t.track(k)
	}
}
