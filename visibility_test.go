package runview

import (
	"math/rand/v2"
	"reflect"
	"slices"
	"testing"
)

func newTestTable() *VisibilityTable {
	return NewVisibilityTable(DefaultPalette, rand.New(rand.NewPCG(1, 2)))
}

func TestInitializeDefaultVisibleScenario(t *testing.T) {
	table := newTestTable()
	if !table.Initialize(NamespaceExecutions, IntIDs(1, 2, 3, 4, 5, 6, 7), 5) {
		t.Fatalf("expected initialize to apply")
	}

	for _, raw := range []int64{1, 2, 3, 4, 5} {
		if !table.IsVisible(NamespaceExecutions, IntID(raw)) {
			t.Fatalf("expected %d visible", raw)
		}
	}
	for _, raw := range []int64{6, 7} {
		visible, ok := table.Lookup(NamespaceExecutions, IntID(raw))
		if !ok || visible {
			t.Fatalf("expected %d hidden with an entry, got visible=%v ok=%v", raw, visible, ok)
		}
	}
	for i, raw := range []int64{1, 2, 3, 4, 5, 6, 7} {
		color, ok := table.ColorOf(NamespaceExecutions, IntID(raw))
		if !ok || color != DefaultPalette[i] {
			t.Fatalf("expected %d to get palette[%d]=%s, got %s", raw, i, DefaultPalette[i], color)
		}
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	table := newTestTable()
	ids := IntIDs(10, 11, 12)
	table.Initialize(NamespaceInjections, ids, 2)
	visible, colors := table.entries()

	if table.Initialize(NamespaceInjections, ids, 2) {
		t.Fatalf("expected second initialize to be a no-op")
	}
	visibleAgain, colorsAgain := table.entries()
	if !reflect.DeepEqual(visible, visibleAgain) || !reflect.DeepEqual(colors, colorsAgain) {
		t.Fatalf("state changed on second initialize")
	}

	// A later fetch with a different item set does not re-initialize either.
	if table.Initialize(NamespaceInjections, IntIDs(99, 100), 2) {
		t.Fatalf("expected initialize with new ids to be a no-op")
	}
	if _, ok := table.Lookup(NamespaceInjections, IntID(99)); ok {
		t.Fatalf("expected no entry for late id")
	}
}

func TestInitializeIsNamespaceScoped(t *testing.T) {
	table := newTestTable()
	table.Initialize(NamespaceInjections, IntIDs(1, 2), 1)
	if !table.Initialize(NamespaceExecutions, IntIDs(1, 2), 2) {
		t.Fatalf("expected executions to initialize independently")
	}
	if table.IsVisible(NamespaceInjections, IntID(2)) {
		t.Fatalf("injections/2 should stay hidden")
	}
	if !table.IsVisible(NamespaceExecutions, IntID(2)) {
		t.Fatalf("executions/2 should be visible")
	}
}

func TestInitializeCountsRepeatedIDsOnce(t *testing.T) {
	table := newTestTable()
	table.Initialize(NamespaceInjections, IntIDs(1, 1, 2, 3), 2)

	for _, raw := range []int64{1, 2} {
		if !table.IsVisible(NamespaceInjections, IntID(raw)) {
			t.Fatalf("expected %d visible", raw)
		}
	}
	if table.IsVisible(NamespaceInjections, IntID(3)) {
		t.Fatalf("expected 3 hidden")
	}
	for i, raw := range []int64{1, 2, 3} {
		if color, _ := table.ColorOf(NamespaceInjections, IntID(raw)); color != DefaultPalette[i] {
			t.Fatalf("expected %d to get palette[%d]=%s, got %s", raw, i, DefaultPalette[i], color)
		}
	}
}

func TestInitializeKeepsExistingColor(t *testing.T) {
	table := newTestTable()
	table.SetColor(NamespaceInjections, IntID(1), "#000000")
	table.Initialize(NamespaceInjections, IntIDs(1, 2), 5)
	if color, _ := table.ColorOf(NamespaceInjections, IntID(1)); color != "#000000" {
		t.Fatalf("expected manual color to survive, got %s", color)
	}
}

func TestToggleInvolution(t *testing.T) {
	table := newTestTable()
	table.Initialize(NamespaceExecutions, IntIDs(1, 2), 1)

	for _, raw := range []int64{1, 2} {
		id := IntID(raw)
		before := table.IsVisible(NamespaceExecutions, id)
		table.Toggle(NamespaceExecutions, id)
		table.Toggle(NamespaceExecutions, id)
		if table.IsVisible(NamespaceExecutions, id) != before {
			t.Fatalf("toggle twice changed %d", raw)
		}
	}
}

func TestToggleUnseenItemHidesIt(t *testing.T) {
	table := newTestTable()
	if got := table.Toggle(NamespaceInjections, IntID(5)); got {
		t.Fatalf("expected first toggle of unseen item to hide it")
	}
	visible, ok := table.Lookup(NamespaceInjections, IntID(5))
	if !ok || visible {
		t.Fatalf("expected explicit false entry, got visible=%v ok=%v", visible, ok)
	}
}

func TestRandomizeColorsKeepsMultiset(t *testing.T) {
	table := newTestTable()
	ids := IntIDs(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)
	table.Initialize(NamespaceInjections, ids, 5)
	table.Initialize(NamespaceExecutions, IntIDs(1), 1)
	otherBefore, _ := table.ColorOf(NamespaceExecutions, IntID(1))

	before := colorMultiset(table.Colors(NamespaceInjections))
	table.RandomizeColors(NamespaceInjections)
	after := colorMultiset(table.Colors(NamespaceInjections))

	if !reflect.DeepEqual(before, after) {
		t.Fatalf("multiset changed: %v -> %v", before, after)
	}
	for _, c := range after {
		if !DefaultPalette.Contains(c) {
			t.Fatalf("color %s escaped the palette", c)
		}
	}
	if otherAfter, _ := table.ColorOf(NamespaceExecutions, IntID(1)); otherAfter != otherBefore {
		t.Fatalf("randomize leaked into another namespace")
	}
}

func colorMultiset(colors map[NativeID]Color) []Color {
	out := make([]Color, 0, len(colors))
	for _, c := range colors {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

func TestVisibleIDsAndPrune(t *testing.T) {
	table := newTestTable()
	table.Initialize(NamespaceExecutions, IntIDs(1, 2, 3, 4), 3)

	got := table.VisibleIDs(NamespaceExecutions)
	if !reflect.DeepEqual(got, IntIDs(1, 2, 3)) {
		t.Fatalf("unexpected visible ids %v", got)
	}

	removed := table.Prune(NamespaceExecutions, IntIDs(2, 4))
	if removed != 2 {
		t.Fatalf("expected 2 pruned, got %d", removed)
	}
	if !reflect.DeepEqual(table.KnownIDs(NamespaceExecutions), IntIDs(2, 4)) {
		t.Fatalf("unexpected known ids %v", table.KnownIDs(NamespaceExecutions))
	}
	if _, ok := table.ColorOf(NamespaceExecutions, IntID(1)); ok {
		t.Fatalf("expected color of pruned id to be gone")
	}
}

func TestRestoreTracksKnownKeysInIDOrder(t *testing.T) {
	table := newTestTable()
	table.restore(
		map[ItemKey]bool{KeyOf(NamespaceInjections, IntID(9)): true, KeyOf(NamespaceInjections, IntID(3)): false},
		map[ItemKey]Color{KeyOf(NamespaceInjections, IntID(4)): "#111111"},
	)
	if !reflect.DeepEqual(table.KnownIDs(NamespaceInjections), IntIDs(3, 4, 9)) {
		t.Fatalf("unexpected known order %v", table.KnownIDs(NamespaceInjections))
	}
	if !table.Initialized(NamespaceInjections) {
		t.Fatalf("expected restored namespace to count as initialized")
	}
}
