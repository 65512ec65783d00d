package layering

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMergeLayersFromFixture(t *testing.T) {
	fx := loadFixture(t, "merge_cases.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			layers := make([]fixtureSettings, len(tc.Layers))
			for i := range tc.Layers {
				layers[i] = tc.Layers[i].Snapshot
			}

			got := MergeLayers(layers...)
			if !reflect.DeepEqual(tc.Expect, got) {
				t.Errorf("merged snapshot mismatch:\nwant: %#v\n got: %#v", tc.Expect, got)
			}
		})
	}
}

func TestMergeLayersZeroInput(t *testing.T) {
	type sample struct {
		Value int
	}
	var zero sample
	if got := MergeLayers[sample](); got != zero {
		t.Fatalf("expected zero value, got %+v", got)
	}
}

func TestMergeEmptySlicesAsUnset(t *testing.T) {
	persisted := fixtureSettings{Columns: []string{}}
	defaults := fixtureSettings{Columns: []string{"id", "name"}}

	plain := MergeLayers(persisted, defaults)
	if plain.Columns == nil || len(plain.Columns) != 0 {
		t.Fatalf("without the option an empty slice wins, got %#v", plain.Columns)
	}

	merged := Merge([]MergeOption{EmptySlicesAsUnset()}, persisted, defaults)
	if !reflect.DeepEqual(merged.Columns, []string{"id", "name"}) {
		t.Fatalf("expected default columns, got %#v", merged.Columns)
	}
}

func TestMergeKeepEmptyTag(t *testing.T) {
	type table struct {
		Sort    []string `layering:"keep_empty"`
		Columns []string
	}
	persisted := table{Sort: []string{}, Columns: []string{}}
	defaults := table{Sort: []string{"created_at"}, Columns: []string{"id"}}

	merged := Merge([]MergeOption{EmptySlicesAsUnset()}, persisted, defaults)
	if merged.Sort == nil || len(merged.Sort) != 0 {
		t.Fatalf("tagged field must keep its empty slice, got %#v", merged.Sort)
	}
	if !reflect.DeepEqual(merged.Columns, []string{"id"}) {
		t.Fatalf("untagged field must fall back, got %#v", merged.Columns)
	}
}

func TestMergeEmptyMapsAsUnset(t *testing.T) {
	strong := fixtureSettings{Tables: map[string]fixtureTable{}}
	weak := fixtureSettings{Tables: map[string]fixtureTable{"a": {Flags: []string{"x"}}}}

	merged := Merge([]MergeOption{EmptyMapsAsUnset()}, strong, weak)
	if len(merged.Tables) != 1 {
		t.Fatalf("expected weak map, got %#v", merged.Tables)
	}
}

func TestMergeZeroScalarsAsUnset(t *testing.T) {
	type flat struct {
		Name  string
		Count int
		On    bool
	}
	strong := flat{Count: 3}
	weak := flat{Name: "base", Count: 1, On: true}

	if got := MergeLayers(strong, weak); got != strong {
		t.Fatalf("without the option the stronger layer wins outright, got %+v", got)
	}
	want := flat{Name: "base", Count: 3, On: true}
	if got := Merge([]MergeOption{ZeroScalarsAsUnset()}, strong, weak); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestMergeDoesNotAliasLayers(t *testing.T) {
	weak := fixtureSettings{Columns: []string{"id"}, Display: &fixtureDisplay{CropMode: ptr("end")}}
	merged := MergeLayers(fixtureSettings{}, weak)

	merged.Columns[0] = "changed"
	*merged.Display.CropMode = "changed"
	if weak.Columns[0] != "id" || *weak.Display.CropMode != "end" {
		t.Fatalf("merge result aliases the input layer")
	}
}

func TestMergeKeepsUnexportedFields(t *testing.T) {
	type withHidden struct {
		Public *int
		hidden string
	}
	strong := withHidden{hidden: "kept"}
	merged := MergeLayers(strong, withHidden{Public: ptr(4)})
	if merged.hidden != "kept" || merged.Public == nil || *merged.Public != 4 {
		t.Fatalf("unexpected merge %+v", merged)
	}
}

type fixture struct {
	Description string        `json:"description"`
	Cases       []fixtureCase `json:"cases"`
}

type fixtureCase struct {
	Name   string          `json:"name"`
	Layers []fixtureLayer  `json:"layers"`
	Expect fixtureSettings `json:"expect"`
}

type fixtureLayer struct {
	Scope    string          `json:"scope"`
	Snapshot fixtureSettings `json:"snapshot"`
}

type fixtureSettings struct {
	PageSize   *int                    `json:"page_size,omitempty"`
	SearchText *string                 `json:"search_text,omitempty"`
	Columns    []string                `json:"columns,omitempty"`
	Display    *fixtureDisplay         `json:"display,omitempty"`
	Tables     map[string]fixtureTable `json:"tables,omitempty"`
}

type fixtureDisplay struct {
	CropMode  *string `json:"crop_mode,omitempty"`
	SortOrder *string `json:"sort_order,omitempty"`
}

type fixtureTable struct {
	Flags []string `json:"flags,omitempty"`
}

func ptr[T any](v T) *T {
	return &v
}

func loadFixture(t *testing.T, name string) fixture {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %q: %v", name, err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal fixture %q: %v", name, err)
	}
	return fx
}
