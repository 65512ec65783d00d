package runview

import (
	"strings"
	"testing"
)

func TestDefaultsDifferPerNamespace(t *testing.T) {
	inj := DefaultInjectionSettings()
	exec := DefaultExecutionSettings()
	if len(inj.Columns) == 0 || len(exec.Columns) == 0 {
		t.Fatalf("defaults must carry columns")
	}
	if len(inj.Columns) == len(exec.Columns) {
		t.Fatalf("expected distinct default column sets")
	}
	inj.Columns[0].Width = 1
	if DefaultInjectionSettings().Columns[0].Width == 1 {
		t.Fatalf("defaults must return a fresh copy")
	}
}

func TestLoadDefaultsYAMLOverlaysNamespace(t *testing.T) {
	doc := `
tables:
  executions:
    page_size: 50
    display:
      crop_mode: start
`
	specs, err := LoadDefaultsYAML(strings.NewReader(doc), DefaultNamespaces())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	var execSpec, injSpec NamespaceSpec
	for _, spec := range specs {
		switch spec.Name {
		case NamespaceExecutions:
			execSpec = spec
		case NamespaceInjections:
			injSpec = spec
		}
	}

	exec := execSpec.Defaults()
	if exec.PageSize != 50 || exec.Display.CropMode != CropStart {
		t.Fatalf("expected overrides applied, got page=%d crop=%s", exec.PageSize, exec.Display.CropMode)
	}
	if exec.Display.SortOrder != SortDescending {
		t.Fatalf("expected untouched display key to keep its default")
	}
	if len(exec.Columns) != len(DefaultExecutionSettings().Columns) {
		t.Fatalf("expected built-in columns kept")
	}
	if injSpec.Defaults().PageSize != DefaultPageSize {
		t.Fatalf("expected injections untouched")
	}
}

func TestLoadDefaultsYAMLEmptyDocument(t *testing.T) {
	specs, err := LoadDefaultsYAML(strings.NewReader(""), DefaultNamespaces())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected specs passed through, got %d", len(specs))
	}
}

func TestLoadDefaultsYAMLRejectsGarbage(t *testing.T) {
	if _, err := LoadDefaultsYAML(strings.NewReader("tables: [1, 2"), DefaultNamespaces()); err == nil {
		t.Fatalf("expected decode error")
	}
}
