package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/goliatone/go-runview/internal/hydrate"
	"github.com/google/uuid"
)

var (
	// ErrUnsupportedVersion marks a blob written by a newer schema.
	ErrUnsupportedVersion = errors.New("persist: unsupported schema version")
	// ErrNewerVersion marks a blob written by a newer schema. It matches
	// ErrUnsupportedVersion.
	ErrNewerVersion = fmt.Errorf("%w: newer schema", ErrUnsupportedVersion)
	// ErrMalformedDocument marks a blob whose shape a migration cannot read.
	ErrMalformedDocument = errors.New("persist: malformed document")
)

// MigrationFunc rewrites a payload of version From into version From+1 in place.
type MigrationFunc func(payload map[string]any) error

// Migration upgrades one schema version.
type Migration struct {
	From  int
	Apply MigrationFunc
}

// Migrations returns the built-in migration chain.
func Migrations() []Migration {
	return []Migration{
		{From: 0, Apply: migrateV0ToV1},
		{From: 1, Apply: migrateV1ToV2},
	}
}

// Migrator runs registered migrations up to a target version.
type Migrator struct {
	target     int
	migrations map[int]MigrationFunc
	observe    func(from int)
}

// NewMigrator registers migrations. Registering two migrations for the same
// source version is an error.
func NewMigrator(target int, migrations ...Migration) (*Migrator, error) {
	m := &Migrator{target: target, migrations: make(map[int]MigrationFunc, len(migrations))}
	for _, mig := range migrations {
		if mig.Apply == nil {
			return nil, fmt.Errorf("persist: migration from v%d has no function", mig.From)
		}
		if _, dup := m.migrations[mig.From]; dup {
			return nil, fmt.Errorf("persist: duplicate migration from v%d", mig.From)
		}
		m.migrations[mig.From] = mig.Apply
	}
	return m, nil
}

// Migrate upgrades payload in place and returns the version it started at.
func (m *Migrator) Migrate(payload map[string]any) (int, error) {
	from, err := documentVersion(payload)
	if err != nil {
		return 0, err
	}
	if from > m.target {
		return from, fmt.Errorf("%w: v%d is newer than v%d", ErrNewerVersion, from, m.target)
	}
	for v := from; v < m.target; v++ {
		fn, ok := m.migrations[v]
		if !ok {
			return from, fmt.Errorf("%w: no migration from v%d", ErrUnsupportedVersion, v)
		}
		if err := fn(payload); err != nil {
			return from, fmt.Errorf("persist: migrate v%d to v%d: %w", v, v+1, err)
		}
		payload["version"] = v + 1
		if m.observe != nil {
			m.observe(v)
		}
	}
	return from, nil
}

// PreHook exposes Migrate as a hydrate pre-hook.
func (m *Migrator) PreHook() hydrate.PreHook {
	return func(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
		if _, err := m.Migrate(payload); err != nil {
			return nil, err
		}
		return payload, nil
	}
}

func documentVersion(payload map[string]any) (int, error) {
	raw, ok := payload["version"]
	if !ok || raw == nil {
		return 0, nil
	}
	var f float64
	switch v := raw.(type) {
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: version %q", ErrMalformedDocument, v)
		}
		f = n
	case float64:
		f = v
	case int:
		f = float64(v)
	default:
		return 0, fmt.Errorf("%w: version has type %T", ErrMalformedDocument, raw)
	}
	if f < 0 || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: version %v", ErrMalformedDocument, f)
	}
	return int(f), nil
}

// v0 is the unversioned camelCase layout:
//
//	{"visibilityMap": {...}, "colorMap": {...},
//	 "injectionsTable": {...}, "executionsTable": {...},
//	 "isPanelCollapsed": true, "pageSize": 20, "lastUsedNamespace": "injections"}
var v0TopLevel = map[string]string{
	"visibilityMap":     "visibility",
	"colorMap":          "colors",
	"isPanelCollapsed":  "panel_collapsed",
	"pageSize":          "page_size",
	"lastUsedNamespace": "last_namespace",
}

var v0Tables = map[string]string{
	"injectionsTable": "injections",
	"executionsTable": "executions",
}

var v0TableKeys = map[string]string{
	"sortFields":      "sort_fields",
	"groupBy":         "group_by",
	"pageSize":        "page_size",
	"currentPage":     "current_page",
	"searchText":      "search_text",
	"displaySettings": "display",
}

var v0DisplayKeys = map[string]string{
	"cropMode":  "crop_mode",
	"sortOrder": "sort_order",
}

var v0ColumnKeys = map[string]string{
	"dataIndex": "data_index",
}

func migrateV0ToV1(payload map[string]any) error {
	for oldKey, newKey := range v0TopLevel {
		renameKey(payload, oldKey, newKey)
	}

	tables := map[string]any{}
	for oldKey, ns := range v0Tables {
		raw, ok := payload[oldKey]
		delete(payload, oldKey)
		if !ok || raw == nil {
			continue
		}
		table, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s is %T", ErrMalformedDocument, oldKey, raw)
		}
		for from, to := range v0TableKeys {
			renameKey(table, from, to)
		}
		if table["group_by"] == nil {
			delete(table, "group_by")
		}
		if display, ok := table["display"].(map[string]any); ok {
			for from, to := range v0DisplayKeys {
				renameKey(display, from, to)
			}
		}
		if columns, ok := table["columns"].([]any); ok {
			for _, col := range columns {
				if colMap, ok := col.(map[string]any); ok {
					for from, to := range v0ColumnKeys {
						renameKey(colMap, from, to)
					}
				}
			}
		}
		tables[ns] = table
	}
	if len(tables) > 0 {
		payload["tables"] = tables
	}
	return dropEmptyColumns(payload)
}

func migrateV1ToV2(payload map[string]any) error {
	if err := dropEmptyColumns(payload); err != nil {
		return err
	}
	tables, _ := payload["tables"].(map[string]any)
	names := make([]string, 0, len(tables))
	for ns := range tables {
		names = append(names, ns)
	}
	sort.Strings(names)
	for _, ns := range names {
		table, ok := tables[ns].(map[string]any)
		if !ok {
			return fmt.Errorf("%w: table %s is %T", ErrMalformedDocument, ns, tables[ns])
		}
		fields, ok := table["sort_fields"].([]any)
		if !ok {
			continue
		}
		for _, raw := range fields {
			field, ok := raw.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: sort field in %s is %T", ErrMalformedDocument, ns, raw)
			}
			if key, _ := field["key"].(string); key == "" {
				field["key"] = uuid.NewString()
			}
		}
	}
	return nil
}

// dropEmptyColumns removes "columns": [] so merging falls back to the default
// layout for that namespace.
func dropEmptyColumns(payload map[string]any) error {
	raw, ok := payload["tables"]
	if !ok || raw == nil {
		return nil
	}
	tables, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: tables is %T", ErrMalformedDocument, raw)
	}
	for _, t := range tables {
		table, ok := t.(map[string]any)
		if !ok {
			continue
		}
		if columns, ok := table["columns"].([]any); ok && len(columns) == 0 {
			delete(table, "columns")
		}
	}
	return nil
}

func renameKey(m map[string]any, from, to string) {
	if v, ok := m[from]; ok {
		delete(m, from)
		if _, exists := m[to]; !exists {
			m[to] = v
		}
	}
}
