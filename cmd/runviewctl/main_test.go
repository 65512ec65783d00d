package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-runview/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

var stateRef = state.Ref{Key: "runview"}

func seedState(t *testing.T, dir, doc string) {
	t.Helper()
	_, err := state.NewFileStore[json.RawMessage](dir).Save(context.Background(), stateRef, json.RawMessage(doc), state.Meta{})
	require.NoError(t, err)
}

func storedState(t *testing.T, dir string) map[string]any {
	t.Helper()
	raw, _, ok, err := state.NewFileStore[json.RawMessage](dir).Load(context.Background(), stateRef)
	require.NoError(t, err)
	require.True(t, ok)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "runview", cfg.StateKey)
	assert.Equal(t, "expr", cfg.Engine)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.NotEmpty(t, cfg.StateDir)
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runview.yaml")
	writeFile(t, path, `
state_dir: /from/file
state_key: file-key
engine: cel
log:
  level: debug
`)
	t.Setenv("RUNVIEW_STATE_KEY", "env-key")
	t.Setenv("RUNVIEW_LOG_PRETTY", "true")

	cmd := newRootCmd()
	require.NoError(t, cmd.PersistentFlags().Parse([]string{"--engine", "js"}))

	cfg, err := LoadConfig(path, cmd.PersistentFlags())
	require.NoError(t, err)
	assert.Equal(t, "/from/file", cfg.StateDir)
	assert.Equal(t, "env-key", cfg.StateKey)
	assert.Equal(t, "js", cfg.Engine)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("RUNVIEW_TEST_ROOT", "/srv/dash")
	t.Setenv("RUNVIEW_STATE_DIR", "${RUNVIEW_TEST_ROOT}/state")
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "/srv/dash/state", cfg.StateDir)
}

func TestLoadConfigRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	writeFile(t, path, "state_dir: [unterminated")
	_, err := LoadConfig(path, nil)
	require.Error(t, err)
}

func TestToggleAndVisible(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "", "--state-dir", dir, "toggle", "injections", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "7\thidden")

	out, err = run(t, "", "--state-dir", dir, "toggle", "injections", "inj_7", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "7\tvisible")
	assert.Contains(t, out, "8\thidden")

	out, err = run(t, "", "--state-dir", dir, "visible", "injections")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "7"))

	doc := storedState(t, dir)
	assert.Equal(t, map[string]any{"inj_7": true, "inj_8": false}, doc["visibility"])
}

func TestToggleRejectsBadArguments(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, "", "--state-dir", dir, "toggle", "runs", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown namespace")

	_, err = run(t, "", "--state-dir", dir, "toggle", "injections", "abc")
	require.Error(t, err)

	_, err = run(t, "", "--state-dir", dir, "toggle", "injections", "exec_3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "belongs to executions")

	_, statErr := os.Stat(filepath.Join(dir, "runview.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestShowFormats(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "", "--state-dir", dir, "toggle", "executions", "3")
	require.NoError(t, err)

	out, err := run(t, "", "--state-dir", dir, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "[injections]")
	assert.Contains(t, out, "[executions]")
	assert.Contains(t, out, "hit")

	out, err = run(t, "", "--state-dir", dir, "show", "-o", "json")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.EqualValues(t, 2, doc["version"])
	assert.Equal(t, map[string]any{"exec_3": false}, doc["visibility"])

	out, err = run(t, "", "--state-dir", dir, "show", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "exec_3: false")

	_, err = run(t, "", "--state-dir", dir, "show", "-o", "xml")
	require.Error(t, err)
}

func TestResetRestoresDefaults(t *testing.T) {
	dir := t.TempDir()
	seedState(t, dir,
		`{"version":2,"tables":{"injections":{"sort_fields":[],"group_by":"state","page_size":5}}}`)

	out, err := run(t, "", "--state-dir", dir, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "group by")

	_, err = run(t, "", "--state-dir", dir, "reset", "injections")
	require.NoError(t, err)

	out, err = run(t, "", "--state-dir", dir, "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "group by")
	assert.Contains(t, out, "created_at desc")
}

func TestDefaultsFileOverridesLayout(t *testing.T) {
	dir := t.TempDir()
	defaults := filepath.Join(dir, "defaults.yaml")
	writeFile(t, defaults, `
tables:
  executions:
    page_size: 3
    group_by: status
`)
	out, err := run(t, "", "--state-dir", dir, "--defaults", defaults, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "group by  status")
	assert.Contains(t, out, "of size 3")
}

func TestMigrate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runview.json")

	out, err := run(t, "", "--state-dir", dir, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing persisted")

	seedState(t, dir, `{"visibilityMap":{"inj_4":true}}`)
	out, err = run(t, "", "--state-dir", dir, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrated version 0 to 2")

	doc := storedState(t, dir)
	assert.EqualValues(t, 2, doc["version"])
	assert.Equal(t, map[string]any{"inj_4": true}, doc["visibility"])

	out, err = run(t, "", "--state-dir", dir, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "already at version 2")

	seedState(t, dir, `{"version":9,"visibility":{"inj_1":true}}`)
	_, err = run(t, "", "--state-dir", dir, "migrate", "--force")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer version")
	assert.EqualValues(t, 9, storedState(t, dir)["version"])

	writeFile(t, path, `not json`)
	_, err = run(t, "", "--state-dir", dir, "migrate")
	require.Error(t, err)
	_, err = run(t, "", "--state-dir", dir, "migrate", "--force")
	require.NoError(t, err)
	doc = storedState(t, dir)
	assert.EqualValues(t, 2, doc["version"])
	assert.Nil(t, doc["visibility"])
}

const rowsJSON = `[
  {"id": 1, "name": "cpu-burn", "state": "failed", "created_at": "2026-01-01T10:00:00Z"},
  {"id": 2, "name": "net-delay", "state": "succeeded", "created_at": "2026-01-03T10:00:00Z"},
  {"id": 3, "name": "cpu-throttle", "state": "failed", "created_at": "2026-01-02T10:00:00Z"}
]`

func filterIDs(t *testing.T, out string) ([]float64, filterOutput) {
	t.Helper()
	var result filterOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	ids := make([]float64, 0, len(result.Rows))
	for _, row := range result.Rows {
		ids = append(ids, row["id"].(float64))
	}
	return ids, result
}

func TestFilterUsesPersistedSettings(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, rowsJSON, "--state-dir", dir, "filter", "injections")
	require.NoError(t, err)
	ids, result := filterIDs(t, out)
	assert.Equal(t, []float64{2, 3, 1}, ids)
	assert.Equal(t, "expr", result.Engine)
	assert.Equal(t, 3, result.Pagination.Total)

	out, err = run(t, rowsJSON, "--state-dir", dir, "filter", "injections", "-", "-q", "cpu")
	require.NoError(t, err)
	ids, _ = filterIDs(t, out)
	assert.Equal(t, []float64{3, 1}, ids)
}

func TestFilterPredicateEngines(t *testing.T) {
	dir := t.TempDir()
	rows := filepath.Join(dir, "rows.json")
	writeFile(t, rows, rowsJSON)

	for _, engine := range []string{"expr", "cel"} {
		t.Run(engine, func(t *testing.T) {
			out, err := run(t, "", "--state-dir", dir, "--engine", engine,
				"filter", "injections", rows, "-q", `=state == "failed"`)
			require.NoError(t, err)
			ids, result := filterIDs(t, out)
			assert.Equal(t, []float64{3, 1}, ids)
			assert.Equal(t, engine, result.Engine)
		})
	}

	_, err := run(t, "", "--state-dir", dir, "filter", "injections", rows, "-q", "=state +")
	require.Error(t, err)
}

func TestFilterRejectsBadRows(t *testing.T) {
	_, err := run(t, `{"id": 1}`, "--state-dir", t.TempDir(), "filter", "injections")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read rows")
}
