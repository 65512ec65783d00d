package persist_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	runview "github.com/goliatone/go-runview"
	"github.com/goliatone/go-runview/internal/hydrate"
	"github.com/goliatone/go-runview/persist"
	"github.com/goliatone/go-runview/pkg/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRef = state.Ref{Key: persist.DefaultRef}

func seed(t *testing.T, backend persist.Backend, raw string) {
	t.Helper()
	_, err := backend.Save(context.Background(), testRef, json.RawMessage(raw), state.Meta{})
	require.NoError(t, err)
}

func storedDocument(t *testing.T, backend persist.Backend) (persist.Document, json.RawMessage) {
	t.Helper()
	raw, _, ok, err := backend.Load(context.Background(), testRef)
	require.NoError(t, err)
	require.True(t, ok, "expected a persisted document")
	var doc persist.Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc, raw
}

func open(t *testing.T, backend persist.Backend, opts ...persist.Option) *persist.Adapter {
	t.Helper()
	adapter, err := persist.Open(context.Background(), backend, testRef, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })
	return adapter
}

type failingBackend struct {
	persist.Backend
	err error
}

func (b failingBackend) Save(context.Context, state.Ref, json.RawMessage, state.Meta) (state.Meta, error) {
	return state.Meta{}, b.err
}

func TestOpenWithoutPersistedStateUsesDefaults(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := persist.NewMetrics(reg)
	adapter := open(t, state.NewMemoryStore[json.RawMessage](), persist.WithMetrics(metrics))

	assert.Equal(t, persist.LoadMiss, adapter.LoadResult())
	settings, ok := adapter.Store().Settings(runview.NamespaceInjections)
	require.True(t, ok)
	assert.Equal(t, runview.DefaultInjectionSettings(), settings)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LoadsTotal.WithLabelValues(persist.LoadMiss)))
}

func TestEmptyPersistedColumnsFallBackToDefaults(t *testing.T) {
	backend := state.NewMemoryStore[json.RawMessage]()
	seed(t, backend, `{"version":2,"tables":{"injections":{"columns":[],"page_size":50}}}`)

	adapter := open(t, backend)
	assert.Equal(t, persist.LoadHit, adapter.LoadResult())

	settings, ok := adapter.Store().Settings(runview.NamespaceInjections)
	require.True(t, ok)
	assert.Equal(t, runview.DefaultInjectionSettings().Columns, settings.Columns)
	assert.Equal(t, 50, settings.PageSize)
	assert.Equal(t, runview.DefaultInjectionSettings().SortFields, settings.SortFields)
}

func TestPersistedTableMergesOntoDefaults(t *testing.T) {
	backend := state.NewMemoryStore[json.RawMessage]()
	seed(t, backend, `{
		"version": 2,
		"tables": {
			"executions": {
				"sort_fields": [],
				"search_text": "gpu",
				"display": {"crop_mode": "none"}
			}
		}
	}`)

	adapter := open(t, backend)
	settings, ok := adapter.Store().Settings(runview.NamespaceExecutions)
	require.True(t, ok)

	defaults := runview.DefaultExecutionSettings()
	assert.Empty(t, settings.SortFields, "a cleared sort list is kept")
	assert.Equal(t, "gpu", settings.SearchText)
	assert.Equal(t, runview.CropNone, settings.Display.CropMode)
	assert.Equal(t, defaults.Display.SortOrder, settings.Display.SortOrder)
	assert.Equal(t, defaults.Columns, settings.Columns)
	assert.Equal(t, defaults.PageSize, settings.PageSize)

	injections, _ := adapter.Store().Settings(runview.NamespaceInjections)
	assert.Equal(t, runview.DefaultInjectionSettings(), injections)
}

func TestOpenMigratesUnversionedDocument(t *testing.T) {
	backend := state.NewMemoryStore[json.RawMessage]()
	seed(t, backend, `{
		"visibilityMap": {"inj_1": true, "inj_2": false, "exec_7": true},
		"colorMap": {"inj_1": "#ff0000"},
		"isPanelCollapsed": true,
		"lastUsedNamespace": "executions",
		"injectionsTable": {
			"sortFields": [{"field": "name", "order": "asc"}],
			"pageSize": 10,
			"displaySettings": {"cropMode": "start"}
		}
	}`)
	reg := prometheus.NewRegistry()
	metrics := persist.NewMetrics(reg)

	adapter := open(t, backend, persist.WithMetrics(metrics))
	store := adapter.Store()

	assert.Equal(t, persist.LoadHit, adapter.LoadResult())
	assert.Equal(t, 0, adapter.LoadedVersion())
	assert.True(t, store.IsVisible(runview.NamespaceInjections, runview.IntID(1)))
	assert.False(t, store.IsVisible(runview.NamespaceInjections, runview.IntID(2)))
	assert.True(t, store.IsVisible(runview.NamespaceExecutions, runview.IntID(7)))
	color, ok := store.ColorOf(runview.NamespaceInjections, runview.IntID(1))
	require.True(t, ok)
	assert.Equal(t, runview.Color("#ff0000"), color)
	assert.True(t, store.PanelCollapsed())
	assert.Equal(t, runview.NamespaceExecutions, store.LastNamespace())

	settings, _ := store.Settings(runview.NamespaceInjections)
	require.Len(t, settings.SortFields, 1)
	assert.NotEmpty(t, settings.SortFields[0].Key, "migration assigns sort keys")
	assert.Equal(t, "name", settings.SortFields[0].Field)
	assert.Equal(t, 10, settings.PageSize)
	assert.Equal(t, runview.CropStart, settings.Display.CropMode)
	assert.Equal(t, runview.SortDescending, settings.Display.SortOrder)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MigrationsTotal.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MigrationsTotal.WithLabelValues("1")))
}

func TestUnreadableDocumentsFallBackToDefaults(t *testing.T) {
	cases := map[string]string{
		"newer version": `{"version": 99, "visibility": {"inj_1": true}}`,
		"not json":      `"just a string"`,
		"bad tables":    `{"version": 1, "tables": []}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			backend := state.NewMemoryStore[json.RawMessage]()
			seed(t, backend, raw)
			reg := prometheus.NewRegistry()
			metrics := persist.NewMetrics(reg)

			adapter := open(t, backend, persist.WithMetrics(metrics))

			assert.Equal(t, persist.LoadFallback, adapter.LoadResult())
			assert.False(t, adapter.Store().Initialized(runview.NamespaceInjections))
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LoadsTotal.WithLabelValues(persist.LoadFallback)))
		})
	}
}

func TestNewerSchemaIsNeverOverwritten(t *testing.T) {
	backend := state.NewMemoryStore[json.RawMessage]()
	newer := `{"version": 3, "visibility": {"inj_1": true}, "layout": "grid"}`
	seed(t, backend, newer)

	adapter := open(t, backend)
	assert.Equal(t, persist.LoadFallback, adapter.LoadResult())
	assert.True(t, adapter.ReadOnly())

	store := adapter.Store()
	store.SetPanelCollapsed(true)
	_, err := store.Toggle(runview.NamespaceInjections, runview.IntID(1))
	require.NoError(t, err)
	assert.True(t, store.PanelCollapsed())

	require.NoError(t, adapter.Flush(context.Background()))
	require.ErrorIs(t, adapter.SaveNow(context.Background()), persist.ErrReadOnly)
	require.NoError(t, adapter.Close())

	raw, _, ok, err := backend.Load(context.Background(), testRef)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, newer, string(raw))
}

func TestCorruptDocumentIsReplaced(t *testing.T) {
	backend := state.NewMemoryStore[json.RawMessage]()
	seed(t, backend, `{"version": 1, "tables": []}`)

	adapter := open(t, backend)
	assert.False(t, adapter.ReadOnly())
	adapter.Store().SetPanelCollapsed(true)
	require.NoError(t, adapter.Flush(context.Background()))

	doc, _ := storedDocument(t, backend)
	assert.Equal(t, persist.CurrentVersion, doc.Version)
	require.NotNil(t, doc.PanelCollapsed)
	assert.True(t, *doc.PanelCollapsed)
}

func TestUndecodableKeysAreDropped(t *testing.T) {
	backend := state.NewMemoryStore[json.RawMessage]()
	seed(t, backend, `{"version":2,"visibility":{"inj_1":true,"inj_x":true,"run_3":true}}`)

	adapter := open(t, backend)
	assert.Equal(t, persist.LoadHit, adapter.LoadResult())
	assert.Equal(t, []runview.NativeID{runview.IntID(1)}, adapter.Store().SortedVisibleIDs(runview.NamespaceInjections))
}

func TestOnlyDurableFieldsArePersisted(t *testing.T) {
	backend := state.NewMemoryStore[json.RawMessage]()
	adapter := open(t, backend)
	store := adapter.Store()
	ctx := context.Background()

	require.NoError(t, store.SetSelection(runview.NamespaceInjections, runview.IntIDs(1)))
	require.NoError(t, store.SetSearchOverride(runview.NamespaceInjections, "override-text"))
	require.NoError(t, store.SetLoadedItems(runview.NamespaceInjections, runview.IntIDs(1, 2)))
	require.NoError(t, adapter.Flush(ctx))

	_, _, ok, err := backend.Load(ctx, testRef)
	require.NoError(t, err)
	assert.False(t, ok, "ephemeral changes do not trigger a write")

	_, err = store.Initialize(ctx, runview.NamespaceInjections, runview.IntIDs(1, 2, 3), 2)
	require.NoError(t, err)
	require.NoError(t, adapter.Flush(ctx))

	doc, raw := storedDocument(t, backend)
	assert.Equal(t, persist.CurrentVersion, doc.Version)
	assert.Equal(t, map[string]bool{"inj_1": true, "inj_2": true, "inj_3": false}, doc.Visibility)
	assert.Len(t, doc.Colors, 3)
	assert.NotContains(t, string(raw), "override-text")

	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &top))
	allowed := map[string]bool{
		"version": true, "visibility": true, "colors": true, "tables": true,
		"panel_collapsed": true, "page_size": true, "last_namespace": true,
	}
	for key := range top {
		assert.True(t, allowed[key], "unexpected persisted key %q", key)
	}
}

func TestWritesCoalesce(t *testing.T) {
	backend := state.NewMemoryStore[json.RawMessage]()
	reg := prometheus.NewRegistry()
	metrics := persist.NewMetrics(reg)
	adapter := open(t, backend, persist.WithMetrics(metrics), persist.WithDebounce(50*time.Millisecond))
	store := adapter.Store()

	for i := 0; i < 40; i++ {
		_, err := store.Toggle(runview.NamespaceInjections, runview.IntID(int64(i%4)))
		require.NoError(t, err)
	}
	require.NoError(t, adapter.Flush(context.Background()))

	saves := testutil.ToFloat64(metrics.SavesTotal)
	assert.GreaterOrEqual(t, saves, 1.0)
	assert.Less(t, saves, 40.0)

	doc, _ := storedDocument(t, backend)
	for i := 0; i < 4; i++ {
		key, err := store.Codec().Encode(runview.NamespaceInjections, runview.IntID(int64(i)))
		require.NoError(t, err)
		assert.Equal(t, store.IsVisible(runview.NamespaceInjections, runview.IntID(int64(i))), doc.Visibility[key])
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	backend := state.NewFileStore[json.RawMessage](t.TempDir())
	ctx := context.Background()

	first, err := persist.Open(ctx, backend, testRef)
	require.NoError(t, err)
	store := first.Store()
	_, err = store.Initialize(ctx, runview.NamespaceExecutions, runview.IntIDs(10, 11, 12), 1)
	require.NoError(t, err)
	require.NoError(t, store.SetColor(runview.NamespaceExecutions, runview.IntID(10), "#123456"))
	require.NoError(t, store.AddSort(runview.NamespaceExecutions, "duration", runview.SortAscending))
	require.NoError(t, store.HideColumns(runview.NamespaceExecutions, "dataset"))
	store.SetPanelCollapsed(true)
	require.NoError(t, first.Close())

	second := open(t, backend)
	reloaded := second.Store()
	assert.Equal(t, persist.LoadHit, second.LoadResult())
	assert.Equal(t, persist.CurrentVersion, second.LoadedVersion())
	assert.Equal(t, store.Snapshot(), reloaded.Snapshot())
}

func TestSaveFailuresAreReported(t *testing.T) {
	boom := errors.New("disk full")
	backend := failingBackend{Backend: state.NewMemoryStore[json.RawMessage](), err: boom}
	reg := prometheus.NewRegistry()
	metrics := persist.NewMetrics(reg)

	var mu sync.Mutex
	var reported []error
	adapter := open(t, backend,
		persist.WithMetrics(metrics),
		persist.WithErrorHandler(func(err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		}),
	)

	_, err := adapter.Store().Toggle(runview.NamespaceInjections, runview.IntID(1))
	require.NoError(t, err, "mutations never fail because storage does")

	err = adapter.Flush(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SaveFailuresTotal))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], boom)
}

func TestConcurrentWriterIsOverwritten(t *testing.T) {
	backend := state.NewMemoryStore[json.RawMessage]()
	reg := prometheus.NewRegistry()
	metrics := persist.NewMetrics(reg)
	adapter := open(t, backend, persist.WithMetrics(metrics))
	store := adapter.Store()
	ctx := context.Background()

	_, err := store.Toggle(runview.NamespaceInjections, runview.IntID(1))
	require.NoError(t, err)
	require.NoError(t, adapter.Flush(ctx))

	seed(t, backend, `{"version":2,"visibility":{"inj_9":true}}`)

	_, err = store.Toggle(runview.NamespaceInjections, runview.IntID(2))
	require.NoError(t, err)
	require.NoError(t, adapter.Flush(ctx))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ConflictsTotal))
	doc, _ := storedDocument(t, backend)
	assert.Equal(t, map[string]bool{"inj_1": false, "inj_2": false}, doc.Visibility)
}

func TestCloseWritesPendingChanges(t *testing.T) {
	backend := state.NewMemoryStore[json.RawMessage]()
	adapter, err := persist.Open(context.Background(), backend, testRef, persist.WithDebounce(time.Hour))
	require.NoError(t, err)

	_, err = adapter.Store().Toggle(runview.NamespaceExecutions, runview.IntID(3))
	require.NoError(t, err)
	require.NoError(t, adapter.Close())
	require.NoError(t, adapter.Close())

	doc, _ := storedDocument(t, backend)
	assert.Equal(t, map[string]bool{"exec_3": false}, doc.Visibility)

	assert.ErrorIs(t, adapter.SaveNow(context.Background()), persist.ErrClosed)

	_, err = adapter.Store().Toggle(runview.NamespaceExecutions, runview.IntID(4))
	require.NoError(t, err)
	assert.NoError(t, adapter.Flush(context.Background()), "closed adapters no longer track changes")
}

func TestFlushHonoursContext(t *testing.T) {
	backend := state.NewMemoryStore[json.RawMessage]()
	adapter := open(t, backend, persist.WithDebounce(time.Hour))

	_, err := adapter.Store().Toggle(runview.NamespaceInjections, runview.IntID(1))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, adapter.Flush(ctx), context.DeadlineExceeded)
}

func TestSaveNowRewritesMigratedDocument(t *testing.T) {
	backend := state.NewMemoryStore[json.RawMessage]()
	seed(t, backend, `{"visibilityMap":{"inj_4":true},"executionsTable":{"columns":[]}}`)

	adapter := open(t, backend)
	require.NoError(t, adapter.SaveNow(context.Background()))

	doc, _ := storedDocument(t, backend)
	assert.Equal(t, persist.CurrentVersion, doc.Version)
	assert.Equal(t, map[string]bool{"inj_4": true}, doc.Visibility)
	assert.Equal(t, runview.DefaultExecutionSettings().Columns, doc.Tables["executions"].Columns)
	assert.NotEmpty(t, adapter.ETag())
}

func TestOpenRejectsInvalidRef(t *testing.T) {
	_, err := persist.Open(context.Background(), state.NewMemoryStore[json.RawMessage](), state.Ref{Key: "../etc"})
	assert.ErrorIs(t, err, state.ErrInvalidRef)
}

func TestMergeTable(t *testing.T) {
	base := runview.DefaultInjectionSettings()
	page := 3
	merged := persist.MergeTable(persist.TableDocument{CurrentPage: &page}, base)

	assert.Equal(t, 3, merged.CurrentPage)
	assert.Equal(t, base.Columns, merged.Columns)
	assert.Equal(t, base.SortFields, merged.SortFields)
	assert.Equal(t, base.Display, merged.Display)
}

type racingBackend struct {
	persist.Backend
	once  sync.Once
	other json.RawMessage
}

func (b *racingBackend) Load(ctx context.Context, ref state.Ref) (json.RawMessage, state.Meta, bool, error) {
	raw, meta, ok, err := b.Backend.Load(ctx, ref)
	b.once.Do(func() {
		_, _ = b.Backend.Save(ctx, ref, b.other, state.Meta{})
	})
	return raw, meta, ok, err
}

func TestEditRewritesAtCurrentVersion(t *testing.T) {
	backend := state.NewMemoryStore[json.RawMessage]()
	seed(t, backend, `{"visibilityMap":{"inj_1":true}}`)
	ctx := context.Background()

	err := persist.Edit(ctx, backend, testRef, func(store *runview.Store) error {
		visible, err := store.Toggle(runview.NamespaceInjections, runview.IntID(1))
		if err != nil {
			return err
		}
		assert.False(t, visible)
		return store.SetSearchText(runview.NamespaceExecutions, "bert")
	})
	require.NoError(t, err)

	doc, _ := storedDocument(t, backend)
	assert.Equal(t, persist.CurrentVersion, doc.Version)
	assert.Equal(t, map[string]bool{"inj_1": false}, doc.Visibility)
	require.NotNil(t, doc.Tables["executions"].SearchText)
	assert.Equal(t, "bert", *doc.Tables["executions"].SearchText)
}

func TestEditLeavesBlobOnFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("nope")

	backend := state.NewMemoryStore[json.RawMessage]()
	seed(t, backend, `{"version":2,"visibility":{"inj_1":true}}`)
	err := persist.Edit(ctx, backend, testRef, func(*runview.Store) error { return boom })
	require.ErrorIs(t, err, boom)
	_, raw := storedDocument(t, backend)
	assert.JSONEq(t, `{"version":2,"visibility":{"inj_1":true}}`, string(raw))

	unreadable := state.NewMemoryStore[json.RawMessage]()
	seed(t, unreadable, `{"version":7}`)
	err = persist.Edit(ctx, unreadable, testRef, func(*runview.Store) error { return nil })
	require.ErrorIs(t, err, persist.ErrUnsupportedVersion)
}

func TestEditDetectsConcurrentWriter(t *testing.T) {
	inner := state.NewMemoryStore[json.RawMessage]()
	seed(t, inner, `{"version":2,"visibility":{"inj_1":true}}`)
	backend := &racingBackend{Backend: inner, other: json.RawMessage(`{"version":2,"visibility":{"inj_2":true}}`)}
	reg := prometheus.NewRegistry()
	metrics := persist.NewMetrics(reg)

	err := persist.Edit(context.Background(), backend, testRef, func(store *runview.Store) error {
		_, err := store.Toggle(runview.NamespaceInjections, runview.IntID(1))
		return err
	}, persist.WithMetrics(metrics))

	require.ErrorIs(t, err, state.ErrETagMismatch)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ConflictsTotal))
	doc, _ := storedDocument(t, inner)
	assert.Equal(t, map[string]bool{"inj_2": true}, doc.Visibility)
}

func TestMigratorAsDecoderPreHook(t *testing.T) {
	migrator, err := persist.NewMigrator(persist.CurrentVersion, persist.Migrations()...)
	require.NoError(t, err)
	decoder := hydrate.NewDecoder(hydrate.WithPreHook[persist.Document](migrator.PreHook()))

	doc, err := decoder.DecodeBytes(hydrate.Context{Key: "runview"}, []byte(`{
		"version": 1,
		"tables": {"injections": {"sort_fields": [{"field": "name", "order": "asc"}], "columns": []}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, persist.CurrentVersion, doc.Version)
	table := doc.Tables["injections"]
	require.Len(t, table.SortFields, 1)
	assert.NotEmpty(t, table.SortFields[0].Key)
	assert.Nil(t, table.Columns)

	_, err = decoder.DecodeBytes(hydrate.Context{Key: "runview"}, []byte(`{"version": "two"}`))
	var hydrateErr *hydrate.Error
	require.ErrorAs(t, err, &hydrateErr)
	assert.Equal(t, hydrate.StagePreHook, hydrateErr.Stage)
	assert.ErrorIs(t, err, persist.ErrMalformedDocument)
}

func TestNewMigratorRejectsDuplicates(t *testing.T) {
	noop := func(map[string]any) error { return nil }
	_, err := persist.NewMigrator(2, persist.Migration{From: 0, Apply: noop}, persist.Migration{From: 0, Apply: noop})
	assert.Error(t, err)
	_, err = persist.NewMigrator(2, persist.Migration{From: 1})
	assert.Error(t, err)
}
