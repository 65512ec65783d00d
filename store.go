package runview

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/goliatone/go-runview/pkg/activity"
	"github.com/rs/zerolog"
)

// Store is the shared state behind every view of the injections and
// executions collections. Create one per dashboard session and pass it to each
// view explicitly.
type Store struct {
	mu             sync.RWMutex
	codec          *Codec
	specs          map[Namespace]NamespaceSpec
	table          *VisibilityTable
	tables         map[Namespace]SharedTableSettings
	views          map[Namespace]*viewState
	panelCollapsed bool
	pageSize       int
	lastNamespace  Namespace
	revision       uint64

	obsMu        sync.RWMutex
	observers    map[int]Observer
	nextObserver int

	log            zerolog.Logger
	emitter        *activity.Emitter
	strict         bool
	defaultVisible int
}

// viewState is UI-only state that is never persisted.
type viewState struct {
	selection      []NativeID
	searchOverride string
	loaded         []NativeID
}

// New builds a store with built-in defaults for every registered namespace,
// then applies any State supplied through WithState.
func New(opts ...Option) (*Store, error) {
	cfg := applyOptions(opts)

	codec, err := NewCodec(cfg.namespaces...)
	if err != nil {
		return nil, err
	}

	s := &Store{
		codec:          codec,
		specs:          make(map[Namespace]NamespaceSpec, len(cfg.namespaces)),
		table:          NewVisibilityTable(cfg.palette, cfg.rng),
		tables:         make(map[Namespace]SharedTableSettings, len(cfg.namespaces)),
		views:          make(map[Namespace]*viewState, len(cfg.namespaces)),
		pageSize:       cfg.pageSize,
		observers:      map[int]Observer{},
		log:            cfg.logger,
		emitter:        newActivityEmitter(cfg),
		strict:         cfg.strict,
		defaultVisible: cfg.defaultVisible,
	}
	for _, spec := range cfg.namespaces {
		s.specs[spec.Name] = spec
		s.tables[spec.Name] = s.defaultsFor(spec)
		s.views[spec.Name] = &viewState{}
	}
	for _, observer := range cfg.observers {
		s.Subscribe(observer)
	}
	if cfg.state != nil {
		s.restore(*cfg.state)
	}
	return s, nil
}

func (s *Store) defaultsFor(spec NamespaceSpec) SharedTableSettings {
	if spec.Defaults == nil {
		return SharedTableSettings{PageSize: DefaultPageSize, CurrentPage: 1, SortFields: []SortField{}, Columns: []ColumnConfig{}}
	}
	return spec.Defaults().Clone()
}

func (s *Store) restore(state State) {
	visible := make(map[ItemKey]bool, len(state.Visibility))
	for key, v := range state.Visibility {
		if err := s.codec.Check(key.Namespace, key.ID); err != nil {
			s.log.Warn().Err(err).Str("key", key.String()).Msg("dropping persisted visibility entry")
			continue
		}
		visible[key] = v
	}
	colors := make(map[ItemKey]Color, len(state.Colors))
	for key, c := range state.Colors {
		if err := s.codec.Check(key.Namespace, key.ID); err != nil {
			s.log.Warn().Err(err).Str("key", key.String()).Msg("dropping persisted color entry")
			continue
		}
		colors[key] = c
	}
	s.table.restore(visible, colors)

	for ns, settings := range state.Tables {
		if _, ok := s.specs[ns]; !ok {
			s.log.Warn().Str("namespace", string(ns)).Msg("dropping persisted settings for unknown namespace")
			continue
		}
		s.tables[ns] = settings.Clone()
	}
	s.panelCollapsed = state.PanelCollapsed
	if state.PageSize > 0 {
		s.pageSize = state.PageSize
	}
	if _, ok := s.specs[state.LastNamespace]; ok {
		s.lastNamespace = state.LastNamespace
	}
}

// Subscribe registers observer and returns a function that removes it.
func (s *Store) Subscribe(observer Observer) func() {
	if observer == nil {
		return func() {}
	}
	s.obsMu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = observer
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

func (s *Store) notify(change Change) {
	s.obsMu.RLock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.observers[id])
	}
	s.obsMu.RUnlock()

	for _, observer := range observers {
		observer.StoreChanged(s, change)
	}
}

// bump must be called with s.mu held.
func (s *Store) bump(kind ChangeKind, ns Namespace, persisted bool) Change {
	s.revision++
	return Change{Kind: kind, Namespace: ns, Persisted: persisted, Revision: s.revision}
}

func (s *Store) checkNamespace(ns Namespace) error {
	if _, ok := s.specs[ns]; !ok {
		return codecError("lookup", string(ns), ns, ErrUnknownNamespace)
	}
	return nil
}

func (s *Store) checkIDs(ns Namespace, ids []NativeID) error {
	if err := s.checkNamespace(ns); err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.codec.Check(ns, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) encodeIDs(ns Namespace, ids []NativeID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if encoded, err := s.codec.Encode(ns, id); err == nil {
			out = append(out, encoded)
		}
	}
	return out
}

// Initialize sets default visibility for a freshly fetched item list: the
// first defaultVisible ids are shown, the rest hidden, and palette colors are
// assigned by position. It is a no-op returning false when ns already has
// visibility entries. A done ctx makes it a no-op that returns ctx.Err().
func (s *Store) Initialize(ctx context.Context, ns Namespace, ids []NativeID, defaultVisible int) (bool, error) {
	if err := contextErr(ctx); err != nil {
		return false, err
	}
	if err := s.checkIDs(ns, ids); err != nil {
		return false, err
	}

	s.mu.Lock()
	applied := s.table.Initialize(ns, ids, defaultVisible)
	var change Change
	if applied {
		change = s.bump(ChangeInitialize, ns, true)
	}
	s.mu.Unlock()

	if !applied {
		s.log.Debug().Str("namespace", string(ns)).Int("items", len(ids)).Msg("initialize skipped: namespace already initialized")
		return false, nil
	}
	s.log.Debug().Str("namespace", string(ns)).Int("items", len(ids)).Int("visible", min(defaultVisible, len(ids))).Msg("visibility initialized")
	s.notify(change)
	s.emit(ctx, activity.BuildVisibilityChangedEvent(activity.ViewEventInput{
		Namespace: string(ns),
		Action:    "initialize",
		ItemIDs:   s.encodeIDs(ns, ids),
	}))
	return true, nil
}

// InitializeDefault is Initialize with the store's default visible count.
func (s *Store) InitializeDefault(ctx context.Context, ns Namespace, ids []NativeID) (bool, error) {
	return s.Initialize(ctx, ns, ids, s.defaultVisible)
}

// SetVisible sets visibility for every id unconditionally.
func (s *Store) SetVisible(ctx context.Context, ns Namespace, ids []NativeID, visible bool) error {
	if err := contextErr(ctx); err != nil {
		return err
	}
	if err := s.checkIDs(ns, ids); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	s.table.SetVisible(ns, ids, visible)
	change := s.bump(ChangeVisibility, ns, true)
	s.mu.Unlock()

	action := "hide"
	if visible {
		action = "show"
	}
	s.log.Debug().Str("namespace", string(ns)).Str("action", action).Int("items", len(ids)).Msg("visibility set")
	s.notify(change)
	s.emit(ctx, activity.BuildVisibilityChangedEvent(activity.ViewEventInput{
		Namespace: string(ns),
		Action:    action,
		ItemIDs:   s.encodeIDs(ns, ids),
	}))
	return nil
}

// SyncVisible makes ids the exact visible set of ns by diffing against the
// current set and applying the difference with SetVisible.
func (s *Store) SyncVisible(ctx context.Context, ns Namespace, ids []NativeID) (show, hide []NativeID, err error) {
	if err := contextErr(ctx); err != nil {
		return nil, nil, err
	}
	if err := s.checkIDs(ns, ids); err != nil {
		return nil, nil, err
	}
	show, hide = DiffVisibility(s.VisibleIDs(ns), ids)
	if err := s.SetVisible(ctx, ns, show, true); err != nil {
		return nil, nil, err
	}
	if err := s.SetVisible(ctx, ns, hide, false); err != nil {
		return nil, nil, err
	}
	return show, hide, nil
}

// Toggle flips visibility for one item and returns the new value. An item
// that was never initialized counts as visible before the flip.
func (s *Store) Toggle(ns Namespace, id NativeID) (bool, error) {
	if err := s.checkIDs(ns, []NativeID{id}); err != nil {
		return false, err
	}

	s.mu.Lock()
	visible := s.table.Toggle(ns, id)
	change := s.bump(ChangeVisibility, ns, true)
	s.mu.Unlock()

	s.notify(change)
	s.emit(context.Background(), activity.BuildVisibilityChangedEvent(activity.ViewEventInput{
		Namespace: string(ns),
		Action:    "toggle",
		ItemIDs:   s.encodeIDs(ns, []NativeID{id}),
		Metadata:  map[string]any{"visible": visible},
	}))
	return visible, nil
}

// SetColor overrides one item's color.
func (s *Store) SetColor(ns Namespace, id NativeID, color Color) error {
	if err := s.checkIDs(ns, []NativeID{id}); err != nil {
		return err
	}
	if color == "" {
		return fmt.Errorf("runview: color for %s is empty", KeyOf(ns, id))
	}

	s.mu.Lock()
	s.table.SetColor(ns, id, color)
	change := s.bump(ChangeColors, ns, true)
	s.mu.Unlock()

	s.notify(change)
	s.emit(context.Background(), activity.BuildColorsChangedEvent(activity.ViewEventInput{
		Namespace: string(ns),
		Action:    "set",
		ItemIDs:   s.encodeIDs(ns, []NativeID{id}),
		Metadata:  map[string]any{"color": string(color)},
	}))
	return nil
}

// RandomizeColors permutes the colors assigned to ns.
func (s *Store) RandomizeColors(ns Namespace) error {
	if err := s.checkNamespace(ns); err != nil {
		return err
	}

	s.mu.Lock()
	s.table.RandomizeColors(ns)
	change := s.bump(ChangeColors, ns, true)
	s.mu.Unlock()

	s.notify(change)
	s.emit(context.Background(), activity.BuildColorsChangedEvent(activity.ViewEventInput{
		Namespace: string(ns),
		Action:    "randomize",
	}))
	return nil
}

// Prune drops visibility and color entries of ns whose id is not in live.
// The store never prunes on its own.
func (s *Store) Prune(ns Namespace, live []NativeID) (int, error) {
	if err := s.checkIDs(ns, live); err != nil {
		return 0, err
	}

	s.mu.Lock()
	removed := s.table.Prune(ns, live)
	var change Change
	if removed > 0 {
		change = s.bump(ChangePrune, ns, true)
	}
	s.mu.Unlock()

	if removed == 0 {
		return 0, nil
	}
	s.log.Debug().Str("namespace", string(ns)).Int("removed", removed).Msg("visibility pruned")
	s.notify(change)
	s.emit(context.Background(), activity.BuildVisibilityChangedEvent(activity.ViewEventInput{
		Namespace: string(ns),
		Action:    "prune",
		Metadata:  map[string]any{"removed": removed},
	}))
	return removed, nil
}

// Patch shallow-merges patch into the settings of ns. Every table mutator
// goes through here.
func (s *Store) Patch(ns Namespace, patch SettingsPatch) error {
	return s.Update(ns, func(SharedTableSettings) SettingsPatch { return patch })
}

// Update builds a patch from the current settings of ns and applies it under
// one lock, so read-then-patch helpers never lose a concurrent write. build
// must not call back into the store.
func (s *Store) Update(ns Namespace, build func(current SharedTableSettings) SettingsPatch) error {
	if err := s.checkNamespace(ns); err != nil {
		return err
	}

	s.mu.Lock()
	current := s.tables[ns]
	patch := build(current.Clone())
	if patch.IsEmpty() {
		s.mu.Unlock()
		return nil
	}
	next := patch.Apply(current)
	if s.strict {
		if err := ValidateSettings(ns, next); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.tables[ns] = next
	change := s.bump(ChangeSettings, ns, true)
	s.mu.Unlock()

	fields := patchFields(patch)
	s.log.Debug().Str("namespace", string(ns)).Strs("fields", fields).Msg("settings patched")
	s.notify(change)
	s.emit(context.Background(), activity.BuildSettingsPatchedEvent(activity.ViewEventInput{
		Namespace: string(ns),
		Action:    "patch",
		Fields:    fields,
	}))
	return nil
}

// ResetToDefaults restores the built-in settings of ns.
func (s *Store) ResetToDefaults(ns Namespace) error {
	if err := s.checkNamespace(ns); err != nil {
		return err
	}

	s.mu.Lock()
	s.tables[ns] = s.defaultsFor(s.specs[ns])
	change := s.bump(ChangeReset, ns, true)
	s.mu.Unlock()

	s.log.Debug().Str("namespace", string(ns)).Msg("settings reset to defaults")
	s.notify(change)
	s.emit(context.Background(), activity.BuildSettingsResetEvent(activity.ViewEventInput{
		Namespace: string(ns),
		Action:    "reset",
	}))
	return nil
}

// SetPanelCollapsed stores the sidebar panel state.
func (s *Store) SetPanelCollapsed(collapsed bool) {
	s.mu.Lock()
	if s.panelCollapsed == collapsed {
		s.mu.Unlock()
		return
	}
	s.panelCollapsed = collapsed
	change := s.bump(ChangePanel, "", true)
	s.mu.Unlock()
	s.notify(change)
}

// SetPageSize stores the sidebar list page size.
func (s *Store) SetPageSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("runview: page size must be positive, got %d", n)
	}
	s.mu.Lock()
	s.pageSize = n
	change := s.bump(ChangePageSize, "", true)
	s.mu.Unlock()
	s.notify(change)
	return nil
}

// SetLastNamespace records the namespace the user looked at last.
func (s *Store) SetLastNamespace(ns Namespace) error {
	if err := s.checkNamespace(ns); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastNamespace = ns
	change := s.bump(ChangeLastNamespace, ns, true)
	s.mu.Unlock()
	s.notify(change)
	return nil
}

// SetSelection records the currently selected items. Not persisted.
func (s *Store) SetSelection(ns Namespace, ids []NativeID) error {
	if err := s.checkIDs(ns, ids); err != nil {
		return err
	}
	s.mu.Lock()
	s.views[ns].selection = slices.Clone(ids)
	change := s.bump(ChangeSelection, ns, false)
	s.mu.Unlock()
	s.notify(change)
	return nil
}

// SetSearchOverride sets a transient search that shadows the persisted
// search text. An empty string clears it. Not persisted.
func (s *Store) SetSearchOverride(ns Namespace, text string) error {
	if err := s.checkNamespace(ns); err != nil {
		return err
	}
	s.mu.Lock()
	s.views[ns].searchOverride = text
	change := s.bump(ChangeSearchOverride, ns, false)
	s.mu.Unlock()
	s.notify(change)
	return nil
}

// SetLoadedItems records the ids of the currently loaded page, in display
// order. Not persisted.
func (s *Store) SetLoadedItems(ns Namespace, ids []NativeID) error {
	if err := s.checkIDs(ns, ids); err != nil {
		return err
	}
	s.mu.Lock()
	s.views[ns].loaded = slices.Clone(ids)
	change := s.bump(ChangeLoadedItems, ns, false)
	s.mu.Unlock()
	s.notify(change)
	return nil
}

func patchFields(p SettingsPatch) []string {
	var fields []string
	if p.SortFields != nil || p.ClearSort {
		fields = append(fields, "sort_fields")
	}
	if p.GroupBy != nil {
		fields = append(fields, "group_by")
	}
	if p.Columns != nil {
		fields = append(fields, "columns")
	}
	if p.PageSize != nil {
		fields = append(fields, "page_size")
	}
	if p.CurrentPage != nil {
		fields = append(fields, "current_page")
	}
	if p.SearchText != nil {
		fields = append(fields, "search_text")
	}
	if p.Display != nil {
		fields = append(fields, "display")
	}
	return fields
}

func contextErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
