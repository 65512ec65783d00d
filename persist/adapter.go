// Package persist loads a runview store from a state backend and keeps the
// backend up to date as the store changes.
//
// Loading migrates the stored blob to the current schema, merges it onto the
// built-in defaults and seeds a new store. Saving happens on a single writer
// goroutine: every persisted mutation marks the adapter dirty and the writer
// saves the latest snapshot, so bursts of mutations coalesce and no mutation
// ever waits on storage.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	runview "github.com/goliatone/go-runview"
	"github.com/goliatone/go-runview/pkg/state"
	"github.com/rs/zerolog"
)

var (
	// ErrClosed is returned by Flush and SaveNow after Close.
	ErrClosed = errors.New("persist: adapter closed")
	// ErrReadOnly is returned by SaveNow when the stored blob was written by
	// a newer schema and must not be replaced.
	ErrReadOnly = errors.New("persist: adapter is read-only")
)

// Load results reported by Adapter.LoadResult and the loads metric.
const (
	LoadHit      = "hit"
	LoadMiss     = "miss"
	LoadFallback = "fallback"
)

// Backend is the blob store the adapter reads and writes.
type Backend = state.Store[json.RawMessage]

// Adapter owns a store seeded from a backend and mirrors its durable state
// back to that backend.
type Adapter struct {
	backend  Backend
	ref      state.Ref
	store    *runview.Store
	log      zerolog.Logger
	metrics  *Metrics
	onError  func(error)
	debounce time.Duration

	loadResult    string
	loadedVersion int
	readOnly      bool
	unsubscribe   func()

	mu       sync.Mutex
	etag     string
	dirty    uint64
	written  uint64
	lastErr  error
	progress chan struct{}
	closed   bool

	saveMu    sync.Mutex
	wake      chan struct{}
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// Open loads ref from backend and returns an adapter whose Store reflects the
// persisted state. Unreadable or unmigratable blobs fall back to defaults.
// Open only fails when ctx is done or the store options are invalid.
func Open(ctx context.Context, backend Backend, ref state.Ref, opts ...Option) (*Adapter, error) {
	if backend == nil {
		return nil, fmt.Errorf("persist: backend is required")
	}
	if ref.Key == "" {
		ref.Key = DefaultRef
	}
	if _, err := ref.Identifier(); err != nil {
		return nil, err
	}

	cfg := applyOptions(opts)
	migrator, err := NewMigrator(CurrentVersion, cfg.migrations...)
	if err != nil {
		return nil, err
	}

	defaults, err := runview.New(cfg.storeOpts...)
	if err != nil {
		return nil, err
	}

	a := &Adapter{
		backend:  backend,
		ref:      ref,
		log:      cfg.logger.With().Str("component", "runview.persist").Str("ref", ref.Key).Logger(),
		metrics:  cfg.metrics,
		onError:  cfg.onError,
		debounce: cfg.debounce,
		progress: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	migrator.observe = func(from int) { a.metrics.migrated(strconv.Itoa(from)) }

	seed, err := a.load(ctx, defaults, migrator)
	if err != nil {
		return nil, err
	}

	storeOpts := slices.Clone(cfg.storeOpts)
	if seed != nil {
		storeOpts = append(storeOpts, runview.WithState(*seed))
	}
	store, err := runview.New(storeOpts...)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.unsubscribe = store.Subscribe(a)

	go a.run()
	return a, nil
}

func (a *Adapter) load(ctx context.Context, defaults *runview.Store, migrator *Migrator) (*runview.State, error) {
	raw, meta, ok, err := a.backend.Load(ctx, a.ref)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		a.fallback(err, "load failed")
		return nil, nil
	}
	if !ok {
		a.loadResult = LoadMiss
		a.metrics.load(LoadMiss)
		a.log.Debug().Msg("no persisted view state")
		return nil, nil
	}

	doc, from, err := decodeDocument(a.ref.Key, raw, migrator)
	a.loadedVersion = from
	if errors.Is(err, ErrNewerVersion) {
		a.readOnly = true
		a.fallback(err, "persisted view state has a newer schema, not saving")
		return nil, nil
	}
	if err != nil {
		a.fallback(err, "persisted view state unreadable")
		return nil, nil
	}

	seed, err := Decode(defaults, doc)
	if err != nil {
		a.log.Warn().Err(err).Msg("dropped persisted entries")
	}

	a.etag = meta.ETag
	a.loadResult = LoadHit
	a.metrics.load(LoadHit)
	a.log.Debug().
		Int("from_version", a.loadedVersion).
		Int("visibility", len(seed.Visibility)).
		Str("etag", meta.ETag).
		Msg("persisted view state loaded")
	return &seed, nil
}

func (a *Adapter) fallback(err error, msg string) {
	a.loadResult = LoadFallback
	a.metrics.load(LoadFallback)
	a.log.Warn().Err(err).Msg(msg + ", using defaults")
}

// Store returns the adapter's store.
func (a *Adapter) Store() *runview.Store {
	return a.store
}

// Ref returns the backend ref the adapter writes to.
func (a *Adapter) Ref() state.Ref {
	return a.ref
}

// LoadResult reports whether Open found, missed or discarded persisted state.
func (a *Adapter) LoadResult() string {
	return a.loadResult
}

// LoadedVersion is the schema version of the blob Open read.
func (a *Adapter) LoadedVersion() int {
	return a.loadedVersion
}

// ReadOnly reports whether the stored blob came from a newer schema. A
// read-only adapter never writes; store mutations stay in memory.
func (a *Adapter) ReadOnly() bool {
	return a.readOnly
}

// ETag is the tag of the last document loaded or written.
func (a *Adapter) ETag() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.etag
}

// StoreChanged implements runview.Observer. It never blocks.
func (a *Adapter) StoreChanged(_ *runview.Store, change runview.Change) {
	if !change.Persisted || a.readOnly {
		return
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if change.Revision > a.dirty {
		a.dirty = change.Revision
	}
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *Adapter) run() {
	defer close(a.stopped)
	for {
		select {
		case <-a.wake:
		case <-a.quit:
			_ = a.write(context.Background(), false)
			return
		}
		if a.debounce > 0 {
			timer := time.NewTimer(a.debounce)
			select {
			case <-timer.C:
			case <-a.quit:
				timer.Stop()
				_ = a.write(context.Background(), false)
				return
			}
		}
		_ = a.write(context.Background(), false)
	}
}

// write saves the current snapshot when something changed since the last
// write, or unconditionally when force is set.
func (a *Adapter) write(ctx context.Context, force bool) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	target, etag := a.dirty, a.etag
	if target <= a.written && !force {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	newTag, err := a.save(ctx, a.store.Snapshot(), etag)

	a.mu.Lock()
	if target > a.written {
		a.written = target
	}
	a.lastErr = err
	if err == nil {
		a.etag = newTag
	}
	close(a.progress)
	a.progress = make(chan struct{})
	a.mu.Unlock()
	return err
}

func (a *Adapter) save(ctx context.Context, snapshot runview.State, etag string) (string, error) {
	doc, err := Encode(a.store.Codec(), snapshot)
	if err != nil {
		a.log.Warn().Err(err).Msg("skipped unencodable entries")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", a.saveFailed(fmt.Errorf("persist: marshal document: %w", err))
	}

	start := time.Now()
	meta, err := a.backend.Save(ctx, a.ref, raw, state.Meta{ETag: etag})
	if errors.Is(err, state.ErrETagMismatch) {
		a.metrics.conflict()
		a.log.Warn().Err(err).Msg("persisted view state changed by another writer, overwriting")
		meta, err = a.backend.Save(ctx, a.ref, raw, state.Meta{})
	}
	if err != nil {
		return "", a.saveFailed(fmt.Errorf("persist: save %q: %w", a.ref.Key, err))
	}
	a.metrics.saved(time.Since(start))
	a.log.Debug().Str("etag", meta.ETag).Int("bytes", len(raw)).Msg("view state saved")
	return meta.ETag, nil
}

func (a *Adapter) saveFailed(err error) error {
	a.metrics.saveFailed()
	a.log.Error().Err(err).Msg("view state save failed")
	if a.onError != nil {
		a.onError(err)
	}
	return err
}

// Flush waits until every persisted mutation made before the call has been
// written and returns the error of the covering write, if any.
func (a *Adapter) Flush(ctx context.Context) error {
	a.mu.Lock()
	target := a.dirty
	for a.written < target {
		ch := a.progress
		a.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		case <-a.stopped:
			a.mu.Lock()
			if a.written < target {
				a.mu.Unlock()
				return ErrClosed
			}
			a.mu.Unlock()
		}
		a.mu.Lock()
	}
	err := a.lastErr
	a.mu.Unlock()
	return err
}

// SaveNow writes the current snapshot synchronously even when nothing
// changed. The CLI uses it to rewrite migrated blobs at the current version.
func (a *Adapter) SaveNow(ctx context.Context) error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if a.readOnly {
		return ErrReadOnly
	}
	return a.write(ctx, true)
}

// Close stops observing the store, writes anything pending and stops the
// writer. It returns the error of the final write.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		if a.unsubscribe != nil {
			a.unsubscribe()
		}
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()
		close(a.quit)
		<-a.stopped
	})
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}
