package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	runview "github.com/goliatone/go-runview"
	"github.com/goliatone/go-runview/internal/hydrate"
	"github.com/goliatone/go-runview/pkg/state"
)

// Edit applies fn to the persisted state as one conditional read, modify,
// write. Unlike Open it refuses to touch a blob it cannot read, and it fails
// with state.ErrETagMismatch when another writer saved in between. Tools use
// it where losing a concurrent edit is worse than retrying.
func Edit(ctx context.Context, backend Backend, ref state.Ref, fn func(*runview.Store) error, opts ...Option) error {
	if backend == nil {
		return fmt.Errorf("persist: backend is required")
	}
	if fn == nil {
		return fmt.Errorf("persist: edit function is required")
	}
	if ref.Key == "" {
		ref.Key = DefaultRef
	}

	cfg := applyOptions(opts)
	migrator, err := NewMigrator(CurrentVersion, cfg.migrations...)
	if err != nil {
		return err
	}
	defaults, err := runview.New(cfg.storeOpts...)
	if err != nil {
		return err
	}
	migrator.observe = func(from int) { cfg.metrics.migrated(strconv.Itoa(from)) }
	log := cfg.logger.With().Str("component", "runview.persist").Str("ref", ref.Key).Logger()

	start := time.Now()
	_, meta, err := state.Mutate(ctx, backend, ref, state.Meta{}, func(raw *json.RawMessage) error {
		storeOpts := slices.Clone(cfg.storeOpts)
		if len(*raw) > 0 {
			doc, _, err := decodeDocument(ref.Key, *raw, migrator)
			if err != nil {
				return err
			}
			seed, err := Decode(defaults, doc)
			if err != nil {
				log.Warn().Err(err).Msg("dropped persisted entries")
			}
			storeOpts = append(storeOpts, runview.WithState(seed))
		}

		store, err := runview.New(storeOpts...)
		if err != nil {
			return err
		}
		if err := fn(store); err != nil {
			return err
		}

		doc, err := Encode(store.Codec(), store.Snapshot())
		if err != nil {
			log.Warn().Err(err).Msg("skipped unencodable entries")
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("persist: marshal document: %w", err)
		}
		*raw = out
		return nil
	})
	switch {
	case errors.Is(err, state.ErrETagMismatch):
		cfg.metrics.conflict()
		return err
	case err != nil:
		return err
	}
	cfg.metrics.saved(time.Since(start))
	log.Debug().Str("etag", meta.ETag).Msg("view state edited")
	return nil
}

// decodeDocument migrates raw to the current schema and decodes it. It
// returns the version raw was written at.
func decodeDocument(key string, raw []byte, migrator *Migrator) (Document, int, error) {
	var from int
	decoder := hydrate.NewDecoder(
		hydrate.WithPreHook[Document](func(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
			v, err := migrator.Migrate(payload)
			from = v
			if err != nil {
				return nil, err
			}
			return payload, nil
		}),
	)
	doc, err := decoder.DecodeBytes(hydrate.Context{Key: key, Source: "backend"}, raw)
	return doc, from, err
}
