package state

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	// ErrETagMismatch is returned by conditional saves against a stale tag.
	ErrETagMismatch = errors.New("state: etag mismatch")
	// ErrInvalidRef is returned for refs that cannot form a storage key.
	ErrInvalidRef = errors.New("state: invalid ref")
)

var refPart = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Ref identifies one persisted document. Profile optionally separates
// documents of different users or browsers sharing one backend.
type Ref struct {
	Key     string
	Profile string
}

// Identifier returns the deterministic storage key: "key" or "profile/key".
func (r Ref) Identifier() (string, error) {
	if !refPart.MatchString(r.Key) {
		return "", fmt.Errorf("%w: key %q", ErrInvalidRef, r.Key)
	}
	if r.Profile == "" {
		return r.Key, nil
	}
	if !refPart.MatchString(r.Profile) {
		return "", fmt.Errorf("%w: profile %q", ErrInvalidRef, r.Profile)
	}
	return r.Profile + "/" + r.Key, nil
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves one snapshot per Ref.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Mutator edits a loaded snapshot in place.
type Mutator[T any] func(*T) error

// Mutate loads the snapshot at ref, applies fn and saves it back conditionally
// on the loaded tag. A missing document starts from the zero value. When
// meta.ETag is set it must match the stored tag.
func Mutate[T any](ctx context.Context, store Store[T], ref Ref, meta Meta, fn Mutator[T]) (T, Meta, error) {
	var zero T
	if store == nil {
		return zero, Meta{}, fmt.Errorf("state: store is required")
	}
	if fn == nil {
		return zero, Meta{}, fmt.Errorf("state: mutator is required")
	}

	snapshot, loadedMeta, ok, err := store.Load(ctx, ref)
	if err != nil {
		return zero, Meta{}, fmt.Errorf("state: load %q: %w", ref.Key, err)
	}
	if !ok {
		snapshot = zero
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return zero, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(&snapshot); err != nil {
		return zero, loadedMeta, err
	}

	saveMeta := mergeMeta(loadedMeta, meta)
	saveMeta.ETag = loadedMeta.ETag
	savedMeta, err := store.Save(ctx, ref, snapshot, saveMeta)
	if err != nil {
		return zero, loadedMeta, fmt.Errorf("state: save %q: %w", ref.Key, err)
	}
	return snapshot, savedMeta, nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
