package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 20 * time.Millisecond

// FileStore keeps one JSON document per Ref under Root. Writes go to a temp
// file in the same directory and are renamed into place; every load and save
// holds a lock file next to the document so separate processes (the CLI and a
// running dashboard) never interleave.
type FileStore[T any] struct {
	Root string
	Perm os.FileMode
	now  func() time.Time
}

type fileEnvelope struct {
	Meta     Meta            `json:"meta"`
	Snapshot json.RawMessage `json:"snapshot"`
}

func NewFileStore[T any](root string) *FileStore[T] {
	return &FileStore[T]{Root: root, Perm: 0o600, now: time.Now}
}

// Path returns the document path for ref.
func (s *FileStore[T]) Path(ref Ref) (string, error) {
	id, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	if s.Root == "" {
		return "", fmt.Errorf("state: file store root is required")
	}
	return filepath.Join(s.Root, filepath.FromSlash(id)+".json"), nil
}

func (s *FileStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	path, err := s.Path(ref)
	if err != nil {
		return zero, Meta{}, false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: create directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := acquire(ctx, lock.TryRLockContext); err != nil {
		return zero, Meta{}, false, err
	}
	defer lock.Unlock()

	env, ok, err := readEnvelope(path)
	if err != nil || !ok {
		return zero, Meta{}, false, err
	}
	var snapshot T
	if err := json.Unmarshal(env.Snapshot, &snapshot); err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: decode snapshot %s: %w", path, err)
	}
	return snapshot, env.Meta, true, nil
}

func (s *FileStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	path, err := s.Path(ref)
	if err != nil {
		return Meta{}, err
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return Meta{}, fmt.Errorf("state: marshal snapshot: %w", err)
	}
	tag, err := ETag(raw)
	if err != nil {
		return Meta{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Meta{}, fmt.Errorf("state: create directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := acquire(ctx, lock.TryLockContext); err != nil {
		return Meta{}, err
	}
	defer lock.Unlock()

	if meta.ETag != "" {
		current, ok, err := readEnvelope(path)
		if err != nil {
			return Meta{}, err
		}
		if !ok || current.Meta.ETag != meta.ETag {
			return Meta{}, fmt.Errorf("%w: expected %q for %s", ErrETagMismatch, meta.ETag, path)
		}
	}

	saved := stampMeta(meta, tag, s.now())
	data, err := json.MarshalIndent(fileEnvelope{Meta: saved, Snapshot: raw}, "", "  ")
	if err != nil {
		return Meta{}, fmt.Errorf("state: marshal envelope: %w", err)
	}
	perm := s.Perm
	if perm == 0 {
		perm = 0o600
	}
	if err := atomicWriteFile(path, data, perm); err != nil {
		return Meta{}, err
	}
	return cloneMeta(saved), nil
}

// Delete removes the document at ref. A missing document is not an error.
func (s *FileStore[T]) Delete(ctx context.Context, ref Ref) error {
	path, err := s.Path(ref)
	if err != nil {
		return err
	}
	lock := flock.New(path + ".lock")
	if err := acquire(ctx, lock.TryLockContext); err != nil {
		return err
	}
	defer lock.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("state: remove %s: %w", path, err)
	}
	return nil
}

func acquire(ctx context.Context, try func(context.Context, time.Duration) (bool, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	locked, err := try(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("state: acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("state: acquire lock: %w", context.DeadlineExceeded)
	}
	return nil
}

func readEnvelope(path string) (fileEnvelope, bool, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileEnvelope{}, false, nil
	}
	if err != nil {
		return fileEnvelope{}, false, fmt.Errorf("state: read %s: %w", path, err)
	}
	var env fileEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fileEnvelope{}, false, fmt.Errorf("state: decode %s: %w", path, err)
	}
	return env, true, nil
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("state: create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("state: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("state: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("state: chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("state: rename into place: %w", err)
	}
	committed = true
	return nil
}
