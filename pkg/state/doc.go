// Package state defines the durable storage contract for persisted view state
// plus two implementations: an in-memory store for tests and a file store that
// writes one JSON document per Ref.
//
// Responsibilities:
//   - Store[T] only loads and saves a single snapshot for a single Ref.
//   - Meta.ETag is the sha256 of the JCS canonical form of the snapshot, so two
//     writers that produce the same document agree on the tag regardless of
//     key order or whitespace.
//   - Save with a non-empty Meta.ETag is conditional: it fails with
//     ErrETagMismatch when the stored document has moved on.
//
// Schema evolution, merging onto defaults and write coalescing live in the
// persist package; this package never inspects the snapshot.
package state
