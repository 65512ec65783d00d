package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// ETag hashes the JCS canonical form of raw JSON.
func ETag(raw []byte) (string, error) {
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("state: canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("%x", sum), nil
}

// ETagOf marshals v to JSON and hashes its canonical form.
func ETagOf(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("state: marshal snapshot: %w", err)
	}
	return ETag(raw)
}
