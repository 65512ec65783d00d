package runview

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Codec maps ItemKeys to and from their flat string form ("inj_42"). The string
// form is only used at the persistence boundary; in memory keys stay typed.
type Codec struct {
	mu       sync.RWMutex
	specs    map[Namespace]NamespaceSpec
	prefixes []string
	byPrefix map[string]Namespace
}

// NewCodec registers the supplied namespaces.
func NewCodec(specs ...NamespaceSpec) (*Codec, error) {
	c := &Codec{
		specs:    make(map[Namespace]NamespaceSpec, len(specs)),
		byPrefix: make(map[string]Namespace, len(specs)),
	}
	for _, spec := range specs {
		if err := c.Register(spec); err != nil {
			return nil, err
		}
	}
	return c, nil
}

var (
	defaultCodecOnce sync.Once
	defaultCodec     *Codec
)

// DefaultCodec returns the codec for DefaultNamespaces.
func DefaultCodec() *Codec {
	defaultCodecOnce.Do(func() {
		codec, err := NewCodec(DefaultNamespaces()...)
		if err != nil {
			panic(err)
		}
		defaultCodec = codec
	})
	return defaultCodec
}

// Register adds a namespace. Prefixes must be non-empty and no prefix may be a
// prefix of another, which keeps decoding unambiguous.
func (c *Codec) Register(spec NamespaceSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: name is required", ErrUnknownNamespace)
	}
	if spec.Prefix == "" {
		return fmt.Errorf("%w: %s has an empty prefix", ErrPrefixConflict, spec.Name)
	}
	if spec.IDKind != IDKindInt && spec.IDKind != IDKindString {
		return fmt.Errorf("%w: %s has no id kind", ErrInvalidNativeID, spec.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.specs[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNamespace, spec.Name)
	}
	for _, prefix := range c.prefixes {
		if strings.HasPrefix(prefix, spec.Prefix) || strings.HasPrefix(spec.Prefix, prefix) {
			return fmt.Errorf("%w: %q (%s) overlaps %q (%s)", ErrPrefixConflict, spec.Prefix, spec.Name, prefix, c.byPrefix[prefix])
		}
	}
	c.specs[spec.Name] = spec
	c.byPrefix[spec.Prefix] = spec.Name
	c.prefixes = append(c.prefixes, spec.Prefix)
	sort.Strings(c.prefixes)
	return nil
}

// Spec returns the registered spec for ns.
func (c *Codec) Spec(ns Namespace) (NamespaceSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	spec, ok := c.specs[ns]
	return spec, ok
}

// Namespaces lists registered namespaces sorted by name.
func (c *Codec) Namespaces() []Namespace {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Namespace, 0, len(c.specs))
	for ns := range c.specs {
		out = append(out, ns)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Check verifies that id is acceptable for ns.
func (c *Codec) Check(ns Namespace, id NativeID) error {
	spec, ok := c.Spec(ns)
	if !ok {
		return codecError("check", id.String(), ns, ErrUnknownNamespace)
	}
	return c.checkID(spec, id)
}

func (c *Codec) checkID(spec NamespaceSpec, id NativeID) error {
	if id.Kind() != spec.IDKind {
		return codecError("check", id.String(), spec.Name,
			fmt.Errorf("%w: want %s id, got %s", ErrInvalidNativeID, spec.IDKind, id.Kind()))
	}
	if id.Kind() == IDKindString {
		value := id.String()
		if value == "" || strings.ContainsAny(value, " \t\r\n") {
			return codecError("check", value, spec.Name, ErrInvalidNativeID)
		}
		c.mu.RLock()
		defer c.mu.RUnlock()
		for _, prefix := range c.prefixes {
			if strings.HasPrefix(value, prefix) {
				return codecError("check", value, spec.Name,
					fmt.Errorf("%w: id starts with namespace prefix %q", ErrInvalidNativeID, prefix))
			}
		}
	}
	return nil
}

// Encode returns prefix+id for ns.
func (c *Codec) Encode(ns Namespace, id NativeID) (string, error) {
	spec, ok := c.Spec(ns)
	if !ok {
		return "", codecError("encode", id.String(), ns, ErrUnknownNamespace)
	}
	if err := c.checkID(spec, id); err != nil {
		return "", err
	}
	return spec.Prefix + id.String(), nil
}

// EncodeKey is Encode for an ItemKey.
func (c *Codec) EncodeKey(key ItemKey) (string, error) {
	return c.Encode(key.Namespace, key.ID)
}

// Decode strips the registered prefix and parses the remainder into the
// namespace's native id type.
func (c *Codec) Decode(value string) (ItemKey, error) {
	c.mu.RLock()
	var (
		spec  NamespaceSpec
		found bool
	)
	for _, prefix := range c.prefixes {
		if strings.HasPrefix(value, prefix) {
			spec = c.specs[c.byPrefix[prefix]]
			found = true
			break
		}
	}
	c.mu.RUnlock()
	if !found {
		return ItemKey{}, codecError("decode", value, "", ErrUnknownNamespace)
	}

	rest := strings.TrimPrefix(value, spec.Prefix)
	switch spec.IDKind {
	case IDKindInt:
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || strconv.FormatInt(n, 10) != rest {
			return ItemKey{}, codecError("decode", value, spec.Name, ErrInvalidNativeID)
		}
		return ItemKey{Namespace: spec.Name, ID: IntID(n)}, nil
	default:
		id := StringID(rest)
		if err := c.checkID(spec, id); err != nil {
			return ItemKey{}, codecError("decode", value, spec.Name, err)
		}
		return ItemKey{Namespace: spec.Name, ID: id}, nil
	}
}

// EncodeMany encodes ids in order. The first failure aborts the batch.
func (c *Codec) EncodeMany(ns Namespace, ids []NativeID) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		encoded, err := c.Encode(ns, id)
		if err != nil {
			return nil, err
		}
		out = append(out, encoded)
	}
	return out, nil
}

// DecodeMany decodes values in order. The first failure aborts the batch.
func (c *Codec) DecodeMany(values []string) ([]ItemKey, error) {
	out := make([]ItemKey, 0, len(values))
	for _, value := range values {
		key, err := c.Decode(value)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, nil
}
