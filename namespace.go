package runview

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Namespace identifies one of the collections whose rows share visibility and
// table settings across views.
type Namespace string

const (
	NamespaceInjections Namespace = "injections"
	NamespaceExecutions Namespace = "executions"
)

// String implements fmt.Stringer.
func (n Namespace) String() string {
	return string(n)
}

// IDKind describes the native identifier type a namespace accepts.
type IDKind int

const (
	IDKindUnknown IDKind = iota
	IDKindInt
	IDKindString
)

func (k IDKind) String() string {
	switch k {
	case IDKindInt:
		return "int"
	case IDKindString:
		return "string"
	default:
		return "unknown"
	}
}

// NativeID is the identifier a collection row carries in the REST payloads.
// It holds either an integer or a string and is comparable, so it can be used
// inside map keys.
type NativeID struct {
	kind IDKind
	num  int64
	str  string
}

// IntID wraps a numeric identifier.
func IntID(v int64) NativeID {
	return NativeID{kind: IDKindInt, num: v}
}

// StringID wraps a textual identifier.
func StringID(v string) NativeID {
	return NativeID{kind: IDKindString, str: v}
}

// IntIDs wraps a batch of numeric identifiers, preserving order.
func IntIDs(values ...int64) []NativeID {
	out := make([]NativeID, len(values))
	for i, v := range values {
		out[i] = IntID(v)
	}
	return out
}

// Kind reports which variant the identifier holds.
func (id NativeID) Kind() IDKind {
	return id.kind
}

// IsZero reports whether the identifier was never set.
func (id NativeID) IsZero() bool {
	return id.kind == IDKindUnknown
}

// Int returns the numeric value when the identifier is numeric.
func (id NativeID) Int() (int64, bool) {
	if id.kind != IDKindInt {
		return 0, false
	}
	return id.num, true
}

// String returns the canonical textual form used by the codec.
func (id NativeID) String() string {
	switch id.kind {
	case IDKindInt:
		return strconv.FormatInt(id.num, 10)
	case IDKindString:
		return id.str
	default:
		return ""
	}
}

// Less orders identifiers: numeric ids before string ids, then by value.
func (id NativeID) Less(other NativeID) bool {
	if id.kind != other.kind {
		return id.kind < other.kind
	}
	if id.kind == IDKindInt {
		return id.num < other.num
	}
	return id.str < other.str
}

// MarshalJSON renders numeric ids as JSON numbers and string ids as strings.
func (id NativeID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case IDKindInt:
		return []byte(strconv.FormatInt(id.num, 10)), nil
	case IDKindString:
		return json.Marshal(id.str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts JSON numbers, strings and null.
func (id *NativeID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = NativeID{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("runview: native id %s: %w", data, err)
	}
	*id = IntID(n)
	return nil
}

// ItemKey is the namespace-qualified identity of a row. It is the key of the
// visibility and color maps.
type ItemKey struct {
	Namespace Namespace
	ID        NativeID
}

// KeyOf builds an ItemKey.
func KeyOf(ns Namespace, id NativeID) ItemKey {
	return ItemKey{Namespace: ns, ID: id}
}

func (k ItemKey) String() string {
	return fmt.Sprintf("%s/%s", k.Namespace, k.ID)
}

// NamespaceSpec registers a namespace with the codec and the store.
type NamespaceSpec struct {
	Name   Namespace
	Label  string
	Prefix string
	IDKind IDKind
	// Defaults returns a fresh copy of the built-in table settings.
	Defaults func() SharedTableSettings
}

// DefaultNamespaces returns the built-in injections and executions specs.
func DefaultNamespaces() []NamespaceSpec {
	return []NamespaceSpec{
		{
			Name:     NamespaceInjections,
			Label:    "Injections",
			Prefix:   "inj_",
			IDKind:   IDKindInt,
			Defaults: DefaultInjectionSettings,
		},
		{
			Name:     NamespaceExecutions,
			Label:    "Executions",
			Prefix:   "exec_",
			IDKind:   IDKindInt,
			Defaults: DefaultExecutionSettings,
		},
	}
}
