package runview

import (
	"errors"
	"testing"
)

func TestCodecEncodeDecodeScenario(t *testing.T) {
	codec := DefaultCodec()

	encoded, err := codec.Encode(NamespaceInjections, IntID(42))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if encoded != "inj_42" {
		t.Fatalf("expected inj_42, got %q", encoded)
	}

	key, err := codec.Decode("inj_42")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if key != (ItemKey{Namespace: NamespaceInjections, ID: IntID(42)}) {
		t.Fatalf("unexpected key %+v", key)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codec := DefaultCodec()
	ids := []int64{0, 1, 7, 42, 1000, 9223372036854775807}
	for _, ns := range []Namespace{NamespaceInjections, NamespaceExecutions} {
		for _, raw := range ids {
			id := IntID(raw)
			encoded, err := codec.Encode(ns, id)
			if err != nil {
				t.Fatalf("encode %s/%d: %v", ns, raw, err)
			}
			key, err := codec.Decode(encoded)
			if err != nil {
				t.Fatalf("decode %q: %v", encoded, err)
			}
			if key != KeyOf(ns, id) {
				t.Fatalf("round trip mismatch for %s/%d: %+v", ns, raw, key)
			}
		}
	}
}

func TestCodecNoCrossNamespaceCollision(t *testing.T) {
	codec := DefaultCodec()
	seen := map[string]ItemKey{}
	for _, ns := range []Namespace{NamespaceInjections, NamespaceExecutions} {
		for raw := int64(0); raw < 200; raw++ {
			encoded, err := codec.Encode(ns, IntID(raw))
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if prior, ok := seen[encoded]; ok {
				t.Fatalf("%q produced by both %v and %s/%d", encoded, prior, ns, raw)
			}
			seen[encoded] = KeyOf(ns, IntID(raw))
		}
	}
}

func TestCodecDecodeErrors(t *testing.T) {
	codec := DefaultCodec()
	cases := []struct {
		input string
		want  error
	}{
		{"run_1", ErrUnknownNamespace},
		{"", ErrUnknownNamespace},
		{"inj_", ErrInvalidNativeID},
		{"inj_abc", ErrInvalidNativeID},
		{"exec_007", ErrInvalidNativeID},
		{"exec_+7", ErrInvalidNativeID},
	}
	for _, tc := range cases {
		_, err := codec.Decode(tc.input)
		if !errors.Is(err, tc.want) {
			t.Fatalf("decode %q: expected %v, got %v", tc.input, tc.want, err)
		}
		var codecErr *CodecError
		if !errors.As(err, &codecErr) || codecErr.Op != "decode" {
			t.Fatalf("decode %q: expected *CodecError, got %T", tc.input, err)
		}
	}
}

func TestCodecEncodeRejectsWrongKind(t *testing.T) {
	codec := DefaultCodec()
	if _, err := codec.Encode(NamespaceExecutions, StringID("abc")); !errors.Is(err, ErrInvalidNativeID) {
		t.Fatalf("expected ErrInvalidNativeID, got %v", err)
	}
	if _, err := codec.Encode("runs", IntID(1)); !errors.Is(err, ErrUnknownNamespace) {
		t.Fatalf("expected ErrUnknownNamespace, got %v", err)
	}
}

func TestCodecRegisterRejectsOverlappingPrefix(t *testing.T) {
	_, err := NewCodec(
		NamespaceSpec{Name: "runs", Prefix: "run_", IDKind: IDKindInt},
		NamespaceSpec{Name: "runsets", Prefix: "run_set_", IDKind: IDKindInt},
	)
	if !errors.Is(err, ErrPrefixConflict) {
		t.Fatalf("expected ErrPrefixConflict, got %v", err)
	}

	_, err = NewCodec(
		NamespaceSpec{Name: "runs", Prefix: "run_", IDKind: IDKindInt},
		NamespaceSpec{Name: "runs", Prefix: "r_", IDKind: IDKindInt},
	)
	if !errors.Is(err, ErrDuplicateNamespace) {
		t.Fatalf("expected ErrDuplicateNamespace, got %v", err)
	}
}

func TestCodecStringNamespace(t *testing.T) {
	codec, err := NewCodec(
		NamespaceSpec{Name: "datasets", Prefix: "ds_", IDKind: IDKindString},
		NamespaceSpec{Name: "injections", Prefix: "inj_", IDKind: IDKindInt},
	)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	encoded, err := codec.Encode("datasets", StringID("train-a"))
	if err != nil || encoded != "ds_train-a" {
		t.Fatalf("expected ds_train-a, got %q err=%v", encoded, err)
	}
	key, err := codec.Decode(encoded)
	if err != nil || key.ID != StringID("train-a") {
		t.Fatalf("unexpected decode %+v err=%v", key, err)
	}

	if _, err := codec.Encode("datasets", StringID("inj_5")); !errors.Is(err, ErrInvalidNativeID) {
		t.Fatalf("expected prefixed string id to be rejected, got %v", err)
	}
	if _, err := codec.Encode("datasets", StringID("has space")); !errors.Is(err, ErrInvalidNativeID) {
		t.Fatalf("expected whitespace id to be rejected, got %v", err)
	}
}

func TestCodecBatchAbortsOnFirstError(t *testing.T) {
	codec := DefaultCodec()
	values, err := codec.EncodeMany(NamespaceExecutions, IntIDs(1, 2, 3))
	if err != nil {
		t.Fatalf("encode many: %v", err)
	}
	if len(values) != 3 || values[2] != "exec_3" {
		t.Fatalf("unexpected batch %v", values)
	}

	keys, err := codec.DecodeMany([]string{"exec_1", "bogus", "exec_3"})
	if err == nil || keys != nil {
		t.Fatalf("expected batch decode to abort, got keys=%v err=%v", keys, err)
	}
}

func TestNativeIDJSON(t *testing.T) {
	raw, err := IntID(12).MarshalJSON()
	if err != nil || string(raw) != "12" {
		t.Fatalf("unexpected int json %s err=%v", raw, err)
	}
	var id NativeID
	if err := id.UnmarshalJSON([]byte(`"abc"`)); err != nil || id != StringID("abc") {
		t.Fatalf("unexpected string decode %+v err=%v", id, err)
	}
	if err := id.UnmarshalJSON([]byte(`null`)); err != nil || !id.IsZero() {
		t.Fatalf("expected zero id after null, got %+v err=%v", id, err)
	}
}
