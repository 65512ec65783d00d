// Package hydrate turns raw persisted blobs into typed snapshots, running
// migration hooks on the untyped payload first.
package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Context identifies the blob being decoded.
type Context struct {
	Key    string
	Source string
}

// Stage names the step that failed.
type Stage string

const (
	StageParse    Stage = "parse"
	StagePreHook  Stage = "pre-hook"
	StageDecode   Stage = "decode"
	StagePostHook Stage = "post-hook"
)

// Error reports which stage rejected a blob.
type Error struct {
	Key   string
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hydrate: %s for key %q failed: %v", e.Stage, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNilPayload is returned when there is nothing to decode.
var ErrNilPayload = errors.New("hydrate: payload is nil")

// PreHook rewrites the untyped payload before decoding. Returning nil keeps
// the current payload.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook adjusts or validates the decoded value.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the default JSON decoding when provided.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts persisted payloads into T.
type Decoder[T any] struct {
	preHooks     []PreHook
	postHooks    []PostHook[T]
	configureDec []func(*json.Decoder)
	custom       CustomDecoder[T]
}

// WithPreHook applies hook prior to decoding. Hooks run in registration order.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithUseNumber enables json.Decoder.UseNumber during decoding.
func WithUseNumber[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.UseNumber()
		})
	}
}

// WithDisallowUnknownFields invokes json.Decoder.DisallowUnknownFields.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.DisallowUnknownFields()
		})
	}
}

// WithCustomDecoder replaces the default JSON decoding path.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// DecodeBytes parses raw as a JSON object and decodes it.
func (d *Decoder[T]) DecodeBytes(ctx Context, raw []byte) (T, error) {
	var zero T
	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return zero, &Error{Key: ctx.Key, Stage: StageParse, Err: err}
	}
	return d.Decode(ctx, payload)
}

// Decode runs the pre-hooks on a copy of payload, decodes the result into T
// and runs the post-hooks.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T

	if payload == nil {
		return zero, &Error{Key: ctx.Key, Stage: StageParse, Err: ErrNilPayload}
	}

	current, err := clonePayload(payload)
	if err != nil {
		return zero, &Error{Key: ctx.Key, Stage: StageParse, Err: err}
	}

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, &Error{Key: ctx.Key, Stage: StagePreHook, Err: err}
		}
		if next != nil {
			current = next
		}
	}

	var result T
	if d.custom != nil {
		result, err = d.custom(ctx, current)
		if err != nil {
			return zero, &Error{Key: ctx.Key, Stage: StageDecode, Err: err}
		}
	} else {
		buffer, err := json.Marshal(current)
		if err != nil {
			return zero, &Error{Key: ctx.Key, Stage: StageDecode, Err: err}
		}
		decoder := json.NewDecoder(bytes.NewReader(buffer))
		for _, configure := range d.configureDec {
			if configure != nil {
				configure(decoder)
			}
		}
		if err := decoder.Decode(&result); err != nil {
			return zero, &Error{Key: ctx.Key, Stage: StageDecode, Err: err}
		}
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, &Error{Key: ctx.Key, Stage: StagePostHook, Err: err}
		}
	}

	return result, nil
}

func clonePayload(payload map[string]any) (map[string]any, error) {
	buffer, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	dec := json.NewDecoder(bytes.NewReader(buffer))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
