package activity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Event describes one store mutation. ObjectType names what changed
// (runview.visibility, runview.colors, runview.settings) and ObjectID is the
// namespace. Actor, user and tenant ids are plain strings; the users sink
// parses them.
type Event struct {
	Verb       string
	ActorID    string
	UserID     string
	TenantID   string
	ObjectType string
	ObjectID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ItemIDs returns the encoded item keys the mutation touched, if any.
func (e Event) ItemIDs() []string {
	ids, _ := e.Metadata["item_ids"].([]string)
	return ids
}

// Action returns the store action behind a visibility or color event, such
// as toggle, initialize or prune.
func (e Event) Action() string {
	action, _ := e.Metadata["action"].(string)
	return action
}

// ActivityHook receives normalized activity events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []ActivityHook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify forwards the event to all hooks, returning a joined error if any fail.
// Events missing a verb, object type or object id are dropped.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}

	normalized := NormalizeEvent(event)
	if normalized.Verb == "" || normalized.ObjectType == "" || normalized.ObjectID == "" {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OnlyVerbs forwards to hook only the events carrying one of verbs. The
// dashboard uses it to send layout resets to the activity feed without every
// visibility toggle.
func OnlyVerbs(hook ActivityHook, verbs ...string) ActivityHook {
	allowed := make(map[string]struct{}, len(verbs))
	for _, verb := range verbs {
		allowed[strings.TrimSpace(verb)] = struct{}{}
	}
	return HookFunc(func(ctx context.Context, event Event) error {
		if hook == nil {
			return nil
		}
		if _, ok := allowed[strings.TrimSpace(event.Verb)]; !ok {
			return nil
		}
		return hook.Notify(ctx, event)
	})
}

// NormalizeEvent trims whitespace, clones metadata and stamps OccurredAt.
func NormalizeEvent(event Event) Event {
	normalized := event
	normalized.Verb = strings.TrimSpace(event.Verb)
	normalized.ActorID = strings.TrimSpace(event.ActorID)
	normalized.UserID = strings.TrimSpace(event.UserID)
	normalized.TenantID = strings.TrimSpace(event.TenantID)
	normalized.ObjectType = strings.TrimSpace(event.ObjectType)
	normalized.ObjectID = strings.TrimSpace(event.ObjectID)
	normalized.Channel = strings.TrimSpace(event.Channel)
	normalized.Metadata = cloneMap(event.Metadata)
	if normalized.OccurredAt.IsZero() {
		normalized.OccurredAt = time.Now()
	}
	return normalized
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
