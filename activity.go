package runview

import (
	"context"

	"github.com/goliatone/go-runview/pkg/activity"
)

// WithActivityHooks emits activity events to hooks on the default channel.
// Hooks are cloned and nil entries dropped. WithActivity takes precedence
// when both are given.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *storeConfig) {
		cfg.activityHooks = normalized
	}
}

// ActivityEnabled reports whether mutations emit activity events.
func (s *Store) ActivityEnabled() bool {
	return s != nil && s.emitter.Enabled()
}

func newActivityEmitter(cfg storeConfig) *activity.Emitter {
	if cfg.emitter != nil {
		return cfg.emitter
	}
	if len(cfg.activityHooks) == 0 {
		return nil
	}
	return activity.NewEmitter(cfg.activityHooks, activity.Config{Enabled: true})
}

func (s *Store) emit(ctx context.Context, event activity.Event) {
	if !s.emitter.Enabled() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("verb", event.Verb).Msg("activity hook failed")
	}
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
