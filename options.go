package runview

import (
	"math/rand/v2"

	"github.com/goliatone/go-runview/pkg/activity"
	"github.com/rs/zerolog"
)

// Option configures a Store.
type Option func(*storeConfig)

type storeConfig struct {
	namespaces     []NamespaceSpec
	palette        Palette
	rng            *rand.Rand
	logger         zerolog.Logger
	emitter        *activity.Emitter
	activityHooks  activity.Hooks
	strict         bool
	defaultVisible int
	pageSize       int
	observers      []Observer
	state          *State
}

func applyOptions(opts []Option) storeConfig {
	cfg := storeConfig{
		logger:         zerolog.Nop(),
		defaultVisible: DefaultVisibleCount,
		pageSize:       DefaultPageSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if len(cfg.namespaces) == 0 {
		cfg.namespaces = DefaultNamespaces()
	}
	if len(cfg.palette) == 0 {
		cfg.palette = DefaultPalette
	}
	return cfg
}

// WithNamespaces replaces the registered namespaces.
func WithNamespaces(specs ...NamespaceSpec) Option {
	return func(cfg *storeConfig) {
		cfg.namespaces = append([]NamespaceSpec(nil), specs...)
	}
}

// WithPalette sets the assignable colors.
func WithPalette(palette Palette) Option {
	return func(cfg *storeConfig) {
		cfg.palette = append(Palette(nil), palette...)
	}
}

// WithRand sets the random source used by RandomizeColors.
func WithRand(rng *rand.Rand) Option {
	return func(cfg *storeConfig) {
		cfg.rng = rng
	}
}

// WithLogger attaches a zerolog logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *storeConfig) {
		cfg.logger = logger
	}
}

// WithActivity emits activity events for persisted mutations.
func WithActivity(emitter *activity.Emitter) Option {
	return func(cfg *storeConfig) {
		cfg.emitter = emitter
	}
}

// WithStrictValidation makes Patch reject settings that break the column and
// sort invariants instead of storing them as given.
func WithStrictValidation() Option {
	return func(cfg *storeConfig) {
		cfg.strict = true
	}
}

// WithDefaultVisibleCount changes how many items InitializeDefault shows.
func WithDefaultVisibleCount(n int) Option {
	return func(cfg *storeConfig) {
		if n >= 0 {
			cfg.defaultVisible = n
		}
	}
}

// WithPageSize sets the initial sidebar page size.
func WithPageSize(n int) Option {
	return func(cfg *storeConfig) {
		if n > 0 {
			cfg.pageSize = n
		}
	}
}

// WithObserver registers an observer at construction time.
func WithObserver(observer Observer) Option {
	return func(cfg *storeConfig) {
		if observer != nil {
			cfg.observers = append(cfg.observers, observer)
		}
	}
}

// WithState seeds the store with previously persisted state.
func WithState(state State) Option {
	return func(cfg *storeConfig) {
		clone := state.Clone()
		cfg.state = &clone
	}
}
