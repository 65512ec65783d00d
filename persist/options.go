package persist

import (
	"time"

	runview "github.com/goliatone/go-runview"
	"github.com/rs/zerolog"
)

// DefaultRef is where the dashboard keeps its view state.
const DefaultRef = "runview"

// Option configures an Adapter.
type Option func(*config)

type config struct {
	storeOpts  []runview.Option
	logger     zerolog.Logger
	metrics    *Metrics
	onError    func(error)
	debounce   time.Duration
	migrations []Migration
}

func applyOptions(opts []Option) config {
	cfg := config{
		logger:     zerolog.Nop(),
		migrations: Migrations(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithStoreOptions forwards options to runview.New.
func WithStoreOptions(opts ...runview.Option) Option {
	return func(cfg *config) {
		cfg.storeOpts = append(cfg.storeOpts, opts...)
	}
}

// WithLogger attaches a zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithMetrics records load and save counters.
func WithMetrics(metrics *Metrics) Option {
	return func(cfg *config) {
		cfg.metrics = metrics
	}
}

// WithErrorHandler is called from the writer goroutine after each failed
// write. It must not block.
func WithErrorHandler(fn func(error)) Option {
	return func(cfg *config) {
		cfg.onError = fn
	}
}

// WithDebounce delays each write by d so bursts of mutations coalesce into
// one save.
func WithDebounce(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.debounce = d
		}
	}
}

// WithMigrations replaces the built-in migration chain.
func WithMigrations(migrations ...Migration) Option {
	return func(cfg *config) {
		cfg.migrations = append([]Migration(nil), migrations...)
	}
}
