// Package rowset applies a namespace's table settings to the rows a page
// fetched: search or predicate filtering, multi-field sorting, grouping and
// pagination.
//
// Plain search text matches case-insensitively against visible filterable
// columns. Text starting with "=" is a predicate expression run per row by
// the configured engine: expr (default), cel, or js when built with the
// js_eval tag. Each row's fields are top-level variables; row, now and vars
// are also bound.
package rowset

import (
	"fmt"
	"maps"
	"time"

	runview "github.com/goliatone/go-runview"
)

// Engine names accepted by WithEngine.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	engine    string
	evaluator Evaluator
	cache     ProgramCache
	functions *FunctionRegistry
	logger    EvaluatorLogger
	now       func() time.Time
	vars      map[string]any
}

// WithEngine selects the predicate engine by name.
func WithEngine(name string) Option {
	return func(cfg *engineConfig) {
		cfg.engine = name
	}
}

// WithEvaluator installs a custom evaluator, overriding WithEngine.
func WithEvaluator(evaluator Evaluator) Option {
	return func(cfg *engineConfig) {
		cfg.evaluator = evaluator
	}
}

// WithProgramCache shares compiled programs across filter runs.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry exposes registry's functions to predicates.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *engineConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for predicates.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *engineConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// WithEvaluatorLogger records every predicate filter run.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *engineConfig) {
		cfg.logger = logger
	}
}

// WithClock sets the time bound to now in predicates.
func WithClock(now func() time.Time) Option {
	return func(cfg *engineConfig) {
		cfg.now = now
	}
}

// WithVars binds extra values under vars in predicates.
func WithVars(vars map[string]any) Option {
	return func(cfg *engineConfig) {
		cfg.vars = maps.Clone(vars)
	}
}

// Engine filters, sorts, groups and paginates rows.
type Engine struct {
	engine    string
	evaluator Evaluator
	logger    EvaluatorLogger
	now       func() time.Time
	vars      map[string]any
}

// New builds an Engine. Without options predicates run on expr with the
// DefaultFunctions registry.
func New(opts ...Option) (*Engine, error) {
	cfg := engineConfig{engine: EngineExpr}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.functions == nil {
		cfg.functions = DefaultFunctions()
	}
	if cfg.logger == nil {
		cfg.logger = noopEvaluatorLogger{}
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.vars == nil {
		cfg.vars = map[string]any{}
	}

	evaluator := cfg.evaluator
	name := cfg.engine
	if evaluator == nil {
		var err error
		evaluator, err = newEvaluator(cfg)
		if err != nil {
			return nil, err
		}
	} else {
		name = "custom"
	}

	return &Engine{
		engine:    name,
		evaluator: evaluator,
		logger:    cfg.logger,
		now:       cfg.now,
		vars:      cfg.vars,
	}, nil
}

func newEvaluator(cfg engineConfig) (Evaluator, error) {
	switch cfg.engine {
	case EngineExpr, "":
		return NewExprEvaluator(ExprWithProgramCache(cfg.cache), ExprWithFunctionRegistry(cfg.functions)), nil
	case EngineCEL:
		return NewCELEvaluator(CELWithProgramCache(cfg.cache), CELWithFunctionRegistry(cfg.functions)), nil
	case EngineJS:
		if !jsEvaluatorAvailable() {
			return nil, fmt.Errorf("%w: %s requires the js_eval build tag", ErrEngineUnavailable, EngineJS)
		}
		return NewJSEvaluator(JSWithProgramCache(cfg.cache), JSWithFunctionRegistry(cfg.functions)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrEngineUnavailable, cfg.engine)
	}
}

// EngineName reports the engine predicates run on.
func (e *Engine) EngineName() string {
	return e.engine
}

// Result is one rendered page of a table.
type Result struct {
	// Rows is the current page in display order.
	Rows []Row
	// Groups partitions Rows when the settings group by a field.
	Groups     []Group
	Pagination Pagination
}

// Apply renders rows with settings using the persisted search text.
func (e *Engine) Apply(rows []Row, settings runview.SharedTableSettings) (Result, error) {
	return e.ApplyQuery(rows, settings, settings.SearchText)
}

// ApplyQuery renders rows with settings, filtering by query instead of the
// persisted search text. Rows are filtered, sorted, grouped, then paginated;
// grouping keeps each group contiguous across pages.
func (e *Engine) ApplyQuery(rows []Row, settings runview.SharedTableSettings, query string) (Result, error) {
	filtered, err := e.Filter(rows, query, settings.Columns)
	if err != nil {
		return Result{}, err
	}
	sorted := Sort(filtered, settings.SortFields, settings.Columns)

	if settings.GroupBy != "" {
		groups := GroupBy(sorted, settings.GroupBy, settings.Columns)
		sorted = sorted[:0:0]
		for _, group := range groups {
			sorted = append(sorted, group.Rows...)
		}
	}

	page, pagination := Paginate(sorted, settings.CurrentPage, settings.PageSize)
	return Result{
		Rows:       page,
		Groups:     GroupBy(page, settings.GroupBy, settings.Columns),
		Pagination: pagination,
	}, nil
}

// View renders rows for ns from store: its table settings and its effective
// search, so a transient search override wins over the persisted text.
func (e *Engine) View(store *runview.Store, ns runview.Namespace, rows []Row) (Result, error) {
	settings, ok := store.Settings(ns)
	if !ok {
		return Result{}, fmt.Errorf("rowset: %w: %q", runview.ErrUnknownNamespace, ns)
	}
	return e.ApplyQuery(rows, settings, store.EffectiveSearch(ns))
}
