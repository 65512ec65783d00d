package rowset

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"
)

// RowContext carries the inputs of one predicate evaluation.
type RowContext struct {
	Row   Row
	Index int
	Now   *time.Time
	Vars  map[string]any
}

func (ctx RowContext) withDefaults() RowContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Row == nil {
		ctx.Row = Row{}
	}
	if ctx.Vars == nil {
		ctx.Vars = map[string]any{}
	}
	return ctx
}

func (ctx RowContext) timestamp() time.Time {
	return *ctx.withDefaults().Now
}

// bindings are the variables every engine exposes: the row's own fields at
// the top level plus row, now and vars.
func (ctx RowContext) bindings() map[string]any {
	env := make(map[string]any, len(ctx.Row)+3)
	for key, value := range ctx.Row {
		env[key] = plain(value)
	}
	env["row"] = plain(ctx.Row)
	env["now"] = ctx.timestamp()
	env["vars"] = ctx.Vars
	return env
}

// rowSignature identifies the variables of a row and their value types for
// engines that declare variables at compile time.
func rowSignature(row Row) string {
	keys := make([]string, 0, len(row))
	for key := range row {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(key)
		b.WriteByte(':')
		b.WriteString(fmt.Sprintf("%T", row[key]))
	}
	return b.String()
}

// plain converts Row values nested anywhere in v to map[string]any so every
// engine sees ordinary maps.
func plain(v any) any {
	switch value := v.(type) {
	case Row:
		out := make(map[string]any, len(value))
		for key, inner := range value {
			out[key] = plain(inner)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(value))
		for key, inner := range value {
			out[key] = plain(inner)
		}
		return out
	default:
		return v
	}
}

// Evaluator runs expressions against a row.
type Evaluator interface {
	Evaluate(ctx RowContext, expression string) (any, error)
	Compile(expression string) (Program, error)
}

// Program is a compiled, reusable expression.
type Program interface {
	Evaluate(ctx RowContext) (any, error)
}

// ProgramCache stores compiled programs keyed by expression.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MapCache is an unbounded ProgramCache safe for concurrent use.
type MapCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

// NewMapCache returns an empty MapCache.
func NewMapCache() *MapCache {
	return &MapCache{programs: map[string]any{}}
}

func (c *MapCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.programs[key]
	return value, ok
}

func (c *MapCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.programs == nil {
		c.programs = map[string]any{}
	}
	c.programs[key] = value
}

// Len reports how many programs are cached.
func (c *MapCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// Keys lists the cached expressions.
func (c *MapCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.programs))
	for key := range maps.Keys(c.programs) {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
