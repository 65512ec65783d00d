package rowset

import (
	"fmt"
	"sort"
	"sync"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Row fields are
// declared as dyn variables, so a program is compiled per distinct row shape.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RowContext, expression string) (any, error) {
	program, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return program.Evaluate(ctx)
}

func (e *celEvaluator) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, wrapEvaluatorError(EngineCEL, fmt.Errorf("expression must not be empty"))
	}
	return &celProgram{
		evaluator:  e,
		expression: expression,
		programs:   map[string]celgo.Program{},
	}, nil
}

func (e *celEvaluator) loadOrCompile(expression string, row Row) (celgo.Program, error) {
	key := EngineCEL + ":" + rowSignature(row) + ":" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(row)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *celEvaluator) buildEnv(row Row) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("row", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("vars", celgo.MapType(celgo.StringType, celgo.DynType)),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call", e.overloads("call", true)...))
		for _, name := range e.registry.Names() {
			opts = append(opts, celgo.Function(name, e.overloads(name, false)...))
		}
	}
	keys := make([]string, 0, len(row))
	for key := range row {
		if key == "now" || key == "row" || key == "vars" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

// maxCELArgs bounds the arities registered for custom functions; CEL has no
// variadic overloads.
const maxCELArgs = 4

func (e *celEvaluator) overloads(name string, named bool) []celgo.FunctionOpt {
	out := make([]celgo.FunctionOpt, 0, maxCELArgs+1)
	for arity := 0; arity <= maxCELArgs; arity++ {
		args := make([]*celgo.Type, 0, arity+1)
		if named {
			args = append(args, celgo.StringType)
		}
		for i := 0; i < arity; i++ {
			args = append(args, celgo.DynType)
		}
		if len(args) == 0 {
			continue
		}
		id := fmt.Sprintf("%s_dyn_%d", name, arity)
		out = append(out, celgo.Overload(id, args, celgo.DynType, celgo.FunctionBinding(e.binding(name, named))))
	}
	return out
}

func (e *celEvaluator) binding(name string, named bool) func(values ...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		target := name
		if named {
			if len(values) == 0 {
				return types.NewErr("rowset: call requires function name")
			}
			fn, ok := values[0].Value().(string)
			if !ok {
				return types.NewErr("rowset: call name must be string")
			}
			target, values = fn, values[1:]
		}
		args := make([]any, 0, len(values))
		for _, val := range values {
			args = append(args, val.Value())
		}
		result, err := e.registry.Call(target, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}

// celProgram compiles lazily per row shape; rows of one fetch share a
// shape, so a filter run usually compiles once.
type celProgram struct {
	evaluator  *celEvaluator
	expression string

	mu       sync.Mutex
	programs map[string]celgo.Program
}

func (p *celProgram) Evaluate(ctx RowContext) (any, error) {
	ctx = ctx.withDefaults()
	signature := rowSignature(ctx.Row)

	p.mu.Lock()
	program, ok := p.programs[signature]
	if !ok {
		var err error
		program, err = p.evaluator.loadOrCompile(p.expression, ctx.Row)
		if err != nil {
			p.mu.Unlock()
			return nil, wrapEvaluationError(EngineCEL, p.expression, ctx.Index, err)
		}
		p.programs[signature] = program
	}
	p.mu.Unlock()

	out, _, err := program.Eval(ctx.bindings())
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, p.expression, ctx.Index, err)
	}
	return out.Value(), nil
}
