package rowset

import (
	"fmt"
	"sync"
	"time"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry wires a FunctionRegistry into the expr evaluator.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// exprEvaluator runs predicates with github.com/expr-lang/expr. Like the CEL
// evaluator it compiles once per distinct row shape.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) Evaluate(ctx RowContext, expression string) (any, error) {
	program, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return program.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, wrapEvaluatorError(EngineExpr, fmt.Errorf("expression must not be empty"))
	}
	return &exprProgram{
		evaluator:  e,
		expression: expression,
		programs:   map[string]*exprvm.Program{},
	}, nil
}

// loadOrCompile declares the row's fields with their value types so they
// shadow expr builtins of the same name, such as duration or now, and still
// type-check in comparisons and arithmetic. Nil fields stay undeclared and
// check as unknown.
func (e *exprEvaluator) loadOrCompile(expression string, row Row) (*exprvm.Program, error) {
	key := EngineExpr + ":" + rowSignature(row) + ":" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}

	declared := map[string]any{
		"now":  time.Time{},
		"row":  map[string]any{},
		"vars": map[string]any{},
	}
	for field, value := range row {
		if _, reserved := declared[field]; reserved || value == nil {
			continue
		}
		declared[field] = plain(value)
	}
	if e.registry != nil {
		declared["call"] = e.call
	}
	options := []exprlang.Option{
		exprlang.Env(declared),
		exprlang.AllowUndefinedVariables(),
	}
	if e.registry != nil {
		for _, name := range e.registry.Names() {
			options = append(options, exprlang.Function(name, e.registryFunction(name)))
		}
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *exprEvaluator) call(name string, arguments ...any) (any, error) {
	return e.registry.Call(name, arguments...)
}

func (e *exprEvaluator) registryFunction(name string) func(...any) (any, error) {
	return func(arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}
}

type exprProgram struct {
	evaluator  *exprEvaluator
	expression string

	mu       sync.Mutex
	programs map[string]*exprvm.Program
}

func (p *exprProgram) Evaluate(ctx RowContext) (any, error) {
	ctx = ctx.withDefaults()
	signature := rowSignature(ctx.Row)

	p.mu.Lock()
	program, ok := p.programs[signature]
	if !ok {
		var err error
		program, err = p.evaluator.loadOrCompile(p.expression, ctx.Row)
		if err != nil {
			p.mu.Unlock()
			return nil, wrapEvaluationError(EngineExpr, p.expression, ctx.Index, err)
		}
		p.programs[signature] = program
	}
	p.mu.Unlock()

	env := ctx.bindings()
	if p.evaluator.registry != nil {
		env["call"] = p.evaluator.call
	}
	result, err := exprlang.Run(program, env)
	if err != nil {
		return nil, wrapEvaluationError(EngineExpr, p.expression, ctx.Index, err)
	}
	return result, nil
}
