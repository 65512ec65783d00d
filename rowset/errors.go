package rowset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEngineUnavailable is returned for an unknown engine name or for js
	// without the js_eval build tag.
	ErrEngineUnavailable = errors.New("rowset: expression engine unavailable")
	// ErrNotPredicate is returned when a filter expression yields a non-bool.
	ErrNotPredicate = errors.New("rowset: expression did not return a bool")
)

// EvaluationError carries the engine, expression and row index of a failed
// evaluation. Row is -1 when the failure is not tied to a row.
type EvaluationError struct {
	Engine string
	Expr   string
	Row    int
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Row < 0 {
		return fmt.Sprintf("rowset: %s evaluator %s: %v", e.Engine, describeExpression(e.Expr), e.Err)
	}
	return fmt.Sprintf("rowset: %s evaluator %s row=%d: %v", e.Engine, describeExpression(e.Expr), e.Row, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "rowset:") {
		return err
	}
	return fmt.Errorf("rowset: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr string, row int, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Row < 0 {
			evalErr.Row = row
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Row:    row,
		Err:    err,
	}
}
