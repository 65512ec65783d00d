package rowset

import (
	"strings"
	"time"

	runview "github.com/goliatone/go-runview"
	"golang.org/x/text/cases"
)

// PredicatePrefix marks a search query as a predicate expression.
const PredicatePrefix = "="

// IsPredicate reports whether query is a predicate expression.
func IsPredicate(query string) bool {
	return strings.HasPrefix(strings.TrimSpace(query), PredicatePrefix)
}

// Search keeps the rows where text occurs, ignoring case, in any visible
// filterable column. With no such column every top-level field is searched.
// Blank text keeps every row.
func Search(rows []Row, text string, columns []runview.ColumnConfig) []Row {
	text = strings.TrimSpace(text)
	if text == "" {
		return append([]Row(nil), rows...)
	}

	fold := cases.Fold()
	needle := fold.String(text)
	var paths []string
	for _, col := range runview.VisibleColumns(columns) {
		if col.Filterable && col.DataIndex != "" {
			paths = append(paths, col.DataIndex)
		}
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if rowContains(row, paths, needle, fold) {
			out = append(out, row)
		}
	}
	return out
}

func rowContains(row Row, paths []string, needle string, fold cases.Caser) bool {
	if len(paths) == 0 {
		for _, value := range row {
			if strings.Contains(fold.String(stringify(value)), needle) {
				return true
			}
		}
		return false
	}
	for _, path := range paths {
		value, ok := Lookup(row, path)
		if !ok {
			continue
		}
		if strings.Contains(fold.String(stringify(value)), needle) {
			return true
		}
	}
	return false
}

// Filter applies query to rows. A query starting with "=" is compiled once
// and evaluated per row; it must yield a bool. Any other query is a plain
// Search. The first evaluation error aborts the filter.
func (e *Engine) Filter(rows []Row, query string, columns []runview.ColumnConfig) ([]Row, error) {
	if !IsPredicate(query) {
		return Search(rows, query, columns), nil
	}
	expression := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(query), PredicatePrefix))

	start := time.Now()
	out, err := e.filterPredicate(rows, expression)
	e.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   e.engine,
		Expr:     expression,
		Rows:     len(rows),
		Matched:  len(out),
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) filterPredicate(rows []Row, expression string) ([]Row, error) {
	program, err := e.evaluator.Compile(expression)
	if err != nil {
		return nil, wrapEvaluationError(e.engine, expression, -1, err)
	}

	now := e.now()
	out := make([]Row, 0, len(rows))
	for i, row := range rows {
		result, err := program.Evaluate(RowContext{
			Row:   row,
			Index: i,
			Now:   &now,
			Vars:  e.vars,
		})
		if err != nil {
			return nil, wrapEvaluationError(e.engine, expression, i, err)
		}
		keep, ok := result.(bool)
		if !ok {
			return nil, wrapEvaluationError(e.engine, expression, i, ErrNotPredicate)
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}
