// Package querysql compiles catalog queries to parameterized SQLite SQL.
//
// Every query carries an ORDER BY with a deterministic tiebreaker and every
// value is bound as a parameter, never interpolated.
package querysql

import (
	"fmt"
	"strings"
)

// SQLCompiler compiles catalog queries against the store schema. Data items
// are aliased i and drill rows d.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts q to SQL and its parameters.
func (c *SQLCompiler) Compile(q Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	switch query := q.(type) {
	case DistinctValues:
		return c.compileDistinct(query)
	case *DistinctValues:
		return c.compileDistinct(*query)
	case MatchItems:
		return c.compileMatch(query)
	case *MatchItems:
		return c.compileMatch(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileDistinct(q DistinctValues) (string, []any, error) {
	if q.Path == "" {
		return "", nil, fmt.Errorf("distinct values: empty path")
	}
	where, params, err := c.compileWhere(q.Filter)
	if err != nil {
		return "", nil, err
	}
	sql := "SELECT DISTINCT v.value FROM data_items i" +
		" JOIN data_item_drills v ON v.item_id = i.id AND v.path = ?" +
		where +
		" ORDER BY v.value COLLATE BINARY ASC"
	return sql, append([]any{q.Path}, params...), nil
}

func (c *SQLCompiler) compileMatch(q MatchItems) (string, []any, error) {
	where, params, err := c.compileWhere(q.Filter)
	if err != nil {
		return "", nil, err
	}
	sql := "SELECT i.id FROM data_items i" +
		where +
		" ORDER BY i.seq ASC, i.id COLLATE BINARY ASC"
	return sql, params, nil
}

func (c *SQLCompiler) compileWhere(p Predicate) (string, []any, error) {
	if p == nil {
		return "", nil, nil
	}
	sql, params, err := c.compilePredicate(p)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return " WHERE " + sql, params, nil
}

func (c *SQLCompiler) compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case InCategory:
		return "i.category = ?", []any{pred.Category}, nil
	case DrillEquals:
		return "EXISTS (SELECT 1 FROM data_item_drills d" +
			" WHERE d.item_id = i.id AND d.path = ? AND d.value = ?)",
			[]any{pred.Path, pred.Value}, nil
	case And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		parts := make([]string, 0, len(pred.Predicates))
		var params []any
		for i, sub := range pred.Predicates {
			sql, subParams, err := c.compilePredicate(sub)
			if err != nil {
				return "", nil, fmt.Errorf("and[%d]: %w", i, err)
			}
			parts = append(parts, sql)
			params = append(params, subParams...)
		}
		if len(parts) == 1 {
			return parts[0], params, nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}
