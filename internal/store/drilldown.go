package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/calcsync/internal/ir"
	"github.com/roach88/calcsync/internal/querysql"
	"github.com/roach88/calcsync/internal/remote"
)

// Drilldown narrows category by selection. Next is the first drill path the
// selection leaves open, Choices its distinct values among matching data
// items, and Resolved the selection extended through every following path
// that has exactly one value left.
func (s *Store) Drilldown(ctx context.Context, category string, selection []remote.Pair) (remote.DrillResult, error) {
	drills, err := s.categoryDrills(ctx, s.db, category)
	if err != nil {
		return remote.DrillResult{}, err
	}

	given := make(map[string]string, len(selection))
	for _, p := range selection {
		if !slices.Contains(drills, p.Path) {
			return remote.DrillResult{}, remote.Unavailablef("category %s has no drill path %q", category, p.Path)
		}
		if _, dup := given[p.Path]; dup {
			return remote.DrillResult{}, remote.Unavailablef("drill path %q selected twice", p.Path)
		}
		given[p.Path] = p.Value
	}

	res := remote.DrillResult{Choices: []string{}}
	res.Next = firstOpen(drills, given)
	if res.Next != "" {
		res.Choices, err = s.distinctValues(ctx, category, ordered(drills, given), res.Next)
		if err != nil {
			return remote.DrillResult{}, err
		}
	}

	next, choices := res.Next, res.Choices
	for next != "" && len(choices) == 1 {
		given[next] = choices[0]
		next = firstOpen(drills, given)
		if next == "" {
			break
		}
		choices, err = s.distinctValues(ctx, category, ordered(drills, given), next)
		if err != nil {
			return remote.DrillResult{}, err
		}
	}
	res.Resolved = ordered(drills, given)
	return res, nil
}

func firstOpen(drills []string, given map[string]string) string {
	for _, d := range drills {
		if _, ok := given[d]; !ok {
			return d
		}
	}
	return ""
}

// ordered returns the given pairs in drill order.
func ordered(drills []string, given map[string]string) []ir.Pair {
	out := make([]ir.Pair, 0, len(given))
	for _, d := range drills {
		if v, ok := given[d]; ok {
			out = append(out, ir.Pair{Path: d, Value: v})
		}
	}
	return out
}

func (s *Store) categoryDrills(ctx context.Context, q queryer, category string) ([]string, error) {
	var drillsJSON string
	err := q.QueryRowContext(ctx,
		`SELECT drills FROM categories WHERE path = ?`, category).Scan(&drillsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, remote.NotFoundf("category %s", category)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read category: %v", remote.ErrUnavailable, err)
	}
	return unmarshalPaths(drillsJSON)
}

func (s *Store) distinctValues(ctx context.Context, category string, selection []ir.Pair, path string) ([]string, error) {
	sqlText, params, err := s.compiler.Compile(querysql.DistinctValues{
		Path:   path,
		Filter: querysql.Selection(category, selection),
	})
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: drilldown: %v", remote.ErrUnavailable, err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan choice: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Categories lists category paths in load order.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM categories ORDER BY seq ASC, path COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
