package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/calcsync/internal/ir"
	"github.com/roach88/calcsync/internal/querysql"
)

// Catalog is the YAML seed format for the reference service.
//
//	categories:
//	  - path: /transport/car/generic
//	    drills: [fuel, size]
//	    items:
//	      - drills: {fuel: diesel, size: large}
//	        outputs:
//	          - {type: CO2, default: true, factor: 0.2, multiply_by: distance, unit: kg}
type Catalog struct {
	Categories []CategorySpec `yaml:"categories"`
}

// CategorySpec declares a category and its data items.
type CategorySpec struct {
	Path   string         `yaml:"path"`
	Drills []string       `yaml:"drills"`
	Items  []DataItemSpec `yaml:"items"`
}

// DataItemSpec is one catalog entry: a full set of drill values and the
// outputs an item built on it reports.
type DataItemSpec struct {
	Drills  map[string]string `yaml:"drills"`
	Outputs []OutputSpec      `yaml:"outputs"`
}

// OutputSpec defines one computed output.
type OutputSpec struct {
	Type       string  `yaml:"type"`
	Default    bool    `yaml:"default"`
	Factor     float64 `yaml:"factor"`
	MultiplyBy string  `yaml:"multiply_by"`
	Unit       string  `yaml:"unit"`
	PerUnit    string  `yaml:"per_unit"`
}

// LoadStats summarizes a catalog load.
type LoadStats struct {
	Categories int
	Created    int
	Updated    int
}

// ParseCatalog decodes and validates a YAML catalog. Unknown keys are
// rejected.
func ParseCatalog(r io.Reader) (Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var c Catalog
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// ReadCatalogFile parses the catalog at path.
func ReadCatalogFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(bytes.NewReader(data))
}

// Validate checks structural consistency: every item names exactly the
// category's drill paths and no two items share a drill tuple.
func (c Catalog) Validate() error {
	seenPaths := make(map[string]bool)
	for ci, cat := range c.Categories {
		if cat.Path == "" {
			return fmt.Errorf("categories[%d]: path is required", ci)
		}
		if seenPaths[cat.Path] {
			return fmt.Errorf("categories[%d]: duplicate category %q", ci, cat.Path)
		}
		seenPaths[cat.Path] = true
		if len(cat.Drills) == 0 {
			return fmt.Errorf("category %s: at least one drill path is required", cat.Path)
		}
		sorted := slices.Clone(cat.Drills)
		sort.Strings(sorted)
		if len(slices.Compact(sorted)) != len(cat.Drills) {
			return fmt.Errorf("category %s: duplicate drill path", cat.Path)
		}

		tuples := make(map[string]bool)
		for ii, item := range cat.Items {
			if len(item.Drills) != len(cat.Drills) {
				return fmt.Errorf("category %s: items[%d]: expected drills %v", cat.Path, ii, cat.Drills)
			}
			parts := make([]string, 0, len(cat.Drills))
			for _, d := range cat.Drills {
				v, ok := item.Drills[d]
				if !ok || v == "" {
					return fmt.Errorf("category %s: items[%d]: missing drill %q", cat.Path, ii, d)
				}
				parts = append(parts, d+"="+v)
			}
			tuple := strings.Join(parts, "\x00")
			if tuples[tuple] {
				return fmt.Errorf("category %s: items[%d]: duplicate drill values", cat.Path, ii)
			}
			tuples[tuple] = true
			for oi, out := range item.Outputs {
				if out.Type == "" {
					return fmt.Errorf("category %s: items[%d].outputs[%d]: type is required", cat.Path, ii, oi)
				}
			}
		}
	}
	return nil
}

// LoadCatalog writes c into the store. Loading the same catalog twice
// leaves the store unchanged: categories are upserted and data items are
// matched on their drill values.
func (s *Store) LoadCatalog(ctx context.Context, c Catalog) (LoadStats, error) {
	if err := c.Validate(); err != nil {
		return LoadStats{}, err
	}
	var stats LoadStats
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, cat := range c.Categories {
			if err := putCategory(ctx, tx, cat.Path, cat.Drills); err != nil {
				return err
			}
			stats.Categories++
			for _, item := range cat.Items {
				created, err := s.putDataItem(ctx, tx, cat, item)
				if err != nil {
					return err
				}
				if created {
					stats.Created++
				} else {
					stats.Updated++
				}
			}
		}
		return nil
	})
	return stats, err
}

func putCategory(ctx context.Context, q queryer, path string, drills []string) error {
	drillsJSON, err := marshalPaths(drills)
	if err != nil {
		return err
	}
	seq, err := nextSeq(ctx, q, "categories")
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO categories (path, drills, seq) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET drills = excluded.drills
	`, path, drillsJSON, seq)
	if err != nil {
		return fmt.Errorf("put category %s: %w", path, err)
	}
	return nil
}

// putDataItem inserts item, or replaces the outputs of the existing data
// item with the same drill values. It reports whether a row was created.
func (s *Store) putDataItem(ctx context.Context, q queryer, cat CategorySpec, item DataItemSpec) (bool, error) {
	pairs := make([]ir.Pair, 0, len(cat.Drills))
	for _, d := range cat.Drills {
		pairs = append(pairs, ir.Pair{Path: d, Value: item.Drills[d]})
	}
	ids, err := s.matchDataItems(ctx, q, cat.Path, pairs)
	if err != nil {
		return false, err
	}

	created := len(ids) == 0
	var id string
	if created {
		id = s.ids.Generate()
		seq, err := nextSeq(ctx, q, "data_items")
		if err != nil {
			return false, err
		}
		if _, err := q.ExecContext(ctx,
			`INSERT INTO data_items (id, category, seq) VALUES (?, ?, ?)`,
			id, cat.Path, seq); err != nil {
			return false, fmt.Errorf("insert data item: %w", err)
		}
		for _, p := range pairs {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO data_item_drills (item_id, path, value) VALUES (?, ?, ?)`,
				id, p.Path, p.Value); err != nil {
				return false, fmt.Errorf("insert drill value: %w", err)
			}
		}
	} else {
		id = ids[0]
		if _, err := q.ExecContext(ctx,
			`DELETE FROM data_item_outputs WHERE item_id = ?`, id); err != nil {
			return false, fmt.Errorf("replace outputs: %w", err)
		}
	}

	for _, out := range item.Outputs {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO data_item_outputs (item_id, type, is_default, factor, multiply_by, unit, per_unit)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, out.Type, out.Default, out.Factor, out.MultiplyBy, out.Unit, out.PerUnit); err != nil {
			return false, fmt.Errorf("insert output %s: %w", out.Type, err)
		}
	}
	return created, nil
}

func (s *Store) matchDataItems(ctx context.Context, q queryer, category string, pairs []ir.Pair) ([]string, error) {
	sqlText, params, err := s.compiler.Compile(querysql.MatchItems{Filter: querysql.Selection(category, pairs)})
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("match data items: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan data item: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
