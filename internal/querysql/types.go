package querysql

import "github.com/roach88/calcsync/internal/ir"

// Query is a sealed catalog query.
//
// Implementations:
//   - DistinctValues: the distinct values of one drill path
//   - MatchItems: the IDs of matching data items
type Query interface {
	queryNode()
}

// Predicate is a sealed filter over catalog data items.
//
// Implementations:
//   - InCategory: item belongs to a category
//   - DrillEquals: item has a drill value
//   - And: conjunction
type Predicate interface {
	predicateNode()
}

// DistinctValues lists the values of Path among items matching Filter.
type DistinctValues struct {
	Path   string
	Filter Predicate
}

func (DistinctValues) queryNode() {}

// MatchItems lists the IDs of items matching Filter.
type MatchItems struct {
	Filter Predicate
}

func (MatchItems) queryNode() {}

// InCategory matches items of one category.
type InCategory struct {
	Category string
}

func (InCategory) predicateNode() {}

// DrillEquals matches items whose drill Path has Value.
type DrillEquals struct {
	Path  string
	Value string
}

func (DrillEquals) predicateNode() {}

// And matches when every predicate matches. An empty And matches all.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Selection builds the filter for items of category matching every pair.
func Selection(category string, pairs []ir.Pair) Predicate {
	preds := make([]Predicate, 0, len(pairs)+1)
	preds = append(preds, InCategory{Category: category})
	for _, p := range pairs {
		preds = append(preds, DrillEquals{Path: p.Path, Value: p.Value})
	}
	return And{Predicates: preds}
}
