package field

import (
	"strings"
)

// Predicate is a sealed filter over fields.
//
// Implementations:
//   - IsKind: variant match
//   - HasFlag: state flag match
//   - LabelIn: label membership
//   - And, Or, Not: composition
type Predicate interface {
	Match(f Field) bool
	predicateNode()
}

// IsKind matches fields of one variant.
type IsKind struct {
	Kind Kind
}

func (IsKind) predicateNode() {}

func (p IsKind) Match(f Field) bool { return f.Kind() == p.Kind }

// Flag names a field state.
type Flag string

const (
	FlagSet      Flag = "set"
	FlagUnset    Flag = "unset"
	FlagVisible  Flag = "visible"
	FlagHidden   Flag = "hidden"
	FlagEnabled  Flag = "enabled"
	FlagDisabled Flag = "disabled"
	FlagFixed    Flag = "fixed"
)

// HasFlag matches fields in the given state.
type HasFlag struct {
	Flag Flag
}

func (HasFlag) predicateNode() {}

func (p HasFlag) Match(f Field) bool {
	switch p.Flag {
	case FlagSet:
		return f.IsSet()
	case FlagUnset:
		return !f.IsSet()
	case FlagVisible:
		return f.Visible()
	case FlagHidden:
		return !f.Visible()
	case FlagEnabled:
		return f.Enabled()
	case FlagDisabled:
		return !f.Enabled()
	case FlagFixed:
		return f.Fixed()
	}
	return false
}

// LabelIn matches fields whose label is listed.
type LabelIn struct {
	Labels []string
}

func (LabelIn) predicateNode() {}

func (p LabelIn) Match(f Field) bool {
	for _, l := range p.Labels {
		if l == f.Label() {
			return true
		}
	}
	return false
}

// And matches when every predicate matches. An empty And matches all.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

func (p And) Match(f Field) bool {
	for _, q := range p.Predicates {
		if !q.Match(f) {
			return false
		}
	}
	return true
}

// Or matches when any predicate matches.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

func (p Or) Match(f Field) bool {
	for _, q := range p.Predicates {
		if q.Match(f) {
			return true
		}
	}
	return false
}

// Not inverts a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

func (p Not) Match(f Field) bool { return !p.Predicate.Match(f) }

// ParsePredicate parses a chain of kind and flag names separated by dots or
// whitespace into an And, for example "drill.unset" or "profile !hidden".
// A leading '!' negates a term.
func ParsePredicate(expr string) (Predicate, error) {
	terms := strings.FieldsFunc(expr, func(r rune) bool {
		return r == '.' || r == ' ' || r == '\t' || r == ','
	})
	preds := make([]Predicate, 0, len(terms))
	for _, term := range terms {
		negate := strings.HasPrefix(term, "!")
		name := strings.TrimPrefix(term, "!")
		p, err := parseTerm(name)
		if err != nil {
			return nil, err
		}
		if negate {
			p = Not{Predicate: p}
		}
		preds = append(preds, p)
	}
	return And{Predicates: preds}, nil
}

func parseTerm(name string) (Predicate, error) {
	switch f := Flag(strings.ToLower(name)); f {
	case FlagSet, FlagUnset, FlagVisible, FlagHidden, FlagEnabled, FlagDisabled, FlagFixed:
		return HasFlag{Flag: f}, nil
	}
	k, err := ParseKind(name)
	if err != nil {
		return nil, newSchemaError("", "unknown query term %q", name)
	}
	return IsKind{Kind: k}, nil
}
