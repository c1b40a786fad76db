package field

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Selector narrows the remote category one drill path at a time. Its legal
// values come from the remote service, so it has no local Check.
type Selector struct {
	base
	synthetic bool
}

// SelectorConfig configures a Selector. A non-empty Fixed pins the value
// and disables the field permanently.
type SelectorConfig struct {
	Config
	Fixed string
}

// NewSelector constructs a Selector.
func NewSelector(cfg SelectorConfig) (*Selector, error) {
	b, err := newBase(cfg.Config, KindSelector, InterfaceDropDown)
	if err != nil {
		return nil, err
	}
	s := &Selector{base: b}
	if cfg.Fixed != "" {
		s.fix(cfg.Fixed)
	}
	return s, nil
}

// NewSyntheticSelector creates a selector for a drill path the remote
// service resolved but the template never declared.
func NewSyntheticSelector(path, value string) *Selector {
	return &Selector{
		base: base{
			label:   path,
			name:    humanize(path),
			path:    path,
			iface:   InterfaceDropDown,
			value:   value,
			enabled: true,
			visible: false,
		},
		synthetic: true,
	}
}

func (s *Selector) Kind() Kind { return KindSelector }

// Synthetic reports whether the selector was materialized from a remote
// drilldown rather than declared.
func (s *Selector) Synthetic() bool { return s.synthetic }

func (s *Selector) Check(value string) (string, bool) { return s.checkRule(value) }

func (s *Selector) Clone() Field {
	c := *s
	return &c
}

// ValueType constrains the values a ScopedInput accepts.
type ValueType string

const (
	TypeText    ValueType = "text"
	TypeDecimal ValueType = "decimal"
	TypeInteger ValueType = "integer"
	TypeDate    ValueType = "date"
)

// ParseValueType maps a template-source type name to a ValueType. The
// empty string means text.
func ParseValueType(s string) (ValueType, error) {
	switch ValueType(strings.ToLower(s)) {
	case "", TypeText:
		return TypeText, nil
	case TypeDecimal, "float", "number":
		return TypeDecimal, nil
	case TypeInteger, "int":
		return TypeInteger, nil
	case TypeDate:
		return TypeDate, nil
	}
	return "", newSchemaError("", "unknown value type %q", s)
}

func (t ValueType) check(value string) (string, bool) {
	switch t {
	case TypeDecimal:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Sprintf("%q is not a decimal number", value), false
		}
	case TypeInteger:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return fmt.Sprintf("%q is not an integer", value), false
		}
	case TypeDate:
		if _, err := time.Parse(time.DateOnly, value); err != nil {
			return fmt.Sprintf("%q is not a date (YYYY-MM-DD)", value), false
		}
	}
	return "", true
}

// Requirement says whether a ScopedInput is in use under a given usage.
type Requirement string

const (
	Required  Requirement = "compulsory"
	Permitted Requirement = "optional"
	Excluded  Requirement = "forbidden"
)

// ParseRequirement validates a template-source requirement name.
func ParseRequirement(s string) (Requirement, error) {
	switch r := Requirement(strings.ToLower(s)); r {
	case Required, Permitted, Excluded:
		return r, nil
	}
	return "", newSchemaError("", "unknown usage requirement %q", s)
}

// ScopedInput is a free-form remote item value whose relevance depends on
// the active usage.
type ScopedInput struct {
	base
	valueType  ValueType
	compulsory bool
	usages     map[string]Requirement
	choices    []string
}

// ScopedInputConfig configures a ScopedInput. Compulsory applies when no
// usage is active or when Usages is empty.
type ScopedInputConfig struct {
	Config
	Type       ValueType
	Compulsory bool
	Usages     map[string]Requirement
	Choices    []string
}

// NewScopedInput constructs a ScopedInput.
func NewScopedInput(cfg ScopedInputConfig) (*ScopedInput, error) {
	b, err := newBase(cfg.Config, KindScopedInput, InterfaceTextBox)
	if err != nil {
		return nil, err
	}
	vt := cfg.Type
	if vt == "" {
		vt = TypeText
	}
	if _, err := ParseValueType(string(vt)); err != nil {
		return nil, newSchemaError(b.label, "unknown value type %q", vt)
	}
	usages := make(map[string]Requirement, len(cfg.Usages))
	for u, r := range cfg.Usages {
		if _, err := ParseRequirement(string(r)); err != nil {
			return nil, newSchemaError(b.label, "usage %q: unknown requirement %q", u, r)
		}
		usages[u] = r
	}
	return &ScopedInput{
		base:       b,
		valueType:  vt,
		compulsory: cfg.Compulsory,
		usages:     usages,
		choices:    append([]string(nil), cfg.Choices...),
	}, nil
}

func (s *ScopedInput) Kind() Kind { return KindScopedInput }

func (s *ScopedInput) ValueType() ValueType { return s.valueType }

func (s *ScopedInput) Choices() []string { return append([]string(nil), s.choices...) }

// Usages returns the names of the usages this input declares a
// requirement for.
func (s *ScopedInput) Usages() []string {
	names := make([]string, 0, len(s.usages))
	for u := range s.usages {
		names = append(names, u)
	}
	return names
}

// Requirement returns the requirement under usage. Without an active usage,
// or when the input declares no usages at all, the Compulsory flag decides.
// A usage the input does not mention excludes it.
func (s *ScopedInput) Requirement(usage string) Requirement {
	if usage == "" || len(s.usages) == 0 {
		if s.compulsory {
			return Required
		}
		return Permitted
	}
	if r, ok := s.usages[usage]; ok {
		return r
	}
	return Excluded
}

func (s *ScopedInput) Check(value string) (string, bool) {
	if msg, ok := s.checkRule(value); !ok {
		return msg, false
	}
	if msg, ok := s.valueType.check(value); !ok {
		return msg, false
	}
	return checkChoice(s.choices, value)
}

func (s *ScopedInput) Clone() Field {
	c := *s
	c.usages = make(map[string]Requirement, len(s.usages))
	for u, r := range s.usages {
		c.usages[u] = r
	}
	c.choices = append([]string(nil), s.choices...)
	return &c
}

// Auxiliary is a descriptive value stored as item metadata. It never
// affects whether a calculation is satisfied.
type Auxiliary struct {
	base
	choices []string
}

// AuxiliaryConfig configures an Auxiliary.
type AuxiliaryConfig struct {
	Config
	Choices []string
}

// NewAuxiliary constructs an Auxiliary.
func NewAuxiliary(cfg AuxiliaryConfig) (*Auxiliary, error) {
	b, err := newBase(cfg.Config, KindAuxiliary, InterfaceTextBox)
	if err != nil {
		return nil, err
	}
	return &Auxiliary{base: b, choices: append([]string(nil), cfg.Choices...)}, nil
}

func (a *Auxiliary) Kind() Kind { return KindAuxiliary }

func (a *Auxiliary) Choices() []string { return append([]string(nil), a.choices...) }

func (a *Auxiliary) Check(value string) (string, bool) {
	if msg, ok := a.checkRule(value); !ok {
		return msg, false
	}
	return checkChoice(a.choices, value)
}

func (a *Auxiliary) Clone() Field {
	c := *a
	c.choices = append([]string(nil), a.choices...)
	return &c
}

// UsageSelector picks the active usage. A collection holds at most one.
type UsageSelector struct {
	base
	choices []string
}

// UsageSelectorConfig configures a UsageSelector.
type UsageSelectorConfig struct {
	Config
	Choices []string
}

// NewUsageSelector constructs a UsageSelector.
func NewUsageSelector(cfg UsageSelectorConfig) (*UsageSelector, error) {
	b, err := newBase(cfg.Config, KindUsage, InterfaceDropDown)
	if err != nil {
		return nil, err
	}
	return &UsageSelector{base: b, choices: append([]string(nil), cfg.Choices...)}, nil
}

func (u *UsageSelector) Kind() Kind { return KindUsage }

func (u *UsageSelector) Choices() []string { return append([]string(nil), u.choices...) }

func (u *UsageSelector) Check(value string) (string, bool) {
	if msg, ok := u.checkRule(value); !ok {
		return msg, false
	}
	return checkChoice(u.choices, value)
}

func (u *UsageSelector) Clone() Field {
	c := *u
	c.choices = append([]string(nil), u.choices...)
	return &c
}

// Result holds a remote calculation output. Outputs are matched by Type,
// or by the service's default marker when Default is set.
type Result struct {
	base
	outputType string
	isDefault  bool
}

// ResultConfig configures a Result.
type ResultConfig struct {
	Config
	Type    string
	Default bool
}

// NewResult constructs a Result.
func NewResult(cfg ResultConfig) (*Result, error) {
	b, err := newBase(cfg.Config, KindResult, InterfaceTextBox)
	if err != nil {
		return nil, err
	}
	if cfg.Type == "" && !cfg.Default {
		return nil, newSchemaError(b.label, "output field needs a type or the default marker")
	}
	return &Result{base: b, outputType: cfg.Type, isDefault: cfg.Default}, nil
}

func (r *Result) Kind() Kind { return KindResult }

func (r *Result) OutputType() string { return r.outputType }

func (r *Result) Default() bool { return r.isDefault }

// AdoptUnits fills in units the template left blank.
func (r *Result) AdoptUnits(unit, perUnit string) {
	if r.unit == "" {
		r.unit = unit
	}
	if r.perUnit == "" {
		r.perUnit = perUnit
	}
}

func (r *Result) Check(value string) (string, bool) { return "", true }

func (r *Result) Clone() Field {
	c := *r
	return &c
}
