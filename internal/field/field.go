// Package field defines the typed inputs and outputs of a calculation
// template and the ordered collection that holds them.
//
// A Field is one of five sealed variants: Selector, ScopedInput, Auxiliary,
// UsageSelector and Result. Values are strings and the empty string means
// unset. Fields carry only local state; anything that needs the remote
// service (selector choices, compulsoriness) is decided by the engine.
package field

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind identifies a field variant.
type Kind int

const (
	KindSelector Kind = iota + 1
	KindScopedInput
	KindAuxiliary
	KindUsage
	KindResult
)

var kindNames = map[Kind]string{
	KindSelector:    "drill",
	KindScopedInput: "profile",
	KindAuxiliary:   "metadatum",
	KindUsage:       "usage",
	KindResult:      "output",
}

// String returns the template-source name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind accepts both template-source names ("drill") and variant names
// ("selector").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "drill", "selector", "drills", "selectors":
		return KindSelector, nil
	case "profile", "scoped_input", "profiles", "scoped_inputs":
		return KindScopedInput, nil
	case "metadatum", "auxiliary", "metadata", "auxiliaries":
		return KindAuxiliary, nil
	case "usage", "usage_selector":
		return KindUsage, nil
	case "output", "result", "outputs", "results":
		return KindResult, nil
	}
	return 0, newSchemaError("", "unknown field kind %q", s)
}

// Interface is the presentation hint for a field.
type Interface string

const (
	InterfaceDropDown Interface = "drop_down"
	InterfaceTextBox  Interface = "text_box"
	InterfaceDate     Interface = "date"
	InterfaceCheckBox Interface = "check_box"
	InterfaceRadio    Interface = "radio"
)

var interfaces = map[Interface]bool{
	InterfaceDropDown: true,
	InterfaceTextBox:  true,
	InterfaceDate:     true,
	InterfaceCheckBox: true,
	InterfaceRadio:    true,
}

// ValidateInterface rejects interfaces outside the allowed set.
func ValidateInterface(i Interface) error {
	if !interfaces[i] {
		return &Error{Code: CodeInvalidInterface, Message: fmt.Sprintf("unknown interface %q", i)}
	}
	return nil
}

// Field is implemented by the five variants in this package only.
type Field interface {
	Kind() Kind
	Label() string
	Name() string
	Path() string
	Note() string

	Value() string
	IsSet() bool
	// SetValue reports whether the stored value changed.
	SetValue(v string) (bool, error)
	// Clear unsets the value unless the field is fixed.
	Clear() bool

	Enabled() bool
	Visible() bool
	Fixed() bool
	Enable()
	Disable()
	Show()
	Hide()

	Unit() string
	PerUnit() string
	Interface() Interface

	// Clone returns an independent copy.
	Clone() Field

	sealed()
}

// Checker is implemented by fields whose validity can be decided without
// the remote service.
type Checker interface {
	Check(value string) (msg string, ok bool)
}

// Config holds the attributes common to every variant.
type Config struct {
	Label     string
	Name      string
	Path      string
	Note      string
	Unit      string
	PerUnit   string
	Interface Interface
	Hidden    bool
	Disabled  bool

	// Validation, when set, must accept a value for it to be valid.
	Validation func(value string) bool
	// ValidationMessage is reported when Validation rejects a value.
	ValidationMessage string
}

type base struct {
	label   string
	name    string
	path    string
	note    string
	unit    string
	perUnit string
	iface   Interface

	value   string
	fixed   bool
	enabled bool
	visible bool

	validation        func(string) bool
	validationMessage string
}

func newBase(cfg Config, kind Kind, defaultIface Interface) (base, error) {
	label := strings.TrimSpace(cfg.Label)
	if label == "" {
		return base{}, newSchemaError("", "%s field declared without a label", kind)
	}
	b := base{
		label:             label,
		name:              cfg.Name,
		path:              cfg.Path,
		note:              cfg.Note,
		unit:              cfg.Unit,
		perUnit:           cfg.PerUnit,
		iface:             cfg.Interface,
		enabled:           !cfg.Disabled,
		visible:           !cfg.Hidden,
		validation:        cfg.Validation,
		validationMessage: cfg.ValidationMessage,
	}
	if b.name == "" {
		b.name = humanize(label)
	}
	if b.path == "" {
		b.path = label
	}
	if b.iface == "" {
		b.iface = defaultIface
	}
	if err := ValidateInterface(b.iface); err != nil {
		if fe, ok := err.(*Error); ok {
			fe.Label = label
		}
		return base{}, err
	}
	return b, nil
}

// humanize turns "fuel_type" into "Fuel type".
func humanize(label string) string {
	s := strings.ReplaceAll(label, "_", " ")
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func (b *base) Label() string        { return b.label }
func (b *base) Name() string         { return b.name }
func (b *base) Path() string         { return b.path }
func (b *base) Note() string         { return b.note }
func (b *base) Value() string        { return b.value }
func (b *base) IsSet() bool          { return b.value != "" }
func (b *base) Enabled() bool        { return b.enabled }
func (b *base) Visible() bool        { return b.visible }
func (b *base) Fixed() bool          { return b.fixed }
func (b *base) Unit() string         { return b.unit }
func (b *base) PerUnit() string      { return b.perUnit }
func (b *base) Interface() Interface { return b.iface }
func (b *base) Show()                { b.visible = true }
func (b *base) Hide()                { b.visible = false }
func (b *base) Disable()             { b.enabled = false }

func (*base) sealed() {}

// Enable has no effect on fixed fields, which stay disabled.
func (b *base) Enable() {
	if !b.fixed {
		b.enabled = true
	}
}

func (b *base) SetValue(v string) (bool, error) {
	if b.fixed {
		if v == b.value {
			return false, nil
		}
		return false, newFixedValueError(b.label, b.value, v)
	}
	if v == b.value {
		return false, nil
	}
	b.value = v
	return true, nil
}

func (b *base) Clear() bool {
	if b.fixed || b.value == "" {
		return false
	}
	b.value = ""
	return true
}

// fix pins the field to v and disables it.
func (b *base) fix(v string) {
	b.value = v
	b.fixed = true
	b.enabled = false
}

func (b *base) checkRule(value string) (string, bool) {
	if b.validation == nil || b.validation(value) {
		return "", true
	}
	if b.validationMessage != "" {
		return b.validationMessage, false
	}
	return fmt.Sprintf("invalid value %q", value), false
}

func checkChoice(choices []string, value string) (string, bool) {
	if len(choices) == 0 {
		return "", true
	}
	for _, c := range choices {
		if c == value {
			return "", true
		}
	}
	return fmt.Sprintf("%q is not one of %s", value, strings.Join(choices, ", ")), false
}
