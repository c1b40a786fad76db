package engine

import (
	"slices"

	"github.com/roach88/calcsync/internal/field"
)

// Builder assembles a Template field by field. Construction errors are
// deferred to Build.
//
// Example:
//
//	tmpl, err := engine.NewBuilder("car").
//		Category("/transport/car/generic").
//		Selector(field.SelectorConfig{Config: field.Config{Label: "fuel"}}).
//		Selector(field.SelectorConfig{Config: field.Config{Label: "size"}}).
//		ScopedInput(field.ScopedInputConfig{Config: field.Config{Label: "distance"}, Compulsory: true}).
//		Result(field.ResultConfig{Config: field.Config{Label: "co2"}, Default: true}).
//		Build()
type Builder struct {
	name     string
	category string
	usage    string
	fields   []field.Field
	err      error
}

// NewBuilder starts a template called name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Category sets the remote category path.
func (b *Builder) Category(path string) *Builder {
	b.category = path
	return b
}

// Usage fixes the usage applied when the usage field is unset or absent.
func (b *Builder) Usage(name string) *Builder {
	b.usage = name
	return b
}

func (b *Builder) add(f field.Field, err error) *Builder {
	if b.err != nil {
		return b
	}
	if err != nil {
		b.err = err
		return b
	}
	b.fields = append(b.fields, f)
	return b
}

func (b *Builder) Selector(cfg field.SelectorConfig) *Builder {
	return b.add(field.NewSelector(cfg))
}

func (b *Builder) ScopedInput(cfg field.ScopedInputConfig) *Builder {
	return b.add(field.NewScopedInput(cfg))
}

func (b *Builder) Auxiliary(cfg field.AuxiliaryConfig) *Builder {
	return b.add(field.NewAuxiliary(cfg))
}

func (b *Builder) UsageSelector(cfg field.UsageSelectorConfig) *Builder {
	return b.add(field.NewUsageSelector(cfg))
}

func (b *Builder) Result(cfg field.ResultConfig) *Builder {
	return b.add(field.NewResult(cfg))
}

// Field appends an already constructed field.
func (b *Builder) Field(f field.Field) *Builder {
	return b.add(f, nil)
}

// Build validates the template.
func (b *Builder) Build() (*Template, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.name == "" {
		return nil, newSchemaError("", "template has no name")
	}
	if b.category == "" {
		return nil, newSchemaError("", "template %q has no category", b.name)
	}
	fields, err := field.NewCollection(b.fields...)
	if err != nil {
		return nil, err
	}

	var declared []string
	if u := fields.Usage(); u != nil {
		declared = u.Choices()
	}
	if b.usage != "" && declared != nil && !slices.Contains(declared, b.usage) {
		return nil, newSchemaError("", "fixed usage %q is not a choice of the usage field", b.usage)
	}
	if declared != nil {
		for _, f := range fields.ScopedInputs() {
			for _, u := range f.(*field.ScopedInput).Usages() {
				if !slices.Contains(declared, u) {
					return nil, newSchemaError(f.Label(), "references undeclared usage %q", u)
				}
			}
		}
	}

	return &Template{
		name:     b.name,
		category: b.category,
		usage:    b.usage,
		fields:   fields.Clone(),
	}, nil
}
