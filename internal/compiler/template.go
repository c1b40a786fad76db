package compiler

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/calcsync/internal/ir"
)

// CompileTemplate parses a CUE value into a TemplateSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the template struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`template: car: { category: "/transport/car", fields: [...] }`)
//	spec, err := CompileTemplate(v.LookupPath(cue.ParsePath("template.car")))
//
// CompileTemplate only checks shape. Semantic rules are applied by Validate.
func CompileTemplate(v cue.Value) (*ir.TemplateSpec, error) {
	if !v.Exists() {
		return nil, &CompileError{
			Field:   "template",
			Message: fmt.Sprintf("template %s not found", v.Path()),
		}
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := checkAttributes(v, "template", templateAttributes); err != nil {
		return nil, err
	}

	spec := &ir.TemplateSpec{}

	// Name defaults to the struct label.
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}
	name, err := lookupString(v, "name")
	if err != nil {
		return nil, err
	}
	if name != "" {
		spec.Name = name
	}

	categoryVal := v.LookupPath(cue.ParsePath("category"))
	if !categoryVal.Exists() {
		return nil, &CompileError{
			Field:   "category",
			Message: "category is required",
			Pos:     v.Pos(),
		}
	}
	if spec.Category, err = categoryVal.String(); err != nil {
		return nil, formatCUEError(err)
	}

	if spec.Usage, err = lookupString(v, "usage"); err != nil {
		return nil, err
	}

	spec.Fields, err = parseFields(v)
	if err != nil {
		return nil, err
	}
	return spec, nil
}

var templateAttributes = map[string]bool{
	"name":     true,
	"category": true,
	"usage":    true,
	"fields":   true,
}

var fieldAttributes = map[string]bool{
	"kind":            true,
	"label":           true,
	"name":            true,
	"path":            true,
	"interface":       true,
	"note":            true,
	"unit":            true,
	"per_unit":        true,
	"hidden":          true,
	"disabled":        true,
	"pattern":         true,
	"pattern_message": true,
	"fixed":           true,
	"type":            true,
	"compulsory":      true,
	"usages":          true,
	"choices":         true,
	"output_type":     true,
	"default":         true,
}

// parseFields parses the ordered field list.
func parseFields(v cue.Value) ([]ir.FieldSpec, error) {
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "fields",
			Message: "fields is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := fieldsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []ir.FieldSpec
	for i := 0; iter.Next(); i++ {
		f, err := parseField(iter.Value(), i)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil, &CompileError{
			Field:   "fields",
			Message: "at least one field is required",
			Pos:     fieldsVal.Pos(),
		}
	}
	return fields, nil
}

func parseField(v cue.Value, index int) (ir.FieldSpec, error) {
	where := fmt.Sprintf("fields[%d]", index)
	if err := checkAttributes(v, where, fieldAttributes); err != nil {
		return ir.FieldSpec{}, err
	}

	var f ir.FieldSpec
	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return ir.FieldSpec{}, &CompileError{
			Field:   "kind",
			Message: where + ": kind is required",
			Pos:     v.Pos(),
		}
	}
	kind, err := kindVal.String()
	if err != nil {
		return ir.FieldSpec{}, formatCUEError(err)
	}
	f.Kind = kind

	strs := []struct {
		key string
		dst *string
	}{
		{"label", &f.Label},
		{"name", &f.Name},
		{"path", &f.Path},
		{"interface", &f.Interface},
		{"note", &f.Note},
		{"unit", &f.Unit},
		{"per_unit", &f.PerUnit},
		{"pattern", &f.Pattern},
		{"pattern_message", &f.PatternMessage},
		{"fixed", &f.Fixed},
		{"type", &f.ValueType},
		{"output_type", &f.OutputType},
	}
	for _, s := range strs {
		if *s.dst, err = lookupString(v, s.key); err != nil {
			return ir.FieldSpec{}, err
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"hidden", &f.Hidden},
		{"disabled", &f.Disabled},
		{"compulsory", &f.Compulsory},
		{"default", &f.Default},
	}
	for _, b := range bools {
		if *b.dst, err = lookupBool(v, b.key); err != nil {
			return ir.FieldSpec{}, err
		}
	}

	if f.Choices, err = lookupStrings(v, "choices"); err != nil {
		return ir.FieldSpec{}, err
	}
	if f.Usages, err = lookupStringMap(v, "usages"); err != nil {
		return ir.FieldSpec{}, err
	}
	return f, nil
}

// checkAttributes rejects struct keys outside known, which are almost
// always typos.
func checkAttributes(v cue.Value, where string, known map[string]bool) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	var unknown []string
	for iter.Next() {
		if !known[iter.Label()] {
			unknown = append(unknown, iter.Label())
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return &CompileError{
		Field:   "attribute",
		Message: fmt.Sprintf("%s: unknown attribute %q", where, unknown[0]),
		Pos:     v.Pos(),
	}
}

func lookupString(v cue.Value, key string) (string, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func lookupBool(v cue.Value, key string) (bool, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return false, nil
	}
	b, err := val.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func lookupStrings(v cue.Value, key string) ([]string, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return nil, nil
	}
	iter, err := val.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func lookupStringMap(v cue.Value, key string) (map[string]string, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return nil, nil
	}
	iter, err := val.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := make(map[string]string)
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out[iter.Label()] = s
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
