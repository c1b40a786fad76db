package compiler

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/calcsync/internal/field"
	"github.com/roach88/calcsync/internal/ir"
)

// Validation error codes (E200-E299)
const (
	// General validation errors (E200)
	ErrUnsupportedIRType = "E200" // unsupported IR type for validation

	// Template errors (E201-E203)
	ErrTemplateNoName     = "E201" // name is required
	ErrTemplateNoCategory = "E202" // category is required
	ErrTemplateNoFields   = "E203" // at least one field required

	// Field errors (E204-E213)
	ErrFieldNoLabel       = "E204" // label is required
	ErrDuplicateLabel     = "E205" // duplicate field label
	ErrUnknownKind        = "E206" // kind is not one of the five field kinds
	ErrUnknownInterface   = "E207" // unknown display interface
	ErrMultipleUsage      = "E208" // more than one usage field
	ErrUndeclaredUsage    = "E209" // usage name not offered by the usage field
	ErrInvalidValueType   = "E210" // unknown profile value type
	ErrInvalidRequirement = "E211" // unknown usage requirement
	ErrOutputNoType       = "E212" // output needs output_type or default
	ErrInvalidPattern     = "E213" // pattern does not compile
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.TemplateSpec:
		return validateTemplateSpec(spec)
	case ir.TemplateSpec:
		return validateTemplateSpec(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

var kinds = []string{ir.KindDrill, ir.KindProfile, ir.KindMetadatum, ir.KindUsage, ir.KindOutput}

func validateTemplateSpec(spec *ir.TemplateSpec) []ValidationError {
	var errs []ValidationError

	// E201: name is required
	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "name is required and must be non-empty",
			Code:    ErrTemplateNoName,
		})
	}

	// E202: category is required
	if strings.TrimSpace(spec.Category) == "" {
		errs = append(errs, ValidationError{
			Field:   "category",
			Message: "category is required and must be non-empty",
			Code:    ErrTemplateNoCategory,
		})
	}

	// E203: at least one field
	if len(spec.Fields) == 0 {
		errs = append(errs, ValidationError{
			Field:   "fields",
			Message: "at least one field is required",
			Code:    ErrTemplateNoFields,
		})
	}

	labels := make(map[string]bool)
	var usageField *ir.FieldSpec
	for i := range spec.Fields {
		f := &spec.Fields[i]
		path := fmt.Sprintf("fields[%d]", i)

		// E204 / E205
		if strings.TrimSpace(f.Label) == "" {
			errs = append(errs, ValidationError{
				Field:   path + ".label",
				Message: "label is required",
				Code:    ErrFieldNoLabel,
			})
		} else if labels[f.Label] {
			errs = append(errs, ValidationError{
				Field:   path + ".label",
				Message: fmt.Sprintf("duplicate label %q", f.Label),
				Code:    ErrDuplicateLabel,
			})
		}
		labels[f.Label] = true

		// E206
		if !slices.Contains(kinds, f.Kind) {
			errs = append(errs, ValidationError{
				Field:   path + ".kind",
				Message: fmt.Sprintf("unknown kind %q, must be one of %s", f.Kind, strings.Join(kinds, ", ")),
				Code:    ErrUnknownKind,
			})
		}

		// E207
		if f.Interface != "" {
			if err := field.ValidateInterface(field.Interface(f.Interface)); err != nil {
				errs = append(errs, ValidationError{
					Field:   path + ".interface",
					Message: fmt.Sprintf("unknown interface %q", f.Interface),
					Code:    ErrUnknownInterface,
				})
			}
		}

		// E213
		if f.Pattern != "" {
			if _, err := regexp.Compile(f.Pattern); err != nil {
				errs = append(errs, ValidationError{
					Field:   path + ".pattern",
					Message: fmt.Sprintf("invalid pattern: %v", err),
					Code:    ErrInvalidPattern,
				})
			}
		}

		switch f.Kind {
		case ir.KindUsage:
			// E208
			if usageField != nil {
				errs = append(errs, ValidationError{
					Field:   path + ".kind",
					Message: fmt.Sprintf("second usage field %q, %q already declared", f.Label, usageField.Label),
					Code:    ErrMultipleUsage,
				})
			} else {
				usageField = f
			}
		case ir.KindProfile:
			errs = append(errs, validateProfile(f, path)...)
		case ir.KindOutput:
			// E212
			if f.OutputType == "" && !f.Default {
				errs = append(errs, ValidationError{
					Field:   path + ".output_type",
					Message: fmt.Sprintf("output %q needs output_type or default: true", f.Label),
					Code:    ErrOutputNoType,
				})
			}
		}
	}

	errs = append(errs, validateUsages(spec, usageField)...)
	return errs
}

func validateProfile(f *ir.FieldSpec, path string) []ValidationError {
	var errs []ValidationError

	// E210
	if _, err := field.ParseValueType(f.ValueType); err != nil {
		errs = append(errs, ValidationError{
			Field:   path + ".type",
			Message: fmt.Sprintf("unknown value type %q, must be text, decimal, integer or date", f.ValueType),
			Code:    ErrInvalidValueType,
		})
	}

	// E211
	for _, u := range sortedKeys(f.Usages) {
		if _, err := field.ParseRequirement(f.Usages[u]); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.usages.%s", path, u),
				Message: fmt.Sprintf("unknown requirement %q, must be compulsory, optional or forbidden", f.Usages[u]),
				Code:    ErrInvalidRequirement,
			})
		}
	}
	return errs
}

// validateUsages checks that every usage name used by the template is
// offered by the usage field, when there is one.
func validateUsages(spec *ir.TemplateSpec, usageField *ir.FieldSpec) []ValidationError {
	if usageField == nil || len(usageField.Choices) == 0 {
		return nil
	}
	var errs []ValidationError

	// E209
	if spec.Usage != "" && !slices.Contains(usageField.Choices, spec.Usage) {
		errs = append(errs, ValidationError{
			Field:   "usage",
			Message: fmt.Sprintf("fixed usage %q is not a choice of %q", spec.Usage, usageField.Label),
			Code:    ErrUndeclaredUsage,
		})
	}
	for i, f := range spec.Fields {
		for _, u := range sortedKeys(f.Usages) {
			if !slices.Contains(usageField.Choices, u) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("fields[%d].usages.%s", i, u),
					Message: fmt.Sprintf("usage %q is not a choice of %q", u, usageField.Label),
					Code:    ErrUndeclaredUsage,
				})
			}
		}
	}
	return errs
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
