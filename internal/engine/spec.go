package engine

import (
	"fmt"
	"regexp"

	"github.com/roach88/calcsync/internal/field"
	"github.com/roach88/calcsync/internal/ir"
)

// FromSpec builds a Template from a compiled template spec.
func FromSpec(spec ir.TemplateSpec) (*Template, error) {
	b := NewBuilder(spec.Name).Category(spec.Category).Usage(spec.Usage)
	for _, fs := range spec.Fields {
		cfg, err := baseConfig(fs)
		if err != nil {
			return nil, err
		}
		switch fs.Kind {
		case ir.KindDrill:
			b.Selector(field.SelectorConfig{Config: cfg, Fixed: fs.Fixed})
		case ir.KindProfile:
			vt, err := field.ParseValueType(fs.ValueType)
			if err != nil {
				return nil, newSchemaError(fs.Label, "%v", err)
			}
			usages := make(map[string]field.Requirement, len(fs.Usages))
			for u, r := range fs.Usages {
				req, err := field.ParseRequirement(r)
				if err != nil {
					return nil, newSchemaError(fs.Label, "usage %q: %v", u, err)
				}
				usages[u] = req
			}
			b.ScopedInput(field.ScopedInputConfig{
				Config:     cfg,
				Type:       vt,
				Compulsory: fs.Compulsory,
				Usages:     usages,
				Choices:    fs.Choices,
			})
		case ir.KindMetadatum:
			b.Auxiliary(field.AuxiliaryConfig{Config: cfg, Choices: fs.Choices})
		case ir.KindUsage:
			b.UsageSelector(field.UsageSelectorConfig{Config: cfg, Choices: fs.Choices})
		case ir.KindOutput:
			b.Result(field.ResultConfig{Config: cfg, Type: fs.OutputType, Default: fs.Default})
		default:
			return nil, newSchemaError(fs.Label, "unknown field kind %q", fs.Kind)
		}
	}
	return b.Build()
}

func baseConfig(fs ir.FieldSpec) (field.Config, error) {
	cfg := field.Config{
		Label:     fs.Label,
		Name:      fs.Name,
		Path:      fs.Path,
		Note:      fs.Note,
		Unit:      fs.Unit,
		PerUnit:   fs.PerUnit,
		Interface: field.Interface(fs.Interface),
		Hidden:    fs.Hidden,
		Disabled:  fs.Disabled,
	}
	if fs.Pattern != "" {
		re, err := regexp.Compile(fs.Pattern)
		if err != nil {
			return field.Config{}, newSchemaError(fs.Label, "invalid pattern: %v", err)
		}
		cfg.Validation = re.MatchString
		cfg.ValidationMessage = fs.PatternMessage
		if cfg.ValidationMessage == "" {
			cfg.ValidationMessage = fmt.Sprintf("must match %s", fs.Pattern)
		}
	}
	return cfg, nil
}
