package ir

import "sort"

// Field kinds as written in template sources.
const (
	KindDrill     = "drill"
	KindProfile   = "profile"
	KindMetadatum = "metadatum"
	KindUsage     = "usage"
	KindOutput    = "output"
)

// Usage requirement levels for profile fields.
const (
	RequirementCompulsory = "compulsory"
	RequirementOptional   = "optional"
	RequirementForbidden  = "forbidden"
)

// TemplateSpec is the compiled, validated form of one calculation template.
type TemplateSpec struct {
	Name     string      `json:"name"`
	Category string      `json:"category"`
	Usage    string      `json:"usage,omitempty"`
	Fields   []FieldSpec `json:"fields"`
}

// FieldSpec describes a single template field. Which attributes apply
// depends on Kind.
type FieldSpec struct {
	Kind      string `json:"kind"`
	Label     string `json:"label"`
	Name      string `json:"name,omitempty"`
	Path      string `json:"path,omitempty"`
	Interface string `json:"interface,omitempty"`
	Note      string `json:"note,omitempty"`
	Unit      string `json:"unit,omitempty"`
	PerUnit   string `json:"per_unit,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
	Disabled  bool   `json:"disabled,omitempty"`

	// Pattern is an optional regular expression a value must match.
	Pattern string `json:"pattern,omitempty"`
	// PatternMessage replaces the default message when Pattern fails.
	PatternMessage string `json:"pattern_message,omitempty"`

	// Drill fields.
	Fixed string `json:"fixed,omitempty"`

	// Profile fields.
	ValueType  string            `json:"type,omitempty"`
	Compulsory bool              `json:"compulsory,omitempty"`
	Usages     map[string]string `json:"usages,omitempty"`

	// Profile, metadatum and usage fields.
	Choices []string `json:"choices,omitempty"`

	// Output fields.
	OutputType string `json:"output_type,omitempty"`
	Default    bool   `json:"default,omitempty"`
}

// FieldByLabel returns the field spec with the given label.
func (t TemplateSpec) FieldByLabel(label string) (FieldSpec, bool) {
	for _, f := range t.Fields {
		if f.Label == label {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// canonical converts the spec to the value tree accepted by
// MarshalCanonical. Zero-valued attributes are omitted.
func (t TemplateSpec) canonical() map[string]any {
	fields := make([]any, 0, len(t.Fields))
	for _, f := range t.Fields {
		fields = append(fields, f.canonical())
	}
	out := map[string]any{
		"name":     t.Name,
		"category": t.Category,
		"fields":   fields,
	}
	if t.Usage != "" {
		out["usage"] = t.Usage
	}
	return out
}

func (f FieldSpec) canonical() map[string]any {
	out := map[string]any{
		"kind":  f.Kind,
		"label": f.Label,
	}
	strs := map[string]string{
		"name":            f.Name,
		"path":            f.Path,
		"interface":       f.Interface,
		"note":            f.Note,
		"unit":            f.Unit,
		"per_unit":        f.PerUnit,
		"pattern":         f.Pattern,
		"pattern_message": f.PatternMessage,
		"fixed":           f.Fixed,
		"type":            f.ValueType,
		"output_type":     f.OutputType,
	}
	for k, v := range strs {
		if v != "" {
			out[k] = v
		}
	}
	flags := map[string]bool{
		"hidden":     f.Hidden,
		"disabled":   f.Disabled,
		"compulsory": f.Compulsory,
		"default":    f.Default,
	}
	for k, v := range flags {
		if v {
			out[k] = true
		}
	}
	if len(f.Usages) > 0 {
		out["usages"] = f.Usages
	}
	if len(f.Choices) > 0 {
		out["choices"] = append([]string(nil), f.Choices...)
	}
	return out
}

// UsageNames returns the sorted set of usage names referenced by profile
// fields.
func (t TemplateSpec) UsageNames() []string {
	seen := make(map[string]bool)
	for _, f := range t.Fields {
		for u := range f.Usages {
			seen[u] = true
		}
	}
	names := make([]string, 0, len(seen))
	for u := range seen {
		names = append(names, u)
	}
	sort.Strings(names)
	return names
}
