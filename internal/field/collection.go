package field

// Collection is an ordered list of fields. Filters return new collections
// that share the underlying fields; use Clone for an independent copy.
type Collection []Field

// NewCollection validates that labels are unique and that at most one
// usage selector is present.
func NewCollection(fields ...Field) (Collection, error) {
	seen := make(map[string]bool, len(fields))
	usages := 0
	for _, f := range fields {
		if f == nil {
			return nil, newSchemaError("", "nil field in collection")
		}
		if seen[f.Label()] {
			return nil, newSchemaError(f.Label(), "duplicate field label")
		}
		seen[f.Label()] = true
		if f.Kind() == KindUsage {
			usages++
		}
	}
	if usages > 1 {
		return nil, newSchemaError("", "at most one usage field is allowed, found %d", usages)
	}
	return append(Collection(nil), fields...), nil
}

// Get returns the field with the given label, or nil.
func (c Collection) Get(label string) Field {
	if i := c.Index(label); i >= 0 {
		return c[i]
	}
	return nil
}

// Lookup is Get with a NotFound error.
func (c Collection) Lookup(label string) (Field, error) {
	if f := c.Get(label); f != nil {
		return f, nil
	}
	return nil, newNotFoundError(label)
}

// Index returns the position of label, or -1.
func (c Collection) Index(label string) int {
	for i, f := range c {
		if f.Label() == label {
			return i
		}
	}
	return -1
}

// ByPath returns the first field with the given path, or nil.
func (c Collection) ByPath(path string) Field {
	for _, f := range c {
		if f.Path() == path {
			return f
		}
	}
	return nil
}

// Where returns the fields matching p, in order.
func (c Collection) Where(p Predicate) Collection {
	out := Collection{}
	for _, f := range c {
		if p.Match(f) {
			out = append(out, f)
		}
	}
	return out
}

func (c Collection) OfKind(k Kind) Collection { return c.Where(IsKind{Kind: k}) }
func (c Collection) Selectors() Collection    { return c.OfKind(KindSelector) }
func (c Collection) ScopedInputs() Collection { return c.OfKind(KindScopedInput) }
func (c Collection) Auxiliaries() Collection  { return c.OfKind(KindAuxiliary) }
func (c Collection) Results() Collection      { return c.OfKind(KindResult) }
func (c Collection) Set() Collection          { return c.Where(HasFlag{Flag: FlagSet}) }
func (c Collection) Unset() Collection        { return c.Where(HasFlag{Flag: FlagUnset}) }
func (c Collection) Visible() Collection      { return c.Where(HasFlag{Flag: FlagVisible}) }
func (c Collection) Hidden() Collection       { return c.Where(HasFlag{Flag: FlagHidden}) }
func (c Collection) Fixed() Collection        { return c.Where(HasFlag{Flag: FlagFixed}) }
func (c Collection) Enabled() Collection      { return c.Where(HasFlag{Flag: FlagEnabled}) }

// Usage returns the usage selector, or nil.
func (c Collection) Usage() *UsageSelector {
	for _, f := range c {
		if u, ok := f.(*UsageSelector); ok {
			return u
		}
	}
	return nil
}

// Before returns the fields strictly before label.
func (c Collection) Before(label string) (Collection, error) {
	i := c.Index(label)
	if i < 0 {
		return nil, newNotFoundError(label)
	}
	return append(Collection(nil), c[:i]...), nil
}

// After returns the fields strictly after label.
func (c Collection) After(label string) (Collection, error) {
	i := c.Index(label)
	if i < 0 {
		return nil, newNotFoundError(label)
	}
	return append(Collection(nil), c[i+1:]...), nil
}

// Insert returns a new collection with f placed at index i.
func (c Collection) Insert(i int, f Field) (Collection, error) {
	if c.Index(f.Label()) >= 0 {
		return nil, newSchemaError(f.Label(), "duplicate field label")
	}
	if i < 0 || i > len(c) {
		i = len(c)
	}
	out := make(Collection, 0, len(c)+1)
	out = append(out, c[:i]...)
	out = append(out, f)
	return append(out, c[i:]...), nil
}

// Clone deep-copies every field.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for i, f := range c {
		out[i] = f.Clone()
	}
	return out
}

func (c Collection) project(get func(Field) string) []string {
	out := make([]string, len(c))
	for i, f := range c {
		out[i] = get(f)
	}
	return out
}

func (c Collection) Labels() []string { return c.project(Field.Label) }
func (c Collection) Names() []string  { return c.project(Field.Name) }
func (c Collection) Paths() []string  { return c.project(Field.Path) }
func (c Collection) Values() []string { return c.project(Field.Value) }

// ValueMap returns label to value for set fields.
func (c Collection) ValueMap() map[string]string {
	out := make(map[string]string)
	for _, f := range c {
		if f.IsSet() {
			out[f.Label()] = f.Value()
		}
	}
	return out
}
