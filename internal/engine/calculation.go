package engine

import (
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/calcsync/internal/field"
	"github.com/roach88/calcsync/internal/remote"
)

// State is the synchronization state of a Calculation.
type State int

const (
	// StateDirty means local input changed since the last successful pass.
	StateDirty State = iota + 1
	// StateValidated means input was validated but not yet synchronized.
	StateValidated
	// StateCleanBound means the last pass left a remote item bound.
	StateCleanBound
	// StateCleanUnbound means the last pass found input insufficient.
	StateCleanUnbound
)

func (s State) String() string {
	switch s {
	case StateDirty:
		return "dirty"
	case StateValidated:
		return "validated"
	case StateCleanBound:
		return "clean_bound"
	case StateCleanUnbound:
		return "clean_unbound"
	}
	return "unknown"
}

// Reserved selection keys that bind a calculation to remote resources.
const (
	KeyContainerID = "profile_resource_id"
	KeyItemID      = "profile_item_resource_id"
)

// Selection maps field labels, or a reserved key, to submitted values.
// Blank values are ignored.
type Selection map[string]string

// normalize trims v and converts it to NFC so that equal text always
// compares equal.
func normalize(v string) string {
	return norm.NFC.String(strings.TrimSpace(v))
}

// Calculation is one in-progress use of a Template.
type Calculation struct {
	template *Template
	fields   field.Collection
	svc      remote.Service
	logger   *slog.Logger
	clock    *Clock
	itemName string

	state       State
	containerID string
	itemID      string
	messages    map[string]string

	// pass is non-nil only while Validate or Calculate is running.
	pass *pass
}

func (c *Calculation) Template() *Template { return c.template }
func (c *Calculation) State() State        { return c.state }

// Dirty reports whether local input changed since the last successful
// pass. A validated calculation is still dirty.
func (c *Calculation) Dirty() bool {
	return c.state == StateDirty || c.state == StateValidated
}

// Fields returns the live fields of this calculation. Mutating a value
// directly bypasses dirty tracking; use Apply or Choose instead.
func (c *Calculation) Fields() field.Collection { return c.fields }

// Field returns the live field with the given label, or nil.
func (c *Calculation) Field(label string) field.Field { return c.fields.Get(label) }

// ContainerID returns the bound remote container, if any.
func (c *Calculation) ContainerID() string { return c.containerID }

// ItemID returns the bound remote item, if any.
func (c *Calculation) ItemID() string { return c.itemID }

// Bound reports whether a remote item is bound.
func (c *Calculation) Bound() bool { return c.itemID != "" }

// Value returns the value of the labelled field, or "" when it is unset or
// absent.
func (c *Calculation) Value(label string) string {
	if f := c.fields.Get(label); f != nil {
		return f.Value()
	}
	return ""
}

// Invalidity returns the messages recorded by the last Validate, keyed by
// field label.
func (c *Calculation) Invalidity() map[string]string {
	out := make(map[string]string, len(c.messages))
	for k, v := range c.messages {
		out[k] = v
	}
	return out
}

func (c *Calculation) markDirty() {
	c.state = StateDirty
}

// Apply copies sel into the fields without validating. Keys naming no
// field are ignored, blank values are skipped, and result fields are read
// only. The calculation becomes dirty only if something changed.
//
// Attempting to change a fixed field returns a field.Error with
// field.CodeFixedValue; values applied before it are kept.
func (c *Calculation) Apply(sel Selection) error {
	if v := normalize(sel[KeyContainerID]); v != "" && v != c.containerID {
		c.containerID = v
		c.markDirty()
	}
	if v := normalize(sel[KeyItemID]); v != "" && v != c.itemID {
		c.itemID = v
		c.markDirty()
	}

	usageChanged := false
	for _, f := range c.fields {
		raw, ok := sel[f.Label()]
		if !ok || f.Kind() == field.KindResult {
			continue
		}
		v := normalize(raw)
		if v == "" {
			continue
		}
		changed, err := f.SetValue(v)
		if err != nil {
			return err
		}
		if changed {
			c.logger.Debug("field changed", "label", f.Label(), "value", v)
			c.markDirty()
			if f.Kind() == field.KindUsage {
				usageChanged = true
			}
		}
	}
	if usageChanged {
		c.applyUsage()
	}
	return nil
}

// Reset clears every non-fixed value and the item binding. The container
// binding is kept.
func (c *Calculation) Reset() {
	for _, f := range c.fields {
		f.Clear()
	}
	c.itemID = ""
	c.messages = make(map[string]string)
	c.markDirty()
	c.applyUsage()
}

// ActiveUsage returns the usage field's value, or the template's fixed
// usage when that is unset.
func (c *Calculation) ActiveUsage() string {
	if u := c.fields.Usage(); u != nil && u.IsSet() {
		return u.Value()
	}
	return c.template.usage
}

// applyUsage shows and enables the scoped inputs in use under the active
// usage and hides and disables the rest. Values are kept.
func (c *Calculation) applyUsage() {
	usage := c.ActiveUsage()
	for _, f := range c.fields.ScopedInputs() {
		in := f.(*field.ScopedInput)
		if in.Requirement(usage) == field.Excluded {
			in.Hide()
			in.Disable()
		} else {
			in.Show()
			in.Enable()
		}
	}
}

// inUse reports whether a scoped input participates under the active usage.
func (c *Calculation) inUse(in *field.ScopedInput) bool {
	return in.Requirement(c.ActiveUsage()) != field.Excluded
}

func (c *Calculation) ref() remote.ItemRef {
	return remote.ItemRef{ContainerID: c.containerID, ID: c.itemID}
}

// savedFields is the local state of every field at one point in time.
type savedFields struct {
	fields field.Collection
	values []string
}

func (c *Calculation) save() savedFields {
	return savedFields{fields: c.fields, values: c.fields.Values()}
}

// restore puts back the fields and values recorded by save. Selectors
// materialized since then are dropped.
func (c *Calculation) restore(s savedFields) {
	for i, f := range s.fields {
		if s.values[i] == "" {
			f.Clear()
			continue
		}
		if _, err := f.SetValue(s.values[i]); err != nil {
			c.logger.Error("restoring field failed", "label", f.Label(), "error", err)
		}
	}
	c.fields = s.fields
	c.applyUsage()
}

// selectorPairs converts selectors to a drill selection in order.
func selectorPairs(fields field.Collection) []remote.Pair {
	out := make([]remote.Pair, 0, len(fields))
	for _, f := range fields {
		out = append(out, remote.Pair{Path: f.Path(), Value: f.Value()})
	}
	return out
}

// leadingSet returns the longest prefix of fields that are all set.
func leadingSet(fields field.Collection) field.Collection {
	for i, f := range fields {
		if !f.IsSet() {
			return fields[:i]
		}
	}
	return fields
}

// Snapshot is a serializable view of a calculation.
type Snapshot struct {
	Template    string          `json:"template"`
	State       string          `json:"state"`
	ContainerID string          `json:"container_id,omitempty"`
	ItemID      string          `json:"item_id,omitempty"`
	Usage       string          `json:"usage,omitempty"`
	Fields      []FieldSnapshot `json:"fields"`
}

// FieldSnapshot is the serializable view of one field.
type FieldSnapshot struct {
	Label   string `json:"label"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Value   string `json:"value,omitempty"`
	Unit    string `json:"unit,omitempty"`
	PerUnit string `json:"per_unit,omitempty"`
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
	Fixed   bool   `json:"fixed,omitempty"`
	Invalid string `json:"invalid,omitempty"`
}

// Snapshot captures the current state without contacting the remote
// service.
func (c *Calculation) Snapshot() Snapshot {
	s := Snapshot{
		Template:    c.template.name,
		State:       c.state.String(),
		ContainerID: c.containerID,
		ItemID:      c.itemID,
		Usage:       c.ActiveUsage(),
		Fields:      make([]FieldSnapshot, 0, len(c.fields)),
	}
	for _, f := range c.fields {
		s.Fields = append(s.Fields, FieldSnapshot{
			Label:   f.Label(),
			Name:    f.Name(),
			Kind:    f.Kind().String(),
			Path:    f.Path(),
			Value:   f.Value(),
			Unit:    f.Unit(),
			PerUnit: f.PerUnit(),
			Visible: f.Visible(),
			Enabled: f.Enabled(),
			Fixed:   f.Fixed(),
			Invalid: c.messages[f.Label()],
		})
	}
	return s
}
