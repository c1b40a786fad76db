package engine

import (
	"io"
	"log/slog"

	"github.com/roach88/calcsync/internal/field"
	"github.com/roach88/calcsync/internal/remote"
)

// Template is an immutable calculation blueprint. Every Calculation begun
// from it works on its own deep copy of the fields.
type Template struct {
	name     string
	category string
	usage    string
	fields   field.Collection
}

func (t *Template) Name() string     { return t.name }
func (t *Template) Category() string { return t.category }

// Usage returns the fixed usage applied when no usage field is set.
func (t *Template) Usage() string { return t.usage }

// Fields returns a deep copy of the template's fields.
func (t *Template) Fields() field.Collection { return t.fields.Clone() }

// Option configures a Calculation.
type Option func(*Calculation)

// WithLogger sets the structured logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Calculation) {
		c.logger = logger
	}
}

// WithItemName sets the name sent with created and updated items.
func WithItemName(name string) Option {
	return func(c *Calculation) {
		c.itemName = name
	}
}

// WithBinding starts the calculation bound to an existing container and
// item.
func WithBinding(containerID, itemID string) Option {
	return func(c *Calculation) {
		c.containerID = containerID
		c.itemID = itemID
	}
}

// Begin creates a fresh, unbound calculation against svc.
func (t *Template) Begin(svc remote.Service, opts ...Option) *Calculation {
	c := &Calculation{
		template: t,
		fields:   t.fields.Clone(),
		svc:      svc,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:    NewClock(),
		state:    StateDirty,
		messages: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.applyUsage()
	return c
}
