package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/calcsync/internal/field"
	"github.com/roach88/calcsync/internal/remote"
)

// Choose applies sel and validates.
func (c *Calculation) Choose(ctx context.Context, sel Selection) error {
	if err := c.Apply(sel); err != nil {
		return err
	}
	return c.Validate(ctx)
}

// TryChoose is Choose without a ValidationError: it reports whether every
// submitted value survived validation. Other errors are still returned.
func (c *Calculation) TryChoose(ctx context.Context, sel Selection) (bool, error) {
	err := c.Choose(ctx, sel)
	if IsValidationError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Validate clears invalid values and resolves selectors the remote catalog
// leaves no choice about. It does nothing unless the calculation is dirty.
//
// Each rejected field is cleared and its message recorded; the messages are
// returned together as a *ValidationError. Fixed fields are never cleared.
func (c *Calculation) Validate(ctx context.Context) error {
	if c.state != StateDirty {
		return nil
	}
	return c.withPass(func(p *pass) error {
		c.messages = make(map[string]string)
		var causes []error

		for _, f := range c.fields {
			if !f.IsSet() || f.Fixed() || f.Kind() == field.KindResult {
				continue
			}
			msg, ok, err := c.check(ctx, p, f)
			if err != nil && !IsOrderingError(err) {
				return fmt.Errorf("validate %s: %w", f.Label(), err)
			}
			if err != nil {
				causes = append(causes, err)
			}
			if !ok {
				c.logger.DebugContext(ctx, "clearing invalid value",
					"label", f.Label(), "value", f.Value(), "reason", msg, "pass", p.seq)
				f.Clear()
				c.messages[f.Label()] = msg
			}
		}

		if err := c.autodrill(ctx, p); err != nil {
			return fmt.Errorf("autodrill: %w", err)
		}
		c.applyUsage()
		c.state = StateValidated

		if len(c.messages) > 0 {
			return &ValidationError{Messages: c.Invalidity(), causes: causes}
		}
		return nil
	})
}

// check decides whether f's current value is acceptable. An ordering
// violation is reported both as a rejection and as the returned error.
func (c *Calculation) check(ctx context.Context, p *pass, f field.Field) (string, bool, error) {
	if ch, ok := f.(field.Checker); ok {
		if msg, ok := ch.Check(f.Value()); !ok {
			return msg, false, nil
		}
	}
	s, ok := f.(*field.Selector)
	if !ok {
		return "", true, nil
	}
	choices, err := c.selectorChoices(ctx, p, s)
	if err != nil {
		if IsOrderingError(err) {
			var oe *Error
			errors.As(err, &oe)
			return oe.Message, false, err
		}
		return "", false, err
	}
	if len(choices) >= 2 && !slices.Contains(choices, s.Value()) {
		return fmt.Sprintf("%q is not an available choice", s.Value()), false, nil
	}
	return "", true, nil
}

// selectorChoices returns the effective choice set of s: the remote choices
// for its path given every earlier selector, collapsed to the current value
// when only one remains.
func (c *Calculation) selectorChoices(ctx context.Context, p *pass, s *field.Selector) ([]string, error) {
	earlier, err := c.fields.Selectors().Before(s.Label())
	if err != nil {
		return nil, err
	}
	if unset := earlier.Unset(); len(unset) > 0 {
		return nil, newOrderingError(s.Label(), unset[0].Label())
	}
	res, err := c.drilldown(ctx, p, selectorPairs(earlier))
	if err != nil {
		return nil, err
	}
	if res.Next != s.Path() {
		// The catalog orders an undeclared path first, so it cannot say
		// anything about this one yet.
		return nil, nil
	}
	if len(res.Choices) == 1 && s.IsSet() {
		return []string{s.Value()}, nil
	}
	return append([]string(nil), res.Choices...), nil
}

// autodrill sets every selector the catalog resolves unambiguously from the
// leading run of set selectors. Resolved paths the template does not
// declare become synthetic selectors.
func (c *Calculation) autodrill(ctx context.Context, p *pass) error {
	prefix := leadingSet(c.fields.Selectors())
	res, err := c.drilldown(ctx, p, selectorPairs(prefix))
	if err != nil {
		return err
	}
	return c.applyResolved(ctx, res.Resolved)
}

// applyResolved copies resolved pairs into local selectors. Fixed
// selectors are left alone.
func (c *Calculation) applyResolved(ctx context.Context, resolved []remote.Pair) error {
	prev := ""
	for _, pr := range resolved {
		f := c.fields.Selectors().ByPath(pr.Path)
		if f == nil {
			s := field.NewSyntheticSelector(pr.Path, pr.Value)
			fields, err := c.fields.Insert(c.insertionPoint(prev), s)
			if err != nil {
				return err
			}
			c.fields = fields
			c.logger.DebugContext(ctx, "materialized selector", "path", pr.Path, "value", pr.Value)
			prev = s.Label()
			continue
		}
		prev = f.Label()
		if f.Fixed() || f.Value() == pr.Value {
			continue
		}
		if _, err := f.SetValue(pr.Value); err != nil {
			return err
		}
		c.logger.DebugContext(ctx, "resolved selector", "label", f.Label(), "value", pr.Value)
	}
	return nil
}

// insertionPoint returns the index just after the selector labelled prev,
// or the position of the first selector when prev is empty.
func (c *Calculation) insertionPoint(prev string) int {
	if prev != "" {
		if i := c.fields.Index(prev); i >= 0 {
			return i + 1
		}
	}
	for i, f := range c.fields {
		if f.Kind() == field.KindSelector {
			return i
		}
	}
	return 0
}

// Choices returns the effective choice set of the labelled field.
// Selectors consult the remote catalog; other kinds return their declared
// choices.
func (c *Calculation) Choices(ctx context.Context, label string) ([]string, error) {
	f, err := c.fields.Lookup(label)
	if err != nil {
		return nil, err
	}
	switch f := f.(type) {
	case *field.Selector:
		var choices []string
		err := c.withPass(func(p *pass) error {
			var err error
			choices, err = c.selectorChoices(ctx, p, f)
			return err
		})
		return choices, err
	case *field.ScopedInput:
		return f.Choices(), nil
	case *field.Auxiliary:
		return f.Choices(), nil
	case *field.UsageSelector:
		return f.Choices(), nil
	}
	return nil, nil
}

// Compulsory reports whether the labelled field must be set before the
// calculation is satisfied.
func (c *Calculation) Compulsory(ctx context.Context, label string) (bool, error) {
	f, err := c.fields.Lookup(label)
	if err != nil {
		return false, err
	}
	var compulsory bool
	err = c.withPass(func(p *pass) error {
		var err error
		compulsory, err = c.compulsory(ctx, p, f)
		return err
	})
	return compulsory, err
}

// Satisfied reports whether every compulsory field is set.
func (c *Calculation) Satisfied(ctx context.Context) (bool, error) {
	var ok bool
	err := c.withPass(func(p *pass) error {
		var err error
		ok, err = c.satisfied(ctx, p)
		return err
	})
	return ok, err
}

func (c *Calculation) satisfied(ctx context.Context, p *pass) (bool, error) {
	for _, f := range c.fields.Unset() {
		compulsory, err := c.compulsory(ctx, p, f)
		if err != nil {
			return false, err
		}
		if compulsory {
			return false, nil
		}
	}
	return true, nil
}

// compulsory: selectors are compulsory unless their effective choice set
// has at most one entry, or an earlier selector is unset; scoped inputs
// follow the active usage. Nothing else is ever compulsory.
func (c *Calculation) compulsory(ctx context.Context, p *pass, f field.Field) (bool, error) {
	switch f := f.(type) {
	case *field.Selector:
		choices, err := c.selectorChoices(ctx, p, f)
		if IsOrderingError(err) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return len(choices) > 1, nil
	case *field.ScopedInput:
		return f.Requirement(c.ActiveUsage()) == field.Required, nil
	}
	return false, nil
}
