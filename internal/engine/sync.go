package engine

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/roach88/calcsync/internal/field"
	"github.com/roach88/calcsync/internal/remote"
)

// Calculate synchronizes the calculation with its remote item. It does
// nothing unless the calculation is dirty.
//
// When the input is sufficient the bound item is updated, or a new one is
// created, and result fields are filled from the item's outputs. On any
// remote failure an item created by this call is deleted again and a
// DidNotCreate error wrapping the cause is returned; local values are
// restored to what they were before the call and the calculation stays
// dirty so the call can be retried.
func (c *Calculation) Calculate(ctx context.Context) error {
	if !c.Dirty() {
		return nil
	}
	return c.withPass(func(p *pass) error {
		c.logger.InfoContext(ctx, "sync pass started",
			"template", c.template.name, "pass", p.seq, "item", c.itemID)

		saved := c.save()
		if err := c.synchronize(ctx, p); err != nil {
			c.compensate(ctx, p)
			c.restore(saved)
			c.markDirty()
			if IsDuplicateBindingError(err) {
				return err
			}
			c.logger.WarnContext(ctx, "sync pass failed", "pass", p.seq, "error", err)
			return newDidNotCreateError(err)
		}

		if c.itemID != "" {
			c.state = StateCleanBound
		} else {
			c.state = StateCleanUnbound
		}
		c.logger.InfoContext(ctx, "sync pass finished",
			"pass", p.seq, "state", c.state.String(), "item", c.itemID)
		return nil
	})
}

func (c *Calculation) synchronize(ctx context.Context, p *pass) error {
	if err := c.resolveContainer(ctx); err != nil {
		return fmt.Errorf("resolve container: %w", err)
	}
	if err := c.loadItemValues(ctx, p); err != nil {
		return fmt.Errorf("load item values: %w", err)
	}
	if err := c.loadItemSelectors(ctx, p); err != nil {
		return fmt.Errorf("load item selectors: %w", err)
	}
	if err := c.loadMetadata(ctx, p); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	ok, err := c.satisfied(ctx, p)
	if err != nil {
		return fmt.Errorf("satisfied: %w", err)
	}
	if !ok {
		c.clearResults()
		return nil
	}

	if c.itemID != "" {
		if err := c.updateItem(ctx, p); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
	} else if err := c.createItem(ctx, p); err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	if err := c.loadResults(ctx, p); err != nil {
		return fmt.Errorf("load results: %w", err)
	}
	return nil
}

func (c *Calculation) resolveContainer(ctx context.Context) error {
	if c.containerID != "" {
		return nil
	}
	id, err := c.svc.GetOrCreateContainer(ctx)
	if err != nil {
		return err
	}
	c.containerID = id
	return nil
}

// loadItemValues copies the bound item's values into scoped inputs that are
// still unset. Local values win.
func (c *Calculation) loadItemValues(ctx context.Context, p *pass) error {
	item, err := c.currentItem(ctx, p)
	if err != nil || item == nil {
		return err
	}
	for _, f := range c.fields.ScopedInputs().Unset() {
		if v := item.Values[f.Path()]; v != "" {
			if _, err := f.SetValue(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadItemSelectors reconciles selectors with the bound item's key. If the
// key disagrees with a local value the item no longer matches the
// selection: it is deleted, and the local selection is kept except where
// the catalog itself contradicts it. A replacement item is created later
// in the pass.
func (c *Calculation) loadItemSelectors(ctx context.Context, p *pass) error {
	item, err := c.currentItem(ctx, p)
	if err != nil || item == nil {
		return err
	}

	selectors := c.fields.Selectors()
	for _, pr := range item.Key {
		f := selectors.ByPath(pr.Path)
		if f == nil || !f.IsSet() || f.Value() == pr.Value {
			continue
		}
		c.logger.WarnContext(ctx, "bound item disagrees with local selection",
			"item", c.itemID, "path", pr.Path, "local", f.Value(), "remote", pr.Value, "pass", p.seq)
		if err := c.deleteBound(ctx, p); err != nil {
			return err
		}
		return c.dropContradicted(ctx, p)
	}

	return c.applyResolved(ctx, preferLocal(selectors, item.Key))
}

// dropContradicted checks set selectors in order against the catalog,
// narrowed by every earlier selector. The first one the catalog rules out,
// either by resolving its path to another value or by not offering its
// value, is cleared together with every selector after it.
func (c *Calculation) dropContradicted(ctx context.Context, p *pass) error {
	selectors := c.fields.Selectors()
	for i, f := range selectors {
		if !f.IsSet() {
			return nil
		}
		if f.Fixed() {
			continue
		}
		res, err := c.drilldown(ctx, p, selectorPairs(selectors[:i]))
		if err != nil {
			return err
		}
		if !contradicts(res, f.Path(), f.Value()) {
			continue
		}
		c.logger.WarnContext(ctx, "catalog contradicts local selection",
			"label", f.Label(), "value", f.Value(), "pass", p.seq)
		c.clearFrom(f.Label())
		return nil
	}
	return nil
}

func contradicts(res remote.DrillResult, path, value string) bool {
	for _, pr := range res.Resolved {
		if pr.Path == path {
			return pr.Value != value
		}
	}
	return res.Next == path && len(res.Choices) > 0 && !slices.Contains(res.Choices, value)
}

// preferLocal replaces key values with local ones wherever a selector is
// already set, so applyResolved only fills gaps.
func preferLocal(selectors field.Collection, key []remote.Pair) []remote.Pair {
	out := make([]remote.Pair, 0, len(key))
	for _, pr := range key {
		if f := selectors.ByPath(pr.Path); f != nil && f.IsSet() {
			out = append(out, remote.Pair{Path: pr.Path, Value: f.Value()})
			continue
		}
		out = append(out, pr)
	}
	return out
}

// clearFrom clears the labelled selector and every selector after it.
func (c *Calculation) clearFrom(label string) {
	selectors := c.fields.Selectors()
	i := selectors.Index(label)
	if i < 0 {
		return
	}
	for _, f := range selectors[i:] {
		f.Clear()
	}
}

func (c *Calculation) loadMetadata(ctx context.Context, p *pass) error {
	ms, ok := c.svc.(remote.MetadataSource)
	if !ok || c.itemID == "" {
		return nil
	}
	md, err := ms.ItemMetadata(ctx, c.ref())
	if remote.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, f := range c.fields.Auxiliaries().Unset() {
		if v := md[f.Path()]; v != "" {
			if _, err := f.SetValue(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// submission returns the scoped-input values to push, keyed by path.
func (c *Calculation) submission() map[string]string {
	values := make(map[string]string)
	for _, f := range c.fields.ScopedInputs().Set() {
		if c.inUse(f.(*field.ScopedInput)) {
			values[f.Path()] = f.Value()
		}
	}
	return values
}

func (c *Calculation) itemOptions() remote.ItemOptions {
	opts := remote.ItemOptions{Name: c.itemName}
	if aux := c.fields.Auxiliaries().Set(); len(aux) > 0 {
		opts.Metadata = make(map[string]string, len(aux))
		for _, f := range aux {
			opts.Metadata[f.Path()] = f.Value()
		}
	}
	return opts
}

func (c *Calculation) updateItem(ctx context.Context, p *pass) error {
	if err := c.svc.UpdateItem(ctx, c.ref(), c.submission(), c.itemOptions()); err != nil {
		return err
	}
	p.forgetItem()
	return nil
}

func (c *Calculation) createItem(ctx context.Context, p *pass) error {
	if c.itemID != "" {
		return newDuplicateBindingError(c.itemID)
	}
	key := selectorPairs(c.fields.Selectors().Set())
	id, err := c.svc.CreateItem(ctx, c.containerID, c.template.category, key, c.submission(), c.itemOptions())
	if err != nil {
		return err
	}
	p.created = id
	c.itemID = id
	p.forgetItem()
	c.logger.InfoContext(ctx, "created remote item", "item", id, "pass", p.seq)
	return nil
}

// loadResults fills result fields from the bound item's outputs. Results
// with no matching output are cleared.
func (c *Calculation) loadResults(ctx context.Context, p *pass) error {
	id := c.itemID
	item, err := c.currentItem(ctx, p)
	if err != nil {
		return err
	}
	if item == nil {
		return remote.NotFoundf("item %s vanished after synchronization", id)
	}
	for _, f := range c.fields.Results() {
		r := f.(*field.Result)
		out, ok := matchOutput(r, item.Outputs)
		if !ok {
			r.Clear()
			continue
		}
		if _, err := r.SetValue(strconv.FormatFloat(out.Value, 'f', -1, 64)); err != nil {
			return err
		}
		r.AdoptUnits(out.Unit, out.PerUnit)
	}
	return nil
}

func matchOutput(r *field.Result, outputs []remote.Output) (remote.Output, bool) {
	for _, o := range outputs {
		if r.OutputType() != "" && o.Type == r.OutputType() {
			return o, true
		}
	}
	if r.Default() {
		for _, o := range outputs {
			if o.Default {
				return o, true
			}
		}
	}
	return remote.Output{}, false
}

func (c *Calculation) clearResults() {
	for _, f := range c.fields.Results() {
		f.Clear()
	}
}

// deleteBound deletes the bound item and unbinds. An item that is already
// gone counts as deleted.
func (c *Calculation) deleteBound(ctx context.Context, p *pass) error {
	err := c.svc.DeleteItem(ctx, c.ref())
	if err != nil && !remote.IsNotFound(err) {
		return err
	}
	if p != nil {
		if p.created == c.itemID {
			p.created = ""
		}
		p.forgetItem()
	}
	c.itemID = ""
	return nil
}

// compensate deletes an item created earlier in a failed pass. Failures
// are logged; the original error is what the caller sees.
func (c *Calculation) compensate(ctx context.Context, p *pass) {
	if p.created == "" {
		return
	}
	ref := remote.ItemRef{ContainerID: c.containerID, ID: p.created}
	if err := c.svc.DeleteItem(ctx, ref); err != nil && !remote.IsNotFound(err) {
		c.logger.ErrorContext(ctx, "compensating delete failed", "item", p.created, "error", err)
	} else {
		c.logger.WarnContext(ctx, "deleted item created by failed pass", "item", p.created)
	}
	if c.itemID == p.created {
		c.itemID = ""
	}
	p.created = ""
}

// Delete removes the bound remote item, if any, and unbinds. The
// calculation becomes dirty.
func (c *Calculation) Delete(ctx context.Context) error {
	if c.itemID == "" {
		return nil
	}
	if err := c.deleteBound(ctx, nil); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	c.clearResults()
	c.markDirty()
	return nil
}
