package engine

import (
	"context"

	"github.com/roach88/calcsync/internal/ir"
	"github.com/roach88/calcsync/internal/remote"
)

// pass memoizes remote reads for the duration of one Validate or Calculate
// call. Nothing in it outlives the call.
type pass struct {
	seq int64

	item       *remote.Item
	itemLoaded bool

	drills map[string]remote.DrillResult

	// created is the ID of an item created during this pass, deleted again
	// if the pass fails.
	created string
}

// withPass runs fn inside the current pass, or a fresh one if none is
// active.
func (c *Calculation) withPass(fn func(p *pass) error) error {
	if c.pass != nil {
		return fn(c.pass)
	}
	c.pass = &pass{
		seq:    c.clock.Next(),
		drills: make(map[string]remote.DrillResult),
	}
	defer func() { c.pass = nil }()
	return fn(c.pass)
}

func (p *pass) forgetItem() {
	p.item = nil
	p.itemLoaded = false
}

// drilldown returns the memoized answer for selection.
func (c *Calculation) drilldown(ctx context.Context, p *pass, selection []remote.Pair) (remote.DrillResult, error) {
	key := ir.SelectionHash(c.template.category, selection)
	if res, ok := p.drills[key]; ok {
		return res, nil
	}
	res, err := c.svc.Drilldown(ctx, c.template.category, selection)
	if err != nil {
		return remote.DrillResult{}, err
	}
	p.drills[key] = res
	return res, nil
}

// currentItem returns the bound item, fetching it at most once per pass.
// A bound item the service no longer has is unbound.
func (c *Calculation) currentItem(ctx context.Context, p *pass) (*remote.Item, error) {
	if c.itemID == "" {
		return nil, nil
	}
	if p.itemLoaded {
		return p.item, nil
	}
	item, err := c.svc.GetItem(ctx, c.ref())
	if remote.IsNotFound(err) {
		c.logger.WarnContext(ctx, "bound item no longer exists", "item", c.itemID, "pass", p.seq)
		c.itemID = ""
		p.item, p.itemLoaded = nil, true
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.item, p.itemLoaded = &item, true
	return p.item, nil
}
