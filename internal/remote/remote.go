// Package remote defines the contract between a calculation and the remote
// catalog service that stores items and computes their outputs.
//
// The engine depends only on Service. The sqlite store provides a local
// implementation and remote/httpapi carries the same contract over HTTP.
package remote

import (
	"context"

	"github.com/roach88/calcsync/internal/ir"
)

// Pair is one (drill path, value) component of a selection.
type Pair = ir.Pair

// DrillResult answers a drilldown request.
type DrillResult struct {
	// Next is the first drill path the selection leaves open, or "" when
	// the selection is complete.
	Next string `json:"next"`

	// Choices are the legal values of Next given the selection.
	Choices []string `json:"choices"`

	// Resolved is the selection extended with every path the service could
	// deduce because only one value remained.
	Resolved []Pair `json:"resolved"`
}

// ItemRef addresses an item inside a container.
type ItemRef struct {
	ContainerID string `json:"container_id"`
	ID          string `json:"id"`
}

// Path returns the resource path used by the HTTP transport.
func (r ItemRef) Path() string {
	return "/containers/" + r.ContainerID + "/items/" + r.ID
}

// IsZero reports whether the ref addresses nothing.
func (r ItemRef) IsZero() bool { return r.ID == "" }

// Output is one computed value of an item.
type Output struct {
	Type    string  `json:"type"`
	Default bool    `json:"default,omitempty"`
	Value   float64 `json:"value"`
	Unit    string  `json:"unit,omitempty"`
	PerUnit string  `json:"per_unit,omitempty"`
}

// Item is the remote record a bound calculation maps onto.
type Item struct {
	Ref      ItemRef           `json:"ref"`
	Category string            `json:"category"`
	Name     string            `json:"name,omitempty"`
	Key      []Pair            `json:"key"`
	Values   map[string]string `json:"values"`
	Outputs  []Output          `json:"outputs"`
}

// ItemOptions carries the optional attributes of a create or update.
type ItemOptions struct {
	Name     string            `json:"name,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Service is the remote catalog.
//
// Implementations wrap ErrNotFound when a container or item does not exist
// and ErrUnavailable for transport or service-side failures.
type Service interface {
	// Drilldown narrows category by an ordered selection.
	Drilldown(ctx context.Context, category string, selection []Pair) (DrillResult, error)

	// CreateItem stores a new item keyed by a complete selection and
	// returns its ID.
	CreateItem(ctx context.Context, containerID, category string, key []Pair, values map[string]string, opts ItemOptions) (string, error)

	// GetItem fetches an item with its current outputs.
	GetItem(ctx context.Context, ref ItemRef) (Item, error)

	// UpdateItem replaces the item's values.
	UpdateItem(ctx context.Context, ref ItemRef, values map[string]string, opts ItemOptions) error

	// DeleteItem removes an item.
	DeleteItem(ctx context.Context, ref ItemRef) error

	// GetOrCreateContainer returns the ID of the caller's container,
	// creating one on first use.
	GetOrCreateContainer(ctx context.Context) (string, error)
}

// MetadataSource is implemented by services that store per-item metadata.
type MetadataSource interface {
	ItemMetadata(ctx context.Context, ref ItemRef) (map[string]string, error)
}
