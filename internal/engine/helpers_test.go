package engine

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/calcsync/internal/field"
	"github.com/roach88/calcsync/internal/remote"
	"github.com/roach88/calcsync/internal/store"
	"github.com/roach88/calcsync/internal/testutil"
)

const carCategory = "/transport/car"

// carTemplate declares fuel and size selectors, a compulsory distance and a
// CO2 result.
func carTemplate(t *testing.T) *Template {
	t.Helper()
	tmpl, err := NewBuilder("car").
		Category(carCategory).
		Selector(field.SelectorConfig{Config: field.Config{Label: "fuel"}}).
		Selector(field.SelectorConfig{Config: field.Config{Label: "size"}}).
		ScopedInput(field.ScopedInputConfig{
			Config:     field.Config{Label: "distance", Unit: "km"},
			Type:       field.TypeDecimal,
			Compulsory: true,
		}).
		Auxiliary(field.AuxiliaryConfig{Config: field.Config{Label: "owner"}}).
		Result(field.ResultConfig{Config: field.Config{Label: "co2"}, Type: "CO2"}).
		Build()
	require.NoError(t, err)
	return tmpl
}

type fixture struct {
	store *store.Store
	rec   *remote.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := testutil.NewStore(t, testutil.CarCatalog)
	return &fixture{store: s, rec: remote.NewRecorder(s, nil)}
}

// seedItem creates a remote item directly in the store.
func (f *fixture) seedItem(t *testing.T, key []remote.Pair, values, metadata map[string]string) remote.ItemRef {
	t.Helper()
	ctx := context.Background()
	container, err := f.store.GetOrCreateContainer(ctx)
	require.NoError(t, err)
	id, err := f.store.CreateItem(ctx, container, carCategory, key, values, remote.ItemOptions{Metadata: metadata})
	require.NoError(t, err)
	return remote.ItemRef{ContainerID: container, ID: id}
}

func floatValue(t *testing.T, c *Calculation, label string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(c.Value(label), 64)
	require.NoError(t, err, "value of %s", label)
	return v
}
