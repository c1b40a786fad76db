package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/calcsync/internal/store"
)

// CarCatalog is a small two-drill catalog. Petrol cars only come in one
// size, so selecting petrol resolves size.
const CarCatalog = `
categories:
  - path: /transport/car
    drills: [fuel, size]
    items:
      - drills: {fuel: diesel, size: large}
        outputs:
          - {type: CO2, default: true, factor: 0.2, multiply_by: distance, unit: kg}
          - {type: CH4, factor: 0.001, multiply_by: distance, unit: kg}
      - drills: {fuel: diesel, size: small}
        outputs:
          - {type: CO2, default: true, factor: 0.15, multiply_by: distance, unit: kg}
      - drills: {fuel: petrol, size: small}
        outputs:
          - {type: CO2, default: true, factor: 0.18, multiply_by: distance, unit: kg}
`

// NewStore opens an in-memory store with sequential IDs and loads catalog
// into it. The store is closed when the test ends.
func NewStore(t testing.TB, catalog string) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:", store.WithIDGenerator(NewSequentialGenerator("id")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	if catalog != "" {
		c, err := store.ParseCatalog(strings.NewReader(catalog))
		require.NoError(t, err)
		_, err = s.LoadCatalog(context.Background(), c)
		require.NoError(t, err)
	}
	return s
}
