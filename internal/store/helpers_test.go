package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

type seqIDs struct {
	prefix string
	n      int
}

func (g *seqIDs) Generate() string {
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// createTestStore creates a file-backed store with sequential IDs.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(&seqIDs{prefix: "id"}))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

const carCatalogYAML = `
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

// seededStore returns a store loaded with the car catalog.
func seededStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	c, err := ParseCatalog(strings.NewReader(carCatalogYAML))
	if err != nil {
		t.Fatalf("ParseCatalog() failed: %v", err)
	}
	if _, err := s.LoadCatalog(context.Background(), c); err != nil {
		t.Fatalf("LoadCatalog() failed: %v", err)
	}
	return s
}
