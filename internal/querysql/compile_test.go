package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/calcsync/internal/ir"
)

func TestCompileDistinctValues(t *testing.T) {
	c := NewSQLCompiler()

	sql, params, err := c.Compile(DistinctValues{
		Path:   "size",
		Filter: Selection("/car", []ir.Pair{{Path: "fuel", Value: "diesel"}}),
	})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT DISTINCT v.value FROM data_items i"+
			" JOIN data_item_drills v ON v.item_id = i.id AND v.path = ?"+
			" WHERE (i.category = ? AND EXISTS (SELECT 1 FROM data_item_drills d"+
			" WHERE d.item_id = i.id AND d.path = ? AND d.value = ?))"+
			" ORDER BY v.value COLLATE BINARY ASC",
		sql)
	assert.Equal(t, []any{"size", "/car", "fuel", "diesel"}, params)
}

func TestCompileDistinctValuesCategoryOnly(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile(&DistinctValues{
		Path:   "fuel",
		Filter: Selection("/car", nil),
	})
	require.NoError(t, err)

	assert.Contains(t, sql, " WHERE i.category = ? ORDER BY")
	assert.Equal(t, []any{"fuel", "/car"}, params)
}

func TestCompileMatchItems(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile(MatchItems{
		Filter: Selection("/car", []ir.Pair{{Path: "fuel", Value: "diesel"}, {Path: "size", Value: "large"}}),
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "SELECT i.id FROM data_items i WHERE (")
	assert.Contains(t, sql, "ORDER BY i.seq ASC, i.id COLLATE BINARY ASC")
	assert.Equal(t, []any{"/car", "fuel", "diesel", "size", "large"}, params)
}

func TestCompileAlwaysOrders(t *testing.T) {
	c := NewSQLCompiler()
	queries := []Query{
		DistinctValues{Path: "fuel"},
		MatchItems{},
		MatchItems{Filter: And{}},
	}

	for _, q := range queries {
		sql, _, err := c.Compile(q)
		require.NoError(t, err)
		assert.Contains(t, sql, "ORDER BY")
	}
}

func TestCompileEmptyAnd(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile(MatchItems{Filter: And{}})
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE 1 = 1")
	assert.Empty(t, params)
}

func TestCompileErrors(t *testing.T) {
	c := NewSQLCompiler()

	_, _, err := c.Compile(nil)
	assert.Error(t, err)

	_, _, err = c.Compile(DistinctValues{})
	assert.Error(t, err)
}
