package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/calcsync/internal/engine"
	"github.com/roach88/calcsync/internal/remote"
	"github.com/roach88/calcsync/internal/testutil"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Type: EventStep, Action: ActionCalculate, Seq: 1},
		{Type: EventCall, Action: remote.OpGetOrCreateContainer, Args: map[string]any{"id": "id-4"}, Seq: 2},
		{Type: EventCall, Action: remote.OpCreateItem, Args: map[string]any{
			"container": "id-4",
			"key":       []any{[]string{"fuel", "diesel"}},
			"values":    map[string]string{"distance": "10"},
		}, Seq: 3},
		{Type: EventCall, Action: remote.OpGetItem, Args: map[string]any{"id": "id-5"}, Seq: 4},
		{Type: EventCall, Action: remote.OpGetItem, Args: map[string]any{"id": "id-5"}, Seq: 5},
	}
}

func TestAssertCallContains(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name string
		a    Assertion
		ok   bool
	}{
		{"op only", Assertion{Op: remote.OpCreateItem}, true},
		{"scalar arg", Assertion{Op: remote.OpCreateItem, Args: map[string]any{"container": "id-4"}}, true},
		{"values subset", Assertion{Op: remote.OpCreateItem, Args: map[string]any{"values": map[string]any{"distance": 10}}}, true},
		{"key list", Assertion{Op: remote.OpCreateItem, Args: map[string]any{"key": []any{[]any{"fuel", "diesel"}}}}, true},
		{"wrong value", Assertion{Op: remote.OpCreateItem, Args: map[string]any{"container": "id-9"}}, false},
		{"missing arg", Assertion{Op: remote.OpCreateItem, Args: map[string]any{"name": "x"}}, false},
		{"step is not a call", Assertion{Op: ActionCalculate}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertCallContains(trace, tt.a)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assertErr, ok := err.(*AssertionError)
			require.True(t, ok)
			assert.Equal(t, AssertCallContains, assertErr.Type)
			assert.Equal(t, "not found in trace", assertErr.Actual)
		})
	}
}

func TestAssertCallOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertCallOrder(trace, Assertion{Ops: []string{remote.OpGetOrCreateContainer, remote.OpCreateItem, remote.OpGetItem}}))

	err := assertCallOrder(trace, Assertion{Ops: []string{remote.OpCreateItem, remote.OpGetOrCreateContainer}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertCallOrder(trace, Assertion{Ops: []string{remote.OpDeleteItem}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing call: item_delete")
}

func TestAssertCallCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertCallCount(trace, Assertion{Op: remote.OpGetItem, Count: 2}))
	assert.NoError(t, assertCallCount(trace, Assertion{Op: remote.OpDeleteItem, Count: 0}))

	err := assertCallCount(trace, Assertion{Op: remote.OpGetItem, Count: 1})
	require.Error(t, err)
	assertErr := err.(*AssertionError)
	assert.Equal(t, "2 calls", assertErr.Actual)
	assert.Contains(t, err.Error(), "Full trace:")
}

func TestAssertFinalValue(t *testing.T) {
	result := NewResult()
	result.Final = engine.Snapshot{Fields: []engine.FieldSnapshot{
		{Label: "co2", Value: "1.7999999999999998"},
		{Label: "fuel", Value: "diesel"},
	}}

	assert.NoError(t, assertFinalValue(result, Assertion{Label: "co2", Value: "1.8"}))
	assert.NoError(t, assertFinalValue(result, Assertion{Label: "fuel", Value: "diesel"}))
	assert.Error(t, assertFinalValue(result, Assertion{Label: "fuel", Value: "petrol"}))

	err := assertFinalValue(result, Assertion{Label: "size"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such field")
}

func TestAssertFinalState(t *testing.T) {
	st := testutil.NewStore(t, testutil.CarCatalog)
	ctx := context.Background()

	tests := []struct {
		name string
		a    Assertion
		want string
	}{
		{"match", Assertion{Table: "categories", Expect: map[string]any{"path": "/transport/car", "seq": 1}}, ""},
		{"where", Assertion{Table: "data_item_drills", Where: map[string]any{"item_id": "id-3", "path": "fuel"}, Expect: map[string]any{"value": "petrol"}}, ""},
		{"real column", Assertion{Table: "data_item_outputs", Where: map[string]any{"item_id": "id-2"}, Expect: map[string]any{"factor": 0.15, "is_default": true}}, ""},
		{"wrong value", Assertion{Table: "categories", Expect: map[string]any{"path": "/transport/bus"}}, `field "path"`},
		{"missing column", Assertion{Table: "categories", Expect: map[string]any{"colour": "red"}}, "not present"},
		{"no row", Assertion{Table: "items", Expect: map[string]any{"name": "x"}}, "row not found"},
		{"ambiguous", Assertion{Table: "data_items", Expect: map[string]any{"category": "/transport/car"}}, "multiple rows matched"},
		{"bad table", Assertion{Table: "items; DROP TABLE items", Expect: map[string]any{"a": 1}}, "invalid table name"},
		{"bad column", Assertion{Table: "items", Where: map[string]any{"a b": 1}, Expect: map[string]any{"a": 1}}, "invalid column name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(ctx, st, tt.a)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertCallCount, Op: remote.OpCreateItem, Count: 1},
		{Type: AssertFinalState, Table: "items", Expect: map[string]any{"a": 1}},
		{Type: "vibes"},
	}, nil)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "final_state requires database context")
	assert.Contains(t, errs[1], `unknown assertion type "vibes"`)
}

func TestValuesMatch(t *testing.T) {
	assert.True(t, valuesMatch("2", "2.0"))
	assert.True(t, valuesMatch("0.8999999999999999", "0.9"))
	assert.True(t, valuesMatch("", ""))
	assert.False(t, valuesMatch("", "0"))
	assert.False(t, valuesMatch("diesel", "petrol"))
}
