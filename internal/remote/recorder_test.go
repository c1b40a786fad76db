package remote

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	drillErr error
}

func (s *stubService) Drilldown(ctx context.Context, category string, selection []Pair) (DrillResult, error) {
	if s.drillErr != nil {
		return DrillResult{}, s.drillErr
	}
	return DrillResult{Next: "size", Choices: []string{"large", "small"}, Resolved: selection}, nil
}

func (s *stubService) CreateItem(ctx context.Context, containerID, category string, key []Pair, values map[string]string, opts ItemOptions) (string, error) {
	return "item-1", nil
}

func (s *stubService) GetItem(ctx context.Context, ref ItemRef) (Item, error) {
	return Item{}, NotFoundf("item %s", ref.ID)
}

func (s *stubService) UpdateItem(ctx context.Context, ref ItemRef, values map[string]string, opts ItemOptions) error {
	return nil
}

func (s *stubService) DeleteItem(ctx context.Context, ref ItemRef) error { return nil }

func (s *stubService) GetOrCreateContainer(ctx context.Context) (string, error) {
	return "container-1", nil
}

type metadataStub struct {
	stubService
}

func (m *metadataStub) ItemMetadata(ctx context.Context, ref ItemRef) (map[string]string, error) {
	return map[string]string{"owner": "fleet"}, nil
}

func TestRecorderRecordsCalls(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(&stubService{}, nil)

	_, err := rec.Drilldown(ctx, "/car", []Pair{{Path: "fuel", Value: "diesel"}})
	require.NoError(t, err)
	id, err := rec.CreateItem(ctx, "c1", "/car", nil, map[string]string{"distance": "5"}, ItemOptions{})
	require.NoError(t, err)
	assert.Equal(t, "item-1", id)

	calls := rec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, OpDrilldown, calls[0].Op)
	assert.Equal(t, []any{[]string{"fuel", "diesel"}}, calls[0].Args["selection"])
	assert.Equal(t, OpCreateItem, calls[1].Op)
	assert.Equal(t, "item-1", calls[1].Args["id"])
	assert.Equal(t, 1, rec.Count(OpCreateItem))
}

func TestRecorderRecordsErrors(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(&stubService{drillErr: Unavailablef("boom")}, nil)

	_, err := rec.Drilldown(ctx, "/car", nil)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))

	_, err = rec.GetItem(ctx, ItemRef{ContainerID: "c1", ID: "missing"})
	assert.True(t, IsNotFound(err))

	calls := rec.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].Error, "boom")
	assert.Contains(t, calls[1].Error, "not found")
}

func TestRecorderSinceAndReset(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(&stubService{}, nil)

	_, _ = rec.GetOrCreateContainer(ctx)
	mark := rec.Len()
	require.NoError(t, rec.DeleteItem(ctx, ItemRef{ContainerID: "c1", ID: "i1"}))

	since := rec.Since(mark)
	require.Len(t, since, 1)
	assert.Equal(t, OpDeleteItem, since[0].Op)
	assert.Nil(t, rec.Since(10))

	rec.Reset()
	assert.Equal(t, 0, rec.Len())
}

func TestRecorderItemMetadata(t *testing.T) {
	ctx := context.Background()
	ref := ItemRef{ContainerID: "c1", ID: "i1"}

	plain := NewRecorder(&stubService{}, nil)
	md, err := plain.ItemMetadata(ctx, ref)
	require.NoError(t, err)
	assert.Nil(t, md)
	assert.Equal(t, 0, plain.Len())

	withMeta := NewRecorder(&metadataStub{}, nil)
	md, err = withMeta.ItemMetadata(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "fleet", md["owner"])
	assert.Equal(t, 1, withMeta.Count(OpItemMetadata))
}

func TestErrorHelpers(t *testing.T) {
	err := NotFoundf("container %s", "c9")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, IsUnavailable(err))
	assert.Equal(t, "remote: not found: container c9", err.Error())
}

func TestItemRefPath(t *testing.T) {
	ref := ItemRef{ContainerID: "c1", ID: "i1"}
	assert.Equal(t, "/containers/c1/items/i1", ref.Path())
	assert.False(t, ref.IsZero())
	assert.True(t, ItemRef{}.IsZero())
}
