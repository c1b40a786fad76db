package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/calcsync/internal/field"
	"github.com/roach88/calcsync/internal/remote"
	"github.com/roach88/calcsync/internal/testutil"
)

func TestCalculateRoundTrip(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	calc := carTemplate(t).Begin(fx.rec, WithItemName("commute"))

	require.NoError(t, calc.Choose(ctx, Selection{"fuel": "diesel", "size": "large", "distance": "5"}))
	assert.Equal(t, StateValidated, calc.State())
	require.NoError(t, calc.Calculate(ctx))

	assert.Equal(t, StateCleanBound, calc.State())
	assert.False(t, calc.Dirty())
	require.True(t, calc.Bound())
	assert.InDelta(t, 1.0, floatValue(t, calc, "co2"), 1e-9)
	assert.Equal(t, "kg", calc.Field("co2").Unit())
	assert.Equal(t, 1, fx.rec.Count(remote.OpCreateItem))

	item, err := fx.store.GetItem(ctx, remote.ItemRef{ContainerID: calc.ContainerID(), ID: calc.ItemID()})
	require.NoError(t, err)
	assert.Equal(t, "commute", item.Name)
	assert.Equal(t, map[string]string{"distance": "5"}, item.Values)

	require.NoError(t, calc.Choose(ctx, Selection{"distance": "10"}))
	require.NoError(t, calc.Calculate(ctx))

	assert.InDelta(t, 2.0, floatValue(t, calc, "co2"), 1e-9)
	assert.Equal(t, 1, fx.rec.Count(remote.OpCreateItem))
	assert.Equal(t, 1, fx.rec.Count(remote.OpUpdateItem))
}

func TestChooseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	calc := carTemplate(t).Begin(fx.rec)
	sel := Selection{"fuel": "diesel", "size": "large", "distance": "5"}

	require.NoError(t, calc.Choose(ctx, sel))
	require.NoError(t, calc.Calculate(ctx))
	n := fx.rec.Len()

	require.NoError(t, calc.Choose(ctx, sel))
	require.NoError(t, calc.Calculate(ctx))

	assert.Empty(t, fx.rec.Since(n), "a clean calculation makes no remote calls")
	assert.Equal(t, StateCleanBound, calc.State())
}

func TestCalculateInsufficientInput(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	calc := carTemplate(t).Begin(fx.rec)

	require.NoError(t, calc.Choose(ctx, Selection{"fuel": "diesel", "distance": "5"}))
	require.NoError(t, calc.Calculate(ctx))

	assert.Equal(t, StateCleanUnbound, calc.State())
	assert.False(t, calc.Bound())
	assert.NotEmpty(t, calc.ContainerID())
	assert.Equal(t, 0, fx.rec.Count(remote.OpCreateItem))

	compulsory, err := calc.Compulsory(ctx, "size")
	require.NoError(t, err)
	assert.True(t, compulsory)
}

func TestOrderingViolation(t *testing.T) {
	ctx := context.Background()
	calc := carTemplate(t).Begin(newFixture(t).rec)

	err := calc.Choose(ctx, Selection{"size": "large"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.True(t, IsOrderingError(err))
	assert.Equal(t, "", calc.Value("size"))
	assert.Contains(t, calc.Invalidity()["size"], `"fuel"`)
	assert.Contains(t, err.Error(), "validation failed: size:")

	// Choosing petrol leaves one size, which is set automatically.
	require.NoError(t, calc.Choose(ctx, Selection{"fuel": "petrol"}))
	assert.Equal(t, "small", calc.Value("size"))
	assert.Empty(t, calc.Invalidity())

	compulsory, err := calc.Compulsory(ctx, "size")
	require.NoError(t, err)
	assert.False(t, compulsory)
}

func TestUnsetEarlierSelectorMakesLaterCompulsory(t *testing.T) {
	ctx := context.Background()
	calc := carTemplate(t).Begin(newFixture(t).rec)

	compulsory, err := calc.Compulsory(ctx, "size")
	require.NoError(t, err)
	assert.True(t, compulsory)

	_, err = calc.Choices(ctx, "size")
	assert.True(t, IsOrderingError(err))
}

func TestInvalidSelectorIsCleared(t *testing.T) {
	ctx := context.Background()
	calc := carTemplate(t).Begin(newFixture(t).rec)

	ok, err := calc.TryChoose(ctx, Selection{"fuel": "electric", "distance": "5"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "", calc.Value("fuel"))
	assert.Equal(t, "5", calc.Value("distance"))
	assert.Equal(t, map[string]string{"fuel": `"electric" is not an available choice`}, calc.Invalidity())

	ok, err = calc.TryChoose(ctx, Selection{"fuel": "diesel"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChoices(t *testing.T) {
	ctx := context.Background()
	calc := carTemplate(t).Begin(newFixture(t).rec)

	choices, err := calc.Choices(ctx, "fuel")
	require.NoError(t, err)
	assert.Equal(t, []string{"diesel", "petrol"}, choices)

	require.NoError(t, calc.Choose(ctx, Selection{"fuel": "diesel"}))
	choices, err = calc.Choices(ctx, "size")
	require.NoError(t, err)
	assert.Equal(t, []string{"large", "small"}, choices)

	choices, err = calc.Choices(ctx, "distance")
	require.NoError(t, err)
	assert.Empty(t, choices)

	_, err = calc.Choices(ctx, "nope")
	assert.True(t, field.IsNotFoundError(err))
}

func TestSyntheticSelector(t *testing.T) {
	tmpl, err := NewBuilder("fuel-only").
		Category(carCategory).
		Selector(field.SelectorConfig{Config: field.Config{Label: "fuel"}}).
		ScopedInput(field.ScopedInputConfig{Config: field.Config{Label: "distance"}, Type: field.TypeDecimal}).
		Result(field.ResultConfig{Config: field.Config{Label: "co2"}, Default: true}).
		Build()
	require.NoError(t, err)

	ctx := context.Background()
	fx := newFixture(t)
	calc := tmpl.Begin(fx.rec)

	require.NoError(t, calc.Choose(ctx, Selection{"fuel": "petrol", "distance": "10"}))
	assert.Equal(t, []string{"fuel", "size", "distance", "co2"}, calc.Fields().Labels())

	size, ok := calc.Field("size").(*field.Selector)
	require.True(t, ok)
	assert.True(t, size.Synthetic())
	assert.False(t, size.Visible())
	assert.Equal(t, "small", size.Value())
	assert.Len(t, tmpl.Fields(), 3, "the template is not modified")

	require.NoError(t, calc.Calculate(ctx))
	assert.InDelta(t, 1.8, floatValue(t, calc, "co2"), 1e-9)
}

func TestCalculateLoadsBoundItem(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	ref := fx.seedItem(t,
		[]remote.Pair{{Path: "fuel", Value: "diesel"}, {Path: "size", Value: "large"}},
		map[string]string{"distance": "7"},
		map[string]string{"owner": "fleet"})

	calc := carTemplate(t).Begin(fx.rec, WithBinding(ref.ContainerID, ref.ID))
	require.NoError(t, calc.Calculate(ctx))

	assert.Equal(t, StateCleanBound, calc.State())
	assert.Equal(t, ref.ID, calc.ItemID())
	assert.Equal(t, "diesel", calc.Value("fuel"))
	assert.Equal(t, "large", calc.Value("size"))
	assert.Equal(t, "7", calc.Value("distance"))
	assert.Equal(t, "fleet", calc.Value("owner"))
	assert.InDelta(t, 1.4, floatValue(t, calc, "co2"), 1e-9)
	assert.Equal(t, 0, fx.rec.Count(remote.OpCreateItem))
	assert.Equal(t, 1, fx.rec.Count(remote.OpUpdateItem))
}

func TestLocalValuesWinOverBoundItem(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	ref := fx.seedItem(t,
		[]remote.Pair{{Path: "fuel", Value: "diesel"}, {Path: "size", Value: "large"}},
		map[string]string{"distance": "7"}, nil)

	calc := carTemplate(t).Begin(fx.rec)
	require.NoError(t, calc.Choose(ctx, Selection{
		KeyContainerID: ref.ContainerID,
		KeyItemID:      ref.ID,
		"distance":     "20",
	}))
	require.NoError(t, calc.Calculate(ctx))

	assert.Equal(t, "20", calc.Value("distance"))
	assert.InDelta(t, 4.0, floatValue(t, calc, "co2"), 1e-9)

	item, err := fx.store.GetItem(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "20", item.Values["distance"])
}

func TestInconsistentDrillDeletesItem(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	ref := fx.seedItem(t, []remote.Pair{{Path: "fuel", Value: "petrol"}}, nil, nil)

	calc := carTemplate(t).Begin(fx.rec, WithBinding(ref.ContainerID, ref.ID))
	// petrol has a single size, so the stale "large" survives validation.
	require.NoError(t, calc.Choose(ctx, Selection{"fuel": "petrol", "size": "large"}))
	require.NoError(t, calc.Calculate(ctx))

	assert.False(t, calc.Bound())
	assert.Equal(t, StateCleanUnbound, calc.State())
	assert.Equal(t, "petrol", calc.Value("fuel"))
	assert.Equal(t, "", calc.Value("size"))
	assert.Equal(t, 1, fx.rec.Count(remote.OpDeleteItem))

	_, err := fx.store.GetItem(ctx, ref)
	assert.True(t, remote.IsNotFound(err))
}

func TestChangedSelectionReplacesBoundItem(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	ref := fx.seedItem(t,
		[]remote.Pair{{Path: "fuel", Value: "diesel"}, {Path: "size", Value: "large"}},
		map[string]string{"distance": "7"}, nil)

	calc := carTemplate(t).Begin(fx.rec, WithBinding(ref.ContainerID, ref.ID))
	require.NoError(t, calc.Choose(ctx, Selection{"fuel": "diesel", "size": "small", "distance": "7"}))
	require.NoError(t, calc.Calculate(ctx))

	assert.Equal(t, StateCleanBound, calc.State())
	assert.Equal(t, "diesel", calc.Value("fuel"))
	assert.Equal(t, "small", calc.Value("size"), "a choice the catalog allows is kept")
	assert.InDelta(t, 1.05, floatValue(t, calc, "co2"), 1e-9)
	assert.Equal(t, 1, fx.rec.Count(remote.OpDeleteItem))
	assert.Equal(t, 1, fx.rec.Count(remote.OpCreateItem))

	require.NotEqual(t, ref.ID, calc.ItemID())
	item, err := fx.store.GetItem(ctx, remote.ItemRef{ContainerID: calc.ContainerID(), ID: calc.ItemID()})
	require.NoError(t, err)
	assert.Equal(t, []remote.Pair{{Path: "fuel", Value: "diesel"}, {Path: "size", Value: "small"}}, item.Key)

	_, err = fx.store.GetItem(ctx, ref)
	assert.True(t, remote.IsNotFound(err), "the stale item is deleted")
}

func TestChangedEarlierSelectorReplacesBoundItem(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	ref := fx.seedItem(t,
		[]remote.Pair{{Path: "fuel", Value: "diesel"}, {Path: "size", Value: "large"}},
		map[string]string{"distance": "7"}, nil)

	calc := carTemplate(t).Begin(fx.rec, WithBinding(ref.ContainerID, ref.ID))
	require.NoError(t, calc.Choose(ctx, Selection{"fuel": "petrol"}))
	assert.Equal(t, "small", calc.Value("size"), "petrol resolves size")

	require.NoError(t, calc.Calculate(ctx))
	assert.Equal(t, StateCleanBound, calc.State())
	assert.Equal(t, "petrol", calc.Value("fuel"))
	assert.Equal(t, "small", calc.Value("size"))
	assert.Equal(t, "7", calc.Value("distance"))
	assert.InDelta(t, 1.26, floatValue(t, calc, "co2"), 1e-9)
	assert.Equal(t, 1, fx.rec.Count(remote.OpDeleteItem))
	assert.Equal(t, 1, fx.rec.Count(remote.OpCreateItem))
}

func TestFailedPassRestoresLocalValues(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewStore(t, testutil.CarCatalog)
	container, err := s.GetOrCreateContainer(ctx)
	require.NoError(t, err)
	id, err := s.CreateItem(ctx, container, carCategory,
		[]remote.Pair{{Path: "fuel", Value: "diesel"}, {Path: "size", Value: "large"}},
		map[string]string{"distance": "7"}, remote.ItemOptions{Metadata: map[string]string{"owner": "fleet"}})
	require.NoError(t, err)

	faulty := testutil.NewFaultyService(s)
	calc := carTemplate(t).Begin(faulty, WithBinding(container, id))
	faulty.Fail(remote.OpUpdateItem, remote.Unavailablef("write timeout"))

	err = calc.Calculate(ctx)
	require.Error(t, err)
	assert.True(t, IsDidNotCreateError(err))
	assert.Equal(t, StateDirty, calc.State())
	assert.True(t, calc.Bound(), "an item this pass did not create stays bound")
	for _, label := range []string{"fuel", "size", "distance", "owner", "co2"} {
		assert.Equal(t, "", calc.Value(label), "%s is untouched by the failed pass", label)
	}

	faulty.Heal()
	require.NoError(t, calc.Calculate(ctx))
	assert.Equal(t, "large", calc.Value("size"))
	assert.Equal(t, "fleet", calc.Value("owner"))
	assert.InDelta(t, 1.4, floatValue(t, calc, "co2"), 1e-9)
}

func TestVanishedBindingIsReplaced(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	container, err := fx.store.GetOrCreateContainer(ctx)
	require.NoError(t, err)

	calc := carTemplate(t).Begin(fx.rec, WithBinding(container, "gone"))
	require.NoError(t, calc.Choose(ctx, Selection{"fuel": "diesel", "size": "small", "distance": "2"}))
	require.NoError(t, calc.Calculate(ctx))

	assert.Equal(t, StateCleanBound, calc.State())
	assert.NotEqual(t, "gone", calc.ItemID())
	assert.InDelta(t, 0.3, floatValue(t, calc, "co2"), 1e-9)
}

func TestFailedPassCompensates(t *testing.T) {
	ctx := context.Background()
	faulty := testutil.NewFaultyService(testutil.NewStore(t, testutil.CarCatalog))
	calc := carTemplate(t).Begin(faulty)

	require.NoError(t, calc.Choose(ctx, Selection{"fuel": "diesel", "size": "large", "distance": "5"}))
	faulty.Fail(remote.OpGetItem, remote.Unavailablef("read timeout"))

	err := calc.Calculate(ctx)
	require.Error(t, err)
	assert.True(t, IsDidNotCreateError(err))
	assert.True(t, errors.Is(err, remote.ErrUnavailable))

	assert.False(t, calc.Bound())
	assert.Equal(t, StateDirty, calc.State())
	assert.Equal(t, "diesel", calc.Value("fuel"))
	assert.Equal(t, "5", calc.Value("distance"))

	refs, err := faulty.Service.(interface {
		ListItems(context.Context, string) ([]remote.ItemRef, error)
	}).ListItems(ctx, calc.ContainerID())
	require.NoError(t, err)
	assert.Empty(t, refs, "the item created by the failed pass is deleted")

	faulty.Heal()
	require.NoError(t, calc.Calculate(ctx))
	assert.Equal(t, StateCleanBound, calc.State())
	assert.InDelta(t, 1.0, floatValue(t, calc, "co2"), 1e-9)
}

func TestFailedContainerLookup(t *testing.T) {
	ctx := context.Background()
	faulty := testutil.NewFaultyService(testutil.NewStore(t, testutil.CarCatalog))
	calc := carTemplate(t).Begin(faulty)
	faulty.Fail(remote.OpGetOrCreateContainer, remote.Unavailablef("down"))

	err := calc.Calculate(ctx)
	assert.True(t, IsDidNotCreateError(err))
	assert.Equal(t, "", calc.ContainerID())
}

func TestCreateWhileBoundIsDuplicate(t *testing.T) {
	ctx := context.Background()
	calc := carTemplate(t).Begin(newFixture(t).rec, WithBinding("c-1", "i-1"))

	err := calc.withPass(func(p *pass) error {
		return calc.createItem(ctx, p)
	})
	require.Error(t, err)
	assert.True(t, IsDuplicateBindingError(err))
	assert.Equal(t, "i-1", calc.ItemID())
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	calc := carTemplate(t).Begin(fx.rec)

	require.NoError(t, calc.Delete(ctx), "deleting an unbound calculation is a no-op")

	require.NoError(t, calc.Choose(ctx, Selection{"fuel": "diesel", "size": "large", "distance": "5"}))
	require.NoError(t, calc.Calculate(ctx))
	ref := remote.ItemRef{ContainerID: calc.ContainerID(), ID: calc.ItemID()}

	require.NoError(t, calc.Delete(ctx))
	assert.False(t, calc.Bound())
	assert.Equal(t, StateDirty, calc.State())
	assert.Equal(t, "", calc.Value("co2"))
	assert.Equal(t, "diesel", calc.Value("fuel"))

	_, err := fx.store.GetItem(ctx, ref)
	assert.True(t, remote.IsNotFound(err))

	// The next pass creates a fresh item.
	require.NoError(t, calc.Calculate(ctx))
	assert.True(t, calc.Bound())
	assert.NotEqual(t, ref.ID, calc.ItemID())
}
