package planapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/businessmodel"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/tenant"
)

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	p := &businessmodel.Plan{ID: "plan_a", Name: "A", SupportedCurrencies: []string{"INR"}}
	require.NoError(t, m.Create(ctx, liveT1, p))
	assert.ErrorIs(t, m.Create(ctx, liveT1, p), ErrPlanExists)

	p.Name = "mutated after create"
	got, err := m.Get(ctx, liveT1, "plan_a")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name, "store keeps its own copy")

	got.Name = "B"
	require.NoError(t, m.Update(ctx, liveT1, got))
	got, err = m.Get(ctx, liveT1, "plan_a")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Name)

	require.NoError(t, m.Delete(ctx, liveT1, "plan_a"))
	_, err = m.Get(ctx, liveT1, "plan_a")
	assert.ErrorIs(t, err, businessmodel.ErrPlanNotFound)
	assert.ErrorIs(t, m.Delete(ctx, liveT1, "plan_a"), businessmodel.ErrPlanNotFound)
	assert.ErrorIs(t, m.Update(ctx, liveT1, got), businessmodel.ErrPlanNotFound)
}

func TestMemoryStore_ScopeIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	testT1 := tenant.Context{TenantID: "t1"}
	liveT2 := tenant.Context{TenantID: "t2", IsLive: true}

	require.NoError(t, m.Create(ctx, liveT1, &businessmodel.Plan{ID: "plan_a", Name: "A"}))

	for _, sc := range []tenant.Context{testT1, liveT2} {
		list, err := m.List(ctx, sc, businessmodel.Filters{})
		require.NoError(t, err)
		assert.Empty(t, list)
		_, err = m.Get(ctx, sc, "plan_a")
		assert.ErrorIs(t, err, businessmodel.ErrPlanNotFound)
	}
}

func TestMemoryStore_Versions(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Create(ctx, liveT1, &businessmodel.Plan{ID: "plan_a", Name: "A"}))

	tiers := func(price float64) []businessmodel.Tier {
		return []businessmodel.Tier{{MinValue: 1, Prices: businessmodel.Prices{"INR": price}}}
	}
	require.NoError(t, m.AddVersion(ctx, liveT1, "plan_a", businessmodel.Version{ID: "ver_1", VersionNumber: "1.0", Tiers: tiers(10)}))
	require.NoError(t, m.AddVersion(ctx, liveT1, "plan_a", businessmodel.Version{ID: "ver_2", VersionNumber: "1.1", Tiers: tiers(20)}))

	p, err := m.Get(ctx, liveT1, "plan_a")
	require.NoError(t, err)
	require.NotNil(t, p.ActiveVersion)
	assert.Equal(t, "ver_2", p.ActiveVersion.ID)
	assert.Equal(t, 20.0, p.Tiers[0].Prices["INR"])

	p, err = m.ActivateVersion(ctx, liveT1, "ver_1")
	require.NoError(t, err)
	assert.Equal(t, "ver_1", p.ActiveVersion.ID)
	assert.Equal(t, 10.0, p.Tiers[0].Prices["INR"])

	versions, err := m.Versions(ctx, liveT1, "plan_a")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.True(t, versions[0].IsActive)
	assert.False(t, versions[1].IsActive)
	assert.Equal(t, "plan_a", versions[1].PlanID)

	_, err = m.ActivateVersion(ctx, liveT1, "ver_missing")
	assert.ErrorIs(t, err, ErrVersionNotFound)
	assert.ErrorIs(t, m.AddVersion(ctx, liveT1, "plan_missing", businessmodel.Version{}), businessmodel.ErrPlanNotFound)

	require.NoError(t, m.Delete(ctx, liveT1, "plan_a"))
	_, err = m.Versions(ctx, liveT1, "plan_a")
	assert.ErrorIs(t, err, businessmodel.ErrPlanNotFound)
}
