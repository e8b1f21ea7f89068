package geo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibre-cost/core/types"
)

func TestHaversineKm(t *testing.T) {
	assert.Zero(t, HaversineKm(19.0760, 72.8777, 19.0760, 72.8777))
	// Mumbai to Delhi is roughly 1150 km
	assert.InDelta(t, 1150, HaversineKm(19.0760, 72.8777, 28.6139, 77.2090), 15)
}

func TestFindNearestSortsAscending(t *testing.T) {
	l := NewStaticLocator(nil)

	got, err := l.FindNearest(context.Background(), 19.0760, 72.8777, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Jio", got[0].Name)
	assert.InDelta(t, 0, got[0].DistanceKm, 1e-9)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].DistanceKm, got[i].DistanceKm)
	}
	// the Mumbai cluster wins over other cities
	for _, p := range got {
		assert.Less(t, p.DistanceKm, 20.0)
	}
}

func TestFindNearestReturnsAtLeastOne(t *testing.T) {
	l := NewStaticLocator(nil)

	got, err := l.FindNearest(context.Background(), 12.97, 77.59, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = l.FindNearest(context.Background(), 12.97, 77.59, 50)
	require.NoError(t, err)
	assert.Len(t, got, len(ReferenceProviders()))
}

func TestFindNearestDoesNotMutateReferenceSet(t *testing.T) {
	providers := []types.NearbyProvider{{Name: "A", Latitude: 1, Longitude: 1}}
	l := NewStaticLocator(providers)

	_, err := l.FindNearest(context.Background(), 0, 0, 1)
	require.NoError(t, err)
	assert.Zero(t, providers[0].DistanceKm)
}

func TestFindNearestHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStaticLocator(nil).FindNearest(ctx, 0, 0, 3)
	assert.ErrorIs(t, err, context.Canceled)
}
