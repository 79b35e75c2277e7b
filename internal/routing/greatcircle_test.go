package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripnav/internal/journey"
)

func TestGreatCircle(t *testing.T) {
	g := NewGreatCircle(journey.DefaultCatalog())
	from := journey.Location{Latitude: 6.5, Longitude: 3.3}
	to := journey.Location{Latitude: 6.5, Longitude: 3.31}

	t.Run("walking leg", func(t *testing.T) {
		res, err := g.CalculateRoute(context.Background(), from, to, journey.ModeWalk)
		require.NoError(t, err)
		assert.InDelta(t, from.DistanceTo(to), res.DistanceMeters, 1e-6)
		assert.InDelta(t, res.DistanceMeters/1.4/60, res.DurationMinutes, 1e-6)
		assert.Len(t, res.Path, 2)
		assert.NotEmpty(t, res.Polyline)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := g.CalculateRoute(context.Background(), from, to, journey.ModeTrain)
		assert.Error(t, err)
	})

	t.Run("too few stops", func(t *testing.T) {
		_, err := g.CalculateMultiStopRoute(context.Background(), []journey.Location{from}, journey.ModeBus)
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := g.CalculateRoute(ctx, from, to, journey.ModeBus)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
