package trip

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripnav/internal/journey"
)

func TestEngineStart(t *testing.T) {
	ctx := context.Background()
	dest := north(origin, 3000)

	t.Run("falls back to the first stop without a fix", func(t *testing.T) {
		h := newHarness()
		st, err := h.engine.Start(ctx, "u1", corridor(), dest, nil)
		require.NoError(t, err)
		assert.Equal(t, origin.Latitude, st.StartLocation.Latitude)
		assert.Equal(t, 0, st.CurrentSegmentIndex)
		assert.Len(t, st.Milestones, 4)
		assert.Contains(t, h.logs.String(), "current location unavailable")
	})

	t.Run("uses the location service", func(t *testing.T) {
		h := newHarness()
		h.locations.Set(north(origin, 900))
		st, err := h.engine.Start(ctx, "u1", corridor(), dest, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, st.CurrentSegmentIndex)
		assert.True(t, st.Milestones[1].Skipped)
	})

	t.Run("starts mid-route when closer to a later leg", func(t *testing.T) {
		h := newHarness()
		here := north(origin, 2700)
		st, err := h.engine.Start(ctx, "u1", corridor(), dest, &here)
		require.NoError(t, err)
		assert.Equal(t, 2, st.CurrentSegmentIndex)
		assert.True(t, st.Milestones[1].Skipped)
		assert.True(t, st.Milestones[2].Skipped)
		assert.Equal(t, 3, NextMilestone(st.Milestones))
	})

	t.Run("rejects an empty route", func(t *testing.T) {
		h := newHarness()
		_, err := h.engine.Start(ctx, "u1", journey.Route{}, dest, nil)
		assert.ErrorIs(t, err, ErrEmptyRoute)
		assert.False(t, h.lifecycle.Active())
	})
}

func TestHandleLocationMilestones(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	_, err := h.engine.Start(ctx, "u1", corridor(), north(origin, 3000), &origin)
	require.NoError(t, err)

	h.engine.HandleLocation(ctx, north(origin, 190))

	assert.Equal(t, []string{journey.ActionApproaching, journey.ActionReached}, h.events.Actions(journey.EventMilestone))
	ev, _ := h.events.Last(journey.EventMilestone)
	require.NotNil(t, ev.Milestone)
	assert.Equal(t, "s1", ev.Milestone.StopID)
	assert.InDelta(t, 2810, ev.RemainingDistance, 1)
	require.NotNil(t, ev.State)
	assert.Equal(t, 1, ev.State.CurrentSegmentIndex)

	assert.Equal(t, []string{"Ojuelegba"}, h.notifier.milestones)
	assert.Equal(t, 1, h.notifier.vibrations)

	st, _ := h.lifecycle.Snapshot()
	assert.Equal(t, north(origin, 190), st.CurrentLocation)
	assert.Equal(t, 1, st.CurrentSegmentIndex)
}

func TestHandleLocationArrivalOverridesMilestones(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	_, err := h.engine.Start(ctx, "u1", corridor(), north(origin, 3000), &origin)
	require.NoError(t, err)

	h.engine.HandleLocation(ctx, north(origin, 2950))

	assert.False(t, h.lifecycle.Active())
	assert.Equal(t, int32(1), h.arrivals.Load())
	assert.Equal(t, 1, h.notifier.Completed())
	assert.Empty(t, h.events.Actions(journey.EventMilestone))

	ev, ok := h.events.Last(journey.EventStatusChange)
	require.True(t, ok)
	assert.Equal(t, journey.ActionCompleted, ev.Action)
	assert.Equal(t, 0, ev.CompletedSegments)
	assert.Equal(t, journey.StatusCompleted, ev.State.Status)

	h.engine.HandleLocation(ctx, north(origin, 3000))
	assert.Equal(t, int32(1), h.arrivals.Load(), "updates after completion are ignored")
}

func TestHandleLocationIgnoredUnlessInProgress(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	_, err := h.engine.Start(ctx, "u1", corridor(), north(origin, 3000), &origin)
	require.NoError(t, err)
	_, ok := h.lifecycle.Pause()
	require.True(t, ok)

	h.engine.HandleLocation(ctx, north(origin, 3000))
	st, ok := h.lifecycle.Snapshot()
	require.True(t, ok)
	assert.Equal(t, journey.StatusPaused, st.Status)
	assert.Equal(t, origin, st.CurrentLocation)

	_, ok = h.lifecycle.Resume()
	require.True(t, ok)
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	h.engine.HandleLocation(cancelled, north(origin, 3000))
	assert.True(t, h.lifecycle.Active())
}

func TestHandleLocationNotifierFailuresDoNotStopTrip(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.notifier.err = errors.New("push service down")
	_, err := h.engine.Start(ctx, "u1", corridor(), north(origin, 3000), &origin)
	require.NoError(t, err)

	h.engine.HandleLocation(ctx, north(origin, 200))
	st, _ := h.lifecycle.Snapshot()
	assert.True(t, st.Milestones[1].Reached)
	assert.Contains(t, h.logs.String(), "notification failed")
}

func TestSegmentIndexNeverDecreases(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	_, err := h.engine.Start(ctx, "u1", corridor(), north(origin, 3000), &origin)
	require.NoError(t, err)

	last := 0
	for _, m := range []float64{190, 100, 2790, 0, 1500, 2795, 50, 180, 2810} {
		h.engine.HandleLocation(ctx, north(origin, m))
		st, ok := h.lifecycle.Snapshot()
		require.True(t, ok)
		assert.GreaterOrEqual(t, st.CurrentSegmentIndex, last, "after update at %.0f m", m)
		last = st.CurrentSegmentIndex
	}
	assert.Equal(t, 2, last)
}

func TestTrackFeed(t *testing.T) {
	h := newHarness()
	h.locations.feed = make(chan journey.Location, 4)
	_, err := h.engine.Start(context.Background(), "u1", corridor(), north(origin, 3000), &origin)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		h.engine.Track(ctx)
		close(done)
	}()

	h.locations.feed <- north(origin, 190)
	h.locations.feed <- north(origin, 2960)

	require.Eventually(t, func() bool { return !h.lifecycle.Active() }, time.Second, 5*time.Millisecond)
	assert.Contains(t, h.events.Actions(journey.EventMilestone), journey.ActionReached)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Track did not return after cancel")
	}
}

func TestTrackPollsWhenFeedUnavailable(t *testing.T) {
	h := newHarness()
	_, err := h.engine.Start(context.Background(), "u1", corridor(), north(origin, 3000), &origin)
	require.NoError(t, err)
	h.locations.Set(north(origin, 2980))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.engine.Track(ctx)

	require.Eventually(t, func() bool { return !h.lifecycle.Active() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), h.arrivals.Load())
}

func TestLoops(t *testing.T) {
	var l Loops
	var exited atomic.Int32
	started := make(chan struct{}, 2)
	worker := func(ctx context.Context) {
		started <- struct{}{}
		<-ctx.Done()
		exited.Add(1)
	}

	l.StartLoops(context.Background(), worker, worker)
	<-started
	<-started
	l.Stop()
	assert.Equal(t, int32(2), exited.Load())

	l.StartLoops(context.Background(), worker)
	<-started
	l.StartLoops(context.Background(), worker)
	<-started
	assert.Equal(t, int32(3), exited.Load(), "restarting stops the previous set")
	l.Stop()
	assert.Equal(t, int32(4), exited.Load())

	stopped := make(chan struct{})
	l.StartLoops(context.Background(), func(ctx context.Context) {
		l.Cancel()
		<-ctx.Done()
	})
	go func() {
		l.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after a loop cancelled itself")
	}
	l.Stop()
}
