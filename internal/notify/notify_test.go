package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripnav/internal/journey"
	"tripnav/internal/logging"
)

type stubNotifier struct {
	err   error
	calls []string
}

func (s *stubNotifier) record(op string) error {
	s.calls = append(s.calls, op)
	return s.err
}

func (s *stubNotifier) SendMilestoneNotification(context.Context, journey.TripState, journey.Milestone) error {
	return s.record("milestone")
}

func (s *stubNotifier) SendRerouteNotification(context.Context, journey.TripState, string) error {
	return s.record("reroute")
}

func (s *stubNotifier) SendTripCompletedNotification(context.Context, journey.TripState) error {
	return s.record("completed")
}

func (s *stubNotifier) TriggerVibration(context.Context, []time.Duration) error {
	return s.record("vibrate")
}

func (s *stubNotifier) ShowInAppAlert(context.Context, string, string) error {
	return s.record("alert")
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLog(logging.NewStructuredLogger(&buf, slog.LevelDebug))
	ctx := context.Background()
	trip := journey.TripState{TripID: "t1"}

	require.NoError(t, n.SendMilestoneNotification(ctx, trip, journey.Milestone{ID: "ms-1", StopName: "Yaba"}))
	require.NoError(t, n.TriggerVibration(ctx, []time.Duration{time.Second}))

	out := buf.String()
	assert.Contains(t, out, `"msg":"milestone"`)
	assert.Contains(t, out, `"stop":"Yaba"`)
	assert.Contains(t, out, `"msg":"vibrate"`)
}

func TestMultiSwallowsFailures(t *testing.T) {
	var buf bytes.Buffer
	broken := &stubNotifier{err: errors.New("push gateway down")}
	ok := &stubNotifier{}
	m := NewMulti(logging.NewStructuredLogger(&buf, slog.LevelDebug), broken, nil, ok)
	ctx := context.Background()

	assert.NoError(t, m.SendRerouteNotification(ctx, journey.TripState{}, "deviation"))
	assert.NoError(t, m.ShowInAppAlert(ctx, "a", "b"))

	assert.Equal(t, []string{"reroute", "alert"}, broken.calls)
	assert.Equal(t, []string{"reroute", "alert"}, ok.calls)
	assert.Contains(t, buf.String(), "push gateway down")
	assert.Contains(t, buf.String(), `"operation":"reroute"`)
}
