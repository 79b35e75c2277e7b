package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector(5*time.Second, 10*time.Second)

	c.TripsStarted.Inc()
	c.Reroutes.WithLabelValues("auto", "applied").Inc()
	c.DeviationChecks.WithLabelValues("severe").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.TripsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Reroutes.WithLabelValues("auto", "applied")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.DeviationChecks.WithLabelValues("severe")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.DeviationInterval))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector(time.Second, time.Second)
	c.MilestonesReached.Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tripnav_milestones_reached_total 1")
	assert.Contains(t, rec.Body.String(), "tripnav_location_interval_seconds 1")
}
