package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Counters(t *testing.T) {
	r := New()

	r.ObserveCacheLookup("risk_model", true)
	r.ObserveCacheLookup("risk_model", false)
	r.ObserveCacheLookup("risk_model", false)
	r.ObserveStrategy("optimization", "MaxSharpe", nil)
	r.ObserveStrategy("optimization", "MaxSharpe", errors.New("x"))
	r.ObservePeriod("skipped")
	r.ObserveRows(3, 1)
	r.ObserveStage("allocation", 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues("risk_model", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues("risk_model", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.StrategyInvocations.WithLabelValues("optimization", "MaxSharpe", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Periods.WithLabelValues("skipped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.OptimizationRows.WithLabelValues("success")))
}

func TestRegistry_NilIsSafe(t *testing.T) {
	var r *Registry
	r.ObserveCacheLookup("data", true)
	r.ObserveStage("data", time.Second)
	r.ObserveStrategy("data", "csv", nil)
	r.ObservePeriod("completed")
	r.ObserveRows(1, 1)
}

func TestRegistry_Handler(t *testing.T) {
	r := New()
	r.ObservePeriod("completed")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `frontier_periods_total{outcome="completed"} 1`))
}
