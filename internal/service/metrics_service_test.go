package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.ObserveHTTPRequest("GET", "/x", 200, time.Millisecond)
		m.RecordCacheOperation(true, time.Millisecond)
		m.ObserveCacheWrite(time.Millisecond)
		m.ObserveDBQuery("allocate", time.Millisecond)
		m.ObserveAllocation(OutcomeSuccess, 2, 2)
		m.ObserveExportJob("csv", "FINISHED")
	})
}

func TestMetricsServiceCountsAllocationOutcomes(t *testing.T) {
	m := NewMetricsService()
	m.ObserveAllocation(OutcomeSuccess, 2, 2)
	m.ObserveAllocation(OutcomePartial, 4, 3)
	m.ObserveAllocation(OutcomeAlreadyAllocated, 2, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocations.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocations.WithLabelValues(OutcomePartial)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocations.WithLabelValues(OutcomeAlreadyAllocated)))
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("POST", "/api/v1/subjects", 201, 5*time.Millisecond)
	m.ObserveAllocation(OutcomeSuccess, 1, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "slot_allocations_total"))
	assert.True(t, strings.Contains(body, `http_requests_total{method="POST",path="/api/v1/subjects",status="201"} 1`))
}
