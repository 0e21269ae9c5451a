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

func TestCollectorRecordInvocation(t *testing.T) {
	c := NewCollector("metrics_test_kernel")

	c.RecordInvocation("int32", nil, time.Millisecond, 10)
	c.RecordInvocation("int32", errors.New("boom"), time.Millisecond, 10)

	assert.Equal(t, 1.0, testutil.ToFloat64(KernelInvocations.WithLabelValues("metrics_test_kernel", "int32", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(KernelInvocations.WithLabelValues("metrics_test_kernel", "int32", StatusFailure)))
	// failed invocations do not count rows
	assert.Equal(t, 10.0, testutil.ToFloat64(RowsProcessed.WithLabelValues("metrics_test_kernel")))
}

func TestRecordAllocation(t *testing.T) {
	before := testutil.ToFloat64(BytesInUse)
	allocated := testutil.ToFloat64(BytesAllocated)

	RecordAllocation(128)
	RecordAllocation(-128)

	assert.Equal(t, before, testutil.ToFloat64(BytesInUse))
	assert.Equal(t, allocated+128, testutil.ToFloat64(BytesAllocated))
}

func TestThroughputTracker(t *testing.T) {
	tracker := NewThroughputTracker("metrics_test_throughput")
	tracker.Increment(100)
	time.Sleep(5 * time.Millisecond)

	rate := tracker.GetAndReset()
	assert.Greater(t, rate, 0.0)
	assert.Equal(t, rate, testutil.ToFloat64(Throughput.WithLabelValues("metrics_test_throughput")))
}

func TestHandlerServesKernelMetrics(t *testing.T) {
	NewCollector("metrics_test_handler").RecordInvocation("string", nil, time.Microsecond, 1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "stratum_kernel_invocations_total"))
}
