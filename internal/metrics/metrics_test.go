package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// InitMetrics uses sync.Once, so these tests assert deltas rather than
// absolute values.

func TestRecorderBeforeInitIsNoop(t *testing.T) {
	if IsMetricsRegistered() {
		t.Skip("metrics already registered by another test")
	}
	r := NewRecorder()
	assert.NotPanics(t, func() {
		r.RecordPopulate(OutcomeSuccess, 3, 0.01)
		r.RecordStoreWrite("memory", OutcomeSuccess)
	})
}

func TestRecordPopulate(t *testing.T) {
	InitMetrics()
	r := NewRecorder()

	success := testutil.ToFloat64(GetPopulateTotal().WithLabelValues(OutcomeSuccess))
	failure := testutil.ToFloat64(GetPopulateTotal().WithLabelValues(OutcomeFailure))
	keys := testutil.ToFloat64(GetKeysGenerated())

	r.RecordPopulate(OutcomeSuccess, 2, 0.002)
	r.RecordPopulate(OutcomeFailure, 3, 0.001)

	assert.Equal(t, success+1, testutil.ToFloat64(GetPopulateTotal().WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, failure+1, testutil.ToFloat64(GetPopulateTotal().WithLabelValues(OutcomeFailure)))
	assert.Equal(t, keys+2, testutil.ToFloat64(GetKeysGenerated()), "failed runs generate no keys")
}

func TestRecordStoreWrite(t *testing.T) {
	InitMetrics()
	r := NewRecorder()

	before := testutil.ToFloat64(GetStoreWritesTotal().WithLabelValues("aws.secretsmanager", OutcomeFailure))
	r.RecordStoreWrite("aws.secretsmanager", OutcomeFailure)

	assert.Equal(t, before+1, testutil.ToFloat64(GetStoreWritesTotal().WithLabelValues("aws.secretsmanager", OutcomeFailure)))
	assert.True(t, IsMetricsRegistered())
}

func TestInitMetricsConcurrentWithRecord(t *testing.T) {
	const workers = 16
	r := NewRecorder()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			InitMetrics()
			r.RecordStoreWrite("concurrent", OutcomeSuccess)
			_ = IsMetricsRegistered()
		}()
	}
	wg.Wait()

	assert.True(t, IsMetricsRegistered())
	assert.Equal(t, float64(workers), testutil.ToFloat64(GetStoreWritesTotal().WithLabelValues("concurrent", OutcomeSuccess)))
}
