package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveHTTPRequest(t *testing.T) {
	m := New(prometheus.NewRegistry(), nil)

	m.ObserveHTTPRequest("GET", "/documents", 200, 10*time.Millisecond)
	m.ObserveHTTPRequest("GET", "/documents", 200, 20*time.Millisecond)
	m.ObserveHTTPRequest("POST", "/documents", 400, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/documents", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/documents", "400")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.httpRequestDuration))
}

func TestObserveIngest(t *testing.T) {
	m := New(prometheus.NewRegistry(), nil)

	m.ObserveIngest(3, nil)
	m.ObserveIngest(2, nil)
	m.ObserveIngest(0, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.documentsIngested))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.chunksIngested))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestErrors))
}

func TestObserveQuery(t *testing.T) {
	m := New(prometheus.NewRegistry(), nil)

	m.ObserveQuery(5, 50*time.Millisecond, nil)
	m.ObserveQuery(0, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues("error")))
}

func TestObserveDelete(t *testing.T) {
	m := New(prometheus.NewRegistry(), nil)

	m.ObserveDelete()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.documentsDeleted))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
		m.ObserveIngest(1, nil)
		m.ObserveDelete()
		m.ObserveQuery(1, time.Millisecond, nil)
	})
}
