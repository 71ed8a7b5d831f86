package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.IncrementRecord(OutcomeEnriched)
	m.IncrementRecord(OutcomeEnriched)
	m.IncrementRecord(OutcomeUnchanged)
	m.ObserveResolve("embedded", 1, 200*time.Millisecond)
	m.ObserveResolve("query", 5, 2*time.Second)
	m.ObserveResolve("cache", 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsTotal.WithLabelValues(OutcomeEnriched)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsTotal.WithLabelValues(OutcomeUnchanged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResolveSource.WithLabelValues("query")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.ResolveAttempts))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ResolveDuration))
}

func TestMetrics_ObserveFetch(t *testing.T) {
	m := New()
	m.ObserveFetch("page", 100*time.Millisecond)
	m.ObserveFetch("json", 50*time.Millisecond)
	m.ObserveFetch("page", 300*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(m.FetchDuration, "emojidb_fetch_duration_seconds"))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration
	a, b := New(), New()
	a.IncrementRecord(OutcomeEnriched)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.RecordsTotal.WithLabelValues(OutcomeEnriched)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RecordsTotal.WithLabelValues(OutcomeEnriched)))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveFetch("page", time.Second)
		m.ObserveResolve("none", 5, time.Second)
		m.IncrementRecord(OutcomeUnchanged)
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.Push(context.Background(), "http://127.0.0.1:1", ""))
}

func TestMetrics_Push(t *testing.T) {
	var pushes int32
	var path atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pushes, 1)
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := New()
	m.IncrementRecord(OutcomeEnriched)

	require.NoError(t, m.Push(context.Background(), server.URL, ""))
	assert.Equal(t, int32(1), atomic.LoadInt32(&pushes))
	pushed, _ := path.Load().(string)
	assert.True(t, strings.HasPrefix(pushed, "/metrics/job/"+DefaultJob), pushed)

	// Empty URL does nothing
	require.NoError(t, m.Push(context.Background(), "", "ignored"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&pushes))
}

func TestMetrics_PushFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := New().Push(context.Background(), server.URL, "emojidb-test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to push metrics")
}
