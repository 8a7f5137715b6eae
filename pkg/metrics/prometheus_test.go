package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg, reg)

	r.RecordRowsWritten("csv", "weekly", 10)
	r.RecordRowsWritten("csv", "weekly", 5)
	r.RecordError("fetch")
	r.RecordLastValue("weekly", "net_liq", 6.5)
	r.RecordLatency("fetch", 0.2)

	assert.Equal(t, 15.0, testutil.ToFloat64(r.rowsWritten.WithLabelValues("csv", "weekly")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("fetch")))
	assert.Equal(t, 6.5, testutil.ToFloat64(r.lastValue.WithLabelValues("weekly", "net_liq")))
}

func TestPush(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		gotBody, _ = io.ReadAll(req.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg, reg)
	r.RecordError("fetch")

	require.NoError(t, r.Push(context.Background(), srv.URL, "fred_pipeline"))
	assert.Equal(t, "/metrics/job/fred_pipeline", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestPushDisabled(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg, reg)
	assert.NoError(t, r.Push(context.Background(), "", "job"))
}
