package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoadmin-control/internal/reconcile"
)

func sampleCounter() *reconcile.Counter {
	c := reconcile.NewCounter()
	c.Add("provider", reconcile.OpAdded, 2)
	c.Increment("dataset", reconcile.OpRemoved)
	return c
}

func TestRecordRun_CommittedCountsOperations(t *testing.T) {
	r := NewRecorder()

	r.RecordRun("bod-sync", sampleCounter(), OutcomeCommitted, 2*time.Second)

	assert.InDelta(t, 2, testutil.ToFloat64(r.operations.WithLabelValues("bod-sync", "provider", "added")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.operations.WithLabelValues("bod-sync", "dataset", "removed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.runs.WithLabelValues("bod-sync", OutcomeCommitted)), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
}

func TestRecordRun_DryRunAndFailureSkipOperations(t *testing.T) {
	r := NewRecorder()

	r.RecordRun("bod-sync", sampleCounter(), OutcomeDryRun, time.Second)
	r.RecordRun("bod-sync", nil, OutcomeFailed, time.Second)

	assert.Equal(t, 0, testutil.CollectAndCount(r.operations))
	assert.InDelta(t, 1, testutil.ToFloat64(r.runs.WithLabelValues("bod-sync", OutcomeDryRun)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.runs.WithLabelValues("bod-sync", OutcomeFailed)), 0)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeFailed, Outcome(errors.New("boom"), true))
	assert.Equal(t, OutcomeDryRun, Outcome(nil, true))
	assert.Equal(t, OutcomeCommitted, Outcome(nil, false))
}

func TestHandler_ServesExposition(t *testing.T) {
	r := NewRecorder()
	r.RecordRun("stac-sync", sampleCounter(), OutcomeCommitted, time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `geoadmin_reconcile_operations_total{entity="provider",job="stac-sync",operation="added"} 2`)
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.RecordRun("cognito-sync", sampleCounter(), OutcomeCommitted, time.Second)
	path := filepath.Join(t.TempDir(), "geoadmin.prom")

	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `geoadmin_reconcile_runs_total{job="cognito-sync",outcome="committed"} 1`)
}
