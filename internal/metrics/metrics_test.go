package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/datastore/internal/datastore"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveApply_Committed(t *testing.T) {
	m := New()
	res := datastore.ApplyResult{
		Deleted:  2,
		Updated:  1,
		Inserted: 3,
		Failed:   1,
		Failures: []datastore.RowFailure{{Type: datastore.StatementUpdate}},
	}

	m.ObserveApply(res, nil, 0.2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Statements.WithLabelValues("delete", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Statements.WithLabelValues("update", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Statements.WithLabelValues("insert", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Statements.WithLabelValues("update", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Batches.WithLabelValues(ResultCommitted)))
}

func TestObserveApply_AbortedCountsNoSuccesses(t *testing.T) {
	m := New()
	res := datastore.ApplyResult{
		Deleted:  4,
		Failed:   1,
		Aborted:  true,
		Failures: []datastore.RowFailure{{Type: datastore.StatementInsert}},
	}

	m.ObserveApply(res, errors.New("insert row 0: boom"), 0.1)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.Statements.WithLabelValues("delete", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Statements.WithLabelValues("insert", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Batches.WithLabelValues(ResultAborted)))
}

func TestBatchResult(t *testing.T) {
	tests := []struct {
		name string
		res  datastore.ApplyResult
		err  error
		want string
	}{
		{"committed", datastore.ApplyResult{}, nil, ResultCommitted},
		{"cancelled", datastore.ApplyResult{Cancelled: true}, nil, ResultCancelled},
		{"aborted", datastore.ApplyResult{Aborted: true}, errors.New("x"), ResultAborted},
		{"commit failure", datastore.ApplyResult{}, errors.New("commit: x"), ResultFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, batchResult(tt.res, tt.err))
		})
	}
}

func TestObserveApply_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveApply(datastore.ApplyResult{}, nil, 0) })
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.Sessions.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "datastore_open_sessions 3"))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}
