package observability

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.LoanDecided("approved")
	m.LoanDecided("approved")
	m.LoanDecided("rejected")
	m.PaymentRecorded(500)
	m.PaymentRecorded(250)
	m.ObserveHTTP("POST", "/v1/loans/apply", 201, 12*time.Millisecond)
	m.OutboxJob("done")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("rejected")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.payments))
	assert.Equal(t, 750.0, testutil.ToFloat64(m.appliedAmount))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/v1/loans/apply", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxProcessed.WithLabelValues("done")))
}

func TestMetricsHandlerExposesRegistry(t *testing.T) {
	m := NewMetrics()
	m.LoanDecided("approved")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `creditoya_loan_decisions_total{status="approved"} 1`))
}

func TestLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "production").Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"service":"creditoya-backend"`)

	buf.Reset()
	newLogger(&buf, "local").Debug("dbg")
	assert.Contains(t, buf.String(), "msg=dbg")
}
