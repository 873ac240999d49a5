package observability

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

	"github.com/bible-memorize/server/models"
)

func TestMetricsCountEvents(t *testing.T) {
	m := NewMetrics()
	m.Approved()
	m.Approved()
	m.Rejected(3)
	m.CheckedIn(models.RoleStudent)
	m.CheckedIn(models.RoleTeacher)
	m.CheckedIn(models.RoleStudent)
	m.Deducted()
	m.Pruned(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.approvals))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.rejected))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.checkins.WithLabelValues("student")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkins.WithLabelValues("teacher")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deductions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pruned))
}

func TestMetricsHandlerExposesRequests(t *testing.T) {
	m := NewMetrics()
	m.ObserveRequest("POST", "/api/approvals", "200", 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `biblememo_http_requests_total{method="POST",route="/api/approvals",status="200"} 1`))
	assert.Contains(t, body, "biblememo_http_request_duration_seconds")
}

func TestSentryDisabledWithoutDSN(t *testing.T) {
	flush, err := InitSentry("", "test", "")
	require.NoError(t, err)
	flush()
	CaptureErr(errors.New("ignored"), map[string]string{"route": "/x"})
	CaptureErr(nil, nil)
}
