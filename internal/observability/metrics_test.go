package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetActiveSessions(t *testing.T) {
	SetActiveSessions(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(getMetrics().activeSessions))

	SetActiveSessions(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(getMetrics().activeSessions))
}

func TestRecordReply(t *testing.T) {
	m := getMetrics()
	okBefore := testutil.ToFloat64(m.replyTotal.WithLabelValues("test-reply", "success"))
	errBefore := testutil.ToFloat64(m.replyTotal.WithLabelValues("test-reply", "error"))

	RecordReply("test-reply", 120*time.Millisecond, true)
	RecordReply("test-reply", 5*time.Millisecond, false)
	RecordReply("test-reply", 80*time.Millisecond, true)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(m.replyTotal.WithLabelValues("test-reply", "success")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(m.replyTotal.WithLabelValues("test-reply", "error")))
}

func TestRecordEvictions(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.sessionsEvicted)

	RecordEvictions(3)
	RecordEvictions(0)

	assert.Equal(t, before+3, testutil.ToFloat64(m.sessionsEvicted))
}

func TestRecordHTTPRequest(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/ask", "400"))

	RecordHTTPRequest("/ask", "400", time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/ask", "400")))
}

func TestMetricsHandler(t *testing.T) {
	RecordConfigReload(true)
	RecordLookup("hospital", "search", time.Millisecond)
	RecordRateLimited()

	srv := httptest.NewServer(MetricsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "skin2_config_reloads_total")
	assert.Contains(t, string(body), "skin2_lookup_duration_seconds")
	assert.Contains(t, string(body), "skin2_rate_limited_total")
}
