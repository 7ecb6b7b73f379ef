package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
)

func TestRouterServesMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	RecordFrame("datastream", "in", "msgtype", 32)

	var logBuf bytes.Buffer
	logger := zerolog.New(&logBuf).Level(zerolog.DebugLevel)
	rec := httptest.NewRecorder()
	Router(logger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "libquassel_protocol_frames_total") {
		t.Fatalf("expected frame counter in output")
	}
	if !strings.Contains(logBuf.String(), `"path":"/metrics"`) {
		t.Fatalf("expected request log line, got %s", logBuf.String())
	}
}

func TestRouterUnknownPathLogsWarn(t *testing.T) {
	gin.SetMode(gin.TestMode)
	before := httpRequestCount(t, http.MethodGet, "unmatched", "404")

	var logBuf bytes.Buffer
	logger := zerolog.New(&logBuf)
	rec := httptest.NewRecorder()
	Router(logger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(logBuf.String(), `"level":"warn"`) {
		t.Fatalf("expected warn line, got %s", logBuf.String())
	}
	if after := httpRequestCount(t, http.MethodGet, "unmatched", "404"); after-before != 1 {
		t.Fatalf("expected one request counted, got %v", after-before)
	}
}

func httpRequestCount(t *testing.T, method, path, status string) float64 {
	t.Helper()
	var m dto.Metric
	if err := httpRequests.WithLabelValues(method, path, status).Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
