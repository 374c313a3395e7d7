package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecrawlMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRecrawlMetrics(reg)

	m.ObserveOperation("aritzia", "variant", "INSERT", 3)
	m.ObserveOperation("aritzia", "variant", "INSERT", 2)
	m.ObserveOperation("aritzia", "variant", "DELETE", 0)
	m.ObserveIssue("aritzia", "key_derivation")
	m.ObserveBatch("aritzia")
	m.ObserveRun("aritzia", "SUCCESS", 2*time.Second)

	if got := testutil.ToFloat64(m.operations.WithLabelValues("aritzia", "variant", "INSERT")); got != 5 {
		t.Errorf("operations = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.issues.WithLabelValues("aritzia", "key_derivation")); got != 1 {
		t.Errorf("issues = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("aritzia", "SUCCESS")); got != 1 {
		t.Errorf("runs = %v, want 1", got)
	}
}

func TestRecrawlMetrics_NilSafe(t *testing.T) {
	var m *RecrawlMetrics
	m.ObserveOperation("s", "product", "INSERT", 1)
	m.ObserveIssue("s", "x")
	m.ObserveBatch("s")
	m.ObserveRun("s", "FAILED", time.Second)
}

func TestHTTPMetrics_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(Handler(reg)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `http_requests_total{method="GET",path="/health",status="200"} 1`) {
		t.Errorf("metrics output missing /health counter:\n%s", w.Body.String())
	}
}
