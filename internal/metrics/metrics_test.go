package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsByRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New("api")
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("api", "GET", "/orders/:id", "200")); got != 2 {
		t.Fatalf("expected 2 requests on the pattern, got %v", got)
	}
	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("api", "GET", "unmatched", "404")); got != 1 {
		t.Fatalf("expected 1 unmatched request, got %v", got)
	}
}

func TestRecordFailureAndHandler(t *testing.T) {
	m := New("api")
	m.RecordFailure(context.Background(), "order_confirmation", errors.New("x"))

	if got := testutil.ToFloat64(m.notificationFailures.WithLabelValues("api", "order_confirmation")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), `notification_failures_total{kind="order_confirmation",service="api"} 1`) {
		t.Fatalf("metric not exposed:\n%s", w.Body.String())
	}
}
