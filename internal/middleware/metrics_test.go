package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/uniauth/pkg/metrics"
)

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/users/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	before := promtestutil.CollectAndCount(metrics.APILatency)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/abc", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/def", nil))

	// both requests share one series keyed by the route template
	require.Equal(t, before+1, promtestutil.CollectAndCount(metrics.APILatency))
}

func TestMetricsMiddlewareCollapsesUnmatchedAndSkipsPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics("/scrape"))
	r.GET("/scrape", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := promtestutil.CollectAndCount(metrics.APILatency)

	for _, path := range []string{"/nope/1", "/nope/2", "/scrape"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	// one unmatched series, nothing for the skipped scrape path
	require.Equal(t, before+1, promtestutil.CollectAndCount(metrics.APILatency))
}
