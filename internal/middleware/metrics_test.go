package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"ngo-inquiry-tracker/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestCollectHTTPMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New()
	r := gin.New()
	r.Use(CollectHTTPMetrics(m.RequestsTotal, m.RequestDuration))
	r.GET("/inquiries/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/inquiries/1", "/inquiries/2", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/inquiries/:id", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	r := gin.New()
	r.Use(RequestLogger(logger))
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Contains(t, buf.String(), `"status":502`)
	require.Contains(t, buf.String(), `"path":"/boom"`)
	require.Contains(t, buf.String(), `"level":"error"`)
}
