package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func freezeNow(t *testing.T, start time.Time) *time.Time {
	t.Helper()
	current := start
	orig := now
	now = func() time.Time { return current }
	t.Cleanup(func() { now = orig })
	return &current
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRateLimiter_AllowWithinWindow(t *testing.T) {
	clock := freezeNow(t, time.Unix(1_700_000_000, 0))
	l := NewRateLimiter(2, time.Minute, quietLogger())

	ok, remaining, _ := l.Allow("1.2.3.4")
	require.True(t, ok)
	require.Equal(t, 1, remaining)
	ok, remaining, _ = l.Allow("1.2.3.4")
	require.True(t, ok)
	require.Equal(t, 0, remaining)
	ok, _, _ = l.Allow("1.2.3.4")
	require.False(t, ok)

	ok, _, _ = l.Allow("5.6.7.8")
	require.True(t, ok, "other clients have their own window")

	*clock = clock.Add(time.Minute)
	ok, _, _ = l.Allow("1.2.3.4")
	require.True(t, ok, "window resets")
}

func TestRateLimiter_Purge(t *testing.T) {
	clock := freezeNow(t, time.Unix(1_700_000_000, 0))
	l := NewRateLimiter(1, time.Minute, quietLogger())
	l.Allow("a")
	*clock = clock.Add(30 * time.Second)
	l.Allow("b")
	require.Equal(t, 2, l.Len())

	*clock = clock.Add(45 * time.Second)
	l.Purge()
	require.Equal(t, 1, l.Len())
}

func TestRateLimiter_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	freezeNow(t, time.Unix(1_700_000_000, 0))
	l := NewRateLimiter(1, time.Minute, quietLogger())

	r := gin.New()
	r.POST("/subscribe", l.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/subscribe", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/subscribe", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}
