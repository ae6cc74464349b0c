package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func limitedRouter(l *Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", Middleware(l), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestMiddlewareAllowsWithinBudget(t *testing.T) {
	r := limitedRouter(NewLimiter(100, 2))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestMiddlewareRejectsBeyondBurst(t *testing.T) {
	// rps near zero so the bucket never refills during the test.
	r := limitedRouter(NewLimiter(0.0001, 1))

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestStopEndsSweeperAndKeepsLimiting(t *testing.T) {
	l := NewLimiter(100, 2)
	l.Stop()
	l.Stop() // idempotent

	select {
	case <-l.done:
	default:
		t.Fatal("sweeper channel still open after Stop")
	}

	r := limitedRouter(l)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareNilLimiterPassesThrough(t *testing.T) {
	r := limitedRouter(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
