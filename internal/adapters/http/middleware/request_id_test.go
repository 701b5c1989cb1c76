package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	t.Run("GeneratesWhenAbsent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		id := w.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		assert.NoError(t, err, "generated id should be a uuid")
		assert.Equal(t, id, w.Body.String(), "context and header must agree")
	})

	t.Run("HonorsClientSuppliedID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, "mobile-retry-42")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "mobile-retry-42", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "mobile-retry-42", w.Body.String())
	})
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RateLimit(&RateLimitConfig{
		Limit:  2,
		Window: time.Minute,
		KeyFunc: func(c *gin.Context) string {
			return c.GetHeader("X-Test-Key")
		},
	}))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	hit := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Test-Key", key)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("EnforcesLimitPerKey", func(t *testing.T) {
		first := hit("client-a")
		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

		assert.Equal(t, http.StatusOK, hit("client-a").Code)

		third := hit("client-a")
		assert.Equal(t, http.StatusTooManyRequests, third.Code)
		assert.NotEmpty(t, third.Header().Get("Retry-After"))
		assert.Contains(t, third.Body.String(), "TOO_MANY_REQUESTS")
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, hit("client-b").Code)
	})
}
