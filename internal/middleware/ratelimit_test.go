package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"raffle-engine/internal/auth"
)

func newRouter(rl *RateLimiter, playerID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if playerID != uuid.Nil {
			c.Request = c.Request.WithContext(auth.WithSession(c.Request.Context(), &auth.Session{PlayerID: playerID}))
		}
		c.Next()
	})
	r.Use(rl.Handler())
	r.POST("/participate", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return r
}

func do(r http.Handler) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/participate", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterPerPlayer(t *testing.T) {
	rl := NewRateLimiter(0.001, 2, zap.NewNop())
	alice := newRouter(rl, uuid.New())
	bob := newRouter(rl, uuid.New())

	assert.Equal(t, http.StatusOK, do(alice).Code)
	assert.Equal(t, http.StatusOK, do(alice).Code)

	w := do(alice)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	// another player has its own bucket
	assert.Equal(t, http.StatusOK, do(bob).Code)
}

func TestRateLimiterAnonymousByIP(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, zap.NewNop())
	r := newRouter(rl, uuid.Nil)

	assert.Equal(t, http.StatusOK, do(r).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r).Code)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, zap.NewNop())
	for i := 0; i <= maxTrackedKeys; i++ {
		rl.getLimiter(uuid.NewString())
	}
	rl.Cleanup()
	assert.Empty(t, rl.limiters)
}
