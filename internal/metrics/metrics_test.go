package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(participations.WithLabelValues("OK"))
	RecordParticipation("OK")
	assert.Equal(t, before+1, testutil.ToFloat64(participations.WithLabelValues("OK")))

	before = testutil.ToFloat64(reveals)
	RecordReveals(3)
	RecordReveals(0)
	assert.Equal(t, before+3, testutil.ToFloat64(reveals))

	before = testutil.ToFloat64(payouts.WithLabelValues("NFT", "FAILED"))
	RecordPayout("NFT", "FAILED", time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(payouts.WithLabelValues("NFT", "FAILED")))
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/ping/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping/42", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/ping/:id", "200")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "raffle_engine_http_requests_total")
}
