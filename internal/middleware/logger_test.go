package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/logger"
)

func TestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.InfoLevel)
	prev := logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(prev) })

	r := gin.New()
	r.Use(Logger("/health"))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/ping", "/health"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1, "health probes log below info")
	require.Equal(t, "/ping", entries[0].ContextMap()["path"])
	require.EqualValues(t, http.StatusOK, entries[0].ContextMap()["status"])
}
