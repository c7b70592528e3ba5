package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/userhub/backend/internal/model"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Healthz godoc
// @Summary Liveness probe
// @Description Reports whether the backing store is reachable.
// @Tags health
// @Produce json
// @Success 200 {object} model.HealthResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /healthz [get]
func Healthz(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "error",
				"error":  "database connection failed",
			})
			return
		}
		c.JSON(http.StatusOK, model.HealthResponse{
			Status:    "ok",
			DBStatus:  "connected",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}
