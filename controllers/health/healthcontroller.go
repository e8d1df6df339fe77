package health

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jeloualonzo/amsuip-sub000/embedding"
	"github.com/jeloualonzo/amsuip-sub000/models"
)

// HealthHandler reports storage reachability and whether real model
// inference is available or the service runs on fallback embeddings.
func HealthHandler(gen *embedding.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "up"
		sqlDB, err := models.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			dbStatus = "down"
		}

		mode := "model"
		if !gen.ModelLoaded() {
			mode = "fallback_hash"
		}

		status := http.StatusOK
		if dbStatus == "down" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"status":         dbStatus,
			"database":       dbStatus,
			"model_loaded":   gen.ModelLoaded(),
			"embedding_mode": mode,
		})
	}
}
