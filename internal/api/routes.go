// Package api exposes the analysis pipeline over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quantfold/driftlab/internal/api/handlers"
	"github.com/quantfold/driftlab/internal/database"
	"github.com/quantfold/driftlab/internal/pipeline"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// SetupRoutes registers the health endpoint and the v1 analysis API.
// db and redis are optional and reported as "disabled" when absent.
func SetupRoutes(router *gin.Engine, runner *pipeline.Runner, repo *database.ReportRepository,
	db *database.PostgresDB, redis *database.RedisClient) {
	router.GET("/health", healthCheck(db, redis))

	v1 := router.Group("/api/v1")
	{
		analysis := v1.Group("/analysis")
		{
			h := handlers.NewAnalysisHandler(runner, repo)
			analysis.POST("/run", h.Run)
		}
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC(),
			Services:  Services{Database: "disabled", Redis: "disabled"},
		}

		if db != nil {
			response.Services.Database = "ok"
			if err := db.HealthCheck(c.Request.Context()); err != nil {
				response.Services.Database = "unhealthy"
				response.Status = "degraded"
			}
		}
		if redis != nil {
			response.Services.Redis = "ok"
			if err := redis.HealthCheck(c.Request.Context()); err != nil {
				response.Services.Redis = "unhealthy"
				response.Status = "degraded"
			}
		}

		c.JSON(http.StatusOK, response)
	}
}
