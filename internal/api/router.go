package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"sigevent-service/internal/config"
	"sigevent-service/internal/logging"
)

func NewRouter(h *Handler, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLoggingMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group(cfg.API.BasePath)
	{
		// Events
		api.POST("/events", h.SubmitEvent)
		api.GET("/events/live", h.LiveTail)

		// Reports
		api.GET("/reports/daily", h.DailyReport)
		api.GET("/reports/daily.csv", h.DailyReportCSV)
	}
	return r
}
