package api

import (
	"github.com/gin-gonic/gin"

	"farm-console/internal/config"
	"farm-console/internal/logging"
	"farm-console/internal/services"
)

func NewRouter(svc *services.Service, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	h := NewHandler(svc, logger)
	r.GET("/health", h.Health)
	r.GET("/ws", h.Relay)

	api := r.Group(cfg.API.BasePath)
	{
		// Session
		api.POST("/session", h.Login)
		api.DELETE("/session", h.Logout)

		// Real-time state
		rt := api.Group("/realtime")
		rt.GET("", h.GetSnapshot)
		rt.DELETE("", h.ClearRealTimeData)
		rt.GET("/alerts", h.GetAlerts)
		rt.POST("/alerts/:id/read", h.MarkAlertAsRead)
		rt.GET("/ready-batches", h.GetReadyBatches)
		rt.DELETE("/ready-batches/:id", h.ProcessBatch)
		rt.GET("/production-reports", h.GetProductionReports)
		rt.GET("/low-inventory", h.GetLowInventory)
		rt.GET("/tasks", h.GetTasks)
		rt.PUT("/tasks", h.SyncTasks)
		rt.POST("/tasks/refresh", h.RefreshTasks)
		rt.PATCH("/tasks/:id/status", h.UpdateTaskStatus)
		rt.POST("/tasks/:id/comments", h.AddTaskComment)

		// Archive
		api.GET("/alerts/archive", h.GetArchivedAlerts)

		// Connection
		api.GET("/connection", h.GetConnection)
		api.POST("/connection/connect", h.Connect)
		api.POST("/connection/disconnect", h.Disconnect)
		api.POST("/connection/send", h.Send)
	}
	return r
}
