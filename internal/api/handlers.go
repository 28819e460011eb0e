package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"farm-console/internal/logging"
	"farm-console/internal/models"
	"farm-console/internal/realtime"
	"farm-console/internal/rest"
	"farm-console/internal/services"
)

type Handler struct {
	svc      *services.Service
	logger   *logging.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewHandler(svc *services.Service, logger *logging.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// dashboards are served from a different local origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"connected": h.svc.Manager.IsConnected(),
	})
}

// Relay upgrades the request and streams every inbound envelope to it.
func (h *Handler) Relay(c *gin.Context) {
	viewerID := c.Query("viewer")
	if viewerID == "" {
		viewerID = uuid.NewString()
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("Relay upgrade failed for viewer %s: %v", viewerID, err)
		return
	}
	h.svc.Relay.Serve(viewerID, conn)
}

type loginRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	if err := h.svc.Login(c.Request.Context(), req.Token); err != nil {
		h.logger.Errorf("Login failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store token"})
		return
	}
	c.JSON(http.StatusOK, h.connectionStatus())
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context()); err != nil {
		h.logger.Errorf("Logout failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove token"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Store.Snapshot())
}

func (h *Handler) ClearRealTimeData(c *gin.Context) {
	h.svc.Store.ClearRealTimeData()
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Store.Snapshot().Alerts)
}

func (h *Handler) GetReadyBatches(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Store.Snapshot().ReadyBatches)
}

func (h *Handler) GetProductionReports(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Store.Snapshot().ProductionReports)
}

func (h *Handler) GetLowInventory(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Store.Snapshot().LowInventoryItems)
}

func (h *Handler) GetTasks(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Store.Snapshot().RecentTasks)
}

func (h *Handler) MarkAlertAsRead(c *gin.Context) {
	id := models.ID(c.Param("id"))
	if !h.svc.Store.MarkAlertAsRead(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ProcessBatch(c *gin.Context) {
	id := models.ID(c.Param("id"))
	if !h.svc.Store.ProcessBatch(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Batch not found"})
		return
	}
	h.logger.Infof("Processed ready batch %s", id)
	c.Status(http.StatusNoContent)
}

type statusRequest struct {
	Status models.TaskStatus `json:"status" binding:"required"`
}

func (h *Handler) UpdateTaskStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task status"})
		return
	}
	id := models.ID(c.Param("id"))
	if !h.svc.Store.UpdateTaskStatus(id, req.Status) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type commentRequest struct {
	Author  string `json:"author"`
	Content string `json:"content" binding:"required"`
}

func (h *Handler) AddTaskComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	id := models.ID(c.Param("id"))
	comment := models.TaskComment{
		ID:        models.ID(uuid.NewString()),
		TaskID:    id,
		Author:    req.Author,
		Content:   req.Content,
		CreatedAt: models.At(h.now()),
	}
	if !h.svc.Store.AddTaskComment(id, comment) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) SyncTasks(c *gin.Context) {
	var tasks []models.ManagementTask
	if err := c.ShouldBindJSON(&tasks); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task list"})
		return
	}
	h.svc.Store.SyncTasks(tasks)
	c.JSON(http.StatusOK, h.svc.Store.Snapshot().RecentTasks)
}

func (h *Handler) RefreshTasks(c *gin.Context) {
	tasks, err := h.svc.RefreshTasks(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to refresh tasks: %v", err)
		status := http.StatusBadGateway
		if errors.Is(err, rest.ErrUnauthorized) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"error": "Failed to refresh tasks"})
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *Handler) GetArchivedAlerts(c *gin.Context) {
	archive := h.svc.Archive()
	if archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert archive is not configured"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
		return
	}

	alerts, total, err := archive.GetRecentAlerts(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Errorf("Failed to get archived alerts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "total": total})
}

func (h *Handler) connectionStatus() gin.H {
	return gin.H{
		"state":     h.svc.Manager.State().String(),
		"connected": h.svc.Manager.IsConnected(),
		"attempts":  h.svc.Manager.Attempts(),
	}
}

func (h *Handler) GetConnection(c *gin.Context) {
	c.JSON(http.StatusOK, h.connectionStatus())
}

func (h *Handler) Connect(c *gin.Context) {
	h.svc.Manager.Connect()
	c.JSON(http.StatusOK, h.connectionStatus())
}

func (h *Handler) Disconnect(c *gin.Context) {
	h.svc.Manager.Disconnect()
	c.JSON(http.StatusOK, h.connectionStatus())
}

func (h *Handler) Send(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	if err := h.svc.Manager.Send(json.RawMessage(body)); err != nil {
		if errors.Is(err, realtime.ErrNotConnected) {
			c.JSON(http.StatusConflict, gin.H{"error": "Not connected"})
			return
		}
		h.logger.Errorf("Send failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send message"})
		return
	}
	c.Status(http.StatusAccepted)
}
