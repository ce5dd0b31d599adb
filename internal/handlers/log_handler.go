package handlers

import (
	"net/http"
	"strconv"
	"time"

	"rbac-service/internal/models"
	"rbac-service/internal/services"
	"rbac-service/utils"

	"github.com/gin-gonic/gin"
)

type LogHandler struct {
	logService *services.LogService
}

func NewLogHandler(logService *services.LogService) *LogHandler {
	return &LogHandler{logService: logService}
}

func (h *LogHandler) RegisterRoutes(router *gin.Engine, m *Middleware) {
	group := router.Group("/logs", m.Authenticate())
	{
		group.GET("/my-logs", h.GetMyLogs)
		group.GET("", m.RequireRoles("Admin", "Manager"), h.ListLogs)
		group.GET("/stats", m.RequireRoles("Admin", "Manager"), h.GetLogStats)
		group.GET("/:id", m.RequireRoles("Admin", "Manager"), h.GetLog)
		group.POST("", m.RequireRoles("Admin"), h.CreateLog)
		group.DELETE("/cleanup", m.RequireRoles("Admin"), h.Cleanup)
	}
}

func (h *LogHandler) GetMyLogs(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		utils.SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated")
		return
	}
	limit, offset := utils.ParsePaginationParams(c)

	entries, total, err := h.logService.ListUserLogs(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, models.PaginatedResponse{
		Items:  entries,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *LogHandler) ListLogs(c *gin.Context) {
	limit, offset := utils.ParsePaginationParams(c)

	filter := models.LogFilter{
		Source:   models.LogSource(c.Query("source")),
		Level:    models.LogLevel(c.Query("level")),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
	}
	if v, err := strconv.Atoi(c.Query("user_id")); err == nil {
		filter.UserID = v
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = &t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = &t
		}
	}

	entries, total, err := h.logService.ListLogs(c.Request.Context(), filter, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, models.PaginatedResponse{
		Items:  entries,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *LogHandler) GetLog(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid log id")
		return
	}

	entry, err := h.logService.GetLog(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, entry)
}

func (h *LogHandler) CreateLog(c *gin.Context) {
	var req models.CreateLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	entry, err := h.logService.CreateLog(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusCreated, entry)
}

func (h *LogHandler) GetLogStats(c *gin.Context) {
	stats, err := h.logService.GetLogStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, stats)
}

// Cleanup purges entries older than the retention window given in days.
func (h *LogHandler) Cleanup(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "90"))
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid days parameter")
		return
	}

	deleted, err := h.logService.PurgeOlderThan(c.Request.Context(), days)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, gin.H{"deleted": deleted})
}
