package handlers

import (
	"net/http"
	"strconv"

	"rbac-service/internal/models"
	"rbac-service/internal/services"
	"rbac-service/utils"

	"github.com/gin-gonic/gin"
)

type PermissionHandler struct {
	roleService *services.RoleService
	logService  *services.LogService
}

func NewPermissionHandler(roleService *services.RoleService, logService *services.LogService) *PermissionHandler {
	return &PermissionHandler{
		roleService: roleService,
		logService:  logService,
	}
}

func (h *PermissionHandler) RegisterRoutes(router *gin.Engine, m *Middleware) {
	group := router.Group("/permissions", m.Authenticate())
	{
		group.GET("", m.RequireRoles("Admin", "Manager"), h.ListPermissions)
		group.GET("/stats", m.RequireRoles("Admin"), h.GetPermissionStats)
		group.GET("/resources", m.RequireRoles("Admin", "Manager"), h.ListResources)
		group.GET("/actions", m.RequireRoles("Admin", "Manager"), h.ListActions)
		group.GET("/by-resource/:resource", m.RequireRoles("Admin", "Manager"), h.ListByResource)
		group.GET("/:id", m.RequireRoles("Admin", "Manager"), h.GetPermission)

		group.POST("", m.RequireRoles("Admin"), h.CreatePermission)
		group.POST("/bulk-create", m.RequireRoles("Admin"), h.BulkCreatePermissions)
		group.PUT("/:id", m.RequireRoles("Admin"), h.UpdatePermission)
		group.DELETE("/:id", m.RequireRoles("Admin"), h.DeletePermission)
		group.DELETE("/:id/hard", m.RequireRoles("Admin"), h.HardDeletePermission)
		group.POST("/:id/toggle-status", m.RequireRoles("Admin"), h.TogglePermissionStatus)
	}
}

func (h *PermissionHandler) ListPermissions(c *gin.Context) {
	limit, offset := utils.ParsePaginationParams(c)
	resource := c.Query("resource")

	permissions, total, err := h.roleService.ListPermissions(c.Request.Context(), resource, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, models.PaginatedResponse{
		Items:  permissions,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *PermissionHandler) ListByResource(c *gin.Context) {
	limit, offset := utils.ParsePaginationParams(c)
	resource := c.Param("resource")

	permissions, total, err := h.roleService.ListPermissions(c.Request.Context(), resource, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, models.PaginatedResponse{
		Items:  permissions,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *PermissionHandler) ListResources(c *gin.Context) {
	resources, err := h.roleService.ListResources(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, resources)
}

func (h *PermissionHandler) ListActions(c *gin.Context) {
	utils.SendSuccess(c, http.StatusOK, models.AllActions)
}

func (h *PermissionHandler) GetPermission(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	permission, err := h.roleService.GetPermission(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, permission)
}

func (h *PermissionHandler) CreatePermission(c *gin.Context) {
	var req models.CreatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	permission, err := h.roleService.CreatePermission(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordAction(c, "create", strconv.Itoa(permission.ID), "permission created")
	utils.SendSuccess(c, http.StatusCreated, permission)
}

// BulkCreatePermissions creates one permission per known action for a
// resource.
func (h *PermissionHandler) BulkCreatePermissions(c *gin.Context) {
	var req models.BulkCreatePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	created, err := h.roleService.BulkCreatePermissions(c.Request.Context(), req.Resource, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordAction(c, "bulk_create", req.Resource, "permissions bulk created")
	utils.SendSuccess(c, http.StatusCreated, created)
}

func (h *PermissionHandler) UpdatePermission(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req models.UpdatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	permission, err := h.roleService.UpdatePermission(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordAction(c, "update", strconv.Itoa(id), "permission updated")
	utils.SendSuccess(c, http.StatusOK, permission)
}

func (h *PermissionHandler) DeletePermission(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := h.roleService.SoftDeletePermission(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	h.recordAction(c, "delete", strconv.Itoa(id), "permission deactivated")
	utils.SendMessage(c, http.StatusOK, "permission deleted successfully")
}

func (h *PermissionHandler) HardDeletePermission(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := h.roleService.HardDeletePermission(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	h.recordAction(c, "hard_delete", strconv.Itoa(id), "permission permanently removed")
	utils.SendMessage(c, http.StatusOK, "permission permanently deleted")
}

func (h *PermissionHandler) TogglePermissionStatus(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	permission, err := h.roleService.TogglePermissionStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordAction(c, "toggle_status", strconv.Itoa(id), "permission status toggled")
	utils.SendSuccess(c, http.StatusOK, permission)
}

func (h *PermissionHandler) GetPermissionStats(c *gin.Context) {
	stats, err := h.roleService.GetPermissionStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, stats)
}

func (h *PermissionHandler) recordAction(c *gin.Context, action, resourceID, content string) {
	actor, ok := CurrentUser(c)
	entry := models.LogEntry{
		Content:    content,
		Action:     action,
		Resource:   "permissions",
		ResourceID: resourceID,
		Source:     models.LogSourcePermMgmt,
		IPAddress:  c.ClientIP(),
	}
	if ok {
		entry.UserID = &actor.ID
	}
	h.logService.Record(entry)
}
