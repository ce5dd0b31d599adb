package handlers

import (
	"net/http"
	"strconv"

	"rbac-service/internal/models"
	"rbac-service/internal/services"
	"rbac-service/utils"

	"github.com/gin-gonic/gin"
)

type RoleHandler struct {
	roleService *services.RoleService
	logService  *services.LogService
}

func NewRoleHandler(roleService *services.RoleService, logService *services.LogService) *RoleHandler {
	return &RoleHandler{
		roleService: roleService,
		logService:  logService,
	}
}

func (h *RoleHandler) RegisterRoutes(router *gin.Engine, m *Middleware) {
	group := router.Group("/roles", m.Authenticate())
	{
		group.GET("", m.RequireRoles("Admin", "Manager"), h.ListRoles)
		group.GET("/stats", m.RequireRoles("Admin"), h.GetRoleStats)
		group.GET("/:id", m.RequireRoles("Admin", "Manager"), h.GetRole)
		group.GET("/:id/permissions", m.RequireRoles("Admin", "Manager"), h.GetRolePermissions)

		group.POST("", m.RequireRoles("Admin"), h.CreateRole)
		group.PUT("/:id", m.RequireRoles("Admin"), h.UpdateRole)
		group.DELETE("/:id", m.RequireRoles("Admin"), h.DeleteRole)
		group.DELETE("/:id/hard", m.RequireRoles("Admin"), h.HardDeleteRole)
		group.POST("/:id/toggle-status", m.RequireRoles("Admin"), h.ToggleRoleStatus)
		group.POST("/:id/assign-permissions", m.RequireRoles("Admin"), h.AssignPermissions)
	}
}

func (h *RoleHandler) ListRoles(c *gin.Context) {
	limit, offset := utils.ParsePaginationParams(c)

	roles, total, err := h.roleService.ListRoles(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, models.PaginatedResponse{
		Items:  roles,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *RoleHandler) GetRole(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	role, err := h.roleService.GetRole(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, role)
}

func (h *RoleHandler) GetRolePermissions(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	permissions, err := h.roleService.GetRolePermissions(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, permissions)
}

func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req models.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	role, err := h.roleService.CreateRole(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordAction(c, "create", strconv.Itoa(role.ID), "role created")
	utils.SendSuccess(c, http.StatusCreated, role)
}

func (h *RoleHandler) UpdateRole(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req models.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	role, err := h.roleService.UpdateRole(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordAction(c, "update", strconv.Itoa(id), "role updated")
	utils.SendSuccess(c, http.StatusOK, role)
}

func (h *RoleHandler) DeleteRole(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := h.roleService.SoftDeleteRole(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	h.recordAction(c, "delete", strconv.Itoa(id), "role deactivated")
	utils.SendMessage(c, http.StatusOK, "role deleted successfully")
}

func (h *RoleHandler) HardDeleteRole(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := h.roleService.HardDeleteRole(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	h.recordAction(c, "hard_delete", strconv.Itoa(id), "role permanently removed")
	utils.SendMessage(c, http.StatusOK, "role permanently deleted")
}

func (h *RoleHandler) ToggleRoleStatus(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	role, err := h.roleService.ToggleRoleStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordAction(c, "toggle_status", strconv.Itoa(id), "role status toggled")
	utils.SendSuccess(c, http.StatusOK, role)
}

// AssignPermissions replaces the role's grant set. An empty list clears
// every grant.
func (h *RoleHandler) AssignPermissions(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req models.AssignPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := h.roleService.SetRolePermissions(c.Request.Context(), id, req.PermissionIDs); err != nil {
		respondError(c, err)
		return
	}

	h.recordAction(c, "assign_permissions", strconv.Itoa(id), "role permissions replaced")
	utils.SendMessage(c, http.StatusOK, "permissions assigned successfully")
}

func (h *RoleHandler) GetRoleStats(c *gin.Context) {
	stats, err := h.roleService.GetRoleStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, stats)
}

func (h *RoleHandler) recordAction(c *gin.Context, action, resourceID, content string) {
	actor, ok := CurrentUser(c)
	entry := models.LogEntry{
		Content:    content,
		Action:     action,
		Resource:   "roles",
		ResourceID: resourceID,
		Source:     models.LogSourceRoleMgmt,
		IPAddress:  c.ClientIP(),
	}
	if ok {
		entry.UserID = &actor.ID
	}
	h.logService.Record(entry)
}
