package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"rbac-service/internal/models"
	"rbac-service/internal/services"
	"rbac-service/utils"

	"github.com/gin-gonic/gin"
)

const maxAvatarBytes = 5 * 1024 * 1024

type UserHandler struct {
	userService *services.UserService
	logService  *services.LogService
}

func NewUserHandler(userService *services.UserService, logService *services.LogService) *UserHandler {
	return &UserHandler{
		userService: userService,
		logService:  logService,
	}
}

func (h *UserHandler) RegisterRoutes(router *gin.Engine, m *Middleware) {
	group := router.Group("/users", m.Authenticate())
	{
		group.GET("/profile", h.GetProfile)
		group.PUT("/profile", h.UpdateProfile)
		group.PUT("/profile/avatar", h.UploadAvatar)

		group.GET("", m.RequirePermissions(Requirement("users:read")), h.ListUsers)
		group.GET("/stats", m.RequireRoles("Admin"), h.GetUserStats)
		group.GET("/:id", m.RequirePermissions(Requirement("users:read")), h.GetUser)

		group.POST("", m.RequireRoles("Admin"), h.CreateUser)
		group.PUT("/:id", m.RequireRoles("Admin"), h.UpdateUser)
		group.DELETE("/:id", m.RequireRoles("Admin"), h.DeleteUser)
		group.DELETE("/:id/hard", m.RequireRoles("Admin"), h.HardDeleteUser)
		group.POST("/:id/toggle-status", m.RequireRoles("Admin"), h.ToggleStatus)
		group.POST("/:id/reset-password", m.RequireRoles("Admin"), h.ResetPassword)
		group.POST("/:id/change-password", m.RequireOwnership("id"), h.ChangePasswordByID)
	}
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		utils.SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated")
		return
	}
	utils.SendSuccess(c, http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		utils.SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated")
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	updated, err := h.userService.UpdateProfile(c.Request.Context(), user.ID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, updated)
}

func (h *UserHandler) UploadAvatar(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		utils.SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated")
		return
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", "avatar file is required")
		return
	}
	if fileHeader.Size > maxAvatarBytes {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", "avatar exceeds 5MB")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", "failed to open uploaded file")
		return
	}
	defer file.Close()

	objectName := fmt.Sprintf("user-%d-%d%s", user.ID, time.Now().Unix(), filepath.Ext(fileHeader.Filename))
	contentType := fileHeader.Header.Get("Content-Type")

	url, err := h.userService.UploadAvatar(c.Request.Context(), user.ID, objectName, contentType, file, fileHeader.Size)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, gin.H{"avatar": url})
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	limit, offset := utils.ParsePaginationParams(c)

	filter := models.UserFilter{Search: c.Query("search")}
	if v, err := strconv.Atoi(c.Query("role_id")); err == nil {
		filter.RoleID = v
	}
	if v := c.Query("is_active"); v != "" {
		active := v == "true"
		filter.IsActive = &active
	}

	users, total, err := h.userService.ListUsers(c.Request.Context(), filter, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, models.PaginatedResponse{
		Items:  users,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, user)
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordAdminAction(c, "create", strconv.Itoa(user.ID), "user created")
	utils.SendSuccess(c, http.StatusCreated, user)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordAdminAction(c, "update", strconv.Itoa(id), "user updated")
	utils.SendSuccess(c, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := h.userService.SoftDeleteUser(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	h.recordAdminAction(c, "delete", strconv.Itoa(id), "user deactivated")
	utils.SendMessage(c, http.StatusOK, "user deleted successfully")
}

func (h *UserHandler) HardDeleteUser(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := h.userService.HardDeleteUser(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	h.recordAdminAction(c, "hard_delete", strconv.Itoa(id), "user permanently removed")
	utils.SendMessage(c, http.StatusOK, "user permanently deleted")
}

func (h *UserHandler) ToggleStatus(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	user, err := h.userService.ToggleStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	h.recordAdminAction(c, "toggle_status", strconv.Itoa(id), "user status toggled")
	utils.SendSuccess(c, http.StatusOK, user)
}

func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := h.userService.ResetPassword(c.Request.Context(), id, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	h.recordAdminAction(c, "reset_password", strconv.Itoa(id), "password reset")
	utils.SendMessage(c, http.StatusOK, "password reset successfully")
}

// ChangePasswordByID lets a user change their own password through the
// per-id route; admins may use it for any account.
func (h *UserHandler) ChangePasswordByID(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	utils.SendMessage(c, http.StatusOK, "password changed successfully")
}

func (h *UserHandler) GetUserStats(c *gin.Context) {
	stats, err := h.userService.GetUserStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, stats)
}

func (h *UserHandler) recordAdminAction(c *gin.Context, action, resourceID, content string) {
	actor, ok := CurrentUser(c)
	entry := models.LogEntry{
		Content:    content,
		Action:     action,
		Resource:   "users",
		ResourceID: resourceID,
		Source:     models.LogSourceUserMgmt,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}
	if ok {
		entry.UserID = &actor.ID
	}
	h.logService.Record(entry)
}
