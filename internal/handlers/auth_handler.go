package handlers

import (
	"errors"
	"net/http"

	"rbac-service/internal/common"
	"rbac-service/internal/models"
	"rbac-service/internal/obs"
	"rbac-service/internal/services"
	"rbac-service/utils"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	userService  *services.UserService
	tokenService *services.TokenService
	logService   *services.LogService
}

func NewAuthHandler(userService *services.UserService, tokenService *services.TokenService,
	logService *services.LogService) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		tokenService: tokenService,
		logService:   logService,
	}
}

func (h *AuthHandler) RegisterRoutes(router *gin.Engine, m *Middleware) {
	group := router.Group("/auth")
	{
		group.POST("/register", h.Register)
		group.POST("/login", h.Login)
		group.POST("/refresh-token", h.RefreshToken)
		group.POST("/logout", h.Logout)
	}

	protected := router.Group("/auth", m.Authenticate())
	{
		protected.POST("/change-password", h.ChangePassword)
		protected.GET("/sessions", h.ListSessions)
		protected.POST("/clear-all-sessions/:id", m.RequireRoles("Admin"), h.ClearAllSessions)
		protected.POST("/device/request-code", h.RequestDeviceCode)
		protected.POST("/device/verify", h.VerifyDevice)
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.logService.Record(models.LogEntry{
		UserID:    &user.ID,
		Content:   "user registered",
		Action:    "register",
		Resource:  "users",
		Source:    models.LogSourceAuth,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	utils.SendSuccess(c, http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	resp, err := h.userService.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.logService.Record(models.LogEntry{
		UserID:    &resp.User.ID,
		Content:   "user logged in",
		Action:    "login",
		Resource:  "users",
		Source:    models.LogSourceAuth,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	utils.SendSuccess(c, http.StatusOK, resp)
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	accessToken, user, err := h.tokenService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		obs.TokenRefreshes.WithLabelValues("failure").Inc()
		respondError(c, err)
		return
	}

	obs.TokenRefreshes.WithLabelValues("success").Inc()
	h.logService.Record(models.LogEntry{
		UserID:    &user.ID,
		Content:   "access token refreshed",
		Action:    "refresh",
		Resource:  "users",
		Source:    models.LogSourceAuth,
		IPAddress: c.ClientIP(),
	})
	utils.SendSuccess(c, http.StatusOK, gin.H{"access_token": accessToken})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := h.tokenService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		// An unusable token is a bad request here, not an auth failure.
		if errors.Is(err, common.ErrTokenInvalid) || errors.Is(err, common.ErrTokenExpired) {
			utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid refresh token")
			return
		}
		respondError(c, err)
		return
	}

	utils.SendMessage(c, http.StatusOK, "logged out successfully")
}

// ListSessions returns the caller's refresh-token issuance history.
func (h *AuthHandler) ListSessions(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		utils.SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated")
		return
	}

	limit, offset := utils.ParsePaginationParams(c)
	sessions, err := h.tokenService.ListSessions(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, sessions)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		utils.SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated")
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	h.logService.Record(models.LogEntry{
		UserID:    &user.ID,
		Content:   "password changed",
		Action:    "change_password",
		Resource:  "users",
		Source:    models.LogSourceAuth,
		IPAddress: c.ClientIP(),
	})
	utils.SendMessage(c, http.StatusOK, "password changed successfully")
}

// ClearAllSessions is the admin emergency revocation of every session
// and device verification for a user.
func (h *AuthHandler) ClearAllSessions(c *gin.Context) {
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := h.tokenService.ClearAllSessions(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	actor, _ := CurrentUser(c)
	h.logService.Record(models.LogEntry{
		UserID:    &actor.ID,
		Content:   "all sessions cleared",
		Action:    "clear_sessions",
		Resource:  "users",
		Source:    models.LogSourceAuth,
		IPAddress: c.ClientIP(),
	})
	utils.SendMessage(c, http.StatusOK, "all sessions cleared")
}

func (h *AuthHandler) RequestDeviceCode(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		utils.SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated")
		return
	}

	var req models.DeviceCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	code, err := h.tokenService.RequestDeviceCode(c.Request.Context(), user.ID, req.DeviceUUID, req.DeviceInfo)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, gin.H{"code": code})
}

func (h *AuthHandler) VerifyDevice(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		utils.SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated")
		return
	}

	var req models.DeviceVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := h.tokenService.ConfirmDevice(c.Request.Context(), user.ID, req.DeviceUUID, req.Code); err != nil {
		respondError(c, err)
		return
	}

	utils.SendMessage(c, http.StatusOK, "device verified")
}
