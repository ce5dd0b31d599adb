package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"rbac-service/internal/models"
	"rbac-service/internal/obs"
	"rbac-service/internal/repository"
	"rbac-service/internal/services"
	"rbac-service/utils"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserKey        = "auth_user"
	ctxRoleKey        = "auth_role"
	ctxPermissionsKey = "auth_permissions"
)

type Middleware struct {
	tokenService *services.TokenService
	roleService  *services.RoleService
	userRepo     repository.IUserRepository
}

func NewMiddleware(tokenService *services.TokenService, roleService *services.RoleService,
	userRepo repository.IUserRepository) *Middleware {
	return &Middleware{
		tokenService: tokenService,
		roleService:  roleService,
		userRepo:     userRepo,
	}
}

// Requirement parses a "resource:action" or bare-name permission spec at
// route registration time. A malformed spec is a programming error.
func Requirement(s string) models.Requirement {
	req, err := models.ParseRequirement(s)
	if err != nil {
		panic(err)
	}
	return req
}

func extractBearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// authenticate runs the full identity resolution: token, active user,
// active role, effective permissions. Permissions are resolved fresh on
// every request so grant changes apply immediately.
func (m *Middleware) authenticate(c *gin.Context) (int, string) {
	token, ok := extractBearerToken(c)
	if !ok {
		return http.StatusUnauthorized, "missing or malformed authorization header"
	}

	claims, err := m.tokenService.VerifyAccess(token)
	if err != nil {
		return http.StatusUnauthorized, "invalid or expired access token"
	}

	user, err := m.userRepo.GetUserWithRoleByID(c.Request.Context(), claims.UserID)
	if err != nil || !user.IsActive {
		return http.StatusUnauthorized, "account not found or inactive"
	}

	role, err := m.roleService.GetRole(c.Request.Context(), user.RoleID)
	if err != nil || !role.IsActive {
		return http.StatusForbidden, "role not found or inactive"
	}

	perms, err := m.roleService.EffectivePermissions(c.Request.Context(), role.ID)
	if err != nil {
		return http.StatusInternalServerError, "failed to resolve permissions"
	}

	c.Set(ctxUserKey, user)
	c.Set(ctxRoleKey, role)
	c.Set(ctxPermissionsKey, perms)
	return 0, ""
}

func (m *Middleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if status, msg := m.authenticate(c); status != 0 {
			code := "UNAUTHORIZED"
			switch status {
			case http.StatusForbidden:
				obs.AuthzDenials.Inc()
				code = "FORBIDDEN"
			case http.StatusInternalServerError:
				code = "INTERNAL_ERROR"
			}
			utils.SendError(c, status, code, msg)
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalAuthenticate attaches identity when a valid token is present
// and proceeds anonymously otherwise.
func (m *Middleware) OptionalAuthenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.authenticate(c)
		c.Next()
	}
}

func (m *Middleware) RequireRoles(names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := CurrentRole(c)
		if ok {
			for _, name := range names {
				if role.Name == name {
					c.Next()
					return
				}
			}
		}
		obs.AuthzDenials.Inc()
		utils.SendError(c, http.StatusForbidden, "FORBIDDEN", "insufficient role")
		c.Abort()
	}
}

// RequirePermissions rejects unless every requirement is satisfied.
func (m *Middleware) RequirePermissions(reqs ...models.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, ok := CurrentPermissions(c)
		if !ok || !services.HasPermissions(perms, reqs...) {
			obs.AuthzDenials.Inc()
			utils.SendError(c, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireOwnership allows Admins through; everyone else must be acting
// on their own numeric path id.
func (m *Middleware) RequireOwnership(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, roleOK := CurrentRole(c)
		if roleOK && role.Name == "Admin" {
			c.Next()
			return
		}

		user, userOK := CurrentUser(c)
		id, err := utils.ParseIDParam(c, param)
		if !userOK || err != nil || id != user.ID {
			obs.AuthzDenials.Inc()
			utils.SendError(c, http.StatusForbidden, "FORBIDDEN", "cannot act on another account")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestTimeout bounds the whole request with a context deadline.
// Mutations that commit before the deadline are not rolled back.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*models.UserWithRole, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.UserWithRole)
	return user, ok
}

func CurrentRole(c *gin.Context) (*models.Role, bool) {
	v, ok := c.Get(ctxRoleKey)
	if !ok {
		return nil, false
	}
	role, ok := v.(*models.Role)
	return role, ok
}

func CurrentPermissions(c *gin.Context) ([]*models.Permission, bool) {
	v, ok := c.Get(ctxPermissionsKey)
	if !ok {
		return nil, false
	}
	perms, ok := v.([]*models.Permission)
	return perms, ok
}
