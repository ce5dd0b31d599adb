package handlers

import (
	"errors"
	"net/http"

	"rbac-service/internal/common"
	"rbac-service/utils"

	"github.com/gin-gonic/gin"
)

// respondError maps domain sentinels onto HTTP statuses at the one
// place where storage and service errors become API responses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrTokenInvalid),
		errors.Is(err, common.ErrTokenRevoked):
		utils.SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
	case errors.Is(err, common.ErrAccountDisabled),
		errors.Is(err, common.ErrAccountLocked),
		errors.Is(err, common.ErrForbidden):
		utils.SendError(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, common.ErrNotFound):
		utils.SendError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, common.ErrDuplicate):
		utils.SendError(c, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, common.ErrPolicyViolation),
		errors.Is(err, common.ErrValidation):
		utils.SendError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	default:
		utils.SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
