package models

// Request and response DTOs shared between handlers and services.

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Fullname string `json:"fullname"`
	Phone    string `json:"phone"`
	RoleID   int    `json:"role_id"`
}

type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

type DeviceCodeRequest struct {
	DeviceUUID string `json:"device_uuid" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

type DeviceVerifyRequest struct {
	DeviceUUID string `json:"device_uuid" binding:"required"`
	Code       string `json:"code" binding:"required,len=6"`
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Fullname string `json:"fullname"`
	Phone    string `json:"phone"`
	RoleID   int    `json:"role_id"`
	IsActive *bool  `json:"is_active"`
}

type UpdateUserRequest struct {
	Email    *string `json:"email"`
	Fullname *string `json:"fullname"`
	Phone    *string `json:"phone"`
	RoleID   *int    `json:"role_id"`
}

type UpdateProfileRequest struct {
	Email    *string `json:"email"`
	Fullname *string `json:"fullname"`
	Phone    *string `json:"phone"`
}

type CreateRoleRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=50"`
	Description string `json:"description"`
}

type UpdateRoleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type AssignPermissionsRequest struct {
	PermissionIDs []int `json:"permission_ids" binding:"required"`
}

type CreatePermissionRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Resource    string `json:"resource" binding:"required"`
	Action      string `json:"action" binding:"required"`
}

type BulkCreatePermissionsRequest struct {
	Resource    string `json:"resource" binding:"required"`
	Description string `json:"description"`
}

type UpdatePermissionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type CreateLogRequest struct {
	UserID     *int           `json:"user_id"`
	Content    string         `json:"content" binding:"required"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id"`
	Source     string         `json:"source"`
	Level      string         `json:"level"`
	Metadata   map[string]any `json:"metadata"`
}

type LoginResponse struct {
	User         *UserWithRole `json:"user"`
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
}

type PaginatedResponse struct {
	Items  any   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}
