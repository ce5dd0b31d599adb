package models

import "time"

type User struct {
	ID           int        `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Fullname     string     `json:"fullname" db:"fullname"`
	Phone        string     `json:"phone" db:"phone"`
	Avatar       string     `json:"avatar" db:"avatar"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	RefreshToken *string    `json:"-" db:"refresh_token"`
	RoleID       int        `json:"role_id" db:"role_id"`
	LastLoginAt  *time.Time `json:"last_login_at" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// UserWithRole is the list/detail projection joined with the role name.
type UserWithRole struct {
	User
	RoleName string `json:"role_name" db:"role_name"`
}

type UserStats struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Inactive int            `json:"inactive"`
	ByRole   map[string]int `json:"by_role"`
}

// UserFilter narrows List queries. Zero values mean "no filter".
type UserFilter struct {
	Search   string
	RoleID   int
	IsActive *bool
}
