package models

import "time"

// AuthToken is the audit row appended for every issued refresh token.
// The single refresh_token slot on users stays authoritative for
// validity; these rows only record issuance history.
type AuthToken struct {
	ID           int       `json:"id" db:"id"`
	UserID       int       `json:"user_id" db:"user_id"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// DeviceLogin tracks per-device confirmation state for a user.
type DeviceLogin struct {
	ID            int        `json:"id" db:"id"`
	UserID        int        `json:"user_id" db:"user_id"`
	DeviceUUID    string     `json:"device_uuid" db:"device_uuid"`
	Code          string     `json:"-" db:"code"`
	CodeExpiresAt *time.Time `json:"code_expires_at" db:"code_expires_at"`
	IsVerified    bool       `json:"is_verified" db:"is_verified"`
	DeviceInfo    string     `json:"device_info" db:"device_info"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AccessClaims is the payload carried by an access token.
type AccessClaims struct {
	UserID   int    `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
