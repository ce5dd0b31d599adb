package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
	LogLevelDebug   LogLevel = "debug"
)

type LogSource string

const (
	LogSourceAuth     LogSource = "auth"
	LogSourceUserMgmt LogSource = "user_management"
	LogSourceRoleMgmt LogSource = "role_management"
	LogSourcePermMgmt LogSource = "permission_management"
	LogSourceSystem   LogSource = "system"
	LogSourceAPI      LogSource = "api"
)

// LogEntry is an append-only audit record. UserID is nullable so the
// trail survives hard-deleted accounts.
type LogEntry struct {
	ID         int64          `json:"id" db:"id"`
	UserID     *int           `json:"user_id" db:"user_id"`
	Content    string         `json:"content" db:"content"`
	Action     string         `json:"action" db:"action"`
	Resource   string         `json:"resource" db:"resource"`
	ResourceID string         `json:"resource_id" db:"resource_id"`
	IPAddress  string         `json:"ip_address" db:"ip_address"`
	UserAgent  string         `json:"user_agent" db:"user_agent"`
	Source     LogSource      `json:"source" db:"source"`
	Level      LogLevel       `json:"level" db:"level"`
	Metadata   types.JSONText `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// LogFilter narrows List queries; zero values mean "no filter".
type LogFilter struct {
	UserID   int
	Source   LogSource
	Level    LogLevel
	Action   string
	Resource string
	From     *time.Time
	To       *time.Time
}

type LogStats struct {
	Total    int64            `json:"total"`
	ByLevel  map[string]int64 `json:"by_level"`
	BySource map[string]int64 `json:"by_source"`
	Last24h  int64            `json:"last_24h"`
}
