package models

import (
	"fmt"
	"strings"
	"time"
)

type Role struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	IsDefault   bool      `json:"is_default" db:"is_default"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Permission struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Resource    string    `json:"resource" db:"resource"`
	Action      Action    `json:"action" db:"action"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	IsSystem    bool      `json:"is_system" db:"is_system"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type RolePermission struct {
	ID           int       `json:"id" db:"id"`
	RoleID       int       `json:"role_id" db:"role_id"`
	PermissionID int       `json:"permission_id" db:"permission_id"`
	GrantedAt    time.Time `json:"granted_at" db:"granted_at"`
}

type RoleStats struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Inactive int            `json:"inactive"`
	ByRole   map[string]int `json:"users_by_role"`
}

type PermissionStats struct {
	Total      int            `json:"total"`
	Active     int            `json:"active"`
	System     int            `json:"system"`
	ByResource map[string]int `json:"by_resource"`
}

// Action is the closed verb set a permission can grant on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

var AllActions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}

func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllActions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Requirement names a permission either by its unique name or by a
// resource/action pair. Exactly one of the two forms is populated.
type Requirement struct {
	Name     string
	Resource string
	Action   Action
}

// ParseRequirement accepts "resource:action" or a bare permission name.
// Malformed action verbs are rejected here so the middleware never
// carries free-form strings into permission checks.
func ParseRequirement(s string) (Requirement, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Requirement{}, fmt.Errorf("empty permission requirement")
	}
	if !strings.Contains(s, ":") {
		return Requirement{Name: s}, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if parts[0] == "" {
		return Requirement{}, fmt.Errorf("requirement %q has empty resource", s)
	}
	action, err := ParseAction(parts[1])
	if err != nil {
		return Requirement{}, fmt.Errorf("requirement %q: %w", s, err)
	}
	return Requirement{Resource: parts[0], Action: action}, nil
}

// Matches reports whether the permission satisfies the requirement.
func (r Requirement) Matches(p Permission) bool {
	if r.Name != "" {
		return p.Name == r.Name
	}
	return p.Resource == r.Resource && p.Action == r.Action
}
