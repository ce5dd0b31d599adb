package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rbac-service/internal/common"
	"rbac-service/internal/models"

	"github.com/jmoiron/sqlx"
)

type RoleRepository interface {
	CreateRole(ctx context.Context, role *models.Role) error
	GetRoleByID(ctx context.Context, id int) (*models.Role, error)
	GetRoleByName(ctx context.Context, name string) (*models.Role, error)
	ListRoles(ctx context.Context, limit, offset int) ([]*models.Role, int64, error)
	UpdateRole(ctx context.Context, role *models.Role) error
	SetRoleActive(ctx context.Context, roleID int, active bool) error
	SoftDeleteRole(ctx context.Context, roleID int) error
	HardDeleteRole(ctx context.Context, roleID int) error
	GetDefaultRole(ctx context.Context) (*models.Role, error)
	GetRolePermissions(ctx context.Context, roleID int) ([]*models.Permission, error)
	ReplaceRolePermissions(ctx context.Context, roleID int, permissionIDs []int) error
	GetRoleStats(ctx context.Context) (*models.RoleStats, error)
}

type roleRepository struct {
	db *sqlx.DB
}

func NewRoleRepository(db *sqlx.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) CreateRole(ctx context.Context, role *models.Role) error {
	query := `
		INSERT INTO roles (name, description, is_active, is_default, created_at, updated_at)
		VALUES (:name, :description, :is_active, :is_default, :created_at, :updated_at)
		RETURNING id
	`

	role.CreatedAt = time.Now()
	role.UpdatedAt = time.Now()

	rows, err := r.db.NamedQueryContext(ctx, query, role)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("role name taken: %w", common.ErrDuplicate)
		}
		return fmt.Errorf("failed to create role: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&role.ID); err != nil {
			return fmt.Errorf("failed to scan created role id: %w", err)
		}
	}
	return nil
}

func (r *roleRepository) GetRoleByID(ctx context.Context, id int) (*models.Role, error) {
	var role models.Role
	query := `SELECT * FROM roles WHERE id = $1`

	err := r.db.GetContext(ctx, &role, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("role %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get role by ID: %w", err)
	}

	return &role, nil
}

func (r *roleRepository) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	query := `SELECT * FROM roles WHERE name = $1`

	err := r.db.GetContext(ctx, &role, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("role %q: %w", name, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get role by name: %w", err)
	}

	return &role, nil
}

func (r *roleRepository) ListRoles(ctx context.Context, limit, offset int) ([]*models.Role, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM roles`); err != nil {
		return nil, 0, fmt.Errorf("failed to count roles: %w", err)
	}

	var roles []*models.Role
	query := `SELECT * FROM roles ORDER BY id LIMIT $1 OFFSET $2`

	if err := r.db.SelectContext(ctx, &roles, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list roles: %w", err)
	}

	return roles, total, nil
}

func (r *roleRepository) UpdateRole(ctx context.Context, role *models.Role) error {
	query := `
		UPDATE roles
		SET name = :name, description = :description, updated_at = :updated_at
		WHERE id = :id
	`

	role.UpdatedAt = time.Now()

	result, err := r.db.NamedExecContext(ctx, query, role)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("role name taken: %w", common.ErrDuplicate)
		}
		return fmt.Errorf("failed to update role: %w", err)
	}

	return requireRowsAffected(result, "role")
}

func (r *roleRepository) SetRoleActive(ctx context.Context, roleID int, active bool) error {
	query := `UPDATE roles SET is_active = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, active, roleID)
	if err != nil {
		return fmt.Errorf("failed to set role active status: %w", err)
	}

	return requireRowsAffected(result, "role")
}

func (r *roleRepository) SoftDeleteRole(ctx context.Context, roleID int) error {
	query := `UPDATE roles SET is_active = FALSE, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, roleID)
	if err != nil {
		return fmt.Errorf("failed to soft delete role: %w", err)
	}

	return requireRowsAffected(result, "role")
}

func (r *roleRepository) HardDeleteRole(ctx context.Context, roleID int) error {
	query := `DELETE FROM roles WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, roleID)
	if err != nil {
		return fmt.Errorf("failed to hard delete role: %w", err)
	}

	return requireRowsAffected(result, "role")
}

func (r *roleRepository) GetDefaultRole(ctx context.Context) (*models.Role, error) {
	var role models.Role
	query := `SELECT * FROM roles WHERE is_default = TRUE AND is_active = TRUE LIMIT 1`

	err := r.db.GetContext(ctx, &role, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("default role: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get default role: %w", err)
	}

	return &role, nil
}

// GetRolePermissions returns the active permissions granted to a role.
func (r *roleRepository) GetRolePermissions(ctx context.Context, roleID int) ([]*models.Permission, error) {
	var permissions []*models.Permission
	query := `
		SELECT p.*
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1 AND p.is_active = TRUE
		ORDER BY p.resource, p.action
	`

	if err := r.db.SelectContext(ctx, &permissions, query, roleID); err != nil {
		return nil, fmt.Errorf("failed to get role permissions: %w", err)
	}

	return permissions, nil
}

// ReplaceRolePermissions swaps the full grant set inside one transaction
// so concurrent readers never observe a partial set.
func (r *roleRepository) ReplaceRolePermissions(ctx context.Context, roleID int, permissionIDs []int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var roleExists bool
	if err := tx.GetContext(ctx, &roleExists, `SELECT EXISTS(SELECT 1 FROM roles WHERE id = $1)`, roleID); err != nil {
		return fmt.Errorf("failed to check role: %w", err)
	}
	if !roleExists {
		return fmt.Errorf("role %d: %w", roleID, common.ErrNotFound)
	}

	for _, pid := range permissionIDs {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM permissions WHERE id = $1)`, pid); err != nil {
			return fmt.Errorf("failed to check permission %d: %w", pid, err)
		}
		if !exists {
			return fmt.Errorf("permission %d: %w", pid, common.ErrNotFound)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to clear role permissions: %w", err)
	}

	for _, pid := range permissionIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO role_permissions (role_id, permission_id, granted_at) VALUES ($1, $2, NOW())`,
			roleID, pid)
		if err != nil {
			return fmt.Errorf("failed to grant permission %d: %w", pid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role permissions: %w", err)
	}
	return nil
}

func (r *roleRepository) GetRoleStats(ctx context.Context) (*models.RoleStats, error) {
	stats := &models.RoleStats{ByRole: map[string]int{}}

	query := `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE is_active) AS active FROM roles`
	row := struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}{}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("failed to get role totals: %w", err)
	}
	stats.Total = row.Total
	stats.Active = row.Active
	stats.Inactive = row.Total - row.Active

	byRoleQuery := `
		SELECT r.name AS name, COUNT(u.id) AS count
		FROM roles r
		LEFT JOIN users u ON u.role_id = r.id
		GROUP BY r.name
	`
	rows := []struct {
		Name  string `db:"name"`
		Count int    `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, byRoleQuery); err != nil {
		return nil, fmt.Errorf("failed to get users per role: %w", err)
	}
	for _, rr := range rows {
		stats.ByRole[rr.Name] = rr.Count
	}

	return stats, nil
}
