package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rbac-service/internal/common"
	"rbac-service/internal/models"

	"github.com/jmoiron/sqlx"
)

type PermissionRepository interface {
	CreatePermission(ctx context.Context, permission *models.Permission) error
	GetPermissionByID(ctx context.Context, id int) (*models.Permission, error)
	ListPermissions(ctx context.Context, resource string, limit, offset int) ([]*models.Permission, int64, error)
	ListResources(ctx context.Context) ([]string, error)
	UpdatePermission(ctx context.Context, permission *models.Permission) error
	SetPermissionActive(ctx context.Context, permissionID int, active bool) error
	SoftDeletePermission(ctx context.Context, permissionID int) error
	HardDeletePermission(ctx context.Context, permissionID int) error
	CountRolesUsingPermission(ctx context.Context, permissionID int) (int, error)
	GetPermissionStats(ctx context.Context) (*models.PermissionStats, error)
}

type permissionRepository struct {
	db *sqlx.DB
}

func NewPermissionRepository(db *sqlx.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) CreatePermission(ctx context.Context, permission *models.Permission) error {
	query := `
		INSERT INTO permissions (name, description, resource, action, is_active, is_system, created_at)
		VALUES (:name, :description, :resource, :action, :is_active, :is_system, NOW())
		RETURNING id, created_at
	`

	rows, err := r.db.NamedQueryContext(ctx, query, permission)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("permission already defined: %w", common.ErrDuplicate)
		}
		return fmt.Errorf("failed to create permission: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&permission.ID, &permission.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan created permission: %w", err)
		}
	}
	return nil
}

func (r *permissionRepository) GetPermissionByID(ctx context.Context, id int) (*models.Permission, error) {
	var permission models.Permission
	query := `SELECT * FROM permissions WHERE id = $1`

	err := r.db.GetContext(ctx, &permission, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("permission %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get permission by ID: %w", err)
	}

	return &permission, nil
}

func (r *permissionRepository) ListPermissions(ctx context.Context, resource string, limit, offset int) ([]*models.Permission, int64, error) {
	var total int64
	var permissions []*models.Permission

	if resource != "" {
		countQuery := `SELECT COUNT(*) FROM permissions WHERE resource = $1`
		if err := r.db.GetContext(ctx, &total, countQuery, resource); err != nil {
			return nil, 0, fmt.Errorf("failed to count permissions: %w", err)
		}

		query := `SELECT * FROM permissions WHERE resource = $1 ORDER BY resource, action LIMIT $2 OFFSET $3`
		if err := r.db.SelectContext(ctx, &permissions, query, resource, limit, offset); err != nil {
			return nil, 0, fmt.Errorf("failed to list permissions: %w", err)
		}
		return permissions, total, nil
	}

	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM permissions`); err != nil {
		return nil, 0, fmt.Errorf("failed to count permissions: %w", err)
	}

	query := `SELECT * FROM permissions ORDER BY resource, action LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &permissions, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list permissions: %w", err)
	}

	return permissions, total, nil
}

func (r *permissionRepository) ListResources(ctx context.Context) ([]string, error) {
	var resources []string
	query := `SELECT DISTINCT resource FROM permissions ORDER BY resource`

	if err := r.db.SelectContext(ctx, &resources, query); err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return resources, nil
}

func (r *permissionRepository) UpdatePermission(ctx context.Context, permission *models.Permission) error {
	query := `
		UPDATE permissions
		SET name = :name, description = :description
		WHERE id = :id
	`

	result, err := r.db.NamedExecContext(ctx, query, permission)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("permission name taken: %w", common.ErrDuplicate)
		}
		return fmt.Errorf("failed to update permission: %w", err)
	}

	return requireRowsAffected(result, "permission")
}

func (r *permissionRepository) SetPermissionActive(ctx context.Context, permissionID int, active bool) error {
	query := `UPDATE permissions SET is_active = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, active, permissionID)
	if err != nil {
		return fmt.Errorf("failed to set permission active status: %w", err)
	}

	return requireRowsAffected(result, "permission")
}

func (r *permissionRepository) SoftDeletePermission(ctx context.Context, permissionID int) error {
	query := `UPDATE permissions SET is_active = FALSE WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, permissionID)
	if err != nil {
		return fmt.Errorf("failed to soft delete permission: %w", err)
	}

	return requireRowsAffected(result, "permission")
}

func (r *permissionRepository) HardDeletePermission(ctx context.Context, permissionID int) error {
	query := `DELETE FROM permissions WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, permissionID)
	if err != nil {
		return fmt.Errorf("failed to hard delete permission: %w", err)
	}

	return requireRowsAffected(result, "permission")
}

func (r *permissionRepository) CountRolesUsingPermission(ctx context.Context, permissionID int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM role_permissions WHERE permission_id = $1`

	if err := r.db.GetContext(ctx, &count, query, permissionID); err != nil {
		return 0, fmt.Errorf("failed to count roles using permission: %w", err)
	}
	return count, nil
}

func (r *permissionRepository) GetPermissionStats(ctx context.Context) (*models.PermissionStats, error) {
	stats := &models.PermissionStats{ByResource: map[string]int{}}

	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE is_active) AS active,
		       COUNT(*) FILTER (WHERE is_system) AS system
		FROM permissions
	`
	row := struct {
		Total  int `db:"total"`
		Active int `db:"active"`
		System int `db:"system"`
	}{}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("failed to get permission totals: %w", err)
	}
	stats.Total = row.Total
	stats.Active = row.Active
	stats.System = row.System

	byResourceQuery := `SELECT resource, COUNT(*) AS count FROM permissions GROUP BY resource`
	rows := []struct {
		Resource string `db:"resource"`
		Count    int    `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, byResourceQuery); err != nil {
		return nil, fmt.Errorf("failed to get permissions by resource: %w", err)
	}
	for _, rr := range rows {
		stats.ByResource[rr.Resource] = rr.Count
	}

	return stats, nil
}
