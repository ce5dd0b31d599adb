package services

import (
	"context"
	"fmt"

	"rbac-service/internal/common"
	"rbac-service/internal/models"
	"rbac-service/internal/repository"
)

type RoleService struct {
	roleRepo repository.RoleRepository
	permRepo repository.PermissionRepository
	userRepo repository.IUserRepository
}

func NewRoleService(roleRepo repository.RoleRepository, permRepo repository.PermissionRepository,
	userRepo repository.IUserRepository) *RoleService {
	return &RoleService{
		roleRepo: roleRepo,
		permRepo: permRepo,
		userRepo: userRepo,
	}
}

// EffectivePermissions resolves the permission set a role grants. An
// inactive or missing role grants nothing.
func (s *RoleService) EffectivePermissions(ctx context.Context, roleID int) ([]*models.Permission, error) {
	role, err := s.roleRepo.GetRoleByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if !role.IsActive {
		return []*models.Permission{}, nil
	}
	return s.roleRepo.GetRolePermissions(ctx, roleID)
}

// HasPermissions reports whether the set satisfies every requirement.
func HasPermissions(perms []*models.Permission, requirements ...models.Requirement) bool {
	for _, req := range requirements {
		matched := false
		for _, p := range perms {
			if req.Matches(*p) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func (s *RoleService) CreateRole(ctx context.Context, req models.CreateRoleRequest) (*models.Role, error) {
	role := &models.Role{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	if err := s.roleRepo.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *RoleService) GetRole(ctx context.Context, roleID int) (*models.Role, error) {
	return s.roleRepo.GetRoleByID(ctx, roleID)
}

func (s *RoleService) ListRoles(ctx context.Context, limit, offset int) ([]*models.Role, int64, error) {
	return s.roleRepo.ListRoles(ctx, limit, offset)
}

func (s *RoleService) UpdateRole(ctx context.Context, roleID int, req models.UpdateRoleRequest) (*models.Role, error) {
	role, err := s.roleRepo.GetRoleByID(ctx, roleID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		role.Name = *req.Name
	}
	if req.Description != nil {
		role.Description = *req.Description
	}

	if err := s.roleRepo.UpdateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// ToggleRoleStatus flips is_active. Default roles stay active.
func (s *RoleService) ToggleRoleStatus(ctx context.Context, roleID int) (*models.Role, error) {
	role, err := s.roleRepo.GetRoleByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsActive && role.IsDefault {
		return nil, fmt.Errorf("default role cannot be deactivated: %w", common.ErrPolicyViolation)
	}

	if err := s.roleRepo.SetRoleActive(ctx, roleID, !role.IsActive); err != nil {
		return nil, err
	}
	role.IsActive = !role.IsActive
	return role, nil
}

// SoftDeleteRole deactivates a role. Default roles and roles still
// assigned to users are protected.
func (s *RoleService) SoftDeleteRole(ctx context.Context, roleID int) error {
	if err := s.guardRoleDeletion(ctx, roleID); err != nil {
		return err
	}
	return s.roleRepo.SoftDeleteRole(ctx, roleID)
}

func (s *RoleService) HardDeleteRole(ctx context.Context, roleID int) error {
	if err := s.guardRoleDeletion(ctx, roleID); err != nil {
		return err
	}
	return s.roleRepo.HardDeleteRole(ctx, roleID)
}

func (s *RoleService) guardRoleDeletion(ctx context.Context, roleID int) error {
	role, err := s.roleRepo.GetRoleByID(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsDefault {
		return fmt.Errorf("default role cannot be deleted: %w", common.ErrPolicyViolation)
	}

	inUse, err := s.userRepo.CountUsersByRole(ctx, roleID)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return fmt.Errorf("role is assigned to %d users: %w", inUse, common.ErrPolicyViolation)
	}
	return nil
}

// SetRolePermissions replaces the role's grant set atomically. An empty
// list leaves the role with no permissions.
func (s *RoleService) SetRolePermissions(ctx context.Context, roleID int, permissionIDs []int) error {
	return s.roleRepo.ReplaceRolePermissions(ctx, roleID, permissionIDs)
}

func (s *RoleService) GetRolePermissions(ctx context.Context, roleID int) ([]*models.Permission, error) {
	if _, err := s.roleRepo.GetRoleByID(ctx, roleID); err != nil {
		return nil, err
	}
	return s.roleRepo.GetRolePermissions(ctx, roleID)
}

func (s *RoleService) GetRoleStats(ctx context.Context) (*models.RoleStats, error) {
	return s.roleRepo.GetRoleStats(ctx)
}

func (s *RoleService) CreatePermission(ctx context.Context, req models.CreatePermissionRequest) (*models.Permission, error) {
	action, err := models.ParseAction(req.Action)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	permission := &models.Permission{
		Name:        req.Name,
		Description: req.Description,
		Resource:    req.Resource,
		Action:      action,
		IsActive:    true,
	}
	if err := s.permRepo.CreatePermission(ctx, permission); err != nil {
		return nil, err
	}
	return permission, nil
}

// BulkCreatePermissions creates one permission per action for a
// resource, skipping pairs that already exist.
func (s *RoleService) BulkCreatePermissions(ctx context.Context, resource, description string) ([]*models.Permission, error) {
	var created []*models.Permission
	for _, action := range models.AllActions {
		permission := &models.Permission{
			Name:        fmt.Sprintf("%s:%s", resource, action),
			Description: description,
			Resource:    resource,
			Action:      action,
			IsActive:    true,
		}
		if err := s.permRepo.CreatePermission(ctx, permission); err != nil {
			if common.IsDuplicate(err) {
				continue
			}
			return nil, err
		}
		created = append(created, permission)
	}
	return created, nil
}

func (s *RoleService) GetPermission(ctx context.Context, permissionID int) (*models.Permission, error) {
	return s.permRepo.GetPermissionByID(ctx, permissionID)
}

func (s *RoleService) ListPermissions(ctx context.Context, resource string, limit, offset int) ([]*models.Permission, int64, error) {
	return s.permRepo.ListPermissions(ctx, resource, limit, offset)
}

func (s *RoleService) ListResources(ctx context.Context) ([]string, error) {
	return s.permRepo.ListResources(ctx)
}

func (s *RoleService) UpdatePermission(ctx context.Context, permissionID int, req models.UpdatePermissionRequest) (*models.Permission, error) {
	permission, err := s.permRepo.GetPermissionByID(ctx, permissionID)
	if err != nil {
		return nil, err
	}
	if permission.IsSystem {
		return nil, fmt.Errorf("system permission cannot be modified: %w", common.ErrPolicyViolation)
	}

	if req.Name != nil {
		permission.Name = *req.Name
	}
	if req.Description != nil {
		permission.Description = *req.Description
	}

	if err := s.permRepo.UpdatePermission(ctx, permission); err != nil {
		return nil, err
	}
	return permission, nil
}

// TogglePermissionStatus flips is_active. System permissions cannot be
// deactivated.
func (s *RoleService) TogglePermissionStatus(ctx context.Context, permissionID int) (*models.Permission, error) {
	permission, err := s.permRepo.GetPermissionByID(ctx, permissionID)
	if err != nil {
		return nil, err
	}
	if permission.IsActive && permission.IsSystem {
		return nil, fmt.Errorf("system permission cannot be deactivated: %w", common.ErrPolicyViolation)
	}

	if err := s.permRepo.SetPermissionActive(ctx, permissionID, !permission.IsActive); err != nil {
		return nil, err
	}
	permission.IsActive = !permission.IsActive
	return permission, nil
}

// SoftDeletePermission deactivates a permission unless it is a system
// permission or still granted to roles.
func (s *RoleService) SoftDeletePermission(ctx context.Context, permissionID int) error {
	permission, err := s.permRepo.GetPermissionByID(ctx, permissionID)
	if err != nil {
		return err
	}
	if permission.IsSystem {
		return fmt.Errorf("system permission cannot be deleted: %w", common.ErrPolicyViolation)
	}

	inUse, err := s.permRepo.CountRolesUsingPermission(ctx, permissionID)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return fmt.Errorf("permission is granted to %d roles: %w", inUse, common.ErrPolicyViolation)
	}

	return s.permRepo.SoftDeletePermission(ctx, permissionID)
}

func (s *RoleService) HardDeletePermission(ctx context.Context, permissionID int) error {
	permission, err := s.permRepo.GetPermissionByID(ctx, permissionID)
	if err != nil {
		return err
	}
	if permission.IsSystem {
		return fmt.Errorf("system permission cannot be deleted: %w", common.ErrPolicyViolation)
	}

	return s.permRepo.HardDeletePermission(ctx, permissionID)
}

func (s *RoleService) GetPermissionStats(ctx context.Context) (*models.PermissionStats, error) {
	return s.permRepo.GetPermissionStats(ctx)
}
