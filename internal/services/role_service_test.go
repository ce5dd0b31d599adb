package services

import (
	"context"
	"testing"

	"rbac-service/internal/common"
	"rbac-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoleService() (*RoleService, *fakeRoleRepo, *fakePermRepo, *fakeUserRepo) {
	roleRepo := newFakeRoleRepo()
	permRepo := newFakePermRepo()
	userRepo := newFakeUserRepo()
	return NewRoleService(roleRepo, permRepo, userRepo), roleRepo, permRepo, userRepo
}

func TestHasPermissionsAllMustMatch(t *testing.T) {
	perms := []*models.Permission{
		{Name: "users:read", Resource: "users", Action: models.ActionRead},
		{Name: "users:update", Resource: "users", Action: models.ActionUpdate},
	}

	assert.True(t, HasPermissions(perms,
		models.Requirement{Resource: "users", Action: models.ActionRead}))
	assert.True(t, HasPermissions(perms,
		models.Requirement{Resource: "users", Action: models.ActionRead},
		models.Requirement{Resource: "users", Action: models.ActionUpdate}))
	assert.False(t, HasPermissions(perms,
		models.Requirement{Resource: "users", Action: models.ActionRead},
		models.Requirement{Resource: "users", Action: models.ActionDelete}),
		"one unmet requirement fails the whole check")
	assert.False(t, HasPermissions(nil,
		models.Requirement{Resource: "users", Action: models.ActionRead}))
	assert.True(t, HasPermissions(perms), "no requirements is vacuously satisfied")
}

func TestHasPermissionsByName(t *testing.T) {
	perms := []*models.Permission{
		{Name: "special-report", Resource: "reports", Action: models.ActionRead},
	}

	assert.True(t, HasPermissions(perms, models.Requirement{Name: "special-report"}))
	assert.False(t, HasPermissions(perms, models.Requirement{Name: "other"}))
}

func TestEffectivePermissionsInactiveRole(t *testing.T) {
	svc, roleRepo, _, _ := newTestRoleService()
	require.NoError(t, roleRepo.ReplaceRolePermissions(context.Background(), 3, []int{1, 2}))

	perms, err := svc.EffectivePermissions(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, perms, 2)

	require.NoError(t, roleRepo.SetRoleActive(context.Background(), 3, false))

	perms, err = svc.EffectivePermissions(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, perms, "an inactive role grants nothing")
}

func TestEffectivePermissionsUnknownRole(t *testing.T) {
	svc, _, _, _ := newTestRoleService()

	_, err := svc.EffectivePermissions(context.Background(), 42)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSetRolePermissionsEmptyListClears(t *testing.T) {
	svc, roleRepo, _, _ := newTestRoleService()
	require.NoError(t, svc.SetRolePermissions(context.Background(), 3, []int{1, 2, 3}))

	perms, err := roleRepo.GetRolePermissions(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, perms, 3)

	require.NoError(t, svc.SetRolePermissions(context.Background(), 3, []int{}))

	perms, err = roleRepo.GetRolePermissions(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestDefaultRoleCannotBeDeleted(t *testing.T) {
	svc, _, _, _ := newTestRoleService()

	err := svc.SoftDeleteRole(context.Background(), 2)
	assert.ErrorIs(t, err, common.ErrPolicyViolation)

	err = svc.HardDeleteRole(context.Background(), 2)
	assert.ErrorIs(t, err, common.ErrPolicyViolation)
}

func TestDefaultRoleCannotBeDeactivated(t *testing.T) {
	svc, _, _, _ := newTestRoleService()

	_, err := svc.ToggleRoleStatus(context.Background(), 2)
	assert.ErrorIs(t, err, common.ErrPolicyViolation)
}

func TestRoleInUseCannotBeDeleted(t *testing.T) {
	svc, _, _, userRepo := newTestRoleService()
	userRepo.add(&models.User{Username: "bob", Email: "bob@example.com", IsActive: true, RoleID: 3})

	err := svc.SoftDeleteRole(context.Background(), 3)
	assert.ErrorIs(t, err, common.ErrPolicyViolation)

	err = svc.HardDeleteRole(context.Background(), 3)
	assert.ErrorIs(t, err, common.ErrPolicyViolation)
}

func TestUnusedRoleCanBeDeleted(t *testing.T) {
	svc, roleRepo, _, _ := newTestRoleService()

	require.NoError(t, svc.SoftDeleteRole(context.Background(), 3))

	role, err := roleRepo.GetRoleByID(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, role.IsActive)
}

func TestCreatePermissionRejectsUnknownAction(t *testing.T) {
	svc, _, _, _ := newTestRoleService()

	_, err := svc.CreatePermission(context.Background(), models.CreatePermissionRequest{
		Name:     "users:destroy",
		Resource: "users",
		Action:   "destroy",
	})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestBulkCreatePermissionsSkipsExisting(t *testing.T) {
	svc, _, permRepo, _ := newTestRoleService()
	permRepo.add(&models.Permission{Name: "reports:read", Resource: "reports", Action: models.ActionRead, IsActive: true})

	created, err := svc.BulkCreatePermissions(context.Background(), "reports", "report access")
	require.NoError(t, err)
	assert.Len(t, created, len(models.AllActions)-1, "the existing read permission is skipped")
}

func TestSystemPermissionGuards(t *testing.T) {
	svc, _, permRepo, _ := newTestRoleService()
	system := permRepo.add(&models.Permission{
		Name: "users:manage", Resource: "users", Action: models.ActionManage,
		IsActive: true, IsSystem: true,
	})

	err := svc.SoftDeletePermission(context.Background(), system.ID)
	assert.ErrorIs(t, err, common.ErrPolicyViolation)

	err = svc.HardDeletePermission(context.Background(), system.ID)
	assert.ErrorIs(t, err, common.ErrPolicyViolation)

	_, err = svc.TogglePermissionStatus(context.Background(), system.ID)
	assert.ErrorIs(t, err, common.ErrPolicyViolation)

	_, err = svc.UpdatePermission(context.Background(), system.ID, models.UpdatePermissionRequest{})
	assert.ErrorIs(t, err, common.ErrPolicyViolation)
}

func TestPermissionInUseCannotBeSoftDeleted(t *testing.T) {
	svc, _, permRepo, _ := newTestRoleService()
	p := permRepo.add(&models.Permission{
		Name: "reports:read", Resource: "reports", Action: models.ActionRead, IsActive: true,
	})
	permRepo.inUse[p.ID] = 2

	err := svc.SoftDeletePermission(context.Background(), p.ID)
	assert.ErrorIs(t, err, common.ErrPolicyViolation)
}

func TestUnusedPermissionSoftDelete(t *testing.T) {
	svc, _, permRepo, _ := newTestRoleService()
	p := permRepo.add(&models.Permission{
		Name: "reports:read", Resource: "reports", Action: models.ActionRead, IsActive: true,
	})

	require.NoError(t, svc.SoftDeletePermission(context.Background(), p.ID))

	got, err := permRepo.GetPermissionByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}
