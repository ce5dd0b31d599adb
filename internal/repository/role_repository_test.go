package repository

import (
	"context"
	"regexp"
	"testing"

	"rbac-service/internal/common"
	"rbac-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceRolePermissions(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM roles WHERE id = $1)`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	for _, pid := range []int{10, 11} {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM permissions WHERE id = $1)`)).
			WithArgs(pid).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	}
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM role_permissions WHERE role_id = $1`)).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 2))
	for _, pid := range []int{10, 11} {
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO role_permissions (role_id, permission_id, granted_at) VALUES ($1, $2, NOW())`)).
			WithArgs(3, pid).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	err := repo.ReplaceRolePermissions(context.Background(), 3, []int{10, 11})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRolePermissionsUnknownPermissionRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM roles WHERE id = $1)`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM permissions WHERE id = $1)`)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM permissions WHERE id = $1)`)).
		WithArgs(999).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := repo.ReplaceRolePermissions(context.Background(), 3, []int{10, 999})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet(), "no delete or insert may run before validation passes")
}

func TestReplaceRolePermissionsEmptySet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM roles WHERE id = $1)`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM role_permissions WHERE role_id = $1`)).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	err := repo.ReplaceRolePermissions(context.Background(), 3, nil)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRolePermissionsFiltersInactive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoleRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "resource", "action", "is_active", "is_system"}).
		AddRow(1, "users:read", "users", "read", true, true).
		AddRow(2, "users:update", "users", "update", true, true)
	mock.ExpectQuery(`SELECT p\.\*`).
		WithArgs(1).
		WillReturnRows(rows)

	perms, err := repo.GetRolePermissions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, perms, 2)
	assert.Equal(t, models.ActionRead, perms[0].Action)
}

func TestGetRoleByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM roles WHERE id = $1`)).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetRoleByID(context.Background(), 42)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
