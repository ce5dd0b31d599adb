package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rbac-service/internal/common"
	"rbac-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type IUserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	GetUserWithRoleByID(ctx context.Context, id int) (*models.UserWithRole, error)
	GetUserByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	GetUserByIDAndRefreshToken(ctx context.Context, id int, refreshToken string) (*models.User, error)
	ListUsers(ctx context.Context, filter models.UserFilter, limit, offset int) ([]*models.UserWithRole, int64, error)
	UpdateUser(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, userID int, passwordHash string) error
	UpdateAvatar(ctx context.Context, userID int, avatarURL string) error
	SetRefreshToken(ctx context.Context, userID int, refreshToken *string) error
	StampLastLogin(ctx context.Context, userID int) error
	SetActive(ctx context.Context, userID int, active bool) error
	SoftDeleteUser(ctx context.Context, userID int) error
	HardDeleteUser(ctx context.Context, userID int) error
	CountUsersByRole(ctx context.Context, roleID int) (int, error)
	CountAdmins(ctx context.Context) (int, error)
	GetUserStats(ctx context.Context) (*models.UserStats, error)
}

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) IUserRepository {
	return &UserRepository{
		db: db,
	}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, fullname, phone, avatar,
		                   is_active, role_id, created_at, updated_at)
		VALUES (:username, :email, :password_hash, :fullname, :phone, :avatar,
		        :is_active, :role_id, :created_at, :updated_at)
		RETURNING id
	`

	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	rows, err := r.db.NamedQueryContext(ctx, query, user)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("username or email taken: %w", common.ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&user.ID); err != nil {
			return fmt.Errorf("failed to scan created user id: %w", err)
		}
	}
	return nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	var user models.User
	query := `SELECT * FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return &user, nil
}

func (r *UserRepository) GetUserWithRoleByID(ctx context.Context, id int) (*models.UserWithRole, error) {
	var user models.UserWithRole
	query := `
		SELECT u.*, r.name AS role_name
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1
	`

	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user with role: %w", err)
	}

	return &user, nil
}

// GetUserByIdentifier looks a user up by exact username or email.
func (r *UserRepository) GetUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	var user models.User
	query := `SELECT * FROM users WHERE username = $1 OR email = $1`

	err := r.db.GetContext(ctx, &user, query, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", identifier, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by identifier: %w", err)
	}

	return &user, nil
}

// GetUserByIDAndRefreshToken returns the user only when the stored slot
// matches the presented token exactly.
func (r *UserRepository) GetUserByIDAndRefreshToken(ctx context.Context, id int, refreshToken string) (*models.User, error) {
	var user models.User
	query := `SELECT * FROM users WHERE id = $1 AND refresh_token = $2`

	err := r.db.GetContext(ctx, &user, query, id, refreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("refresh token for user %d: %w", id, common.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("failed to get user by refresh token: %w", err)
	}

	return &user, nil
}

func (r *UserRepository) ListUsers(ctx context.Context, filter models.UserFilter, limit, offset int) ([]*models.UserWithRole, int64, error) {
	conds := []string{"1=1"}
	args := []any{}
	n := 1

	if filter.Search != "" {
		conds = append(conds, fmt.Sprintf("(u.username ILIKE $%d OR u.email ILIKE $%d OR u.fullname ILIKE $%d)", n, n, n))
		args = append(args, "%"+filter.Search+"%")
		n++
	}
	if filter.RoleID != 0 {
		conds = append(conds, fmt.Sprintf("u.role_id = $%d", n))
		args = append(args, filter.RoleID)
		n++
	}
	if filter.IsActive != nil {
		conds = append(conds, fmt.Sprintf("u.is_active = $%d", n))
		args = append(args, *filter.IsActive)
		n++
	}

	where := strings.Join(conds, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM users u WHERE ` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT u.*, r.name AS role_name
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE %s
		ORDER BY u.created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, n, n+1)
	args = append(args, limit, offset)

	var users []*models.UserWithRole
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	return users, total, nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = :email, fullname = :fullname, phone = :phone,
		    role_id = :role_id, updated_at = :updated_at
		WHERE id = :id
	`

	user.UpdatedAt = time.Now()

	result, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email taken: %w", common.ErrDuplicate)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	return requireRowsAffected(result, "user")
}

// UpdatePassword re-hashes happen in the service layer; this stores the
// hash and clears the refresh slot so other sessions must log in again.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID int, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, refresh_token = NULL, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return requireRowsAffected(result, "user")
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, userID int, avatarURL string) error {
	query := `UPDATE users SET avatar = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, avatarURL, userID)
	if err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}

	return requireRowsAffected(result, "user")
}

// SetRefreshToken overwrites the single refresh slot. Passing nil clears
// it. Concurrent logins race here and the last write wins.
func (r *UserRepository) SetRefreshToken(ctx context.Context, userID int, refreshToken *string) error {
	query := `UPDATE users SET refresh_token = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, refreshToken, userID)
	if err != nil {
		return fmt.Errorf("failed to set refresh token: %w", err)
	}

	return requireRowsAffected(result, "user")
}

func (r *UserRepository) StampLastLogin(ctx context.Context, userID int) error {
	query := `UPDATE users SET last_login_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to stamp last login: %w", err)
	}
	return nil
}

func (r *UserRepository) SetActive(ctx context.Context, userID int, active bool) error {
	query := `UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, active, userID)
	if err != nil {
		return fmt.Errorf("failed to set user active status: %w", err)
	}

	return requireRowsAffected(result, "user")
}

func (r *UserRepository) SoftDeleteUser(ctx context.Context, userID int) error {
	query := `UPDATE users SET is_active = FALSE, refresh_token = NULL, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to soft delete user: %w", err)
	}

	return requireRowsAffected(result, "user")
}

func (r *UserRepository) HardDeleteUser(ctx context.Context, userID int) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to hard delete user: %w", err)
	}

	return requireRowsAffected(result, "user")
}

func (r *UserRepository) CountUsersByRole(ctx context.Context, roleID int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM users WHERE role_id = $1`

	if err := r.db.GetContext(ctx, &count, query, roleID); err != nil {
		return 0, fmt.Errorf("failed to count users by role: %w", err)
	}
	return count, nil
}

func (r *UserRepository) CountAdmins(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM users u JOIN roles r ON r.id = u.role_id WHERE r.name = 'Admin'`

	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}

func (r *UserRepository) GetUserStats(ctx context.Context) (*models.UserStats, error) {
	stats := &models.UserStats{ByRole: map[string]int{}}

	query := `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE is_active) AS active FROM users`
	row := struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}{}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("failed to get user totals: %w", err)
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
		return nil, fmt.Errorf("failed to get users by role: %w", err)
	}
	for _, rr := range rows {
		stats.ByRole[rr.Name] = rr.Count
	}

	return stats, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func requireRowsAffected(result sql.Result, entity string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", entity, common.ErrNotFound)
	}
	return nil
}
