package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"rbac-service/internal/common"
	"rbac-service/internal/event"
	"rbac-service/internal/models"
	"rbac-service/internal/obs"
	"rbac-service/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// AvatarStorage is the object-store surface the service needs; the
// minio client satisfies it.
type AvatarStorage interface {
	UploadAvatar(ctx context.Context, objectName, contentType string, reader io.Reader, size int64) (string, error)
	DeleteAvatar(ctx context.Context, objectName string) error
}

type UserService struct {
	userRepo     repository.IUserRepository
	roleRepo     repository.RoleRepository
	tokenService *TokenService
	attempts     *AttemptTracker
	publisher    event.Publisher
	storage      AvatarStorage
}

func NewUserService(userRepo repository.IUserRepository, roleRepo repository.RoleRepository,
	tokenService *TokenService, attempts *AttemptTracker, publisher event.Publisher,
	storage AvatarStorage) *UserService {
	return &UserService{
		userRepo:     userRepo,
		roleRepo:     roleRepo,
		tokenService: tokenService,
		attempts:     attempts,
		publisher:    publisher,
		storage:      storage,
	}
}

// Register creates an account. Without an explicit role the default
// role is assigned.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	roleID := req.RoleID
	if roleID == 0 {
		defaultRole, err := s.roleRepo.GetDefaultRole(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve default role: %w", err)
		}
		roleID = defaultRole.ID
	} else {
		if _, err := s.roleRepo.GetRoleByID(ctx, roleID); err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Fullname:     req.Fullname,
		Phone:        req.Phone,
		IsActive:     true,
		RoleID:       roleID,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates by username or email. Failed attempts feed the
// lockout counter; every fifth failure raises a security alert.
func (s *UserService) Login(ctx context.Context, identifier, password string) (*models.LoginResponse, error) {
	if s.attempts.IsLocked(ctx, identifier) {
		obs.LoginAttempts.WithLabelValues("locked").Inc()
		return nil, common.ErrAccountLocked
	}

	user, err := s.userRepo.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			obs.LoginAttempts.WithLabelValues("failure").Inc()
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		obs.LoginAttempts.WithLabelValues("failure").Inc()
		return nil, common.ErrAccountDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		count := s.attempts.RecordFailure(ctx, identifier)
		obs.LoginAttempts.WithLabelValues("failure").Inc()
		if count%alertEveryFailure == 0 {
			s.publishAlert(event.SecurityEvent{
				Type:     event.EventSuspiciousLogin,
				UserID:   user.ID,
				Username: user.Username,
				Detail:   fmt.Sprintf("%d consecutive failed login attempts", count),
			})
		}
		return nil, common.ErrInvalidCredentials
	}

	s.attempts.Clear(ctx, identifier)

	pair, err := s.tokenService.IssueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.StampLastLogin(ctx, user.ID); err != nil {
		slog.Warn("failed to stamp last login", "user_id", user.ID, "error", err)
	}

	withRole, err := s.userRepo.GetUserWithRoleByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	obs.LoginAttempts.WithLabelValues("success").Inc()
	return &models.LoginResponse{
		User:         withRole,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// ChangePassword requires the current password. Success clears the
// refresh slot so other sessions must log in again.
func (s *UserService) ChangePassword(ctx context.Context, userID int, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return common.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}

	s.publishAlert(event.SecurityEvent{
		Type:     event.EventPasswordChanged,
		UserID:   user.ID,
		Username: user.Username,
		Detail:   "password changed by account owner",
	})
	return nil
}

// ResetPassword is the admin path: no old-password check.
func (s *UserService) ResetPassword(ctx context.Context, userID int, newPassword string) error {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}

	s.publishAlert(event.SecurityEvent{
		Type:     event.EventPasswordChanged,
		UserID:   user.ID,
		Username: user.Username,
		Detail:   "password reset by administrator",
	})
	return nil
}

func (s *UserService) GetUser(ctx context.Context, userID int) (*models.UserWithRole, error) {
	return s.userRepo.GetUserWithRoleByID(ctx, userID)
}

func (s *UserService) ListUsers(ctx context.Context, filter models.UserFilter, limit, offset int) ([]*models.UserWithRole, int64, error) {
	return s.userRepo.ListUsers(ctx, filter, limit, offset)
}

func (s *UserService) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	user, err := s.Register(ctx, models.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Fullname: req.Fullname,
		Phone:    req.Phone,
		RoleID:   req.RoleID,
	})
	if err != nil {
		return nil, err
	}
	if req.IsActive != nil && !*req.IsActive {
		if err := s.userRepo.SetActive(ctx, user.ID, false); err != nil {
			return nil, err
		}
		user.IsActive = false
	}
	return user, nil
}

func (s *UserService) UpdateUser(ctx context.Context, userID int, req models.UpdateUserRequest) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Fullname != nil {
		user.Fullname = *req.Fullname
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.RoleID != nil {
		if _, err := s.roleRepo.GetRoleByID(ctx, *req.RoleID); err != nil {
			return nil, err
		}
		user.RoleID = *req.RoleID
	}

	if err := s.userRepo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID int, req models.UpdateProfileRequest) (*models.User, error) {
	return s.UpdateUser(ctx, userID, models.UpdateUserRequest{
		Email:    req.Email,
		Fullname: req.Fullname,
		Phone:    req.Phone,
	})
}

// UploadAvatar stores the image, records its public URL and removes the
// replaced object so re-uploads do not leak orphans in the bucket.
func (s *UserService) UploadAvatar(ctx context.Context, userID int, objectName, contentType string, reader io.Reader, size int64) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("avatar storage is not configured")
	}
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}

	url, err := s.storage.UploadAvatar(ctx, objectName, contentType, reader, size)
	if err != nil {
		return "", err
	}
	if err := s.userRepo.UpdateAvatar(ctx, userID, url); err != nil {
		return "", err
	}

	if old := path.Base(user.Avatar); user.Avatar != "" && old != objectName {
		if err := s.storage.DeleteAvatar(ctx, old); err != nil {
			slog.Warn("failed to delete replaced avatar", "user_id", userID, "object", old, "error", err)
		}
	}
	return url, nil
}

// ToggleStatus flips is_active. Deactivation also clears the refresh
// slot so the account cannot keep refreshing.
func (s *UserService) ToggleStatus(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	newActive := !user.IsActive
	if err := s.userRepo.SetActive(ctx, userID, newActive); err != nil {
		return nil, err
	}
	if !newActive {
		if err := s.userRepo.SetRefreshToken(ctx, userID, nil); err != nil {
			return nil, err
		}
	}
	user.IsActive = newActive
	return user, nil
}

func (s *UserService) SoftDeleteUser(ctx context.Context, userID int) error {
	return s.userRepo.SoftDeleteUser(ctx, userID)
}

// HardDeleteUser removes the row permanently. Tokens and devices cascade;
// audit logs keep a NULL user reference.
func (s *UserService) HardDeleteUser(ctx context.Context, userID int) error {
	return s.userRepo.HardDeleteUser(ctx, userID)
}

func (s *UserService) GetUserStats(ctx context.Context) (*models.UserStats, error) {
	return s.userRepo.GetUserStats(ctx)
}

// EnsureAdminAccount creates the bootstrap admin when no admin exists.
func (s *UserService) EnsureAdminAccount(ctx context.Context, username, password string) error {
	count, err := s.userRepo.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if password == "" {
		return fmt.Errorf("no admin account exists and no bootstrap password is configured")
	}

	adminRole, err := s.roleRepo.GetRoleByName(ctx, "Admin")
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &models.User{
		Username:     username,
		Email:        fmt.Sprintf("%s@localhost", username),
		PasswordHash: string(hash),
		Fullname:     "System Administrator",
		IsActive:     true,
		RoleID:       adminRole.ID,
	}
	if err := s.userRepo.CreateUser(ctx, admin); err != nil {
		return err
	}
	slog.Info("bootstrap admin account created", "username", username)
	return nil
}

// publishAlert pushes a security event without blocking or failing the
// caller.
func (s *UserService) publishAlert(e event.SecurityEvent) {
	if s.publisher == nil {
		return
	}
	go func() {
		if err := s.publisher.PublishSecurityEvent(context.Background(), e); err != nil {
			slog.Warn("failed to publish security event", "type", e.Type, "error", err)
		}
	}()
}
