package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rbac-service/internal/common"
	"rbac-service/internal/config"
	"rbac-service/internal/models"
	"rbac-service/internal/repository"
	"rbac-service/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const deviceCodeLifetime = 10 * time.Minute

type accessTokenClaims struct {
	UserID   int    `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

type refreshTokenClaims struct {
	UserID int `json:"userId"`
	jwt.RegisteredClaims
}

type TokenService struct {
	cfg        config.AuthConfig
	userRepo   repository.IUserRepository
	tokenRepo  repository.TokenRepository
	deviceRepo repository.DeviceRepository
}

func NewTokenService(cfg config.AuthConfig, userRepo repository.IUserRepository,
	tokenRepo repository.TokenRepository, deviceRepo repository.DeviceRepository) *TokenService {
	return &TokenService{
		cfg:        cfg,
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		deviceRepo: deviceRepo,
	}
}

// IssueTokenPair signs a fresh access/refresh pair and overwrites the
// user's refresh slot. Concurrent logins race on the slot and the last
// write wins; earlier refresh tokens stop validating.
func (s *TokenService) IssueTokenPair(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	now := time.Now()
	refreshExpiry := now.Add(s.cfg.RefreshTokenLifetime)

	accessToken, err := s.signAccessToken(user, now)
	if err != nil {
		return nil, err
	}

	refreshClaims := refreshTokenClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(s.cfg.RefreshTokenSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	if err := s.userRepo.SetRefreshToken(ctx, user.ID, &refreshToken); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	if err := s.tokenRepo.AppendIssued(ctx, user.ID, refreshToken, refreshExpiry); err != nil {
		// Audit trail only; issuance already succeeded.
		slog.Warn("failed to record issued token", "user_id", user.ID, "error", err)
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *TokenService) signAccessToken(user *models.User, now time.Time) (string, error) {
	claims := accessTokenClaims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenLifetime)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.AccessTokenSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return token, nil
}

// VerifyAccess validates an access token and returns its claims.
func (s *TokenService) VerifyAccess(tokenString string) (*models.AccessClaims, error) {
	claims := &accessTokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.AccessTokenSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, common.ErrTokenInvalid
	}

	return &models.AccessClaims{
		UserID:   claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
	}, nil
}

// Refresh mints a new access token against a valid refresh token. The
// token must match the user's stored slot exactly; a mismatch means a
// newer login replaced it. The slot itself stays untouched, so the same
// refresh token keeps working until it expires or is revoked. Expired
// or malformed tokens clear the slot for the embedded user id so a dead
// token cannot linger server-side.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (string, *models.User, error) {
	claims := &refreshTokenClaims{}
	token, err := jwt.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.RefreshTokenSecret), nil
	})
	if err != nil || !token.Valid {
		s.clearSlotBestEffort(ctx, refreshToken)
		if err != nil && errors.Is(err, jwt.ErrTokenExpired) {
			return "", nil, common.ErrTokenExpired
		}
		return "", nil, common.ErrTokenInvalid
	}

	user, err := s.userRepo.GetUserByIDAndRefreshToken(ctx, claims.UserID, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenRevoked) {
			return "", nil, common.ErrTokenRevoked
		}
		return "", nil, fmt.Errorf("failed to load user for refresh: %w", err)
	}
	if !user.IsActive {
		return "", nil, common.ErrAccountDisabled
	}

	accessToken, err := s.signAccessToken(user, time.Now())
	if err != nil {
		return "", nil, err
	}
	return accessToken, user, nil
}

// ListSessions returns a user's refresh-token issuance history from the
// audit trail, newest first.
func (s *TokenService) ListSessions(ctx context.Context, userID, limit, offset int) ([]*models.AuthToken, error) {
	return s.tokenRepo.ListByUser(ctx, userID, limit, offset)
}

// Logout verifies the refresh token and revokes the session. Device
// verifications survive a logout.
func (s *TokenService) Logout(ctx context.Context, refreshToken string) error {
	claims := &refreshTokenClaims{}
	token, err := jwt.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.RefreshTokenSecret), nil
	})
	if err != nil || !token.Valid {
		s.clearSlotBestEffort(ctx, refreshToken)
		return common.ErrTokenInvalid
	}

	if err := s.userRepo.SetRefreshToken(ctx, claims.UserID, nil); err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	if err := s.tokenRepo.DeactivateByToken(ctx, refreshToken); err != nil {
		slog.Warn("failed to deactivate token record", "user_id", claims.UserID, "error", err)
	}
	return nil
}

// ClearAllSessions is the admin emergency switch: the refresh slot is
// cleared, every recorded token is deactivated and all device
// verifications are dropped.
func (s *TokenService) ClearAllSessions(ctx context.Context, userID int) error {
	if err := s.userRepo.SetRefreshToken(ctx, userID, nil); err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	if err := s.tokenRepo.DeactivateAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to deactivate tokens: %w", err)
	}
	if err := s.deviceRepo.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete device verifications: %w", err)
	}
	return nil
}

// RequestDeviceCode issues a 6-digit confirmation code for a device,
// valid for ten minutes. Re-requesting resets any prior verification.
func (s *TokenService) RequestDeviceCode(ctx context.Context, userID int, deviceUUID, deviceInfo string) (string, error) {
	code, err := utils.GenerateConfirmationCode()
	if err != nil {
		return "", err
	}
	expiresAt := time.Now().Add(deviceCodeLifetime)

	if err := s.deviceRepo.UpsertDeviceCode(ctx, userID, deviceUUID, code, expiresAt, deviceInfo); err != nil {
		return "", err
	}
	return code, nil
}

// ConfirmDevice checks the confirmation code and marks the device
// verified. Expired or wrong codes are rejected.
func (s *TokenService) ConfirmDevice(ctx context.Context, userID int, deviceUUID, code string) error {
	device, err := s.deviceRepo.GetDevice(ctx, userID, deviceUUID)
	if err != nil {
		return err
	}
	if device.CodeExpiresAt == nil || time.Now().After(*device.CodeExpiresAt) {
		return fmt.Errorf("confirmation code expired: %w", common.ErrValidation)
	}
	if device.Code == "" || device.Code != code {
		return fmt.Errorf("wrong confirmation code: %w", common.ErrValidation)
	}

	return s.deviceRepo.MarkVerified(ctx, userID, deviceUUID)
}

// clearSlotBestEffort decodes a dead refresh token without verifying it
// and clears the stored slot for the embedded user id. Failures here
// are swallowed; the caller is already rejecting the token.
func (s *TokenService) clearSlotBestEffort(ctx context.Context, refreshToken string) {
	claims := &refreshTokenClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(refreshToken, claims); err != nil {
		return
	}
	if claims.UserID == 0 {
		return
	}

	user, err := s.userRepo.GetUserByID(ctx, claims.UserID)
	if err != nil || user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		return
	}
	if err := s.userRepo.SetRefreshToken(ctx, claims.UserID, nil); err != nil {
		slog.Warn("failed to clear stale refresh slot", "user_id", claims.UserID, "error", err)
	}
}
