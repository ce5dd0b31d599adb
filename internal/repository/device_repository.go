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

type DeviceRepository interface {
	UpsertDeviceCode(ctx context.Context, userID int, deviceUUID, code string, expiresAt time.Time, deviceInfo string) error
	GetDevice(ctx context.Context, userID int, deviceUUID string) (*models.DeviceLogin, error)
	MarkVerified(ctx context.Context, userID int, deviceUUID string) error
	DeleteAllForUser(ctx context.Context, userID int) error
}

type deviceRepository struct {
	db *sqlx.DB
}

func NewDeviceRepository(db *sqlx.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

// UpsertDeviceCode issues a fresh confirmation code for the device,
// resetting any previous verification for it.
func (r *deviceRepository) UpsertDeviceCode(ctx context.Context, userID int, deviceUUID, code string, expiresAt time.Time, deviceInfo string) error {
	query := `
		INSERT INTO device_logins (user_id, device_uuid, code, code_expires_at, is_verified, device_info, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, NOW(), NOW())
		ON CONFLICT (user_id, device_uuid)
		DO UPDATE SET code = EXCLUDED.code, code_expires_at = EXCLUDED.code_expires_at,
		              is_verified = FALSE, device_info = EXCLUDED.device_info, updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, userID, deviceUUID, code, expiresAt, deviceInfo); err != nil {
		return fmt.Errorf("failed to upsert device code: %w", err)
	}
	return nil
}

func (r *deviceRepository) GetDevice(ctx context.Context, userID int, deviceUUID string) (*models.DeviceLogin, error) {
	var device models.DeviceLogin
	query := `SELECT * FROM device_logins WHERE user_id = $1 AND device_uuid = $2`

	err := r.db.GetContext(ctx, &device, query, userID, deviceUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("device %s: %w", deviceUUID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return &device, nil
}

func (r *deviceRepository) MarkVerified(ctx context.Context, userID int, deviceUUID string) error {
	query := `
		UPDATE device_logins
		SET is_verified = TRUE, code = '', code_expires_at = NULL, updated_at = NOW()
		WHERE user_id = $1 AND device_uuid = $2
	`

	result, err := r.db.ExecContext(ctx, query, userID, deviceUUID)
	if err != nil {
		return fmt.Errorf("failed to mark device verified: %w", err)
	}

	return requireRowsAffected(result, "device")
}

func (r *deviceRepository) DeleteAllForUser(ctx context.Context, userID int) error {
	query := `DELETE FROM device_logins WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete devices for user: %w", err)
	}
	return nil
}
