package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"rbac-service/internal/common"
	"rbac-service/internal/event"
	"rbac-service/internal/models"
	"rbac-service/internal/repository"
)

// In-memory fakes. Each embeds its repository interface so only the
// methods a test exercises need real implementations; the rest would
// panic and flag the gap.

type fakeUserRepo struct {
	repository.IUserRepository

	mu     sync.Mutex
	users  map[int]*models.User
	roles  map[int]string
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  map[int]*models.User{},
		roles:  map[int]string{1: "Admin", 2: "User", 3: "Manager"},
		nextID: 1,
	}
}

func (f *fakeUserRepo) add(user *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == 0 {
		user.ID = f.nextID
	}
	if user.ID >= f.nextID {
		f.nextID = user.ID + 1
	}
	f.users[user.ID] = user
	return user
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	for _, u := range f.users {
		if u.Username == user.Username || u.Email == user.Email {
			f.mu.Unlock()
			return fmt.Errorf("username or email taken: %w", common.ErrDuplicate)
		}
	}
	f.mu.Unlock()
	f.add(user)
	return nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, common.ErrNotFound)
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetUserWithRoleByID(ctx context.Context, id int) (*models.UserWithRole, error) {
	user, err := f.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.UserWithRole{User: *user, RoleName: f.roles[user.RoleID]}, nil
}

func (f *fakeUserRepo) GetUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == identifier || u.Email == identifier {
			copied := *u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", identifier, common.ErrNotFound)
}

func (f *fakeUserRepo) GetUserByIDAndRefreshToken(ctx context.Context, id int, refreshToken string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok || user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		return nil, fmt.Errorf("refresh token for user %d: %w", id, common.ErrTokenRevoked)
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) SetRefreshToken(ctx context.Context, userID int, refreshToken *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("user: %w", common.ErrNotFound)
	}
	user.RefreshToken = refreshToken
	return nil
}

func (f *fakeUserRepo) StampLastLogin(ctx context.Context, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[userID]; ok {
		now := time.Now()
		user.LastLoginAt = &now
	}
	return nil
}

func (f *fakeUserRepo) UpdatePassword(ctx context.Context, userID int, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("user: %w", common.ErrNotFound)
	}
	user.PasswordHash = passwordHash
	user.RefreshToken = nil
	return nil
}

func (f *fakeUserRepo) SetActive(ctx context.Context, userID int, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("user: %w", common.ErrNotFound)
	}
	user.IsActive = active
	return nil
}

func (f *fakeUserRepo) CountUsersByRole(ctx context.Context, roleID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, u := range f.users {
		if u.RoleID == roleID {
			count++
		}
	}
	return count, nil
}

func (f *fakeUserRepo) CountAdmins(ctx context.Context) (int, error) {
	return f.CountUsersByRole(context.Background(), 1)
}

func (f *fakeUserRepo) UpdateAvatar(ctx context.Context, userID int, avatarURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("user: %w", common.ErrNotFound)
	}
	user.Avatar = avatarURL
	return nil
}

func (f *fakeUserRepo) refreshTokenOf(userID int) *string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[userID]; ok {
		return user.RefreshToken
	}
	return nil
}

type fakeRoleRepo struct {
	repository.RoleRepository

	mu    sync.Mutex
	roles map[int]*models.Role
	perms map[int][]*models.Permission
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{
		roles: map[int]*models.Role{
			1: {ID: 1, Name: "Admin", IsActive: true},
			2: {ID: 2, Name: "User", IsActive: true, IsDefault: true},
			3: {ID: 3, Name: "Manager", IsActive: true},
		},
		perms: map[int][]*models.Permission{},
	}
}

func (f *fakeRoleRepo) GetRoleByID(ctx context.Context, id int) (*models.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[id]
	if !ok {
		return nil, fmt.Errorf("role %d: %w", id, common.ErrNotFound)
	}
	copied := *role
	return &copied, nil
}

func (f *fakeRoleRepo) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, role := range f.roles {
		if role.Name == name {
			copied := *role
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("role %q: %w", name, common.ErrNotFound)
}

func (f *fakeRoleRepo) GetDefaultRole(ctx context.Context) (*models.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, role := range f.roles {
		if role.IsDefault && role.IsActive {
			copied := *role
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("default role: %w", common.ErrNotFound)
}

func (f *fakeRoleRepo) GetRolePermissions(ctx context.Context, roleID int) ([]*models.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perms[roleID], nil
}

func (f *fakeRoleRepo) ReplaceRolePermissions(ctx context.Context, roleID int, permissionIDs []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roles[roleID]; !ok {
		return fmt.Errorf("role %d: %w", roleID, common.ErrNotFound)
	}
	granted := make([]*models.Permission, 0, len(permissionIDs))
	for _, pid := range permissionIDs {
		granted = append(granted, &models.Permission{ID: pid, IsActive: true})
	}
	f.perms[roleID] = granted
	return nil
}

func (f *fakeRoleRepo) SetRoleActive(ctx context.Context, roleID int, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[roleID]
	if !ok {
		return fmt.Errorf("role: %w", common.ErrNotFound)
	}
	role.IsActive = active
	return nil
}

func (f *fakeRoleRepo) SoftDeleteRole(ctx context.Context, roleID int) error {
	return f.SetRoleActive(ctx, roleID, false)
}

func (f *fakeRoleRepo) HardDeleteRole(ctx context.Context, roleID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.roles, roleID)
	return nil
}

type fakePermRepo struct {
	repository.PermissionRepository

	mu     sync.Mutex
	perms  map[int]*models.Permission
	inUse  map[int]int
	nextID int
}

func newFakePermRepo() *fakePermRepo {
	return &fakePermRepo{
		perms:  map[int]*models.Permission{},
		inUse:  map[int]int{},
		nextID: 1,
	}
}

func (f *fakePermRepo) add(p *models.Permission) *models.Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == 0 {
		p.ID = f.nextID
	}
	if p.ID >= f.nextID {
		f.nextID = p.ID + 1
	}
	f.perms[p.ID] = p
	return p
}

func (f *fakePermRepo) CreatePermission(ctx context.Context, permission *models.Permission) error {
	f.mu.Lock()
	for _, p := range f.perms {
		if p.Resource == permission.Resource && p.Action == permission.Action {
			f.mu.Unlock()
			return fmt.Errorf("permission already defined: %w", common.ErrDuplicate)
		}
	}
	f.mu.Unlock()
	f.add(permission)
	return nil
}

func (f *fakePermRepo) GetPermissionByID(ctx context.Context, id int) (*models.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.perms[id]
	if !ok {
		return nil, fmt.Errorf("permission %d: %w", id, common.ErrNotFound)
	}
	copied := *p
	return &copied, nil
}

func (f *fakePermRepo) SetPermissionActive(ctx context.Context, permissionID int, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.perms[permissionID]
	if !ok {
		return fmt.Errorf("permission: %w", common.ErrNotFound)
	}
	p.IsActive = active
	return nil
}

func (f *fakePermRepo) SoftDeletePermission(ctx context.Context, permissionID int) error {
	return f.SetPermissionActive(ctx, permissionID, false)
}

func (f *fakePermRepo) HardDeletePermission(ctx context.Context, permissionID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.perms, permissionID)
	return nil
}

func (f *fakePermRepo) CountRolesUsingPermission(ctx context.Context, permissionID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inUse[permissionID], nil
}

type fakeTokenRepo struct {
	repository.TokenRepository

	mu     sync.Mutex
	issued []*models.AuthToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{}
}

func (f *fakeTokenRepo) AppendIssued(ctx context.Context, userID int, refreshToken string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued = append(f.issued, &models.AuthToken{
		UserID:       userID,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		IsActive:     true,
	})
	return nil
}

func (f *fakeTokenRepo) DeactivateByToken(ctx context.Context, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.issued {
		if t.RefreshToken == refreshToken {
			t.IsActive = false
		}
	}
	return nil
}

func (f *fakeTokenRepo) DeactivateAllForUser(ctx context.Context, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.issued {
		if t.UserID == userID {
			t.IsActive = false
		}
	}
	return nil
}

func (f *fakeTokenRepo) ListByUser(ctx context.Context, userID int, limit, offset int) ([]*models.AuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var tokens []*models.AuthToken
	for _, t := range f.issued {
		if t.UserID == userID {
			copied := *t
			tokens = append(tokens, &copied)
		}
	}
	if offset >= len(tokens) {
		return nil, nil
	}
	tokens = tokens[offset:]
	if limit < len(tokens) {
		tokens = tokens[:limit]
	}
	return tokens, nil
}

func (f *fakeTokenRepo) activeCount(userID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, t := range f.issued {
		if t.UserID == userID && t.IsActive {
			count++
		}
	}
	return count
}

type fakeDeviceRepo struct {
	repository.DeviceRepository

	mu      sync.Mutex
	devices map[string]*models.DeviceLogin
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: map[string]*models.DeviceLogin{}}
}

func deviceKey(userID int, deviceUUID string) string {
	return fmt.Sprintf("%d/%s", userID, deviceUUID)
}

func (f *fakeDeviceRepo) UpsertDeviceCode(ctx context.Context, userID int, deviceUUID, code string, expiresAt time.Time, deviceInfo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices[deviceKey(userID, deviceUUID)] = &models.DeviceLogin{
		UserID:        userID,
		DeviceUUID:    deviceUUID,
		Code:          code,
		CodeExpiresAt: &expiresAt,
		DeviceInfo:    deviceInfo,
	}
	return nil
}

func (f *fakeDeviceRepo) GetDevice(ctx context.Context, userID int, deviceUUID string) (*models.DeviceLogin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	device, ok := f.devices[deviceKey(userID, deviceUUID)]
	if !ok {
		return nil, fmt.Errorf("device %s: %w", deviceUUID, common.ErrNotFound)
	}
	copied := *device
	return &copied, nil
}

func (f *fakeDeviceRepo) MarkVerified(ctx context.Context, userID int, deviceUUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	device, ok := f.devices[deviceKey(userID, deviceUUID)]
	if !ok {
		return fmt.Errorf("device: %w", common.ErrNotFound)
	}
	device.IsVerified = true
	device.Code = ""
	device.CodeExpiresAt = nil
	return nil
}

func (f *fakeDeviceRepo) DeleteAllForUser(ctx context.Context, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, device := range f.devices {
		if device.UserID == userID {
			delete(f.devices, key)
		}
	}
	return nil
}

func (f *fakeDeviceRepo) count(userID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, device := range f.devices {
		if device.UserID == userID {
			count++
		}
	}
	return count
}

type fakeLogRepo struct {
	repository.LogRepository

	mu      sync.Mutex
	entries []*models.LogEntry
	failing bool
	cutoffs []time.Time
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{}
}

func (f *fakeLogRepo) InsertLog(ctx context.Context, entry *models.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return fmt.Errorf("failed to insert log entry: disk full")
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	var kept []*models.LogEntry
	var deleted int64
	for _, entry := range f.entries {
		if entry.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	f.entries = kept
	return deleted, nil
}

func (f *fakeLogRepo) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeAvatarStorage struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
	baseURL  string
}

func newFakeAvatarStorage() *fakeAvatarStorage {
	return &fakeAvatarStorage{baseURL: "http://storage.test/user-avatars"}
}

func (f *fakeAvatarStorage) UploadAvatar(ctx context.Context, objectName, contentType string, reader io.Reader, size int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, objectName)
	return fmt.Sprintf("%s/%s", f.baseURL, objectName), nil
}

func (f *fakeAvatarStorage) DeleteAvatar(ctx context.Context, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, objectName)
	return nil
}

func (f *fakeAvatarStorage) deletedObjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []event.SecurityEvent
}

func (f *fakePublisher) PublishSecurityEvent(ctx context.Context, e event.SecurityEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}
