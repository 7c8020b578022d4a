package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"member/models"
	"member/password"
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName *string
	Phone    *string
}

// 只套用非 nil 欄位，Phone 與 FullName 為空字串時清除
type ProfilePatch struct {
	Username *string
	Email    *string
	FullName *string
	Phone    *string
}

// User Directory：使用者註冊、資料維護與刪除
type UserService struct {
	db        *gorm.DB
	hasher    *password.Hasher
	addresses AddressCache
	logger    *slog.Logger
	now       func() time.Time
	dummyHash string
}

func NewUserService(db *gorm.DB, hasher *password.Hasher, addresses AddressCache, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &UserService{
		db:        db,
		hasher:    hasher,
		addresses: addresses,
		logger:    logger,
		now:       time.Now,
	}
	// 找不到帳號時仍比對一次雜湊，避免以回應時間判斷帳號是否存在
	if hash, err := hasher.Hash(uuid.NewString()); err == nil {
		s.dummyHash = hash
	}
	return s
}

const (
	minUsernameLen = 3
	maxUsernameLen = 50
)

// 檢查去除空白後的使用者名稱長度
func ValidateUsername(username string) bool {
	n := utf8.RuneCountInString(username)
	return n >= minUsernameLen && n <= maxUsernameLen
}

func normalizeOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// nil 寫入 NULL
func nullable(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// 檢查使用者名稱、信箱、電話是否已被其他使用者使用
func (s *UserService) identityTaken(tx *gorm.DB, excludeID uint, username, email string, phone *string) (bool, error) {
	var query *gorm.DB
	if phone != nil {
		query = tx.Model(&models.User{}).Where("username = ? OR email = ? OR phone = ?", username, email, *phone)
	} else {
		query = tx.Model(&models.User{}).Where("username = ? OR email = ?", username, email)
	}
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// 註冊使用者帳戶
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if !ValidateUsername(username) || email == "" || in.Password == "" {
		return nil, ErrInvalidInput
	}

	hashedPassword, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:   username,
		Email:      email,
		Password:   hashedPassword,
		FullName:   normalizeOptional(in.FullName),
		Phone:      normalizeOptional(in.Phone),
		IsActive:   true,
		IsVerified: false,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := s.identityTaken(tx, 0, user.Username, user.Email, user.Phone)
		if err != nil {
			return fmt.Errorf("check identity: %w", err)
		}
		if taken {
			return ErrConflict
		}
		if err := tx.Create(&user).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrConflict
			}
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", slog.Uint64("user_id", uint64(user.ID)), slog.String("username", user.Username))
	return &user, nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// 檢查帳號密碼，帳號不存在與密碼錯誤皆回傳 ErrUnauthorized
func (s *UserService) Authenticate(ctx context.Context, username, plainPassword string) (*models.User, error) {
	user, err := s.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrNotFound) {
		s.hasher.Verify(plainPassword, s.dummyHash)
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(plainPassword, user.Password) {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// 更新上次登入時間
func (s *UserService) RecordLogin(ctx context.Context, user *models.User) error {
	now := s.now()
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("last_login_at", now).
		Error
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	user.LastLoginAt = &now
	return nil
}

// 舊密碼錯誤時回傳 ErrInvalidCredentials 且不變更雜湊
func (s *UserService) ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string) error {
	if !s.hasher.Verify(oldPassword, user.Password) {
		return ErrInvalidCredentials
	}
	if newPassword == "" {
		return ErrInvalidInput
	}

	hashedPassword, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("password", hashedPassword)
	if result.Error != nil {
		return fmt.Errorf("update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	user.Password = hashedPassword

	s.logger.InfoContext(ctx, "password changed", slog.Uint64("user_id", uint64(user.ID)))
	return nil
}

// 部分更新個人資料
func (s *UserService) UpdateProfile(ctx context.Context, user *models.User, patch ProfilePatch) (*models.User, error) {
	updates := map[string]interface{}{}
	username, email, phone := user.Username, user.Email, user.Phone

	if patch.Username != nil {
		username = strings.TrimSpace(*patch.Username)
		if !ValidateUsername(username) {
			return nil, ErrInvalidInput
		}
		updates["username"] = username
	}
	if patch.Email != nil {
		email = strings.TrimSpace(strings.ToLower(*patch.Email))
		if email == "" {
			return nil, ErrInvalidInput
		}
		updates["email"] = email
	}
	if patch.FullName != nil {
		updates["full_name"] = nullable(normalizeOptional(patch.FullName))
	}
	if patch.Phone != nil {
		phone = normalizeOptional(patch.Phone)
		updates["phone"] = nullable(phone)
	}

	var updated models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&updated, user.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("query user: %w", err)
		}
		if len(updates) == 0 {
			return nil
		}

		taken, err := s.identityTaken(tx, user.ID, username, email, phone)
		if err != nil {
			return fmt.Errorf("check identity: %w", err)
		}
		if taken {
			return ErrConflict
		}

		if err := tx.Model(&updated).Updates(updates).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrConflict
			}
			return fmt.Errorf("update user: %w", err)
		}
		var reloaded models.User
		if err := tx.First(&reloaded, user.ID).Error; err != nil {
			return fmt.Errorf("reload user: %w", err)
		}
		updated = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// 刪除帳戶及其所有地址
func (s *UserService) DeleteAccount(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Address{}).Error; err != nil {
			return fmt.Errorf("delete addresses: %w", err)
		}
		result := tx.Delete(&models.User{}, user.ID)
		if result.Error != nil {
			return fmt.Errorf("delete user: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.addresses != nil {
		if err := s.addresses.Invalidate(ctx, user.ID); err != nil {
			s.logger.WarnContext(ctx, "invalidate address cache failed", slog.Uint64("user_id", uint64(user.ID)), slog.String("error", err.Error()))
		}
	}
	s.logger.InfoContext(ctx, "user deleted", slog.Uint64("user_id", uint64(user.ID)))
	return nil
}
