package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"member/models"
)

// 地址列表快取，nil 表示不使用；Set 只在世代未變更時寫入
type AddressCache interface {
	Get(ctx context.Context, userID uint) ([]models.Address, bool, error)
	Generation(ctx context.Context, userID uint) (int64, error)
	Set(ctx context.Context, userID uint, generation int64, addresses []models.Address) error
	Invalidate(ctx context.Context, userID uint) error
}

type AddressInput struct {
	AddressLine1  string
	AddressLine2  *string
	City          string
	StateProvince string
	ZipCode       string
	Country       string
	IsDefault     bool
}

// 只套用非 nil 欄位
type AddressPatch struct {
	AddressLine1  *string
	AddressLine2  *string
	City          *string
	StateProvince *string
	ZipCode       *string
	Country       *string
	IsDefault     *bool
}

// Address Book：維護使用者送貨地址，每位使用者最多一筆預設地址
type AddressService struct {
	db     *gorm.DB
	cache  AddressCache
	logger *slog.Logger
}

func NewAddressService(db *gorm.DB, cache AddressCache, logger *slog.Logger) *AddressService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AddressService{db: db, cache: cache, logger: logger}
}

// 鎖定擁有者資料列，讓同一使用者的地址寫入依序執行
func lockOwner(tx *gorm.DB, userID uint) error {
	var owner models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&owner, userID).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

// 清除使用者其他地址的預設標記
func clearDefault(tx *gorm.DB, userID, keepID uint) (int64, error) {
	result := tx.Model(&models.Address{}).
		Where("user_id = ? AND is_default = ? AND id <> ?", userID, true, keepID).
		Update("is_default", false)
	if result.Error != nil {
		return 0, fmt.Errorf("clear default address: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// 必填欄位不可為空白
func requireFields(fields ...*string) error {
	for _, field := range fields {
		if field != nil && strings.TrimSpace(*field) == "" {
			return ErrInvalidInput
		}
	}
	return nil
}

func (s *AddressService) invalidate(ctx context.Context, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "invalidate address cache failed", slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
}

// 新增地址，標記為預設時先清除原本的預設地址
func (s *AddressService) Create(ctx context.Context, user *models.User, in AddressInput) (*models.Address, error) {
	if err := requireFields(&in.AddressLine1, &in.City, &in.StateProvince, &in.ZipCode, &in.Country); err != nil {
		return nil, err
	}
	address := models.Address{
		UserID:        user.ID,
		AddressLine1:  in.AddressLine1,
		AddressLine2:  normalizeOptional(in.AddressLine2),
		City:          in.City,
		StateProvince: in.StateProvince,
		ZipCode:       in.ZipCode,
		Country:       in.Country,
		IsDefault:     in.IsDefault,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, user.ID); err != nil {
			return err
		}
		if address.IsDefault {
			if _, err := clearDefault(tx, user.ID, 0); err != nil {
				return err
			}
		}
		if err := tx.Create(&address).Error; err != nil {
			return fmt.Errorf("create address: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, user.ID)
	if address.IsDefault {
		s.logger.InfoContext(ctx, "default address changed", slog.Uint64("user_id", uint64(user.ID)), slog.Uint64("address_id", uint64(address.ID)))
	}
	return &address, nil
}

// 查詢單一地址，不屬於此使用者時視為不存在
func (s *AddressService) Get(ctx context.Context, user *models.User, addressID uint) (*models.Address, error) {
	var address models.Address
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, user.ID).
		First(&address).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query address: %w", err)
	}
	return &address, nil
}

// 部分更新地址
func (s *AddressService) Update(ctx context.Context, user *models.User, addressID uint, patch AddressPatch) (*models.Address, error) {
	if err := requireFields(patch.AddressLine1, patch.City, patch.StateProvince, patch.ZipCode, patch.Country); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if patch.AddressLine1 != nil {
		updates["address_line1"] = *patch.AddressLine1
	}
	if patch.AddressLine2 != nil {
		updates["address_line2"] = nullable(normalizeOptional(patch.AddressLine2))
	}
	if patch.City != nil {
		updates["city"] = *patch.City
	}
	if patch.StateProvince != nil {
		updates["state_province"] = *patch.StateProvince
	}
	if patch.ZipCode != nil {
		updates["zip_code"] = *patch.ZipCode
	}
	if patch.Country != nil {
		updates["country"] = *patch.Country
	}
	if patch.IsDefault != nil {
		updates["is_default"] = *patch.IsDefault
	}

	var address models.Address
	becameDefault := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, user.ID); err != nil {
			return err
		}
		err := tx.Where("id = ? AND user_id = ?", addressID, user.ID).First(&address).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("query address: %w", err)
		}

		if patch.IsDefault != nil && *patch.IsDefault && !address.IsDefault {
			if _, err := clearDefault(tx, user.ID, address.ID); err != nil {
				return err
			}
			becameDefault = true
		}
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&address).Updates(updates).Error; err != nil {
			return fmt.Errorf("update address: %w", err)
		}
		var reloaded models.Address
		if err := tx.First(&reloaded, address.ID).Error; err != nil {
			return fmt.Errorf("reload address: %w", err)
		}
		address = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, user.ID)
	if becameDefault {
		s.logger.InfoContext(ctx, "default address changed", slog.Uint64("user_id", uint64(user.ID)), slog.Uint64("address_id", uint64(address.ID)))
	}
	return &address, nil
}

// 刪除地址，刪除預設地址後不會自動指定新的預設地址
func (s *AddressService) Delete(ctx context.Context, user *models.User, addressID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, user.ID); err != nil {
			return err
		}
		result := tx.Where("id = ? AND user_id = ?", addressID, user.ID).Delete(&models.Address{})
		if result.Error != nil {
			return fmt.Errorf("delete address: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, user.ID)
	return nil
}

// 依建立順序回傳使用者所有地址，優先讀取快取
func (s *AddressService) ListForUser(ctx context.Context, user *models.User) ([]models.Address, error) {
	fillCache := false
	var generation int64
	if s.cache != nil {
		addresses, ok, err := s.cache.Get(ctx, user.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "read address cache failed", slog.Uint64("user_id", uint64(user.ID)), slog.String("error", err.Error()))
		} else if ok {
			return addresses, nil
		}

		// 查詢資料庫前先取得世代
		generation, err = s.cache.Generation(ctx, user.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "read address cache generation failed", slog.Uint64("user_id", uint64(user.ID)), slog.String("error", err.Error()))
		} else {
			fillCache = true
		}
	}

	addresses := []models.Address{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", user.ID).
		Order("id").
		Find(&addresses).
		Error
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}

	if fillCache {
		if err := s.cache.Set(ctx, user.ID, generation, addresses); err != nil {
			s.logger.WarnContext(ctx, "write address cache failed", slog.Uint64("user_id", uint64(user.ID)), slog.String("error", err.Error()))
		}
	}
	return addresses, nil
}
