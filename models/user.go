package models

import "time"

// 會員帳號，地址由 Address.UserID 關聯，需另外查詢
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Username    string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	Email       string     `gorm:"type:varchar(191);uniqueIndex;not null" json:"email"`
	Phone       *string    `gorm:"type:varchar(20);uniqueIndex" json:"phone_number"`
	Password    string     `gorm:"not null" json:"-"`
	FullName    *string    `gorm:"type:varchar(100)" json:"full_name"`
	IsActive    bool       `gorm:"not null;default:true" json:"is_active"`
	IsVerified  bool       `gorm:"not null;default:false" json:"is_verified"`
	LastLoginAt *time.Time `json:"last_login_at"`
}
