package models

import "time"

// 送貨地址，每位使用者最多一筆 IsDefault 為 true
type Address struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	User          *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	AddressLine1  string    `gorm:"not null" json:"address_line1"`
	AddressLine2  *string   `json:"address_line2"`
	City          string    `gorm:"not null" json:"city"`
	StateProvince string    `gorm:"not null" json:"state_province"`
	ZipCode       string    `gorm:"not null" json:"zip_code"`
	Country       string    `gorm:"not null" json:"country"`
	IsDefault     bool      `gorm:"not null;default:false" json:"is_default"`
}
