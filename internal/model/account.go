package model

import "time"

// Account 用户账号；UnreadNotificationCount 只由通知计数服务维护
type Account struct {
	ID                      string `gorm:"primaryKey;type:varchar(36)"`
	Username                string `gorm:"type:varchar(150);uniqueIndex:ux_account_username;not null" validate:"required,max=150"`
	Phone                   string `gorm:"type:varchar(15);uniqueIndex:ux_account_phone;not null" validate:"required,max=15"`
	Address                 string `gorm:"type:text"`
	AvatarURL               string `gorm:"type:varchar(255)" validate:"omitempty,url"`
	DateOfBirth             *time.Time
	UnreadNotificationCount int64 `gorm:"not null;default:0"`
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (Account) TableName() string { return "accounts" }
