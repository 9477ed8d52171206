package model

import "time"

// Account 用户档案，按 ID upsert 全量覆盖
type Account struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" validate:"required"`
	Username    string `gorm:"type:varchar(255);index:idx_account_username"`
	DisplayName string `gorm:"type:varchar(255)"`
	Note        string `gorm:"type:text"`
	AvatarURL   string `gorm:"type:varchar(512)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Account) TableName() string { return "accounts" }
