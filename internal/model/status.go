package model

import "time"

// Attachment 状态附带的媒体（仅展示所需字段）
type Attachment struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	URL        string `json:"url"`
	PreviewURL string `json:"preview_url"`
}

// Status 内容主体。ID 为远端分配的可排序 snowflake，按 ID upsert 全量覆盖。
type Status struct {
	ID          string  `gorm:"primaryKey;type:varchar(32)" validate:"required"`
	AccountID   string  `gorm:"type:varchar(36);index:idx_status_account;not null" validate:"required"`
	InReplyToID *string `gorm:"type:varchar(32);index:idx_status_reply"`

	Content     string       `gorm:"type:text"`
	SpoilerText string       `gorm:"type:text"`
	Sensitive   bool
	Attachments []Attachment `gorm:"serializer:json"`

	// per-viewer display toggles, local-only state
	ShowingSensitive bool
	ContentExpanded  bool

	CreatedAt time.Time
	UpdatedAt time.Time

	Account *Account `gorm:"foreignKey:AccountID;references:ID"`
}

func (Status) TableName() string { return "statuses" }
