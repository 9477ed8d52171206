package model

import "time"

// Filter 内容过滤规则。Contexts 为适用的展示上下文集合；
// ExpiresAt 为空表示永不过期。跨会话保留。
type Filter struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" validate:"required"`
	Phrase       string     `gorm:"type:varchar(255);not null" validate:"required"`
	WholeWord    bool
	Contexts     []string   `gorm:"serializer:json"`
	ExpiresAt    *time.Time
	Irreversible bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Filter) TableName() string { return "filters" }

// Active 相对给定参考时间是否生效
func (f Filter) Active(now time.Time) bool {
	return f.ExpiresAt == nil || f.ExpiresAt.After(now)
}
