package model

// ThreadSection 会话上下文的分段
type ThreadSection string

const (
	SectionAncestors   ThreadSection = "ancestors"
	SectionDescendants ThreadSection = "descendants"
)

// ThreadContext 远端返回的会话上下文（两段各自有权威展示顺序）
type ThreadContext struct {
	Ancestors   []Status
	Descendants []Status
}

// ThreadStatus 会话上下文成员关系。Idx 为远端展示顺序，
// 可能与 ID 排序不一致，以 Idx 为准。
type ThreadStatus struct {
	ID       string        `gorm:"primaryKey;type:varchar(36)"`
	ParentID string        `gorm:"type:varchar(32);index:idx_thread_parent;uniqueIndex:ux_thread_member;not null"`
	Section  ThreadSection `gorm:"type:varchar(12);uniqueIndex:ux_thread_member;not null"`
	StatusID string        `gorm:"type:varchar(32);uniqueIndex:ux_thread_member;not null"`
	// ux_thread_member = (parent_id, section, status_id)
	Idx int `gorm:"column:idx;not null"`
}

func (ThreadStatus) TableName() string { return "thread_statuses" }

// PinnedStatus 账号置顶集合成员，Idx 为展示顺序
type PinnedStatus struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	AccountID string `gorm:"type:varchar(36);index:idx_pinned_account;uniqueIndex:ux_pinned_member;not null"`
	StatusID  string `gorm:"type:varchar(32);uniqueIndex:ux_pinned_member;not null"`
	Idx       int    `gorm:"column:idx;not null"`
}

func (PinnedStatus) TableName() string { return "pinned_statuses" }
