package model

// List 远端具名列表（输入对象；存储为 list 种类的 Timeline 行）
type List struct {
	ID    string `validate:"required"`
	Title string
}

// Timeline 表示
func (l List) Timeline() Timeline {
	t := NewTimeline(KindList, l.ID)
	t.Title = l.Title
	return t
}

// ListAccount 列表成员关系。Idx 只增不改：append 从当前成员数续编，
// 不会给已有成员重新编号。
type ListAccount struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	ListID    string `gorm:"type:varchar(120);index:idx_list_account_list;uniqueIndex:ux_list_account;not null"`
	AccountID string `gorm:"type:varchar(36);uniqueIndex:ux_list_account;not null"`
	Idx       int    `gorm:"column:idx;not null"`
}

func (ListAccount) TableName() string { return "list_accounts" }
