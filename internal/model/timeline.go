package model

import "time"

// TimelineKind 时间线种类，连同参数共同决定时间线身份与物化方式
type TimelineKind string

const (
	KindHome            TimelineKind = "home"
	KindLocal           TimelineKind = "local"
	KindFederated       TimelineKind = "federated"
	KindTag             TimelineKind = "tag"
	KindList            TimelineKind = "list"
	KindProfileStatuses TimelineKind = "profileStatuses"
	KindProfileMedia    TimelineKind = "profileMedia"
)

// FilterContext 过滤器作用面（对应展示入口）
const (
	ContextHome          = "home"
	ContextNotifications = "notifications"
	ContextPublic        = "public"
	ContextThread        = "thread"
	ContextAccount       = "account"
)

// Timeline 一条具名 feed；种类为 list 时由远端 List 背书，跨会话保留。
// 主键编码为 kind:param，既是存储键也是物化分发键。
type Timeline struct {
	ID    string       `gorm:"primaryKey;type:varchar(160)" validate:"required"`
	Kind  TimelineKind `gorm:"type:varchar(24);index:idx_timeline_kind;not null" validate:"required"`
	Param string       `gorm:"type:varchar(120)"`
	// Title 仅 list 时间线使用（列表名）
	Title     string `gorm:"type:varchar(255)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Timeline) TableName() string { return "timelines" }

// NewTimeline 构造带编码主键的时间线
func NewTimeline(kind TimelineKind, param string) Timeline {
	return Timeline{ID: TimelineID(kind, param), Kind: kind, Param: param}
}

func TimelineID(kind TimelineKind, param string) string {
	return string(kind) + ":" + param
}

// DisplayContext 该时间线物化时适用的过滤器上下文
func (t Timeline) DisplayContext() string {
	switch t.Kind {
	case KindLocal, KindFederated, KindTag:
		return ContextPublic
	case KindProfileStatuses, KindProfileMedia:
		return ContextAccount
	default:
		return ContextHome
	}
}

// Descending 自然展示顺序是否为新→旧。当前所有种类均为降序；
// 升序种类只需改这里，存储与物化路径不感知。
func (t Timeline) Descending() bool { return true }

// TimelineStatus 时间线成员关系（页抓取累加，不删旧成员）
type TimelineStatus struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	TimelineID string `gorm:"type:varchar(160);index:idx_ts_timeline;uniqueIndex:ux_timeline_status;not null"`
	StatusID   string `gorm:"type:varchar(32);index:idx_ts_status;uniqueIndex:ux_timeline_status;not null"`
	// 复合唯一键，避免重复 (timeline, status)
	// ux_timeline_status = (timeline_id, status_id)
	CreatedAt time.Time
}

func (TimelineStatus) TableName() string { return "timeline_statuses" }

// LoadMoreMarker 时间线已知历史空洞。锚点为空洞之后（更旧一侧）
// 紧邻的状态 ID；位置由 ID 排序决定，与抓取顺序无关。
type LoadMoreMarker struct {
	ID             string `gorm:"primaryKey;type:varchar(36)"`
	TimelineID     string `gorm:"type:varchar(160);index:idx_marker_timeline;uniqueIndex:ux_marker_anchor;not null"`
	AnchorStatusID string `gorm:"type:varchar(32);uniqueIndex:ux_marker_anchor;not null"`
	CreatedAt      time.Time
}

func (LoadMoreMarker) TableName() string { return "load_more_markers" }
