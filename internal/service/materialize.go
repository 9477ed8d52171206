package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/feedcache/internal/filter"
	"github.com/d60-Lab/feedcache/internal/model"
	"github.com/d60-Lab/feedcache/internal/repository"
)

// TimelineItem 时间线中的一个展示项：状态或 load-more 占位，二者其一
type TimelineItem struct {
	Status   *model.Status
	LoadMore *model.LoadMoreMarker
}

// SectionKind 时间线分段
type SectionKind string

const (
	SectionPinned SectionKind = "pinned"
	SectionMain   SectionKind = "main"
)

type TimelineSection struct {
	Kind  SectionKind
	Items []TimelineItem
}

// TimelineView 物化结果是有序分段序列而非扁平序列：置顶段在主段之前，
// 同一状态可同时出现在两段。
type TimelineView struct {
	Timeline model.Timeline
	Sections []TimelineSection
}

// ThreadItem 会话中的一个展示项。两个相邻性标记只用于展示，
// 基于过滤前的链序计算，不受后续过滤影响。
type ThreadItem struct {
	Status            model.Status
	IsReplyInContext  bool
	HasReplyFollowing bool
}

// ThreadView 祖先→父→后代三段，各自保持远端权威顺序
type ThreadView struct {
	Ancestors   []ThreadItem
	Parent      *ThreadItem
	Descendants []ThreadItem
}

// buildTimelineView 在一个读快照内重建时间线视图：
// 成员按 ID 升序取出，先过滤，再把空洞标记插进过滤后的序列，
// 最后按时间线自然顺序反转。profileStatuses 时间线额外带置顶段。
func buildTimelineView(ctx context.Context, tx *gorm.DB, tl model.Timeline, now time.Time) (TimelineView, error) {
	view := TimelineView{Timeline: tl}

	timelines := repository.NewTimelineRepository(tx)
	filters := repository.NewFilterRepository(tx)

	statuses, err := timelines.ListStatuses(ctx, tl.ID)
	if err != nil {
		return view, err
	}
	markers, err := timelines.ListMarkers(ctx, tl.ID)
	if err != nil {
		return view, err
	}
	active, err := filters.ListActive(ctx, now)
	if err != nil {
		return view, err
	}

	kept := filter.Apply(statuses, tl.DisplayContext(), active, now)
	items := spliceMarkers(kept, markers)
	if tl.Descending() {
		reverseItems(items)
	}

	if tl.Kind == model.KindProfileStatuses {
		pinned, err := repository.NewStatusRepository(tx).ListPinned(ctx, tl.Param)
		if err != nil {
			return view, err
		}
		pinnedKept := filter.Apply(pinned, tl.DisplayContext(), active, now)
		pinnedItems := make([]TimelineItem, len(pinnedKept))
		for i := range pinnedKept {
			pinnedItems[i] = TimelineItem{Status: &pinnedKept[i]}
		}
		view.Sections = append(view.Sections, TimelineSection{Kind: SectionPinned, Items: pinnedItems})
	}

	view.Sections = append(view.Sections, TimelineSection{Kind: SectionMain, Items: items})
	return view, nil
}

// spliceMarkers 把空洞标记插入升序序列：标记放在第一个 ID 大于锚点的
// 项之前；没有这样的后继时本次物化略过。标记留在存储里，
// 更旧内容之后加载进来时会重新浮现。
func spliceMarkers(ascending []model.Status, markers []model.LoadMoreMarker) []TimelineItem {
	items := make([]TimelineItem, 0, len(ascending)+len(markers))
	mi := 0
	for i := range ascending {
		for mi < len(markers) && markers[mi].AnchorStatusID < ascending[i].ID {
			m := markers[mi]
			items = append(items, TimelineItem{LoadMore: &m})
			mi++
		}
		items = append(items, TimelineItem{Status: &ascending[i]})
	}
	return items
}

func reverseItems(items []TimelineItem) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

// buildThreadView 重建会话视图。相邻性标记先在完整链
//（祖先→父→后代，过滤前）上算好，再对三段独立过滤——
// 两趟保持分离，否则有成员被滤掉时标记会串位。
func buildThreadView(ctx context.Context, tx *gorm.DB, parentID string, now time.Time) (ThreadView, error) {
	var view ThreadView

	statuses := repository.NewStatusRepository(tx)
	threads := repository.NewThreadRepository(tx)
	filters := repository.NewFilterRepository(tx)

	parent, err := statuses.Get(ctx, parentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 父状态尚未入缓存：空视图，等成员落库后重算
			return view, nil
		}
		return view, err
	}
	ancestors, err := threads.ListSection(ctx, parentID, model.SectionAncestors)
	if err != nil {
		return view, err
	}
	descendants, err := threads.ListSection(ctx, parentID, model.SectionDescendants)
	if err != nil {
		return view, err
	}
	active, err := filters.ListActive(ctx, now)
	if err != nil {
		return view, err
	}

	chain := make([]model.Status, 0, len(ancestors)+1+len(descendants))
	chain = append(chain, ancestors...)
	chain = append(chain, *parent)
	chain = append(chain, descendants...)
	annotated := annotateAdjacency(chain)

	keep := func(items []ThreadItem) []ThreadItem {
		kept := make([]ThreadItem, 0, len(items))
		for _, it := range items {
			if !filter.Excluded(active, it.Status, model.ContextThread, now) {
				kept = append(kept, it)
			}
		}
		return kept
	}

	view.Ancestors = keep(annotated[:len(ancestors)])
	parentItem := annotated[len(ancestors)]
	if !filter.Excluded(active, parentItem.Status, model.ContextThread, now) {
		view.Parent = &parentItem
	}
	view.Descendants = keep(annotated[len(ancestors)+1:])
	return view, nil
}

// annotateAdjacency 对过滤前的链序计算展示相邻性标记
func annotateAdjacency(chain []model.Status) []ThreadItem {
	items := make([]ThreadItem, len(chain))
	for i := range chain {
		it := ThreadItem{Status: chain[i]}
		if i > 0 && chain[i].InReplyToID != nil && *chain[i].InReplyToID == chain[i-1].ID {
			it.IsReplyInContext = true
		}
		if i < len(chain)-1 && chain[i+1].InReplyToID != nil && *chain[i+1].InReplyToID == chain[i].ID {
			it.HasReplyFollowing = true
		}
		items[i] = it
	}
	return items
}
