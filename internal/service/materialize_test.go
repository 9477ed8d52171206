package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/feedcache/internal/model"
)

func replyTo(id string) *string { return &id }

func asc(ids ...string) []model.Status {
	res := make([]model.Status, len(ids))
	for i, id := range ids {
		res[i] = model.Status{ID: id}
	}
	return res
}

func marker(anchor string) model.LoadMoreMarker {
	return model.LoadMoreMarker{ID: "m-" + anchor, TimelineID: "home:", AnchorStatusID: anchor}
}

func itemIDs(items []TimelineItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		if it.LoadMore != nil {
			ids[i] = "gap@" + it.LoadMore.AnchorStatusID
		} else {
			ids[i] = it.Status.ID
		}
	}
	return ids
}

func TestSpliceMarkersBeforeFirstGreater(t *testing.T) {
	items := spliceMarkers(asc("001", "002", "008", "009"), []model.LoadMoreMarker{marker("002")})
	assert.Equal(t, []string{"001", "002", "gap@002", "008", "009"}, itemIDs(items))
}

func TestSpliceMarkersWithoutSuccessorOmitted(t *testing.T) {
	items := spliceMarkers(asc("001", "002"), []model.LoadMoreMarker{marker("002")})
	assert.Equal(t, []string{"001", "002"}, itemIDs(items))

	items = spliceMarkers(nil, []model.LoadMoreMarker{marker("002")})
	assert.Empty(t, items)
}

func TestSpliceMultipleMarkers(t *testing.T) {
	markers := []model.LoadMoreMarker{marker("002"), marker("005")}
	items := spliceMarkers(asc("001", "002", "005", "008"), markers)
	assert.Equal(t, []string{"001", "002", "gap@002", "005", "gap@005", "008"}, itemIDs(items))
}

func TestSpliceThenReverseForDescendingDisplay(t *testing.T) {
	items := spliceMarkers(asc("001", "002", "008", "009"), []model.LoadMoreMarker{marker("002")})
	reverseItems(items)
	// 降序展示时空洞占位落在 008 与 002 之间
	assert.Equal(t, []string{"009", "008", "gap@002", "002", "001"}, itemIDs(items))
}

func TestAnnotateAdjacency(t *testing.T) {
	// A←B←C 链：B 回复 A，C 回复 B
	chain := []model.Status{
		{ID: "001"},
		{ID: "002", InReplyToID: replyTo("001")},
		{ID: "003", InReplyToID: replyTo("002")},
	}
	items := annotateAdjacency(chain)
	require.Len(t, items, 3)

	assert.False(t, items[0].IsReplyInContext)
	assert.True(t, items[0].HasReplyFollowing)

	assert.True(t, items[1].IsReplyInContext)
	assert.True(t, items[1].HasReplyFollowing)

	assert.True(t, items[2].IsReplyInContext)
	assert.False(t, items[2].HasReplyFollowing)
}

func TestAnnotateAdjacencyIgnoresOutOfContextReplies(t *testing.T) {
	// 002 回复了不在链中的 999：相邻性不成立
	chain := []model.Status{
		{ID: "001"},
		{ID: "002", InReplyToID: replyTo("999")},
	}
	items := annotateAdjacency(chain)
	assert.False(t, items[0].HasReplyFollowing)
	assert.False(t, items[1].IsReplyInContext)
}
