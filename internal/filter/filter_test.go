package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/d60-Lab/feedcache/internal/model"
)

func expiry(t time.Time) *time.Time { return &t }

func TestMatches(t *testing.T) {
	cases := []struct {
		name   string
		phrase string
		whole  bool
		status model.Status
		want   bool
	}{
		{"substring hit", "spoil", false, model.Status{Content: "no spoilers please"}, true},
		{"case insensitive", "SPOIL", false, model.Status{Content: "no spoilers please"}, true},
		{"whole word miss on substring", "spoil", true, model.Status{Content: "no spoilers please"}, false},
		{"whole word hit", "spoilers", true, model.Status{Content: "no spoilers please"}, true},
		{"spoiler text scanned", "cw", false, model.Status{Content: "body", SpoilerText: "cw politics"}, true},
		{"no hit", "cats", false, model.Status{Content: "all about dogs"}, false},
		{"regex metacharacters literal", "c++", false, model.Status{Content: "i like c++ a lot"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := model.Filter{ID: "f1", Phrase: tc.phrase, WholeWord: tc.whole}
			assert.Equal(t, tc.want, Matches(f, tc.status))
		})
	}
}

func TestExcludedRespectsContextAndExpiry(t *testing.T) {
	now := time.Now()
	s := model.Status{ID: "001", Content: "spoiler alert"}

	f := model.Filter{ID: "f1", Phrase: "spoiler", Contexts: []string{model.ContextHome}}
	assert.True(t, Excluded([]model.Filter{f}, s, model.ContextHome, now))
	// 未声明的上下文不生效
	assert.False(t, Excluded([]model.Filter{f}, s, model.ContextThread, now))

	expired := f
	expired.ExpiresAt = expiry(now.Add(-time.Hour))
	assert.False(t, Excluded([]model.Filter{expired}, s, model.ContextHome, now))

	future := f
	future.ExpiresAt = expiry(now.Add(time.Hour))
	assert.True(t, Excluded([]model.Filter{future}, s, model.ContextHome, now))
}

func TestApplyKeepsOrder(t *testing.T) {
	now := time.Now()
	statuses := []model.Status{
		{ID: "001", Content: "keep one"},
		{ID: "002", Content: "drop spoiler"},
		{ID: "003", Content: "keep two"},
	}
	f := model.Filter{ID: "f1", Phrase: "spoiler", Contexts: []string{model.ContextHome}}

	kept := Apply(statuses, model.ContextHome, []model.Filter{f}, now)
	assert.Len(t, kept, 2)
	assert.Equal(t, "001", kept[0].ID)
	assert.Equal(t, "003", kept[1].ID)
}

func TestActiveBoundary(t *testing.T) {
	now := time.Now()
	f := model.Filter{ID: "f1", Phrase: "x", ExpiresAt: expiry(now)}
	// 过期时刻本身算过期
	assert.False(t, f.Active(now))
	assert.True(t, f.Active(now.Add(-time.Second)))

	forever := model.Filter{ID: "f2", Phrase: "x"}
	assert.True(t, forever.Active(now))
}
