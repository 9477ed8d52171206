// Package filter 判定内容过滤规则对单条状态的取舍。
//
// 策略：命中即整条移除（exclusion），不做字段级遮盖。规则只在其声明的
// 展示上下文内生效；匹配对象为正文加警示语，大小写不敏感。
package filter

import (
	"regexp"
	"time"

	"github.com/d60-Lab/feedcache/internal/model"
)

// Relevant 规则是否声明了该展示上下文
func Relevant(f model.Filter, context string) bool {
	for _, c := range f.Contexts {
		if c == context {
			return true
		}
	}
	return false
}

// Matches 状态文本是否命中规则短语
func Matches(f model.Filter, s model.Status) bool {
	re, err := matcher(f)
	if err != nil {
		// 无法编译的短语视为不命中，规则本身不应阻断物化
		return false
	}
	return re.MatchString(s.Content) || re.MatchString(s.SpoilerText)
}

// Excluded 在给定上下文与参考时间下，filters 中是否有生效规则移除 s
func Excluded(filters []model.Filter, s model.Status, context string, now time.Time) bool {
	for _, f := range filters {
		if !f.Active(now) || !Relevant(f, context) {
			continue
		}
		if Matches(f, s) {
			return true
		}
	}
	return false
}

// Apply 返回 statuses 中未被移除的子序列，保持原顺序
func Apply(statuses []model.Status, context string, filters []model.Filter, now time.Time) []model.Status {
	kept := make([]model.Status, 0, len(statuses))
	for _, s := range statuses {
		if !Excluded(filters, s, context, now) {
			kept = append(kept, s)
		}
	}
	return kept
}

func matcher(f model.Filter) (*regexp.Regexp, error) {
	pattern := regexp.QuoteMeta(f.Phrase)
	if f.WholeWord {
		pattern = `\b` + pattern + `\b`
	}
	return regexp.Compile(`(?i)` + pattern)
}
