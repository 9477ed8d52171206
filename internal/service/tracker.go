package service

import "sync"

// ChangeTracker 以表名为键的观察者注册表。每个提交的事务发布其触及的
// 表集合；依赖集与之相交的活跃查询收到一次合并后的唤醒。
type ChangeTracker struct {
	mu   sync.Mutex
	next int
	subs map[int]*subscription
}

type subscription struct {
	tables map[string]struct{}
	// wake 缓冲 1：重算期间的连续提交合并为一次唤醒
	wake chan struct{}
}

func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{subs: make(map[int]*subscription)}
}

// Publish 广播一次已提交事务触及的表集合
func (t *ChangeTracker) Publish(tables ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sub := range t.subs {
		for _, tb := range tables {
			if _, ok := sub.tables[tb]; ok {
				select {
				case sub.wake <- struct{}{}:
				default:
				}
				break
			}
		}
	}
}

func (t *ChangeTracker) register(tables []string) (int, <-chan struct{}) {
	sub := &subscription{tables: make(map[string]struct{}, len(tables)), wake: make(chan struct{}, 1)}
	for _, tb := range tables {
		sub.tables[tb] = struct{}{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.next
	t.next++
	t.subs[id] = sub
	return id, sub.wake
}

func (t *ChangeTracker) deregister(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs, id)
}

// tabler gorm 模型的表名接口
type tabler interface{ TableName() string }

func tables(ts ...tabler) []string {
	res := make([]string, len(ts))
	for i, t := range ts {
		res[i] = t.TableName()
	}
	return res
}
