package service

import (
	"reflect"
	"sync"
)

// Result 一次推送：值或终止性错误，二者其一
type Result[T any] struct {
	Value T
	Err   error
}

// Observation 一个活跃的变更追踪查询。生命周期内可能推送零到多次；
// 首次推送在首次求值完成后。求值出错时以错误代替值推送并终止订阅
//（调用方需重新订阅恢复）。
type Observation[T any] struct {
	ch   chan Result[T]
	stop chan struct{}
	once sync.Once
}

// Updates 推送通道；订阅终止后关闭
func (o *Observation[T]) Updates() <-chan Result[T] { return o.ch }

// Cancel 停止后续推送并注销追踪；不影响在途写事务
func (o *Observation[T]) Cancel() {
	o.once.Do(func() { close(o.stop) })
}

// observe 注册依赖表集合并循环求值。相邻两次结果值相等时不重复推送。
func observe[T any](tracker *ChangeTracker, deps []string, eval func() (T, error)) *Observation[T] {
	o := &Observation[T]{ch: make(chan Result[T]), stop: make(chan struct{})}
	// 先注册后求值：注册与首次求值之间提交的事务不会丢唤醒
	id, wake := tracker.register(deps)

	go func() {
		defer close(o.ch)
		defer tracker.deregister(id)

		var prev T
		have := false
		for {
			v, err := eval()
			if err != nil {
				select {
				case o.ch <- Result[T]{Err: err}:
				case <-o.stop:
				}
				return
			}
			if !have || !reflect.DeepEqual(prev, v) {
				select {
				case o.ch <- Result[T]{Value: v}:
				case <-o.stop:
					return
				}
				prev, have = v, true
			}

			select {
			case <-wake:
			case <-o.stop:
				return
			}
		}
	}()
	return o
}
