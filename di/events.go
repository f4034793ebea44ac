package di

import "sync"

// Events 是容器事件的订阅点。监听器同步执行。
type Events struct {
	mu       sync.Mutex
	expanded []*func(keys []Key)
}

// OnExpanded 订阅 expanded 事件，返回取消订阅的函数。
// keys 是本次扩展新增的服务键，按绑定顺序排列。
func (e *Events) OnExpanded(fn func(keys []Key)) (unsubscribe func()) {
	p := &fn
	e.mu.Lock()
	e.expanded = append(e.expanded, p)
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, l := range e.expanded {
			if l == p {
				e.expanded = append(e.expanded[:i:i], e.expanded[i+1:]...)
				return
			}
		}
	}
}

func (e *Events) emitExpanded(keys []Key) {
	e.mu.Lock()
	listeners := make([]*func([]Key), len(e.expanded))
	copy(listeners, e.expanded)
	e.mu.Unlock()

	for _, l := range listeners {
		(*l)(keys)
	}
}
