// pkg/realtime/registry.go
package realtime

import (
	"encoding/json"
	"sync"
	"sync/atomic"
)

// Handler 入站事件回调，data 为事件信封中的原始 JSON 载荷
type Handler func(data json.RawMessage)

// subscription 一条 (事件名, 回调) 注册
type subscription struct {
	event string
	fn    Handler

	// sessionScoped 标记订阅属于当前会话，会话销毁时移除
	// 在 idle 状态注册的订阅服务于未来的会话，不随会话销毁
	sessionScoped bool

	removed atomic.Bool
}

// registry 订阅注册表
// 同一事件可以有多个订阅者，按注册顺序派发；移除一个不影响其余
type registry struct {
	mu   sync.RWMutex
	subs map[string][]*subscription
}

func newRegistry() *registry {
	return &registry{
		subs: make(map[string][]*subscription),
	}
}

// add 注册订阅
func (r *registry) add(event string, fn Handler, sessionScoped bool) *subscription {
	sub := &subscription{
		event:         event,
		fn:            fn,
		sessionScoped: sessionScoped,
	}

	r.mu.Lock()
	r.subs[event] = append(r.subs[event], sub)
	r.mu.Unlock()

	return sub
}

// remove 移除订阅
// removed 标记先行生效：remove 返回后该回调不会再开始新的派发
func (r *registry) remove(sub *subscription) {
	if sub == nil || !sub.removed.CompareAndSwap(false, true) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.subs[sub.event]
	for i, s := range list {
		if s == sub {
			r.subs[sub.event] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(r.subs[sub.event]) == 0 {
		delete(r.subs, sub.event)
	}
}

// dispatch 按注册顺序派发事件
func (r *registry) dispatch(event string, data json.RawMessage) {
	r.mu.RLock()
	list := r.subs[event]
	snapshot := make([]*subscription, len(list))
	copy(snapshot, list)
	r.mu.RUnlock()

	for _, sub := range snapshot {
		if sub.removed.Load() {
			continue
		}
		sub.fn(data)
	}
}

// clearScoped 移除所有会话级订阅
func (r *registry) clearScoped() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for event, list := range r.subs {
		kept := list[:0]
		for _, sub := range list {
			if sub.sessionScoped {
				sub.removed.Store(true)
				continue
			}
			kept = append(kept, sub)
		}
		if len(kept) == 0 {
			delete(r.subs, event)
		} else {
			r.subs[event] = kept
		}
	}
}

// count 返回指定事件当前的订阅数
func (r *registry) count(event string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[event])
}

// total 返回全部订阅数
func (r *registry) total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, list := range r.subs {
		n += len(list)
	}
	return n
}
