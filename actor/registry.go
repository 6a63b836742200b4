package actor

import "sync"

// Registry 是本地 Actor 注册表，按 ID 与可选的名字索引，支持并发访问。
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*BaseActor
	byName map[string]string
}

// NewRegistry 创建一个空注册表。
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*BaseActor),
		byName: make(map[string]string),
	}
}

// Register 登记 Actor；name 非空时同时建立名字索引，后登记者覆盖同名的旧项。
func (r *Registry) Register(id, name string, a *BaseActor) {
	r.mu.Lock()
	r.byID[id] = a
	if name != "" {
		r.byName[name] = id
	}
	r.mu.Unlock()
}

// Unregister 移除 Actor。名字索引只有仍指向 id 时才会删除，
// 这样重启后同名的新实例不会被旧实例的退出清掉。
func (r *Registry) Unregister(id, name string) {
	r.mu.Lock()
	delete(r.byID, id)
	if name != "" && r.byName[name] == id {
		delete(r.byName, name)
	}
	r.mu.Unlock()
}

// Get 按 ID 查找。
func (r *Registry) Get(id string) (*BaseActor, bool) {
	r.mu.RLock()
	a, ok := r.byID[id]
	r.mu.RUnlock()
	return a, ok
}

// GetByName 按名字查找。
func (r *Registry) GetByName(name string) (*BaseActor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	a := r.byID[id]
	return a, a != nil
}

// Len 返回已登记的 Actor 个数。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Snapshot 返回当前全部 Actor 的副本，遍历时不阻塞注册。
func (r *Registry) Snapshot() []*BaseActor {
	r.mu.RLock()
	out := make([]*BaseActor, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	r.mu.RUnlock()
	return out
}
