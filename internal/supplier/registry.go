package supplier

import (
	"fmt"
	"sort"
	"sync"
)

// Registry 店铺 ID -> 商品来源
type Registry struct {
	mu        sync.RWMutex
	suppliers map[string]Supplier
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{suppliers: make(map[string]Supplier)}
}

// NewFeedRegistry 按 store=url 配置为每个店铺创建 FeedSupplier
func NewFeedRegistry(stores map[string]string, base FeedOptions) *Registry {
	r := NewRegistry()
	for store, url := range stores {
		opts := base
		opts.URL = url
		r.Register(store, NewFeedSupplier(store, opts))
	}
	return r
}

// Register 注册或替换店铺来源
func (r *Registry) Register(storeID string, s Supplier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suppliers[storeID] = s
}

// Get 获取店铺来源
func (r *Registry) Get(storeID string) (Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.suppliers[storeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, storeID)
	}
	return s, nil
}

// Stores 已注册店铺，按字母排序
func (r *Registry) Stores() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stores := make([]string, 0, len(r.suppliers))
	for id := range r.suppliers {
		stores = append(stores, id)
	}
	sort.Strings(stores)
	return stores
}

// ==================== 错误定义 ====================

type SupplierError string

func (e SupplierError) Error() string { return string(e) }

const (
	ErrUnknownStore SupplierError = "no supplier registered for store"
)
