package store

import (
	"errors"
	"sync"
	"time"

	"scoreintake/internal/model"
)

// ErrNotFound 导入结果不存在或已过期
var ErrNotFound = errors.New("import not found")

// DefaultPendingTTL 待确认结果的保留时间
const DefaultPendingTTL = 30 * time.Minute

type pendingItem struct {
	result    *model.ImportResult
	expiresAt time.Time
}

// MemoryStore 待确认导入结果的内存存储
type MemoryStore struct {
	items map[string]*pendingItem
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
}

// NewMemoryStore 创建内存存储；ttl <= 0 时使用默认值
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &MemoryStore{
		items: make(map[string]*pendingItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Put 保存分析结果（同 ID 覆盖）
func (s *MemoryStore) Put(result *model.ImportResult) {
	if result == nil || result.ImportID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked()
	s.items[result.ImportID] = &pendingItem{
		result:    result,
		expiresAt: s.now().Add(s.ttl),
	}
}

// Get 获取分析结果
func (s *MemoryStore) Get(id string) (*model.ImportResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok || !s.now().Before(item.expiresAt) {
		return nil, ErrNotFound
	}
	return item.result, nil
}

// Take 取出并删除分析结果
func (s *MemoryStore) Take(id string) (*model.ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.items, id)
	if !s.now().Before(item.expiresAt) {
		return nil, ErrNotFound
	}
	return item.result, nil
}

// Restore 确认失败时放回并重新计时
func (s *MemoryStore) Restore(result *model.ImportResult) {
	s.Put(result)
}

// Count 未过期的结果数量
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	n := 0
	for _, item := range s.items {
		if now.Before(item.expiresAt) {
			n++
		}
	}
	return n
}

// Purge 清理过期结果，返回清理数量
func (s *MemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeLocked()
}

func (s *MemoryStore) purgeLocked() int {
	now := s.now()
	n := 0
	for id, item := range s.items {
		if !now.Before(item.expiresAt) {
			delete(s.items, id)
			n++
		}
	}
	return n
}
