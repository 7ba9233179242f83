package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	entry     Entry
	expiresAt time.Time
}

func (it memoryItem) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && !now.Before(it.expiresAt)
}

// MemoryStore 进程内映射记忆，过期即淘汰；超过容量时淘汰最早过期的条目
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[string]memoryItem
	maxItems int
	now      func() time.Time
}

// NewMemoryStore 创建内存存储
func NewMemoryStore(maxItems int) *MemoryStore {
	if maxItems <= 0 {
		maxItems = 512
	}
	return &MemoryStore{
		items:    make(map[string]memoryItem),
		maxItems: maxItems,
		now:      time.Now,
	}
}

// Get 读取
func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}
	now := s.now()
	if !item.expired(now) {
		return item.entry, true, nil
	}

	// 释放读锁期间可能已被重新写入，加写锁后再判断一次
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok = s.items[key]
	if !ok {
		return Entry{}, false, nil
	}
	if item.expired(now) {
		delete(s.items, key)
		return Entry{}, false, nil
	}
	return item.entry, true, nil
}

// Put 写入；ttl <= 0 表示不过期
func (s *MemoryStore) Put(_ context.Context, key string, entry Entry, ttl time.Duration) error {
	now := s.now()
	item := memoryItem{entry: entry}
	if ttl > 0 {
		item.expiresAt = now.Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; !exists && len(s.items) >= s.maxItems {
		s.evictLocked(now)
	}
	s.items[key] = item
	return nil
}

// Len 当前条目数
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStore) evictLocked(now time.Time) {
	victim := ""
	var earliest time.Time
	for k, it := range s.items {
		if it.expired(now) {
			delete(s.items, k)
			continue
		}
		exp := it.expiresAt
		if exp.IsZero() {
			exp = time.Unix(1<<62, 0)
		}
		if victim == "" || exp.Before(earliest) || (exp.Equal(earliest) && k < victim) {
			victim, earliest = k, exp
		}
	}
	if len(s.items) >= s.maxItems && victim != "" {
		delete(s.items, victim)
	}
}
