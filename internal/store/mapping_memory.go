package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scoreintake/internal/cache"
	"scoreintake/internal/model"
)

// MappingMemory 基于 SQLite 的映射记忆，实现 cache.MappingStore
type MappingMemory struct {
	db  *sql.DB
	now func() time.Time
}

var _ cache.MappingStore = (*MappingMemory)(nil)

// MappingMemory 返回映射记忆存储
func (s *Store) MappingMemory() *MappingMemory {
	return &MappingMemory{db: s.db, now: time.Now}
}

// Get 读取映射；过期视为未命中并删除
func (m *MappingMemory) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	var (
		raw        string
		confidence float64
		storedAt   int64
		expiresAt  int64
	)
	err := m.db.QueryRowContext(ctx,
		"SELECT mapping, confidence, stored_at, expires_at FROM mapping_memory WHERE key = ?", key,
	).Scan(&raw, &confidence, &storedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("failed to read mapping memory: %w", err)
	}

	if m.now().Unix() >= expiresAt {
		if _, err := m.db.ExecContext(ctx, "DELETE FROM mapping_memory WHERE key = ?", key); err != nil {
			return cache.Entry{}, false, fmt.Errorf("failed to evict mapping memory: %w", err)
		}
		return cache.Entry{}, false, nil
	}

	var mapping map[string]model.FieldTag
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		return cache.Entry{}, false, fmt.Errorf("failed to decode mapping memory: %w", err)
	}
	return cache.Entry{
		FieldMapping: mapping,
		Confidence:   confidence,
		StoredAt:     time.Unix(storedAt, 0),
	}, true, nil
}

// Put 写入映射
func (m *MappingMemory) Put(ctx context.Context, key string, e cache.Entry, ttl time.Duration) error {
	raw, err := json.Marshal(e.FieldMapping)
	if err != nil {
		return fmt.Errorf("failed to encode mapping memory: %w", err)
	}
	now := m.now()
	storedAt := e.StoredAt
	if storedAt.IsZero() {
		storedAt = now
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO mapping_memory (key, mapping, confidence, stored_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			mapping = excluded.mapping,
			confidence = excluded.confidence,
			stored_at = excluded.stored_at,
			expires_at = excluded.expires_at
	`, key, string(raw), e.Confidence, storedAt.Unix(), now.Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("failed to write mapping memory: %w", err)
	}
	return nil
}
