package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"scoreintake/internal/model"
	"scoreintake/internal/parser"
)

// Entry 已确认的表头映射
type Entry struct {
	FieldMapping map[string]model.FieldTag `json:"fieldMapping"`
	Confidence   float64                   `json:"confidence"`
	StoredAt     time.Time                 `json:"storedAt"`
}

// MappingStore 映射记忆存储
type MappingStore interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, entry Entry, ttl time.Duration) error
}

// Key 表头集合指纹：规范化、排序后取 SHA-256
func Key(headers []string) string {
	norm := make([]string, 0, len(headers))
	for _, h := range headers {
		if n := parser.NormalizeHeader(h); n != "" {
			norm = append(norm, n)
		}
	}
	sort.Strings(norm)
	sum := sha256.Sum256([]byte(strings.Join(norm, "\x1f")))
	return hex.EncodeToString(sum[:])
}
