package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoreintake/internal/model"
)

func TestKey_OrderAndWidthInsensitive(t *testing.T) {
	t.Parallel()

	a := Key([]string{"学号", "姓名", "语文"})
	b := Key([]string{" 语文 ", "姓名", "学号", ""})
	c := Key([]string{"学号", "姓名", "数学"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestMemoryStore_TTL(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(4)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	entry := Entry{FieldMapping: map[string]model.FieldTag{"学号": model.TagStudentID}, Confidence: 0.9}
	require.NoError(t, s.Put(ctx, "k", entry, time.Hour))

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.TagStudentID, got.FieldMapping["学号"])

	now = now.Add(time.Hour)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_ExpiredGetKeepsConcurrentRewrite(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(4)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	require.NoError(t, s.Put(ctx, "k", Entry{Confidence: 0.5}, time.Minute))

	// Get 判定过期之后、加写锁之前，另一个写入刷新了同一个键
	now = now.Add(time.Hour)
	rewritten := false
	s.now = func() time.Time {
		if !rewritten {
			rewritten = true
			require.NoError(t, s.Put(ctx, "k", Entry{Confidence: 0.9}, time.Hour))
		}
		return now
	}

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.9, got.Confidence)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_EvictsEarliestExpiry(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(2)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "short", Entry{}, time.Minute))
	require.NoError(t, s.Put(ctx, "long", Entry{}, time.Hour))
	require.NoError(t, s.Put(ctx, "new", Entry{}, time.Hour))

	assert.Equal(t, 2, s.Len())
	_, ok, _ := s.Get(ctx, "short")
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, "new")
	assert.True(t, ok)
}

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = string(value.([]byte))
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	t.Parallel()

	fake := newFakeRedis()
	s := NewRedisStore(fake, "test:")
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	entry := Entry{FieldMapping: map[string]model.FieldTag{"语文": "chinese_score"}, Confidence: 0.8}
	require.NoError(t, s.Put(ctx, "k", entry, time.Hour))
	assert.Equal(t, time.Hour, fake.ttl["test:k"])

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry.FieldMapping, got.FieldMapping)
}

func TestRedisStore_Errors(t *testing.T) {
	t.Parallel()

	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	s := NewRedisStore(fake, "")

	_, _, err := s.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, s.Put(context.Background(), "k", Entry{}, time.Minute))
}
