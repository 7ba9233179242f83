package server

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"scoreintake/internal/cache"
	"scoreintake/internal/config"
	"scoreintake/internal/importer"
	"scoreintake/internal/parser"
	"scoreintake/internal/semantic"
	pending "scoreintake/internal/service/store"
	"scoreintake/internal/service/strategy"
	"scoreintake/internal/service/validation"
	"scoreintake/internal/store"
)

// 映射记忆后端
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendSQLite = "sqlite"
)

// Components 组装好的运行时依赖
type Components struct {
	Store       *store.Store
	Coordinator *importer.Coordinator
	redis       *redis.Client
}

// Close 释放数据库与缓存连接
func (c *Components) Close() error {
	var firstErr error
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			firstErr = err
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OpenStore 在数据目录下打开 SQLite 存储
func OpenStore(cfg *config.AppConfig) (*store.Store, error) {
	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	return store.New(filepath.Join(dataDir, store.DefaultDBName))
}

// Build 按配置组装导入流程；st 为空时不支持确认导入
func Build(cfg *config.AppConfig, st *store.Store, logger *zap.Logger) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	comp := &Components{Store: st}

	memory, err := comp.mappingStore(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	classifier := semantic.NewFromConfig(cfg.Classifier, logger.Named("semantic"))
	if classifier == nil {
		logger.Info("semantic classifier not configured, using rules only")
	}
	selector := strategy.NewSelector(classifier, memory, cfg.Classifier.Timeout(), cfg.Cache.TTL(), logger.Named("strategy"))

	deps := importer.Deps{
		Classifier: parser.NewHeaderClassifier(parser.NewMemo(), logger.Named("parser")),
		Selector:   selector,
		Validator:  validation.NewEngine(cfg.Validation, logger.Named("validation")),
		Pending:    pending.NewMemoryStore(pending.DefaultPendingTTL),
		SampleRows: cfg.Classifier.MaxSampleRows,
		Logger:     logger.Named("importer"),
	}
	if st != nil {
		deps.Persister = st
	}
	comp.Coordinator = importer.NewCoordinator(deps)
	return comp, nil
}

// mappingStore 选择映射记忆后端；sqlite 后端无存储时退回内存
func (c *Components) mappingStore(cfg config.CacheConfig, logger *zap.Logger) (cache.MappingStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case CacheBackendRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("cache backend redis requires redis_addr")
		}
		c.redis = cache.NewRedisClient(cfg.RedisAddr, cfg.RedisDB)
		logger.Info("mapping memory backed by redis", zap.String("addr", cfg.RedisAddr))
		return cache.NewRedisStore(c.redis, "scoreintake:mapping:"), nil
	case CacheBackendSQLite:
		if c.Store != nil {
			return c.Store.MappingMemory(), nil
		}
		logger.Warn("sqlite mapping memory requested without a store, falling back to memory")
	case CacheBackendMemory, "":
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
	return cache.NewMemoryStore(cfg.MaxItems), nil
}
