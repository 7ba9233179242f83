package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// AppConfig 应用配置
type AppConfig struct {
	Server     ServerConfig     `toml:"server"`
	Data       DataConfig       `toml:"data"`
	Classifier ClassifierConfig `toml:"classifier"`
	Cache      CacheConfig      `toml:"cache"`
	Validation ValidationConfig `toml:"validation"`
	Log        LogConfig        `toml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port          int   `toml:"port"`
	DevMode       bool  `toml:"dev_mode"`
	MaxUploadSize int64 `toml:"max_upload_size"`
}

// DataConfig 数据配置
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// ClassifierConfig 外部语义分类器配置
type ClassifierConfig struct {
	Mode                  string  `toml:"mode"`                    // disabled/auto/force
	MinConfidence         float64 `toml:"min_confidence"`          // 规则置信度低于该值才调用外部分类器
	MinExternalConfidence float64 `toml:"min_external_confidence"` // 外部结果置信度下限，0 为不限制
	TimeoutSec            int     `toml:"timeout_sec"`
	Model                 string  `toml:"model"`
	BaseURL               string  `toml:"base_url"`
	APIKey                string  `toml:"api_key"`
	MaxSampleRows         int     `toml:"max_sample_rows"`
}

// Timeout 单次调用超时
func (c ClassifierConfig) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// Enabled 是否配置了远端
func (c ClassifierConfig) Enabled() bool {
	return c.APIKey != ""
}

// CacheConfig 映射记忆配置
type CacheConfig struct {
	Backend   string `toml:"backend"` // memory/redis/sqlite
	RedisAddr string `toml:"redis_addr"`
	RedisDB   int    `toml:"redis_db"`
	TTLHours  int    `toml:"ttl_hours"`
	MaxItems  int    `toml:"max_items"`
}

// TTL 映射记忆有效期
func (c CacheConfig) TTL() time.Duration {
	if c.TTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.TTLHours) * time.Hour
}

// ValidationConfig 校验配置
type ValidationConfig struct {
	DisabledRules  []string `toml:"disabled_rules"`
	TotalTolerance float64  `toml:"total_tolerance"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path          string
	PortSpecified bool
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:          20262,
			DevMode:       false,
			MaxUploadSize: 20 << 20,
		},
		Data: DataConfig{
			DataDir: "data",
		},
		Classifier: ClassifierConfig{
			Mode:          "auto",
			MinConfidence: 0.8,
			TimeoutSec:    15,
			Model:         "gpt-4o-mini",
			MaxSampleRows: 5,
		},
		Cache: CacheConfig{
			Backend:  "memory",
			TTLHours: 24 * 7,
			MaxItems: 512,
		},
		Validation: ValidationConfig{
			TotalTolerance: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// LoadConfigWithInfo 从可执行文件同目录的 config.toml 加载配置
func LoadConfigWithInfo() (*AppConfig, LoadConfigInfo, error) {
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	return LoadFile(filepath.Join(exeDir, "config.toml"))
}

// LoadFile 从指定路径加载配置；文件不存在时使用默认配置
func LoadFile(path string) (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{Path: path}
	config := DefaultConfig()

	// .env 仅用于本地开发，缺失不报错
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(config)
			return config, info, nil
		}
		return nil, info, err
	}

	info.PortSpecified = isPortSpecifiedInToml(data)

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, info, err
	}

	applyEnv(config)
	return config, info, nil
}

// applyEnv 环境变量覆盖
func applyEnv(config *AppConfig) {
	if v := os.Getenv("SCOREINTAKE_OPENAI_API_KEY"); v != "" {
		config.Classifier.APIKey = v
	}
	if config.Classifier.APIKey == "" {
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			config.Classifier.APIKey = v
		}
	}
	if v := os.Getenv("SCOREINTAKE_OPENAI_BASE_URL"); v != "" {
		config.Classifier.BaseURL = v
	}
	if v := os.Getenv("SCOREINTAKE_REDIS_ADDR"); v != "" {
		config.Cache.RedisAddr = v
		config.Cache.Backend = "redis"
	}
	if v := os.Getenv("SCOREINTAKE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			config.Server.Port = p
		}
	}
}

// SaveConfig 保存配置到 config.toml
func SaveConfig(config *AppConfig, path string) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// EnsureDataDir 确保数据目录存在，返回绝对路径
func EnsureDataDir(config *AppConfig) (string, error) {
	dataDir := config.Data.DataDir
	if !filepath.IsAbs(dataDir) {
		exeDir, err := GetExeDir()
		if err != nil {
			exeDir = "."
		}
		dataDir = filepath.Join(exeDir, dataDir)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}
	return dataDir, nil
}
