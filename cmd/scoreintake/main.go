package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scoreintake/internal/config"
	"scoreintake/internal/logging"
)

var version = "dev"

var (
	configPath string
	dataDir    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "scoreintake",
	Short: "成绩表导入、字段识别与校验",
	Long: `scoreintake 读取 CSV / Excel 成绩表，识别表头字段，
组装为统一的成绩记录并执行校验，确认后写入 SQLite。`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径（默认为可执行文件同目录的 config.toml）")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "数据目录 (覆盖配置文件)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 debug/info/warn/error")

	rootCmd.AddCommand(serveCmd, analyzeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig 加载配置并应用命令行覆盖
func loadConfig() (*config.AppConfig, config.LoadConfigInfo, error) {
	var (
		cfg  *config.AppConfig
		info config.LoadConfigInfo
		err  error
	)
	if configPath != "" {
		cfg, info, err = config.LoadFile(configPath)
	} else {
		cfg, info, err = config.LoadConfigWithInfo()
	}
	if err != nil {
		return nil, info, fmt.Errorf("load config: %w", err)
	}
	if dataDir != "" {
		cfg.Data.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, info, nil
}

func newLogger(cfg *config.AppConfig) *zap.Logger {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "创建日志器失败，使用空日志器: %v\n", err)
		return zap.NewNop()
	}
	return logger
}
