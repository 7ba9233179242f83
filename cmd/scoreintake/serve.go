package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scoreintake/internal/server"
)

var (
	servePort int
	serveDev  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "服务端口 (config.toml 优先；仅当未显式配置 port 时生效)")
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "开发模式")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, info, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 && !info.PortSpecified {
		cfg.Server.Port = servePort
	}
	if serveDev {
		cfg.Server.DevMode = true
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()
	if info.Path != "" {
		logger.Info("config loaded", zap.String("path", info.Path))
	}

	srv, err := server.NewServer(cfg, version, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
}
