package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scoreintake/internal/api"
	"scoreintake/internal/config"
)

const shutdownTimeout = 10 * time.Second

// Server HTTP服务器
type Server struct {
	router *gin.Engine
	comp   *Components
	logger *zap.Logger
}

// NewServer 创建服务器
func NewServer(cfg *config.AppConfig, version string, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化 SQLite Store
	st, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	comp, err := Build(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	s := &Server{
		router: gin.New(),
		comp:   comp,
		logger: logger,
	}
	s.setupRoutes(api.NewHandler(comp.Coordinator, comp.Store, cfg, version, logger.Named("api")))
	return s, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(h *api.Handler) {
	s.router.Use(gin.Recovery(), requestLogger(s.logger.Named("http")), corsMiddleware())

	group := s.router.Group("/api")
	{
		h.RegisterRoutes(group)
	}
}

// Handler 返回 HTTP 处理器（用于测试）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动服务器，ctx 取消后优雅退出
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		_ = s.comp.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if closeErr := s.comp.Close(); err == nil {
		err = closeErr
	}
	s.logger.Info("server stopped")
	return err
}
