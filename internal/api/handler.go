package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scoreintake/internal/config"
	"scoreintake/internal/importer"
	"scoreintake/internal/service/excel"
	"scoreintake/internal/store"
)

// 业务错误码
const (
	CodeOK            = 0
	CodeBadRequest    = 1001
	CodeUnreadable    = 1002
	CodeNotFound      = 1004
	CodeRejected      = 1009
	CodeUnavailable   = 5001
	CodeInternalError = 5000
)

// Response 通用响应
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeOK,
		Message: "success",
		Data:    data,
	})
}

func errorResponse(c *gin.Context, status, code int, message string) {
	c.JSON(status, Response{
		Code:    code,
		Message: message,
	})
}

// writeError 将领域错误映射为响应码
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, excel.ErrUnreadableFile),
		errors.Is(err, excel.ErrNoHeader),
		errors.Is(err, excel.ErrNoDataRows):
		errorResponse(c, http.StatusUnprocessableEntity, CodeUnreadable, err.Error())
	case errors.Is(err, importer.ErrImportNotFound):
		errorResponse(c, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, importer.ErrImportRejected):
		errorResponse(c, http.StatusConflict, CodeRejected, err.Error())
	case errors.Is(err, importer.ErrNoPersistence):
		errorResponse(c, http.StatusServiceUnavailable, CodeUnavailable, err.Error())
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		errorResponse(c, http.StatusInternalServerError, CodeInternalError, "内部错误")
	}
}

// Handler API 处理器
type Handler struct {
	coordinator *importer.Coordinator
	store       *store.Store
	cfg         *config.AppConfig
	version     string
	logger      *zap.Logger
}

// NewHandler 创建 API 处理器；st 为空时不提供查询与确认
func NewHandler(coordinator *importer.Coordinator, st *store.Store, cfg *config.AppConfig, version string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Handler{
		coordinator: coordinator,
		store:       st,
		cfg:         cfg,
		version:     version,
		logger:      logger,
	}
}

// RegisterRoutes 注册 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统状态
	router.GET("/status", h.GetStatus)

	// 导入分析与确认
	router.POST("/imports", h.Analyze)
	router.GET("/imports", h.ListImports)
	router.GET("/imports/:id", h.GetImport)
	router.POST("/imports/:id/autofix", h.Autofix)
	router.POST("/imports/:id/confirm", h.Confirm)
	router.GET("/imports/:id/export", h.ExportImport)

	// 成绩查询
	router.GET("/records", h.ListRecords)
	router.GET("/records/export", h.ExportRecords)
}
