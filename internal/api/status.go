package api

import (
	"github.com/gin-gonic/gin"
)

// StatusResponse 系统状态响应
type StatusResponse struct {
	Version             string `json:"version"`
	ClassifierAvailable bool   `json:"classifierAvailable"` // 是否配置了外部语义分类器
	ClassifierMode      string `json:"classifierMode"`
	StorageReady        bool   `json:"storageReady"`
	PendingImports      int    `json:"pendingImports"`
}

// GetStatus 获取系统状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	resp := StatusResponse{
		Version:             h.version,
		ClassifierAvailable: h.coordinator.ClassifierAvailable(),
		ClassifierMode:      h.cfg.Classifier.Mode,
		PendingImports:      h.coordinator.PendingCount(),
	}
	if h.store != nil {
		resp.StorageReady = h.store.Ping(c.Request.Context()) == nil
	}
	success(c, resp)
}
