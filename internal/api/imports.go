package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"scoreintake/internal/importer"
	"scoreintake/internal/model"
)

var errInvalidConfidence = errors.New("minConfidenceForExternal 必须是 0 到 1 之间的数字")

// Analyze 上传并分析成绩文件
// POST /api/imports  (multipart: file, classifierMode, minConfidenceForExternal)
func (h *Handler) Analyze(c *gin.Context) {
	maxSize := h.cfg.Server.MaxUploadSize
	if maxSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		errorResponse(c, http.StatusBadRequest, CodeBadRequest, "未找到上传文件")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		errorResponse(c, http.StatusBadRequest, CodeBadRequest, "读取上传文件失败")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, CodeBadRequest, "读取上传文件失败")
		return
	}

	opts, err := h.parseOptions(c)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	result, err := h.coordinator.Analyze(c.Request.Context(), importer.Input{
		Filename: fileHeader.Filename,
		Data:     data,
		Kind:     model.FileKind(c.PostForm("fileKind")),
		Options:  opts,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, result)
}

func (h *Handler) parseOptions(c *gin.Context) (model.ImportOptions, error) {
	opts := model.ImportOptions{
		ClassifierMode:           model.ParseClassifierMode(h.cfg.Classifier.Mode),
		MinConfidenceForExternal: h.cfg.Classifier.MinConfidence,
		MinExternalConfidence:    h.cfg.Classifier.MinExternalConfidence,
	}
	if mode := strings.TrimSpace(c.PostForm("classifierMode")); mode != "" {
		opts.ClassifierMode = model.ParseClassifierMode(mode)
	}
	for field, dst := range map[string]*float64{
		"minConfidenceForExternal": &opts.MinConfidenceForExternal,
		"minExternalConfidence":    &opts.MinExternalConfidence,
	} {
		raw := strings.TrimSpace(c.PostForm(field))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			return opts, errInvalidConfidence
		}
		*dst = v
	}
	return opts, nil
}

// GetImport 获取待确认的分析结果
// GET /api/imports/:id
func (h *Handler) GetImport(c *gin.Context) {
	result, err := h.coordinator.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, result)
}

// Autofix 对待确认结果执行自动修复
// POST /api/imports/:id/autofix
func (h *Handler) Autofix(c *gin.Context) {
	result, err := h.coordinator.ApplyAutofixes(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, result)
}

// Confirm 确认导入
// POST /api/imports/:id/confirm
func (h *Handler) Confirm(c *gin.Context) {
	result, err := h.coordinator.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, result)
}

// ListImports 导入日志
// GET /api/imports?limit=
func (h *Handler) ListImports(c *gin.Context) {
	if h.store == nil {
		errorResponse(c, http.StatusServiceUnavailable, CodeUnavailable, "存储不可用")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := h.store.ListImportLogs(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, logs)
}
