package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"scoreintake/internal/service/excel"
	"scoreintake/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportImport 导出待确认结果（成绩、问题、概览）
// GET /api/imports/:id/export
func (h *Handler) ExportImport(c *gin.Context) {
	result, err := h.coordinator.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	f, err := excel.NewExporter().Export(result)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.sendWorkbook(c, f, fmt.Sprintf("校验报告_%s.xlsx", result.ImportID))
}

// ExportRecords 导出已入库成绩
// GET /api/records/export?exam=&class=&studentId=
func (h *Handler) ExportRecords(c *gin.Context) {
	if h.store == nil {
		errorResponse(c, http.StatusServiceUnavailable, CodeUnavailable, "存储不可用")
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := h.store.ListRecords(c.Request.Context(), store.RecordFilter{
		ExamTitle: c.Query("exam"),
		ClassName: c.Query("class"),
		StudentID: c.Query("studentId"),
		Limit:     limit,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	f, err := excel.NewExporter().ExportRecords(records)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.sendWorkbook(c, f, "成绩.xlsx")
}

func (h *Handler) sendWorkbook(c *gin.Context, f *excelize.File, filename string) {
	defer f.Close()
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		h.logger.Warn("failed to write workbook", zap.String("file", filename), zap.Error(err))
	}
}
