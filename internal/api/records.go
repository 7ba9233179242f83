package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"scoreintake/internal/model"
	"scoreintake/internal/store"
)

// ListRecords 查询已导入的成绩
// GET /api/records?exam=&class=&studentId=&limit=
func (h *Handler) ListRecords(c *gin.Context) {
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
	if records == nil {
		records = []*model.CanonicalRecord{}
	}
	success(c, records)
}
