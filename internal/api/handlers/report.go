package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/meterbook/internal/service"
)

// ReportQuery 报告查询参数
type ReportQuery struct {
	Period string `form:"period"`
	Year   int    `form:"year" binding:"omitempty,min=1970,max=9999"`
	Month  int    `form:"month" binding:"omitempty,min=1,max=12"`
}

// GetReport 获取用电报告
// GET /api/reports?period=month|year|all&year=&month=
func (h *Handler) GetReport(c *gin.Context) {
	var q ReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	r, err := h.reportService.Build(c.Request.Context(), userID(c), q.Period, q.Year, q.Month)
	if err != nil {
		h.handleError(c, "build report", err)
		return
	}
	ok(c, r)
}

// ExportReport 导出 PDF 报告
func (h *Handler) ExportReport(c *gin.Context) {
	var q ReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	r, err := h.reportService.Build(c.Request.Context(), userID(c), q.Period, q.Year, q.Month)
	if err != nil {
		h.handleError(c, "build report", err)
		return
	}

	var buf bytes.Buffer
	if err := service.RenderReportPDF(&buf, r, time.Now()); err != nil {
		h.logger.Error("Failed to render report", zap.Int64("user_id", userID(c)), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to export report")
		return
	}

	filename := fmt.Sprintf("laporan-listrik-%s-%04d-%02d.pdf", r.Period, r.Year, r.Month)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
