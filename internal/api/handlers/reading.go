package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/meterbook/internal/service"
)

// ListReadings 获取读数列表
func (h *Handler) ListReadings(c *gin.Context) {
	page, perPage, offset := pagination(c, service.DefaultReadingLimit)

	readings, total, err := h.readingSvc.List(c.Request.Context(), userID(c), perPage, offset)
	if err != nil {
		h.handleError(c, "list meter readings", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    readings,
		"pagination": gin.H{
			"page":     page,
			"per_page": perPage,
			"total":    total,
		},
	})
}

// GetReading 获取读数详情（含分段明细）
func (h *Handler) GetReading(c *gin.Context) {
	id, valid := parseID(c, "meter reading")
	if !valid {
		return
	}

	m, err := h.readingSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		h.handleError(c, "get meter reading", err)
		return
	}
	ok(c, m)
}

// CreateReading 新增读数
func (h *Handler) CreateReading(c *gin.Context) {
	var in service.ReadingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}

	m, err := h.readingSvc.Create(c.Request.Context(), userID(c), in)
	if err != nil {
		h.handleError(c, "create meter reading", err)
		return
	}

	h.logger.Info("Meter reading created via API", zap.Int64("reading_id", m.ID), zap.Int64("user_id", m.UserID))
	created(c, m)
}

// UpdateReading 修改读数并重新计费
func (h *Handler) UpdateReading(c *gin.Context) {
	id, valid := parseID(c, "meter reading")
	if !valid {
		return
	}

	var in service.ReadingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}

	m, err := h.readingSvc.Update(c.Request.Context(), userID(c), id, in)
	if err != nil {
		h.handleError(c, "update meter reading", err)
		return
	}
	ok(c, m)
}

// DeleteReading 删除读数
func (h *Handler) DeleteReading(c *gin.Context) {
	id, valid := parseID(c, "meter reading")
	if !valid {
		return
	}

	if err := h.readingSvc.Delete(c.Request.Context(), userID(c), id); err != nil {
		h.handleError(c, "delete meter reading", err)
		return
	}
	message(c, "Meter reading deleted")
}
