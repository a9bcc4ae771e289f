package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/meterbook/internal/service"
)

// PreviewRequest 电费试算请求
type PreviewRequest struct {
	UsageKwh *float64 `json:"usage_kwh" binding:"required,gte=0"`
	TariffID int64    `json:"tariff_id" binding:"omitempty,min=1"`
}

// ListTariffs 获取电价方案列表
func (h *Handler) ListTariffs(c *gin.Context) {
	list, err := h.tariffService.List(c.Request.Context())
	if err != nil {
		h.handleError(c, "list tariff settings", err)
		return
	}
	ok(c, list)
}

// GetTariff 获取电价方案
func (h *Handler) GetTariff(c *gin.Context) {
	id, valid := parseID(c, "tariff")
	if !valid {
		return
	}

	s, err := h.tariffService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, "get tariff setting", err)
		return
	}
	ok(c, s)
}

// CreateTariff 新建电价方案
func (h *Handler) CreateTariff(c *gin.Context) {
	var in service.TariffInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}

	s, err := h.tariffService.Create(c.Request.Context(), in)
	if err != nil {
		h.handleError(c, "create tariff setting", err)
		return
	}

	h.logger.Info("Tariff created via API", zap.Int64("tariff_id", s.ID), zap.Int64("by_user", userID(c)))
	created(c, s)
}

// UpdateTariff 更新电价方案
func (h *Handler) UpdateTariff(c *gin.Context) {
	id, valid := parseID(c, "tariff")
	if !valid {
		return
	}

	var in service.TariffInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}

	s, err := h.tariffService.Update(c.Request.Context(), id, in)
	if err != nil {
		h.handleError(c, "update tariff setting", err)
		return
	}
	ok(c, s)
}

// DeleteTariff 删除电价方案
func (h *Handler) DeleteTariff(c *gin.Context) {
	id, valid := parseID(c, "tariff")
	if !valid {
		return
	}

	if err := h.tariffService.Delete(c.Request.Context(), id); err != nil {
		h.handleError(c, "delete tariff setting", err)
		return
	}
	message(c, "Tariff setting deleted")
}

// PreviewTariff 按方案试算电费，不保存
func (h *Handler) PreviewTariff(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.tariffService.Preview(c.Request.Context(), *req.UsageKwh, req.TariffID)
	if err != nil {
		h.handleError(c, "preview tariff", err)
		return
	}
	ok(c, res)
}
