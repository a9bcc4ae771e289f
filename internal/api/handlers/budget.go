package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/meterbook/internal/repository"
	"github.com/langchou/meterbook/internal/service"
)

// TrackingQuery 预算跟踪查询参数
type TrackingQuery struct {
	BudgetPlanID int64  `form:"budget_plan_id" binding:"omitempty,min=1"`
	MonthYear    string `form:"month_year" binding:"omitempty,yearmonth"`
}

// AlertQuery 提醒查询参数
type AlertQuery struct {
	BudgetPlanID int64 `form:"budget_plan_id" binding:"omitempty,min=1"`
}

// ListBudgetPlans 获取预算计划列表
func (h *Handler) ListBudgetPlans(c *gin.Context) {
	plans, err := h.budgetService.ListPlans(c.Request.Context(), userID(c))
	if err != nil {
		h.handleError(c, "list budget plans", err)
		return
	}
	ok(c, plans)
}

// GetBudgetPlan 获取预算计划
func (h *Handler) GetBudgetPlan(c *gin.Context) {
	id, valid := parseID(c, "budget plan")
	if !valid {
		return
	}

	p, err := h.budgetService.GetPlan(c.Request.Context(), userID(c), id)
	if err != nil {
		h.handleError(c, "get budget plan", err)
		return
	}
	ok(c, p)
}

// CreateBudgetPlan 新建预算计划
func (h *Handler) CreateBudgetPlan(c *gin.Context) {
	var in service.PlanInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}

	p, err := h.budgetService.CreatePlan(c.Request.Context(), userID(c), in)
	if err != nil {
		h.handleError(c, "create budget plan", err)
		return
	}
	created(c, p)
}

// UpdateBudgetPlan 更新预算计划
func (h *Handler) UpdateBudgetPlan(c *gin.Context) {
	id, valid := parseID(c, "budget plan")
	if !valid {
		return
	}

	var in service.PlanInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}

	p, err := h.budgetService.UpdatePlan(c.Request.Context(), userID(c), id, in)
	if err != nil {
		h.handleError(c, "update budget plan", err)
		return
	}
	ok(c, p)
}

// DeleteBudgetPlan 删除预算计划
func (h *Handler) DeleteBudgetPlan(c *gin.Context) {
	id, valid := parseID(c, "budget plan")
	if !valid {
		return
	}

	if err := h.budgetService.DeletePlan(c.Request.Context(), userID(c), id); err != nil {
		h.handleError(c, "delete budget plan", err)
		return
	}
	message(c, "Budget plan deleted")
}

// ListBudgetTracking 获取预算跟踪记录
// GET /api/budget-tracking?budget_plan_id=&month_year=YYYY-MM
func (h *Handler) ListBudgetTracking(c *gin.Context) {
	var q TrackingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	list, err := h.budgetService.ListTracking(c.Request.Context(), userID(c), repository.TrackingFilter{
		PlanID:    q.BudgetPlanID,
		MonthYear: q.MonthYear,
	})
	if err != nil {
		h.handleError(c, "list budget tracking", err)
		return
	}
	ok(c, list)
}

// TrackBudget 写入某月预算执行情况
func (h *Handler) TrackBudget(c *gin.Context) {
	var in service.TrackInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}

	t, err := h.budgetService.Track(c.Request.Context(), userID(c), in)
	if err != nil {
		h.handleError(c, "track budget", err)
		return
	}

	h.logger.Debug("Budget tracking recorded",
		zap.Int64("budget_plan_id", t.BudgetPlanID),
		zap.String("month_year", t.MonthYear),
		zap.String("status", string(t.Status)),
	)
	ok(c, t)
}

// ListBudgetAlerts 获取已启用的提醒
func (h *Handler) ListBudgetAlerts(c *gin.Context) {
	var q AlertQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	alerts, err := h.budgetService.ListAlerts(c.Request.Context(), userID(c), q.BudgetPlanID)
	if err != nil {
		h.handleError(c, "list budget alerts", err)
		return
	}
	ok(c, alerts)
}

// UpdateBudgetAlert 部分更新提醒
func (h *Handler) UpdateBudgetAlert(c *gin.Context) {
	var in service.AlertUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}

	a, err := h.budgetService.UpdateAlert(c.Request.Context(), userID(c), in)
	if err != nil {
		h.handleError(c, "update budget alert", err)
		return
	}
	ok(c, a)
}
