package budget

import (
	"errors"
	"fmt"

	"github.com/langchou/meterbook/internal/models"
)

// 状态阈值（按费用百分比）
const (
	OverBudgetThreshold  = 100.0
	UnderBudgetThreshold = 80.0

	MinAlertThreshold = 0.0
	MaxAlertThreshold = 200.0
)

// ErrInvalidThreshold 提醒阈值超出范围
var ErrInvalidThreshold = errors.New("threshold percentage must be between 0 and 200")

// Evaluation 预算评估结果
type Evaluation struct {
	ActualUsageKwh  float64             `json:"actual_usage_kwh"`
	ActualCost      float64             `json:"actual_cost"`
	BudgetRemaining float64             `json:"budget_remaining"`
	UsagePercentage float64             `json:"usage_percentage"`
	CostPercentage  float64             `json:"cost_percentage"`
	Status          models.BudgetStatus `json:"status"`
}

// Evaluate 根据实际用电量与费用计算预算执行情况
func Evaluate(actualUsageKwh, actualCost float64, plan models.BudgetPlan) Evaluation {
	e := Evaluation{
		ActualUsageKwh:  actualUsageKwh,
		ActualCost:      actualCost,
		BudgetRemaining: plan.MonthlyBudget - actualCost,
	}
	if plan.TargetUsageKwh > 0 {
		e.UsagePercentage = actualUsageKwh / plan.TargetUsageKwh * 100
	}
	if plan.MonthlyBudget > 0 {
		e.CostPercentage = actualCost / plan.MonthlyBudget * 100
	}
	e.Status = StatusFor(e.CostPercentage)
	return e
}

// StatusFor 仅按费用百分比判定状态
func StatusFor(costPercentage float64) models.BudgetStatus {
	switch {
	case costPercentage > OverBudgetThreshold:
		return models.BudgetOverBudget
	case costPercentage < UnderBudgetThreshold:
		return models.BudgetUnderBudget
	default:
		return models.BudgetOnTrack
	}
}

// ToTracking 转换为待保存的月度记录
func (e Evaluation) ToTracking(planID int64, monthYear string, notes *string) *models.BudgetTracking {
	return &models.BudgetTracking{
		BudgetPlanID:    planID,
		MonthYear:       monthYear,
		ActualUsageKwh:  e.ActualUsageKwh,
		ActualCost:      e.ActualCost,
		BudgetRemaining: e.BudgetRemaining,
		UsagePercentage: e.UsagePercentage,
		CostPercentage:  e.CostPercentage,
		Status:          e.Status,
		Notes:           notes,
	}
}

// ValidateThreshold 检查提醒阈值
func ValidateThreshold(pct float64) error {
	if pct < MinAlertThreshold || pct > MaxAlertThreshold {
		return fmt.Errorf("%w: got %.2f", ErrInvalidThreshold, pct)
	}
	return nil
}

// TriggeredAlerts 返回已达到阈值的启用提醒
// usage_warning 按用电百分比，cost_warning / budget_exceeded 按费用百分比
func TriggeredAlerts(e Evaluation, alerts []*models.BudgetAlert) []*models.BudgetAlert {
	var hit []*models.BudgetAlert
	for _, a := range alerts {
		if !a.IsEnabled {
			continue
		}
		pct := e.CostPercentage
		if a.AlertType == models.AlertUsageWarning {
			pct = e.UsagePercentage
		}
		if pct >= a.ThresholdPercentage {
			hit = append(hit, a)
		}
	}
	return hit
}

// DefaultAlerts 新建预算计划时附带的默认提醒
func DefaultAlerts(planID int64) []*models.BudgetAlert {
	msg := func(s string) *string { return &s }
	return []*models.BudgetAlert{
		{
			BudgetPlanID:        planID,
			AlertType:           models.AlertUsageWarning,
			ThresholdPercentage: 80,
			IsEnabled:           true,
			Message:             msg("Penggunaan listrik sudah mencapai 80% dari target bulanan"),
		},
		{
			BudgetPlanID:        planID,
			AlertType:           models.AlertCostWarning,
			ThresholdPercentage: 80,
			IsEnabled:           true,
			Message:             msg("Biaya listrik sudah mencapai 80% dari budget bulanan"),
		},
		{
			BudgetPlanID:        planID,
			AlertType:           models.AlertBudgetExceeded,
			ThresholdPercentage: 100,
			IsEnabled:           true,
			Message:             msg("Budget listrik bulanan sudah terlampaui!"),
		},
	}
}
