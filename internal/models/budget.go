package models

import "time"

// BudgetStatus 预算状态
type BudgetStatus string

const (
	BudgetOnTrack     BudgetStatus = "on_track"
	BudgetOverBudget  BudgetStatus = "over_budget"
	BudgetUnderBudget BudgetStatus = "under_budget"
)

// AlertType 预算提醒类型
type AlertType string

const (
	AlertUsageWarning   AlertType = "usage_warning"
	AlertCostWarning    AlertType = "cost_warning"
	AlertBudgetExceeded AlertType = "budget_exceeded"
)

// BudgetPlan 月度预算计划
type BudgetPlan struct {
	ID             int64      `json:"id" db:"id"`
	UserID         int64      `json:"user_id" db:"user_id"`
	Name           string     `json:"name" db:"name"`
	MonthlyBudget  float64    `json:"monthly_budget" db:"monthly_budget"`
	TargetUsageKwh float64    `json:"target_usage_kwh" db:"target_usage_kwh"`
	StartDate      time.Time  `json:"start_date" db:"start_date"`
	EndDate        *time.Time `json:"end_date,omitempty" db:"end_date"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	Description    *string    `json:"description,omitempty" db:"description"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// BudgetTracking 某月预算执行情况
type BudgetTracking struct {
	ID              int64        `json:"id" db:"id"`
	BudgetPlanID    int64        `json:"budget_plan_id" db:"budget_plan_id"`
	MonthYear       string       `json:"month_year" db:"month_year"` // YYYY-MM
	ActualUsageKwh  float64      `json:"actual_usage_kwh" db:"actual_usage_kwh"`
	ActualCost      float64      `json:"actual_cost" db:"actual_cost"`
	BudgetRemaining float64      `json:"budget_remaining" db:"budget_remaining"`
	UsagePercentage float64      `json:"usage_percentage" db:"usage_percentage"`
	CostPercentage  float64      `json:"cost_percentage" db:"cost_percentage"`
	Status          BudgetStatus `json:"status" db:"status"`
	Notes           *string      `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`

	// 关联计划信息（列表查询时填充）
	BudgetPlanName string  `json:"budget_plan_name,omitempty" db:"budget_plan_name"`
	MonthlyBudget  float64 `json:"monthly_budget,omitempty" db:"monthly_budget"`
	TargetUsageKwh float64 `json:"target_usage_kwh,omitempty" db:"target_usage_kwh"`
}

// BudgetAlert 预算提醒配置
type BudgetAlert struct {
	ID                  int64     `json:"id" db:"id"`
	BudgetPlanID        int64     `json:"budget_plan_id" db:"budget_plan_id"`
	AlertType           AlertType `json:"alert_type" db:"alert_type"`
	ThresholdPercentage float64   `json:"threshold_percentage" db:"threshold_percentage"`
	IsEnabled           bool      `json:"is_enabled" db:"is_enabled"`
	Message             *string   `json:"message,omitempty" db:"message"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
	BudgetPlanName      string    `json:"budget_plan_name,omitempty" db:"budget_plan_name"`
}
