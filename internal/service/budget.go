package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/meterbook/internal/budget"
	"github.com/langchou/meterbook/internal/models"
	"github.com/langchou/meterbook/internal/repository"
	"github.com/langchou/meterbook/internal/state"
	"github.com/langchou/meterbook/pkg/ws"
)

// 日期格式
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// PlanInput 创建或更新预算计划的请求
type PlanInput struct {
	Name           string  `json:"name"`
	MonthlyBudget  float64 `json:"monthly_budget"`
	TargetUsageKwh float64 `json:"target_usage_kwh"`
	StartDate      string  `json:"start_date"`
	EndDate        *string `json:"end_date"`
	IsActive       *bool   `json:"is_active"`
	Description    *string `json:"description"`
}

func (in PlanInput) apply(p *models.BudgetPlan) error {
	if strings.TrimSpace(in.Name) == "" || in.StartDate == "" {
		return invalid("name, monthly budget, target usage and start date are required")
	}
	if in.MonthlyBudget <= 0 {
		return invalid("monthly budget must be greater than 0")
	}
	if in.TargetUsageKwh <= 0 {
		return invalid("target usage must be greater than 0")
	}

	start, err := time.Parse(DateLayout, in.StartDate)
	if err != nil {
		return invalid("start_date must be formatted as YYYY-MM-DD")
	}
	var end *time.Time
	if in.EndDate != nil && *in.EndDate != "" {
		t, err := time.Parse(DateLayout, *in.EndDate)
		if err != nil {
			return invalid("end_date must be formatted as YYYY-MM-DD")
		}
		if t.Before(start) {
			return invalid("end_date must not be before start_date")
		}
		end = &t
	}

	p.Name = strings.TrimSpace(in.Name)
	p.MonthlyBudget = in.MonthlyBudget
	p.TargetUsageKwh = in.TargetUsageKwh
	p.StartDate = start
	p.EndDate = end
	p.Description = in.Description
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	return nil
}

// TrackInput 手动记录某月预算执行情况
type TrackInput struct {
	BudgetPlanID   int64   `json:"budget_plan_id"`
	MonthYear      string  `json:"month_year"`
	ActualUsageKwh float64 `json:"actual_usage_kwh"`
	ActualCost     float64 `json:"actual_cost"`
	Notes          *string `json:"notes"`
}

// AlertUpdate 提醒的部分更新
type AlertUpdate struct {
	ID                  int64    `json:"id"`
	ThresholdPercentage *float64 `json:"threshold_percentage"`
	IsEnabled           *bool    `json:"is_enabled"`
	Message             *string  `json:"message"`
}

// StatusChange 推送给前端的预算状态变化
type StatusChange struct {
	BudgetPlanID   int64               `json:"budget_plan_id"`
	BudgetPlanName string              `json:"budget_plan_name"`
	MonthYear      string              `json:"month_year"`
	From           models.BudgetStatus `json:"from"`
	To             models.BudgetStatus `json:"to"`
	CostPercentage float64             `json:"cost_percentage"`
}

// BudgetService 预算服务
type BudgetService struct {
	logger       *zap.Logger
	store        BudgetStore
	readings     ReadingStore
	notifier     Notifier
	stateManager *state.Manager
	now          func() time.Time

	mu     sync.Mutex
	owners map[int64]int64           // planID -> userID
	fired  map[string]map[int64]bool // 月份 -> 已推送的提醒
}

// NewBudgetService 创建预算服务
func NewBudgetService(logger *zap.Logger, store BudgetStore, readings ReadingStore, notifier Notifier) *BudgetService {
	svc := &BudgetService{
		logger:   logger,
		store:    store,
		readings: readings,
		notifier: orNop(notifier),
		now:      time.Now,
		owners:   make(map[int64]int64),
		fired:    make(map[string]map[int64]bool),
	}

	// 创建状态管理器
	svc.stateManager = state.NewManager(svc.onStateChange)
	return svc
}

// onStateChange 状态机回调
func (s *BudgetService) onStateChange(planID int64, from, to string) {
	s.logger.Info("Budget status changed",
		zap.Int64("budget_plan_id", planID),
		zap.String("from", from),
		zap.String("to", to),
	)
}

// CreatePlan 创建预算计划及默认提醒
func (s *BudgetService) CreatePlan(ctx context.Context, userID int64, in PlanInput) (*models.BudgetPlan, error) {
	p := &models.BudgetPlan{UserID: userID, IsActive: true}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := s.store.CreatePlan(ctx, p, budget.DefaultAlerts(0)); err != nil {
		return nil, err
	}

	s.logger.Info("Budget plan created", zap.Int64("budget_plan_id", p.ID), zap.Int64("user_id", userID))
	return p, nil
}

// GetPlan 获取预算计划
func (s *BudgetService) GetPlan(ctx context.Context, userID, id int64) (*models.BudgetPlan, error) {
	return s.store.GetPlan(ctx, userID, id)
}

// ListPlans 获取预算计划列表
func (s *BudgetService) ListPlans(ctx context.Context, userID int64) ([]*models.BudgetPlan, error) {
	return s.store.ListPlans(ctx, userID)
}

// UpdatePlan 更新预算计划
func (s *BudgetService) UpdatePlan(ctx context.Context, userID, id int64, in PlanInput) (*models.BudgetPlan, error) {
	p, err := s.store.GetPlan(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := s.store.UpdatePlan(ctx, p); err != nil {
		return nil, err
	}
	if !p.IsActive {
		s.forget(p.ID)
	}
	return p, nil
}

// DeletePlan 删除预算计划
func (s *BudgetService) DeletePlan(ctx context.Context, userID, id int64) error {
	if err := s.store.DeletePlan(ctx, userID, id); err != nil {
		return err
	}
	s.forget(id)
	s.logger.Info("Budget plan deleted", zap.Int64("budget_plan_id", id), zap.Int64("user_id", userID))
	return nil
}

func (s *BudgetService) forget(planID int64) {
	s.stateManager.Remove(planID)
	s.mu.Lock()
	delete(s.owners, planID)
	s.mu.Unlock()
}

// Track 手动写入某月实际用电与费用
func (s *BudgetService) Track(ctx context.Context, userID int64, in TrackInput) (*models.BudgetTracking, error) {
	if in.BudgetPlanID == 0 || in.MonthYear == "" {
		return nil, invalid("budget_plan_id and month_year are required")
	}
	if _, err := time.Parse(MonthLayout, in.MonthYear); err != nil {
		return nil, invalid("month_year must be formatted as YYYY-MM")
	}
	if in.ActualUsageKwh < 0 || in.ActualCost < 0 {
		return nil, invalid("actual usage and cost must not be negative")
	}

	plan, err := s.store.GetPlan(ctx, userID, in.BudgetPlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("active budget plan: %w", ErrNotFound)
	}

	return s.record(ctx, plan, in.MonthYear, in.ActualUsageKwh, in.ActualCost, in.Notes)
}

// Refresh 根据当月读数重新计算用户所有启用计划的预算执行情况
func (s *BudgetService) Refresh(ctx context.Context, userID int64, month time.Time) error {
	plans, err := s.store.ActivePlans(ctx, userID)
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		return nil
	}

	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	usage, cost, err := s.readings.SumBetween(ctx, userID, from, to)
	if err != nil {
		return err
	}

	monthYear := from.Format(MonthLayout)
	var errs []error
	for _, plan := range plans {
		if _, err := s.record(ctx, plan, monthYear, usage, cost, nil); err != nil {
			errs = append(errs, fmt.Errorf("plan %d: %w", plan.ID, err))
		}
	}
	return errors.Join(errs...)
}

// record 评估、保存并推进状态机
func (s *BudgetService) record(ctx context.Context, plan *models.BudgetPlan, monthYear string, usage, cost float64, notes *string) (*models.BudgetTracking, error) {
	eval := budget.Evaluate(usage, cost, *plan)
	t := eval.ToTracking(plan.ID, monthYear, notes)
	if err := s.store.UpsertTracking(ctx, t); err != nil {
		return nil, err
	}
	t.BudgetPlanName = plan.Name
	t.MonthlyBudget = plan.MonthlyBudget
	t.TargetUsageKwh = plan.TargetUsageKwh

	s.mu.Lock()
	s.owners[plan.ID] = plan.UserID
	s.mu.Unlock()

	// 只有当前月份的记录驱动状态机和提醒推送
	if monthYear != s.now().Format(MonthLayout) {
		return t, nil
	}

	machine := s.stateManager.GetOrCreate(plan.ID, t.Status)
	from := machine.Current()
	changed, err := machine.Apply(t)
	if err != nil {
		s.logger.Warn("Failed to apply budget status", zap.Int64("budget_plan_id", plan.ID), zap.Error(err))
	}
	if changed {
		s.notifier.SendToUser(plan.UserID, ws.MsgTypeBudgetStatus, StatusChange{
			BudgetPlanID:   plan.ID,
			BudgetPlanName: plan.Name,
			MonthYear:      monthYear,
			From:           from,
			To:             t.Status,
			CostPercentage: t.CostPercentage,
		})
	}

	s.fireAlerts(ctx, plan, monthYear, eval)
	return t, nil
}

// fireAlerts 推送本月首次达到阈值的提醒
func (s *BudgetService) fireAlerts(ctx context.Context, plan *models.BudgetPlan, monthYear string, eval budget.Evaluation) {
	alerts, err := s.store.ListAlerts(ctx, plan.UserID, plan.ID)
	if err != nil {
		s.logger.Warn("Failed to load budget alerts", zap.Int64("budget_plan_id", plan.ID), zap.Error(err))
		return
	}

	for _, a := range budget.TriggeredAlerts(eval, alerts) {
		s.mu.Lock()
		sent := s.markFired(monthYear)
		seen := sent[a.ID]
		sent[a.ID] = true
		s.mu.Unlock()
		if seen {
			continue
		}

		s.logger.Info("Budget alert triggered",
			zap.Int64("budget_plan_id", plan.ID),
			zap.String("alert_type", string(a.AlertType)),
			zap.Float64("threshold", a.ThresholdPercentage),
		)
		s.notifier.SendToUser(plan.UserID, ws.MsgTypeBudgetAlert, a)
	}
}

// markFired 返回该月的已推送集合并清理更早的月份，调用方需持有 s.mu
func (s *BudgetService) markFired(monthYear string) map[int64]bool {
	for month := range s.fired {
		if month < monthYear {
			delete(s.fired, month)
		}
	}
	sent, ok := s.fired[monthYear]
	if !ok {
		sent = make(map[int64]bool)
		s.fired[monthYear] = sent
	}
	return sent
}

// ListTracking 获取预算跟踪记录
func (s *BudgetService) ListTracking(ctx context.Context, userID int64, f repository.TrackingFilter) ([]*models.BudgetTracking, error) {
	if f.MonthYear != "" {
		if _, err := time.Parse(MonthLayout, f.MonthYear); err != nil {
			return nil, invalid("month_year must be formatted as YYYY-MM")
		}
	}
	return s.store.ListTracking(ctx, userID, f)
}

// ListAlerts 获取已启用的提醒
func (s *BudgetService) ListAlerts(ctx context.Context, userID, planID int64) ([]*models.BudgetAlert, error) {
	return s.store.ListAlerts(ctx, userID, planID)
}

// UpdateAlert 部分更新提醒
func (s *BudgetService) UpdateAlert(ctx context.Context, userID int64, in AlertUpdate) (*models.BudgetAlert, error) {
	if in.ID == 0 {
		return nil, invalid("alert id is required")
	}
	if in.ThresholdPercentage == nil && in.IsEnabled == nil && in.Message == nil {
		return nil, invalid("no fields to update")
	}
	if in.ThresholdPercentage != nil {
		if err := budget.ValidateThreshold(*in.ThresholdPercentage); err != nil {
			return nil, invalid(err.Error())
		}
	}

	a, err := s.store.GetAlert(ctx, userID, in.ID)
	if err != nil {
		return nil, err
	}
	if in.ThresholdPercentage != nil {
		a.ThresholdPercentage = *in.ThresholdPercentage
	}
	if in.IsEnabled != nil {
		a.IsEnabled = *in.IsEnabled
	}
	if in.Message != nil {
		a.Message = in.Message
	}

	if err := s.store.UpdateAlert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Snapshots 用户各计划的当前状态（WebSocket 初始数据）
func (s *BudgetService) Snapshots(userID int64) []*state.Snapshot {
	s.mu.Lock()
	owners := make(map[int64]int64, len(s.owners))
	for planID, owner := range s.owners {
		owners[planID] = owner
	}
	s.mu.Unlock()

	snaps := []*state.Snapshot{}
	for planID, snap := range s.stateManager.GetAllSnapshots() {
		if owners[planID] == userID {
			snaps = append(snaps, snap)
		}
	}
	return snaps
}
