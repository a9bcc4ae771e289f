package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/meterbook/internal/models"
)

const planColumns = `id, user_id, name, monthly_budget, target_usage_kwh, start_date, end_date, is_active, description, created_at, updated_at`

// BudgetRepository 预算数据仓库
type BudgetRepository struct {
	db *DB
}

// NewBudgetRepository 创建预算仓库
func NewBudgetRepository(db *DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

func scanPlan(row pgx.Row) (*models.BudgetPlan, error) {
	p := &models.BudgetPlan{}
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.MonthlyBudget,
		&p.TargetUsageKwh,
		&p.StartDate,
		&p.EndDate,
		&p.IsActive,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *BudgetRepository) queryPlans(ctx context.Context, query string, args ...any) ([]*models.BudgetPlan, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budget plans: %w", err)
	}
	defer rows.Close()

	var plans []*models.BudgetPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// CreatePlan 在同一事务中创建预算计划及其提醒
func (r *BudgetRepository) CreatePlan(ctx context.Context, p *models.BudgetPlan, alerts []*models.BudgetAlert) error {
	now := time.Now()
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO budget_plans (user_id, name, monthly_budget, target_usage_kwh, start_date, end_date, is_active, description, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`
		err := tx.QueryRow(ctx, query,
			p.UserID,
			p.Name,
			p.MonthlyBudget,
			p.TargetUsageKwh,
			p.StartDate,
			p.EndDate,
			p.IsActive,
			p.Description,
			now,
			now,
		).Scan(&p.ID)
		if err != nil {
			return err
		}

		alertQuery := `
			INSERT INTO budget_alerts (budget_plan_id, alert_type, threshold_percentage, is_enabled, message, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`
		for _, a := range alerts {
			a.BudgetPlanID = p.ID
			a.CreatedAt = now
			a.UpdatedAt = now
			if err := tx.QueryRow(ctx, alertQuery,
				a.BudgetPlanID,
				a.AlertType,
				a.ThresholdPercentage,
				a.IsEnabled,
				a.Message,
				now,
				now,
			).Scan(&a.ID); err != nil {
				return fmt.Errorf("insert budget alert: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert budget plan: %w", err)
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetPlan 获取用户的预算计划
func (r *BudgetRepository) GetPlan(ctx context.Context, userID, id int64) (*models.BudgetPlan, error) {
	query := `SELECT ` + planColumns + ` FROM budget_plans WHERE id = $1 AND user_id = $2`
	p, err := scanPlan(r.db.Pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		return nil, fmt.Errorf("get budget plan: %w", notFound(err))
	}
	return p, nil
}

// ListPlans 获取用户的预算计划列表
func (r *BudgetRepository) ListPlans(ctx context.Context, userID int64) ([]*models.BudgetPlan, error) {
	query := `SELECT ` + planColumns + ` FROM budget_plans WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryPlans(ctx, query, userID)
}

// ActivePlans 获取用户所有启用的预算计划
func (r *BudgetRepository) ActivePlans(ctx context.Context, userID int64) ([]*models.BudgetPlan, error) {
	query := `SELECT ` + planColumns + ` FROM budget_plans WHERE user_id = $1 AND is_active ORDER BY created_at DESC`
	return r.queryPlans(ctx, query, userID)
}

// UpdatePlan 更新预算计划
func (r *BudgetRepository) UpdatePlan(ctx context.Context, p *models.BudgetPlan) error {
	p.UpdatedAt = time.Now()
	query := `
		UPDATE budget_plans SET
			name = $1,
			monthly_budget = $2,
			target_usage_kwh = $3,
			start_date = $4,
			end_date = $5,
			is_active = $6,
			description = $7,
			updated_at = $8
		WHERE id = $9 AND user_id = $10
		RETURNING created_at
	`
	err := r.db.Pool.QueryRow(ctx, query,
		p.Name,
		p.MonthlyBudget,
		p.TargetUsageKwh,
		p.StartDate,
		p.EndDate,
		p.IsActive,
		p.Description,
		p.UpdatedAt,
		p.ID,
		p.UserID,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("update budget plan: %w", notFound(err))
	}
	return nil
}

// DeletePlan 删除预算计划（跟踪记录与提醒级联删除）
func (r *BudgetRepository) DeletePlan(ctx context.Context, userID, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM budget_plans WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete budget plan: %w", ErrNotFound)
	}
	return nil
}

// UpsertTracking 写入或覆盖某计划某月的跟踪记录
func (r *BudgetRepository) UpsertTracking(ctx context.Context, t *models.BudgetTracking) error {
	now := time.Now()
	query := `
		INSERT INTO budget_tracking
		(budget_plan_id, month_year, actual_usage_kwh, actual_cost, budget_remaining, usage_percentage, cost_percentage, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (budget_plan_id, month_year) DO UPDATE SET
			actual_usage_kwh = EXCLUDED.actual_usage_kwh,
			actual_cost = EXCLUDED.actual_cost,
			budget_remaining = EXCLUDED.budget_remaining,
			usage_percentage = EXCLUDED.usage_percentage,
			cost_percentage = EXCLUDED.cost_percentage,
			status = EXCLUDED.status,
			notes = COALESCE(EXCLUDED.notes, budget_tracking.notes),
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`
	err := r.db.Pool.QueryRow(ctx, query,
		t.BudgetPlanID,
		t.MonthYear,
		t.ActualUsageKwh,
		t.ActualCost,
		t.BudgetRemaining,
		t.UsagePercentage,
		t.CostPercentage,
		t.Status,
		t.Notes,
		now,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert budget tracking: %w", err)
	}
	return nil
}

// TrackingFilter 跟踪记录查询条件
type TrackingFilter struct {
	PlanID    int64
	MonthYear string
}

// ListTracking 获取用户的预算跟踪记录（最新月份在前）
func (r *BudgetRepository) ListTracking(ctx context.Context, userID int64, f TrackingFilter) ([]*models.BudgetTracking, error) {
	query := `
		SELECT bt.id, bt.budget_plan_id, bt.month_year, bt.actual_usage_kwh, bt.actual_cost, bt.budget_remaining,
			bt.usage_percentage, bt.cost_percentage, bt.status, bt.notes, bt.created_at, bt.updated_at,
			bp.name, bp.monthly_budget, bp.target_usage_kwh
		FROM budget_tracking bt
		JOIN budget_plans bp ON bp.id = bt.budget_plan_id
		WHERE bp.user_id = $1
			AND ($2::bigint = 0 OR bt.budget_plan_id = $2)
			AND ($3::text = '' OR bt.month_year = $3)
		ORDER BY bt.month_year DESC, bt.updated_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, userID, f.PlanID, f.MonthYear)
	if err != nil {
		return nil, fmt.Errorf("list budget tracking: %w", err)
	}
	defer rows.Close()

	var items []*models.BudgetTracking
	for rows.Next() {
		t := &models.BudgetTracking{}
		if err := rows.Scan(
			&t.ID,
			&t.BudgetPlanID,
			&t.MonthYear,
			&t.ActualUsageKwh,
			&t.ActualCost,
			&t.BudgetRemaining,
			&t.UsagePercentage,
			&t.CostPercentage,
			&t.Status,
			&t.Notes,
			&t.CreatedAt,
			&t.UpdatedAt,
			&t.BudgetPlanName,
			&t.MonthlyBudget,
			&t.TargetUsageKwh,
		); err != nil {
			return nil, fmt.Errorf("scan budget tracking: %w", err)
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const alertSelect = `
	SELECT ba.id, ba.budget_plan_id, ba.alert_type, ba.threshold_percentage, ba.is_enabled, ba.message,
		ba.created_at, ba.updated_at, bp.name
	FROM budget_alerts ba
	JOIN budget_plans bp ON bp.id = ba.budget_plan_id
`

func scanAlert(row pgx.Row) (*models.BudgetAlert, error) {
	a := &models.BudgetAlert{}
	err := row.Scan(
		&a.ID,
		&a.BudgetPlanID,
		&a.AlertType,
		&a.ThresholdPercentage,
		&a.IsEnabled,
		&a.Message,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.BudgetPlanName,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAlerts 获取用户已启用的提醒；planID 为 0 时返回全部计划
func (r *BudgetRepository) ListAlerts(ctx context.Context, userID, planID int64) ([]*models.BudgetAlert, error) {
	query := alertSelect + `
		WHERE bp.user_id = $1 AND ba.is_enabled AND ($2::bigint = 0 OR ba.budget_plan_id = $2)
		ORDER BY ba.alert_type, ba.threshold_percentage
	`
	rows, err := r.db.Pool.Query(ctx, query, userID, planID)
	if err != nil {
		return nil, fmt.Errorf("list budget alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.BudgetAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// GetAlert 获取用户的提醒
func (r *BudgetRepository) GetAlert(ctx context.Context, userID, id int64) (*models.BudgetAlert, error) {
	query := alertSelect + ` WHERE ba.id = $1 AND bp.user_id = $2`
	a, err := scanAlert(r.db.Pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		return nil, fmt.Errorf("get budget alert: %w", notFound(err))
	}
	return a, nil
}

// UpdateAlert 更新提醒配置
func (r *BudgetRepository) UpdateAlert(ctx context.Context, a *models.BudgetAlert) error {
	a.UpdatedAt = time.Now()
	query := `
		UPDATE budget_alerts SET
			threshold_percentage = $1,
			is_enabled = $2,
			message = $3,
			updated_at = $4
		WHERE id = $5
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		a.ThresholdPercentage,
		a.IsEnabled,
		a.Message,
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("update budget alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update budget alert: %w", ErrNotFound)
	}
	return nil
}
