package repository

import (
	"context"
	"fmt"

	"github.com/langchou/meterbook/internal/models"
)

// 报告周期
const (
	PeriodMonth = "month"
	PeriodYear  = "year"
	PeriodAll   = "all"
)

// ReportRepository 用电报告查询
type ReportRepository struct {
	db *DB
}

// NewReportRepository 创建报告仓库
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// UsageByPeriod 按周期聚合用电数据
// month: 指定年月按天分组；year: 指定年份按月分组；all: 按年月分组
func (r *ReportRepository) UsageByPeriod(ctx context.Context, userID int64, period string, year, month int) ([]*models.UsagePeriod, error) {
	var (
		label  string
		filter string
		args   = []any{userID}
	)

	switch period {
	case PeriodYear:
		label = `to_char(reading_date, 'YYYY-MM')`
		filter = `AND EXTRACT(YEAR FROM reading_date) = $2`
		args = append(args, year)
	case PeriodAll:
		label = `to_char(reading_date, 'YYYY-MM')`
	default:
		label = `to_char(reading_date, 'YYYY-MM-DD')`
		filter = `AND EXTRACT(YEAR FROM reading_date) = $2 AND EXTRACT(MONTH FROM reading_date) = $3`
		args = append(args, year, month)
	}

	query := fmt.Sprintf(`
		SELECT %s AS period,
			COALESCE(SUM(usage_kwh), 0),
			COALESCE(SUM(total_cost), 0),
			COUNT(*),
			COALESCE(AVG(usage_kwh), 0),
			COALESCE(MIN(usage_kwh), 0),
			COALESCE(MAX(usage_kwh), 0)
		FROM meter_readings
		WHERE user_id = $1 %s
		GROUP BY period
		ORDER BY period
	`, label, filter)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage by period: %w", err)
	}
	defer rows.Close()

	data := []*models.UsagePeriod{}
	for rows.Next() {
		p := &models.UsagePeriod{}
		if err := rows.Scan(
			&p.Period,
			&p.TotalUsage,
			&p.TotalCost,
			&p.ReadingCount,
			&p.AvgUsage,
			&p.MinUsage,
			&p.MaxUsage,
		); err != nil {
			return nil, fmt.Errorf("scan usage period: %w", err)
		}
		data = append(data, p)
	}

	return data, rows.Err()
}

// Statistics 全部历史统计
func (r *ReportRepository) Statistics(ctx context.Context, userID int64) (*models.UsageStatistics, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(usage_kwh), 0),
			COALESCE(SUM(total_cost), 0),
			COALESCE(AVG(usage_kwh), 0),
			COALESCE(MIN(usage_kwh), 0),
			COALESCE(MAX(usage_kwh), 0),
			MIN(reading_date),
			MAX(reading_date)
		FROM meter_readings
		WHERE user_id = $1
	`
	s := &models.UsageStatistics{}
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&s.TotalReadings,
		&s.TotalUsageAllTime,
		&s.TotalCostAllTime,
		&s.AvgUsageAllTime,
		&s.MinUsageAllTime,
		&s.MaxUsageAllTime,
		&s.FirstReadingDate,
		&s.LastReadingDate,
	)
	if err != nil {
		return nil, fmt.Errorf("query usage statistics: %w", err)
	}
	return s, nil
}
