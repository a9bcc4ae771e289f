package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/meterbook/internal/models"
	"github.com/langchou/meterbook/internal/repository"
)

// RecentReadingLimit 报告中最近读数条数
const RecentReadingLimit = 10

// 趋势方向
const (
	ChangeIncrease = "increase"
	ChangeDecrease = "decrease"
	ChangeStable   = "stable"
)

// ReportService 用电报告服务
type ReportService struct {
	logger   *zap.Logger
	store    ReportStore
	readings ReadingStore
	now      func() time.Time
}

// NewReportService 创建报告服务
func NewReportService(logger *zap.Logger, store ReportStore, readings ReadingStore) *ReportService {
	return &ReportService{
		logger:   logger,
		store:    store,
		readings: readings,
		now:      time.Now,
	}
}

// NormalizePeriod 未知周期按 month 处理
func NormalizePeriod(period string) string {
	switch period {
	case repository.PeriodYear, repository.PeriodAll:
		return period
	default:
		return repository.PeriodMonth
	}
}

// TrendOf 计算环比变化；上期为 0 时变化记为 0
func TrendOf(current, previous float64) models.Trend {
	t := models.Trend{Current: current, Previous: previous}
	if previous > 0 {
		t.Change = (current - previous) / previous * 100
	}
	switch {
	case t.Change > 0:
		t.ChangeType = ChangeIncrease
	case t.Change < 0:
		t.ChangeType = ChangeDecrease
	default:
		t.ChangeType = ChangeStable
	}
	return t
}

// Build 生成报告；year/month 为 0 时使用当前年月
func (s *ReportService) Build(ctx context.Context, userID int64, period string, year, month int) (*models.Report, error) {
	now := s.now()
	if year <= 0 {
		year = now.Year()
	}
	if month < 1 || month > 12 {
		month = int(now.Month())
	}
	period = NormalizePeriod(period)

	usageData, err := s.store.UsageByPeriod(ctx, userID, period, year, month)
	if err != nil {
		return nil, err
	}

	recent, err := s.readings.List(ctx, userID, RecentReadingLimit, 0)
	if err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []*models.MeterReading{}
	}

	stats, err := s.store.Statistics(ctx, userID)
	if err != nil {
		return nil, err
	}

	trends, err := s.trends(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	return &models.Report{
		Period:         period,
		Year:           year,
		Month:          month,
		UsageData:      usageData,
		RecentReadings: recent,
		Statistics:     *stats,
		Trends:         trends,
	}, nil
}

// trends 本月与上月对比
func (s *ReportService) trends(ctx context.Context, userID int64, now time.Time) (models.Trends, error) {
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonth := thisMonth.AddDate(0, -1, 0)

	curUsage, curCost, err := s.readings.SumBetween(ctx, userID, thisMonth, thisMonth.AddDate(0, 1, 0))
	if err != nil {
		return models.Trends{}, err
	}
	prevUsage, prevCost, err := s.readings.SumBetween(ctx, userID, lastMonth, thisMonth)
	if err != nil {
		return models.Trends{}, err
	}

	return models.Trends{
		Usage: TrendOf(curUsage, prevUsage),
		Cost:  TrendOf(curCost, prevCost),
	}, nil
}
