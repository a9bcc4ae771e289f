package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/meterbook/internal/models"
	"github.com/langchou/meterbook/pkg/ws"
)

// DefaultReadingLimit 读数列表默认条数
const DefaultReadingLimit = 50

// ReadingInput 创建或更新读数的请求
type ReadingInput struct {
	ReadingDate string  `json:"reading_date"`
	MeterValue  float64 `json:"meter_value"`
	Notes       *string `json:"notes"`
}

func (in ReadingInput) parse() (time.Time, error) {
	if in.ReadingDate == "" || in.MeterValue == 0 {
		return time.Time{}, invalid("reading date and meter value are required")
	}
	if in.MeterValue < 0 || math.IsNaN(in.MeterValue) || math.IsInf(in.MeterValue, 0) {
		return time.Time{}, invalid("meter value must be a positive number")
	}
	date, err := time.Parse(DateLayout, in.ReadingDate)
	if err != nil {
		return time.Time{}, invalid("reading_date must be formatted as YYYY-MM-DD")
	}
	return date, nil
}

// BudgetRefresher 读数变化后刷新预算执行情况
type BudgetRefresher interface {
	Refresh(ctx context.Context, userID int64, month time.Time) error
}

// ReadingService 电表读数服务
type ReadingService struct {
	logger   *zap.Logger
	store    ReadingStore
	tariffs  *TariffService
	budgets  BudgetRefresher
	notifier Notifier
}

// NewReadingService 创建读数服务
func NewReadingService(logger *zap.Logger, store ReadingStore, tariffs *TariffService, budgets BudgetRefresher, notifier Notifier) *ReadingService {
	return &ReadingService{
		logger:   logger,
		store:    store,
		tariffs:  tariffs,
		budgets:  budgets,
		notifier: orNop(notifier),
	}
}

// previousValue 读取上一条读数的表值，不存在时为 0
func previousValue(m *models.MeterReading, err error) (float64, error) {
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return m.MeterValue, nil
}

// price 计算用电量与费用，并生成计费明细
func (s *ReadingService) price(ctx context.Context, m *models.MeterReading) error {
	m.UsageKwh = math.Max(0, m.MeterValue-m.PreviousReading)

	schedule, err := s.tariffs.Active(ctx)
	if err != nil {
		return err
	}

	result, err := s.tariffs.Calculate(m.UsageKwh, *schedule)
	if err != nil {
		return err
	}

	m.TotalCost = result.TotalCost
	m.BillingDetails = make([]*models.BillingDetail, 0, len(result.Breakdown))
	for _, item := range result.Breakdown {
		m.BillingDetails = append(m.BillingDetails, &models.BillingDetail{
			BlockNumber: item.Block,
			KwhUsed:     item.Kwh,
			RatePerKwh:  item.Rate,
			Subtotal:    item.Subtotal,
		})
	}
	return nil
}

// Create 新增读数：以最近一次读数为基准计算用电量与费用
func (s *ReadingService) Create(ctx context.Context, userID int64, in ReadingInput) (*models.MeterReading, error) {
	date, err := in.parse()
	if err != nil {
		return nil, err
	}

	prev, err := previousValue(s.store.Latest(ctx, userID))
	if err != nil {
		return nil, err
	}

	m := &models.MeterReading{
		UserID:          userID,
		ReadingDate:     date,
		MeterValue:      in.MeterValue,
		PreviousReading: prev,
		Notes:           in.Notes,
	}
	if err := s.price(ctx, m); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("Meter reading created",
		zap.Int64("reading_id", m.ID),
		zap.Int64("user_id", userID),
		zap.Float64("usage_kwh", m.UsageKwh),
		zap.Float64("total_cost", m.TotalCost),
	)
	s.afterWrite(ctx, userID, ws.MsgTypeReadingCreated, m, date)
	return m, nil
}

// Update 修改读数：以该日期之前的最近读数为基准重新计算，并整体替换计费明细
func (s *ReadingService) Update(ctx context.Context, userID, id int64, in ReadingInput) (*models.MeterReading, error) {
	date, err := in.parse()
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	prev, err := previousValue(s.store.PreviousBefore(ctx, userID, id, date))
	if err != nil {
		return nil, err
	}

	m := &models.MeterReading{
		ID:              id,
		UserID:          userID,
		ReadingDate:     date,
		MeterValue:      in.MeterValue,
		PreviousReading: prev,
		Notes:           in.Notes,
	}
	if err := s.price(ctx, m); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("Meter reading updated", zap.Int64("reading_id", id), zap.Int64("user_id", userID))
	s.afterWrite(ctx, userID, ws.MsgTypeReadingUpdated, m, date)
	if !sameMonth(existing.ReadingDate, date) {
		s.refresh(ctx, userID, existing.ReadingDate)
	}
	return m, nil
}

// Delete 删除读数
func (s *ReadingService) Delete(ctx context.Context, userID, id int64) error {
	existing, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.logger.Info("Meter reading deleted", zap.Int64("reading_id", id), zap.Int64("user_id", userID))
	s.afterWrite(ctx, userID, ws.MsgTypeReadingDeleted, map[string]int64{"id": id}, existing.ReadingDate)
	return nil
}

// Get 获取读数及计费明细
func (s *ReadingService) Get(ctx context.Context, userID, id int64) (*models.MeterReading, error) {
	return s.store.GetByID(ctx, userID, id)
}

// List 分页获取读数（最新在前）
func (s *ReadingService) List(ctx context.Context, userID int64, limit, offset int) ([]*models.MeterReading, int64, error) {
	if limit <= 0 {
		limit = DefaultReadingLimit
	}
	if offset < 0 {
		offset = 0
	}

	readings, err := s.store.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if readings == nil {
		readings = []*models.MeterReading{}
	}
	return readings, total, nil
}

// afterWrite 推送变化并刷新当月预算
func (s *ReadingService) afterWrite(ctx context.Context, userID int64, msgType string, payload interface{}, date time.Time) {
	s.notifier.SendToUser(userID, msgType, payload)
	s.refresh(ctx, userID, date)
}

func (s *ReadingService) refresh(ctx context.Context, userID int64, month time.Time) {
	if s.budgets == nil {
		return
	}
	if err := s.budgets.Refresh(ctx, userID, month); err != nil {
		s.logger.Warn("Failed to refresh budget tracking", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
