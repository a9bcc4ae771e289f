package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/langchou/meterbook/internal/models"
	"github.com/langchou/meterbook/internal/tariff"
	"github.com/langchou/meterbook/pkg/ws"
)

// TariffInput 创建或更新电价方案的请求
type TariffInput struct {
	TariffName      string   `json:"tariff_name"`
	BaseTariff      *float64 `json:"base_tariff"`
	FirstBlockKwh   *float64 `json:"first_block_kwh"`
	FirstBlockRate  *float64 `json:"first_block_rate"`
	SecondBlockKwh  *float64 `json:"second_block_kwh"`
	SecondBlockRate *float64 `json:"second_block_rate"`
	ThirdBlockKwh   *float64 `json:"third_block_kwh"`
	ThirdBlockRate  *float64 `json:"third_block_rate"`
	AdminFee        *float64 `json:"admin_fee"`
	VatPercentage   *float64 `json:"vat_percentage"`
	IsActive        *bool    `json:"is_active"`
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// toSchedule 校验并填充默认值
func (in TariffInput) toSchedule() (*models.TariffSchedule, error) {
	if in.TariffName == "" || in.FirstBlockRate == nil {
		return nil, invalid("tariff name and first block rate are required")
	}

	s := &models.TariffSchedule{
		TariffName:      in.TariffName,
		BaseTariff:      valueOr(in.BaseTariff, 0),
		FirstBlockKwh:   valueOr(in.FirstBlockKwh, 0),
		FirstBlockRate:  *in.FirstBlockRate,
		SecondBlockKwh:  valueOr(in.SecondBlockKwh, 0),
		SecondBlockRate: valueOr(in.SecondBlockRate, 0),
		ThirdBlockKwh:   valueOr(in.ThirdBlockKwh, 0),
		ThirdBlockRate:  valueOr(in.ThirdBlockRate, 0),
		AdminFee:        valueOr(in.AdminFee, 0),
		VatPercentage:   valueOr(in.VatPercentage, tariff.DefaultVatPercentage),
		IsActive:        in.IsActive != nil && *in.IsActive,
	}

	var problems []string
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"first_block_kwh", s.FirstBlockKwh},
		{"first_block_rate", s.FirstBlockRate},
		{"second_block_kwh", s.SecondBlockKwh},
		{"second_block_rate", s.SecondBlockRate},
		{"third_block_kwh", s.ThirdBlockKwh},
		{"third_block_rate", s.ThirdBlockRate},
		{"admin_fee", s.AdminFee},
		{"vat_percentage", s.VatPercentage},
	} {
		if f.v < 0 {
			problems = append(problems, f.name+" must not be negative")
		}
	}
	if len(problems) > 0 {
		return nil, invalid("invalid tariff", problems...)
	}
	return s, nil
}

// TariffService 电价方案服务
type TariffService struct {
	logger   *zap.Logger
	store    TariffStore
	notifier Notifier
	strict   bool
}

// NewTariffService 创建电价方案服务
func NewTariffService(logger *zap.Logger, store TariffStore, notifier Notifier, strict bool) *TariffService {
	return &TariffService{
		logger:   logger,
		store:    store,
		notifier: orNop(notifier),
		strict:   strict,
	}
}

// List 获取全部方案
func (s *TariffService) List(ctx context.Context) ([]*models.TariffSchedule, error) {
	return s.store.List(ctx)
}

// Get 获取方案
func (s *TariffService) Get(ctx context.Context, id int64) (*models.TariffSchedule, error) {
	return s.store.GetByID(ctx, id)
}

// Active 获取当前启用的方案
func (s *TariffService) Active(ctx context.Context) (*models.TariffSchedule, error) {
	schedule, err := s.store.GetActive(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoActiveTariff
	}
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

// Create 创建方案
func (s *TariffService) Create(ctx context.Context, in TariffInput) (*models.TariffSchedule, error) {
	schedule, err := in.toSchedule()
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, schedule); err != nil {
		return nil, err
	}

	s.logger.Info("Tariff created", zap.Int64("tariff_id", schedule.ID), zap.String("name", schedule.TariffName), zap.Bool("active", schedule.IsActive))
	s.notifier.BroadcastMessage(ws.MsgTypeTariffChanged, schedule)
	return schedule, nil
}

// Update 更新方案
func (s *TariffService) Update(ctx context.Context, id int64, in TariffInput) (*models.TariffSchedule, error) {
	schedule, err := in.toSchedule()
	if err != nil {
		return nil, err
	}
	schedule.ID = id
	if err := s.store.Update(ctx, schedule); err != nil {
		return nil, err
	}

	s.logger.Info("Tariff updated", zap.Int64("tariff_id", id), zap.Bool("active", schedule.IsActive))
	s.notifier.BroadcastMessage(ws.MsgTypeTariffChanged, schedule)
	return schedule, nil
}

// Delete 删除方案，启用中的方案不可删除
func (s *TariffService) Delete(ctx context.Context, id int64) error {
	schedule, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if schedule.IsActive {
		return ErrActiveTariffDelete
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Tariff deleted", zap.Int64("tariff_id", id))
	return nil
}

// SeedDefault 数据库为空时写入默认方案
func (s *TariffService) SeedDefault(ctx context.Context) error {
	count, err := s.store.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	schedule := tariff.DefaultSchedule()
	if err := s.store.Create(ctx, &schedule); err != nil {
		return fmt.Errorf("seed default tariff: %w", err)
	}
	s.logger.Info("Seeded default tariff", zap.String("name", schedule.TariffName))
	return nil
}

// Calculate 按当前配置的模式计算费用
func (s *TariffService) Calculate(usageKwh float64, schedule models.TariffSchedule) (tariff.Result, error) {
	if s.strict {
		return tariff.ComputeStrict(usageKwh, schedule)
	}
	return tariff.Compute(usageKwh, schedule), nil
}

// Preview 试算费用；scheduleID 为 0 时使用启用的方案
func (s *TariffService) Preview(ctx context.Context, usageKwh float64, scheduleID int64) (tariff.Result, error) {
	if usageKwh < 0 {
		return tariff.Result{}, invalid("usage_kwh must not be negative")
	}

	var (
		schedule *models.TariffSchedule
		err      error
	)
	if scheduleID > 0 {
		schedule, err = s.Get(ctx, scheduleID)
	} else {
		schedule, err = s.Active(ctx)
	}
	if err != nil {
		return tariff.Result{}, err
	}
	return s.Calculate(usageKwh, *schedule)
}
