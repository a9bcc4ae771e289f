package service

import (
	"context"
	"time"

	"github.com/langchou/meterbook/internal/models"
	"github.com/langchou/meterbook/internal/repository"
)

// ReadingStore 读数存储
type ReadingStore interface {
	Create(ctx context.Context, m *models.MeterReading) error
	Update(ctx context.Context, m *models.MeterReading) error
	Delete(ctx context.Context, userID, id int64) error
	GetByID(ctx context.Context, userID, id int64) (*models.MeterReading, error)
	List(ctx context.Context, userID int64, limit, offset int) ([]*models.MeterReading, error)
	Count(ctx context.Context, userID int64) (int64, error)
	Latest(ctx context.Context, userID int64) (*models.MeterReading, error)
	PreviousBefore(ctx context.Context, userID, excludeID int64, before time.Time) (*models.MeterReading, error)
	SumBetween(ctx context.Context, userID int64, from, to time.Time) (usage, cost float64, err error)
}

// TariffStore 电价方案存储
type TariffStore interface {
	List(ctx context.Context) ([]*models.TariffSchedule, error)
	GetByID(ctx context.Context, id int64) (*models.TariffSchedule, error)
	GetActive(ctx context.Context) (*models.TariffSchedule, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, s *models.TariffSchedule) error
	Update(ctx context.Context, s *models.TariffSchedule) error
	Delete(ctx context.Context, id int64) error
}

// BudgetStore 预算存储
type BudgetStore interface {
	CreatePlan(ctx context.Context, p *models.BudgetPlan, alerts []*models.BudgetAlert) error
	GetPlan(ctx context.Context, userID, id int64) (*models.BudgetPlan, error)
	ListPlans(ctx context.Context, userID int64) ([]*models.BudgetPlan, error)
	ActivePlans(ctx context.Context, userID int64) ([]*models.BudgetPlan, error)
	UpdatePlan(ctx context.Context, p *models.BudgetPlan) error
	DeletePlan(ctx context.Context, userID, id int64) error
	UpsertTracking(ctx context.Context, t *models.BudgetTracking) error
	ListTracking(ctx context.Context, userID int64, f repository.TrackingFilter) ([]*models.BudgetTracking, error)
	ListAlerts(ctx context.Context, userID, planID int64) ([]*models.BudgetAlert, error)
	GetAlert(ctx context.Context, userID, id int64) (*models.BudgetAlert, error)
	UpdateAlert(ctx context.Context, a *models.BudgetAlert) error
}

// UserStore 用户存储
type UserStore interface {
	Create(ctx context.Context, u *models.User, prefs *models.UserPreferences) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, u *models.User) error
	UpdatePassword(ctx context.Context, userID int64, hash string) error
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error
	GetPreferences(ctx context.Context, userID int64) (*models.UserPreferences, error)
	CreatePreferences(ctx context.Context, p *models.UserPreferences) error
	UpdatePreferences(ctx context.Context, p *models.UserPreferences) error
}

// ReportStore 报告查询
type ReportStore interface {
	UsageByPeriod(ctx context.Context, userID int64, period string, year, month int) ([]*models.UsagePeriod, error)
	Statistics(ctx context.Context, userID int64) (*models.UsageStatistics, error)
}

// Notifier 实时推送
type Notifier interface {
	SendToUser(userID int64, msgType string, data interface{})
	BroadcastMessage(msgType string, data interface{})
}

type nopNotifier struct{}

func (nopNotifier) SendToUser(int64, string, interface{}) {}
func (nopNotifier) BroadcastMessage(string, interface{})  {}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

var (
	_ ReadingStore = (*repository.ReadingRepository)(nil)
	_ TariffStore  = (*repository.TariffRepository)(nil)
	_ BudgetStore  = (*repository.BudgetRepository)(nil)
	_ UserStore    = (*repository.UserRepository)(nil)
	_ ReportStore  = (*repository.ReportRepository)(nil)
)
