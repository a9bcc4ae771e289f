package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/meterbook/internal/models"
	"github.com/langchou/meterbook/internal/repository"
	"github.com/langchou/meterbook/pkg/ws"
)

type budgetFixture struct {
	svc      *BudgetService
	store    *fakeBudgetStore
	readings *fakeReadingStore
	notifier *recordingNotifier
}

func newBudgetFixture() *budgetFixture {
	f := &budgetFixture{
		store:    newFakeBudgetStore(),
		readings: newFakeReadingStore(),
		notifier: &recordingNotifier{},
	}
	f.svc = NewBudgetService(zap.NewNop(), f.store, f.readings, f.notifier)
	return f
}

func (f *budgetFixture) plan(t *testing.T, userID int64) *models.BudgetPlan {
	t.Helper()
	p, err := f.svc.CreatePlan(context.Background(), userID, PlanInput{
		Name:           "Rumah",
		MonthlyBudget:  500000,
		TargetUsageKwh: 300,
		StartDate:      "2024-01-01",
	})
	require.NoError(t, err)
	return p
}

func (f *budgetFixture) sentOf(msgType string) []sentMessage {
	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	var out []sentMessage
	for _, m := range f.notifier.sent {
		if m.msgType == msgType {
			out = append(out, m)
		}
	}
	return out
}

func currentMonth() string {
	return time.Now().Format(MonthLayout)
}

func TestBudgetService_CreatePlanValidation(t *testing.T) {
	f := newBudgetFixture()
	ctx := context.Background()
	end := "2023-12-31"
	bad := "31/12/2024"

	cases := []PlanInput{
		{MonthlyBudget: 1, TargetUsageKwh: 1, StartDate: "2024-01-01"},
		{Name: "x", TargetUsageKwh: 1, StartDate: "2024-01-01"},
		{Name: "x", MonthlyBudget: 1, StartDate: "2024-01-01"},
		{Name: "x", MonthlyBudget: 1, TargetUsageKwh: 1},
		{Name: "x", MonthlyBudget: 1, TargetUsageKwh: 1, StartDate: "2024-1-1"},
		{Name: "x", MonthlyBudget: 1, TargetUsageKwh: 1, StartDate: "2024-01-01", EndDate: &end},
		{Name: "x", MonthlyBudget: 1, TargetUsageKwh: 1, StartDate: "2024-01-01", EndDate: &bad},
	}
	for _, in := range cases {
		_, err := f.svc.CreatePlan(ctx, 1, in)
		assert.True(t, IsValidation(err), "%+v", in)
	}
	assert.Empty(t, f.store.plans)
}

func TestBudgetService_CreatePlanAddsDefaultAlerts(t *testing.T) {
	f := newBudgetFixture()
	p := f.plan(t, 1)

	assert.True(t, p.IsActive)
	alerts, err := f.svc.ListAlerts(context.Background(), 1, p.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 3)

	types := map[models.AlertType]float64{}
	for _, a := range alerts {
		assert.Equal(t, p.ID, a.BudgetPlanID)
		types[a.AlertType] = a.ThresholdPercentage
	}
	assert.Equal(t, map[models.AlertType]float64{
		models.AlertUsageWarning:   80,
		models.AlertCostWarning:    80,
		models.AlertBudgetExceeded: 100,
	}, types)

	// 其他用户看不到
	other, err := f.svc.ListAlerts(context.Background(), 2, p.ID)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestBudgetService_Track(t *testing.T) {
	f := newBudgetFixture()
	ctx := context.Background()
	p := f.plan(t, 1)

	tr, err := f.svc.Track(ctx, 1, TrackInput{BudgetPlanID: p.ID, MonthYear: "2024-02", ActualUsageKwh: 150, ActualCost: 450000})
	require.NoError(t, err)
	assert.Equal(t, models.BudgetOnTrack, tr.Status)
	assert.InDelta(t, 90, tr.CostPercentage, 1e-9)
	assert.InDelta(t, 50, tr.UsagePercentage, 1e-9)
	assert.InDelta(t, 50000, tr.BudgetRemaining, 1e-9)
	assert.Equal(t, "Rumah", tr.BudgetPlanName)

	// 同月再次写入覆盖原记录，保留备注
	note := "AC rusak"
	_, err = f.svc.Track(ctx, 1, TrackInput{BudgetPlanID: p.ID, MonthYear: "2024-02", ActualUsageKwh: 10, ActualCost: 10, Notes: &note})
	require.NoError(t, err)
	_, err = f.svc.Track(ctx, 1, TrackInput{BudgetPlanID: p.ID, MonthYear: "2024-02", ActualUsageKwh: 20, ActualCost: 20})
	require.NoError(t, err)

	list, err := f.svc.ListTracking(ctx, 1, repository.TrackingFilter{PlanID: p.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 20.0, list[0].ActualCost)
	require.NotNil(t, list[0].Notes)
	assert.Equal(t, note, *list[0].Notes)
}

func TestBudgetService_TrackErrors(t *testing.T) {
	f := newBudgetFixture()
	ctx := context.Background()
	p := f.plan(t, 1)

	_, err := f.svc.Track(ctx, 1, TrackInput{MonthYear: "2024-02"})
	assert.True(t, IsValidation(err))
	_, err = f.svc.Track(ctx, 1, TrackInput{BudgetPlanID: p.ID, MonthYear: "Feb 2024"})
	assert.True(t, IsValidation(err))
	_, err = f.svc.Track(ctx, 1, TrackInput{BudgetPlanID: p.ID, MonthYear: "2024-02", ActualCost: -1})
	assert.True(t, IsValidation(err))

	_, err = f.svc.Track(ctx, 2, TrackInput{BudgetPlanID: p.ID, MonthYear: "2024-02"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.UpdatePlan(ctx, 1, p.ID, PlanInput{
		Name: "Rumah", MonthlyBudget: 500000, TargetUsageKwh: 300, StartDate: "2024-01-01", IsActive: boolp(false),
	})
	require.NoError(t, err)
	_, err = f.svc.Track(ctx, 1, TrackInput{BudgetPlanID: p.ID, MonthYear: "2024-02"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBudgetService_RefreshSumsMonthReadings(t *testing.T) {
	f := newBudgetFixture()
	ctx := context.Background()
	p := f.plan(t, 1)

	now := time.Now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for _, m := range []*models.MeterReading{
		{UserID: 1, ReadingDate: first, UsageKwh: 100, TotalCost: 150000},
		{UserID: 1, ReadingDate: first.AddDate(0, 0, 1), UsageKwh: 50, TotalCost: 100000},
		{UserID: 1, ReadingDate: first.AddDate(0, -1, 0), UsageKwh: 999, TotalCost: 999999},
		{UserID: 2, ReadingDate: first, UsageKwh: 999, TotalCost: 999999},
	} {
		require.NoError(t, f.readings.Create(ctx, m))
	}

	require.NoError(t, f.svc.Refresh(ctx, 1, now))

	list, err := f.svc.ListTracking(ctx, 1, repository.TrackingFilter{MonthYear: currentMonth()})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].BudgetPlanID)
	assert.Equal(t, 150.0, list[0].ActualUsageKwh)
	assert.Equal(t, 250000.0, list[0].ActualCost)
	assert.Equal(t, models.BudgetUnderBudget, list[0].Status)

	// 没有启用计划的用户不报错
	assert.NoError(t, f.svc.Refresh(ctx, 3, now))
}

func TestBudgetService_StatusChangeNotifiesOwner(t *testing.T) {
	f := newBudgetFixture()
	ctx := context.Background()
	p := f.plan(t, 7)
	month := currentMonth()

	_, err := f.svc.Track(ctx, 7, TrackInput{BudgetPlanID: p.ID, MonthYear: month, ActualCost: 100000})
	require.NoError(t, err)
	assert.Empty(t, f.sentOf(ws.MsgTypeBudgetStatus))

	_, err = f.svc.Track(ctx, 7, TrackInput{BudgetPlanID: p.ID, MonthYear: month, ActualCost: 600000})
	require.NoError(t, err)

	sent := f.sentOf(ws.MsgTypeBudgetStatus)
	require.Len(t, sent, 1)
	assert.Equal(t, int64(7), sent[0].userID)
	change, ok := sent[0].data.(StatusChange)
	require.True(t, ok)
	assert.Equal(t, models.BudgetUnderBudget, change.From)
	assert.Equal(t, models.BudgetOverBudget, change.To)

	snaps := f.svc.Snapshots(7)
	require.Len(t, snaps, 1)
	assert.Equal(t, models.BudgetOverBudget, snaps[0].Status)
	assert.Empty(t, f.svc.Snapshots(8))
}

func TestBudgetService_PastMonthDoesNotDriveStatus(t *testing.T) {
	f := newBudgetFixture()
	ctx := context.Background()
	p := f.plan(t, 1)

	_, err := f.svc.Track(ctx, 1, TrackInput{BudgetPlanID: p.ID, MonthYear: "2020-01", ActualCost: 100})
	require.NoError(t, err)
	_, err = f.svc.Track(ctx, 1, TrackInput{BudgetPlanID: p.ID, MonthYear: "2020-01", ActualCost: 900000})
	require.NoError(t, err)

	assert.Empty(t, f.sentOf(ws.MsgTypeBudgetStatus))
	assert.Empty(t, f.svc.Snapshots(1))
}

func TestBudgetService_AlertsFireOncePerMonth(t *testing.T) {
	f := newBudgetFixture()
	ctx := context.Background()
	p := f.plan(t, 1)
	f.svc.now = func() time.Time { return time.Date(2024, 5, 15, 8, 0, 0, 0, time.UTC) }

	// 费用 85%：只触发 cost_warning
	_, err := f.svc.Track(ctx, 1, TrackInput{BudgetPlanID: p.ID, MonthYear: "2024-05", ActualUsageKwh: 10, ActualCost: 425000})
	require.NoError(t, err)
	sent := f.sentOf(ws.MsgTypeBudgetAlert)
	require.Len(t, sent, 1)
	assert.Equal(t, models.AlertCostWarning, sent[0].data.(*models.BudgetAlert).AlertType)

	_, err = f.svc.Track(ctx, 1, TrackInput{BudgetPlanID: p.ID, MonthYear: "2024-05", ActualUsageKwh: 10, ActualCost: 430000})
	require.NoError(t, err)
	assert.Len(t, f.sentOf(ws.MsgTypeBudgetAlert), 1)

	// 超支后 budget_exceeded 首次触发
	_, err = f.svc.Track(ctx, 1, TrackInput{BudgetPlanID: p.ID, MonthYear: "2024-05", ActualUsageKwh: 10, ActualCost: 510000})
	require.NoError(t, err)
	assert.Len(t, f.sentOf(ws.MsgTypeBudgetAlert), 2)

	// 补录历史月份不推送
	_, err = f.svc.Track(ctx, 1, TrackInput{BudgetPlanID: p.ID, MonthYear: "2024-04", ActualUsageKwh: 10, ActualCost: 600000})
	require.NoError(t, err)
	assert.Len(t, f.sentOf(ws.MsgTypeBudgetAlert), 2)

	// 新月份重新计数
	f.svc.now = func() time.Time { return time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC) }
	_, err = f.svc.Track(ctx, 1, TrackInput{BudgetPlanID: p.ID, MonthYear: "2024-06", ActualUsageKwh: 10, ActualCost: 425000})
	require.NoError(t, err)
	assert.Len(t, f.sentOf(ws.MsgTypeBudgetAlert), 3)
}

func TestBudgetService_FiredAlertsPrunedOnNewMonth(t *testing.T) {
	f := newBudgetFixture()
	ctx := context.Background()
	p := f.plan(t, 1)

	for _, month := range []time.Month{time.March, time.April, time.May} {
		f.svc.now = func() time.Time { return time.Date(2024, month, 10, 0, 0, 0, 0, time.UTC) }
		_, err := f.svc.Track(ctx, 1, TrackInput{
			BudgetPlanID:   p.ID,
			MonthYear:      fmt.Sprintf("2024-%02d", int(month)),
			ActualUsageKwh: 10,
			ActualCost:     510000,
		})
		require.NoError(t, err)
	}

	f.svc.mu.Lock()
	defer f.svc.mu.Unlock()
	assert.Len(t, f.svc.fired, 1)
	assert.Contains(t, f.svc.fired, "2024-05")
	assert.Len(t, f.sentOf(ws.MsgTypeBudgetAlert), 6)
}

func TestBudgetService_UpdateAlert(t *testing.T) {
	f := newBudgetFixture()
	ctx := context.Background()
	p := f.plan(t, 1)
	alerts, err := f.svc.ListAlerts(ctx, 1, p.ID)
	require.NoError(t, err)
	id := alerts[0].ID

	_, err = f.svc.UpdateAlert(ctx, 1, AlertUpdate{ThresholdPercentage: f64(50)})
	assert.True(t, IsValidation(err))
	_, err = f.svc.UpdateAlert(ctx, 1, AlertUpdate{ID: id})
	assert.True(t, IsValidation(err))
	_, err = f.svc.UpdateAlert(ctx, 1, AlertUpdate{ID: id, ThresholdPercentage: f64(250)})
	assert.True(t, IsValidation(err))
	_, err = f.svc.UpdateAlert(ctx, 2, AlertUpdate{ID: id, ThresholdPercentage: f64(50)})
	assert.ErrorIs(t, err, ErrNotFound)

	a, err := f.svc.UpdateAlert(ctx, 1, AlertUpdate{ID: id, ThresholdPercentage: f64(50), Message: strp("hemat")})
	require.NoError(t, err)
	assert.Equal(t, 50.0, a.ThresholdPercentage)
	assert.True(t, a.IsEnabled)
	assert.Equal(t, "hemat", *a.Message)

	_, err = f.svc.UpdateAlert(ctx, 1, AlertUpdate{ID: id, IsEnabled: boolp(false)})
	require.NoError(t, err)
	alerts, err = f.svc.ListAlerts(ctx, 1, p.ID)
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
}

func TestBudgetService_DeletePlan(t *testing.T) {
	f := newBudgetFixture()
	ctx := context.Background()
	p := f.plan(t, 1)

	_, err := f.svc.Track(ctx, 1, TrackInput{BudgetPlanID: p.ID, MonthYear: currentMonth(), ActualCost: 1})
	require.NoError(t, err)
	require.Len(t, f.svc.Snapshots(1), 1)

	assert.ErrorIs(t, f.svc.DeletePlan(ctx, 2, p.ID), ErrNotFound)
	require.NoError(t, f.svc.DeletePlan(ctx, 1, p.ID))
	assert.Empty(t, f.svc.Snapshots(1))

	_, err = f.svc.GetPlan(ctx, 1, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBudgetService_ListTrackingValidatesMonth(t *testing.T) {
	f := newBudgetFixture()
	_, err := f.svc.ListTracking(context.Background(), 1, repository.TrackingFilter{MonthYear: "2024/05"})
	assert.True(t, IsValidation(err))
}
