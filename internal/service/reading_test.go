package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/meterbook/internal/models"
	"github.com/langchou/meterbook/internal/tariff"
	"github.com/langchou/meterbook/pkg/ws"
)

type refreshCall struct {
	userID int64
	month  string
}

type recordingRefresher struct {
	calls []refreshCall
}

func (r *recordingRefresher) Refresh(_ context.Context, userID int64, month time.Time) error {
	r.calls = append(r.calls, refreshCall{userID: userID, month: month.Format(MonthLayout)})
	return nil
}

type readingFixture struct {
	svc       *ReadingService
	store     *fakeReadingStore
	tariffs   *fakeTariffStore
	notifier  *recordingNotifier
	refresher *recordingRefresher
}

func newReadingFixture(schedules ...models.TariffSchedule) *readingFixture {
	f := &readingFixture{
		store:     newFakeReadingStore(),
		tariffs:   newFakeTariffStore(schedules...),
		notifier:  &recordingNotifier{},
		refresher: &recordingRefresher{},
	}
	tariffSvc := NewTariffService(zap.NewNop(), f.tariffs, nil, false)
	f.svc = NewReadingService(zap.NewNop(), f.store, tariffSvc, f.refresher, f.notifier)
	return f
}

func TestReadingService_CreateFirstReading(t *testing.T) {
	f := newReadingFixture(tariff.DefaultSchedule())

	m, err := f.svc.Create(context.Background(), 1, ReadingInput{ReadingDate: "2024-03-01", MeterValue: 45})
	require.NoError(t, err)

	assert.Zero(t, m.PreviousReading)
	assert.Equal(t, 45.0, m.UsageKwh)
	assert.InDelta(t, 66924, m.TotalCost, 1e-6)
	require.Len(t, m.BillingDetails, 1)
	assert.Equal(t, 1, m.BillingDetails[0].BlockNumber)
	assert.InDelta(t, 60840, m.BillingDetails[0].Subtotal, 1e-6)

	assert.Equal(t, []string{ws.MsgTypeReadingCreated}, f.notifier.types())
	assert.Equal(t, []refreshCall{{userID: 1, month: "2024-03"}}, f.refresher.calls)
}

func TestReadingService_CreateUsesLatestReading(t *testing.T) {
	f := newReadingFixture(tariff.DefaultSchedule())
	ctx := context.Background()

	_, err := f.svc.Create(ctx, 1, ReadingInput{ReadingDate: "2024-03-01", MeterValue: 1000})
	require.NoError(t, err)
	m, err := f.svc.Create(ctx, 1, ReadingInput{ReadingDate: "2024-03-10", MeterValue: 1045})
	require.NoError(t, err)

	assert.Equal(t, 1000.0, m.PreviousReading)
	assert.Equal(t, 45.0, m.UsageKwh)

	// 其他用户的读数互不影响
	other, err := f.svc.Create(ctx, 2, ReadingInput{ReadingDate: "2024-03-10", MeterValue: 10})
	require.NoError(t, err)
	assert.Zero(t, other.PreviousReading)
}

func TestReadingService_NegativeUsageClamped(t *testing.T) {
	f := newReadingFixture(tariff.DefaultSchedule())
	ctx := context.Background()

	_, err := f.svc.Create(ctx, 1, ReadingInput{ReadingDate: "2024-03-01", MeterValue: 500})
	require.NoError(t, err)
	m, err := f.svc.Create(ctx, 1, ReadingInput{ReadingDate: "2024-03-02", MeterValue: 400})
	require.NoError(t, err)

	assert.Zero(t, m.UsageKwh)
	assert.Empty(t, m.BillingDetails)
	assert.Zero(t, m.TotalCost)
}

func TestReadingService_NoActiveTariff(t *testing.T) {
	f := newReadingFixture()

	_, err := f.svc.Create(context.Background(), 1, ReadingInput{ReadingDate: "2024-03-01", MeterValue: 45})
	assert.ErrorIs(t, err, ErrNoActiveTariff)

	count, _ := f.store.Count(context.Background(), 1)
	assert.Zero(t, count)
	assert.Empty(t, f.notifier.types())
}

func TestReadingService_Validation(t *testing.T) {
	f := newReadingFixture(tariff.DefaultSchedule())
	ctx := context.Background()

	for _, in := range []ReadingInput{
		{MeterValue: 10},
		{ReadingDate: "2024-03-01"},
		{ReadingDate: "2024-03-01", MeterValue: -5},
		{ReadingDate: "03/01/2024", MeterValue: 5},
	} {
		_, err := f.svc.Create(ctx, 1, in)
		assert.True(t, IsValidation(err), "%+v", in)
	}
}

func TestReadingService_UpdateUsesPreviousBeforeDate(t *testing.T) {
	f := newReadingFixture(tariff.DefaultSchedule())
	ctx := context.Background()

	_, err := f.svc.Create(ctx, 1, ReadingInput{ReadingDate: "2024-03-01", MeterValue: 100})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, 1, ReadingInput{ReadingDate: "2024-03-10", MeterValue: 150})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, 1, ReadingInput{ReadingDate: "2024-03-20", MeterValue: 220})
	require.NoError(t, err)

	// 修改第二条：基准应为 03-01 的 100，而不是最新的 220
	updated, err := f.svc.Update(ctx, 1, second.ID, ReadingInput{ReadingDate: "2024-03-10", MeterValue: 160})
	require.NoError(t, err)
	assert.Equal(t, 100.0, updated.PreviousReading)
	assert.Equal(t, 60.0, updated.UsageKwh)
	require.Len(t, updated.BillingDetails, 1)
	assert.InDelta(t, 60*1352*1.1, updated.TotalCost, 1e-6)

	stored, err := f.svc.Get(ctx, 1, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 60.0, stored.UsageKwh)
}

func TestReadingService_UpdateMovedMonthRefreshesBoth(t *testing.T) {
	f := newReadingFixture(tariff.DefaultSchedule())
	ctx := context.Background()

	m, err := f.svc.Create(ctx, 1, ReadingInput{ReadingDate: "2024-03-01", MeterValue: 100})
	require.NoError(t, err)
	f.refresher.calls = nil

	_, err = f.svc.Update(ctx, 1, m.ID, ReadingInput{ReadingDate: "2024-04-01", MeterValue: 100})
	require.NoError(t, err)
	assert.Equal(t, []refreshCall{{1, "2024-04"}, {1, "2024-03"}}, f.refresher.calls)
}

func TestReadingService_UpdateOtherUsersReading(t *testing.T) {
	f := newReadingFixture(tariff.DefaultSchedule())
	ctx := context.Background()

	m, err := f.svc.Create(ctx, 1, ReadingInput{ReadingDate: "2024-03-01", MeterValue: 100})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, 2, m.ID, ReadingInput{ReadingDate: "2024-03-01", MeterValue: 100})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, 2, m.ID), ErrNotFound)
}

func TestReadingService_SnapshotSurvivesTariffChange(t *testing.T) {
	f := newReadingFixture(tariff.DefaultSchedule())
	ctx := context.Background()

	m, err := f.svc.Create(ctx, 1, ReadingInput{ReadingDate: "2024-03-01", MeterValue: 45})
	require.NoError(t, err)

	active, _ := f.tariffs.GetActive(ctx)
	active.FirstBlockRate = 9999
	require.NoError(t, f.tariffs.Update(ctx, active))

	stored, err := f.svc.Get(ctx, 1, m.ID)
	require.NoError(t, err)
	assert.InDelta(t, 66924, stored.TotalCost, 1e-6)
}

func TestReadingService_DeleteAndList(t *testing.T) {
	f := newReadingFixture(tariff.DefaultSchedule())
	ctx := context.Background()

	for i, date := range []string{"2024-03-01", "2024-03-02", "2024-03-03"} {
		_, err := f.svc.Create(ctx, 1, ReadingInput{ReadingDate: date, MeterValue: float64(10 * (i + 1))})
		require.NoError(t, err)
	}

	list, total, err := f.svc.List(ctx, 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, list, 3)
	assert.Equal(t, "2024-03-03", list[0].ReadingDate.Format(DateLayout))

	require.NoError(t, f.svc.Delete(ctx, 1, list[0].ID))
	list, total, err = f.svc.List(ctx, 1, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)
	assert.Contains(t, f.notifier.types(), ws.MsgTypeReadingDeleted)
}
