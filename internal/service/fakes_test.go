package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/langchou/meterbook/internal/models"
	"github.com/langchou/meterbook/internal/repository"
)

type fakeTariffStore struct {
	schedules map[int64]*models.TariffSchedule
	nextID    int64
}

func newFakeTariffStore(schedules ...models.TariffSchedule) *fakeTariffStore {
	f := &fakeTariffStore{schedules: make(map[int64]*models.TariffSchedule)}
	for i := range schedules {
		s := schedules[i]
		_ = f.Create(context.Background(), &s)
	}
	return f
}

func (f *fakeTariffStore) List(context.Context) ([]*models.TariffSchedule, error) {
	var out []*models.TariffSchedule
	for _, s := range f.schedules {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsActive != out[j].IsActive {
			return out[i].IsActive
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (f *fakeTariffStore) GetByID(_ context.Context, id int64) (*models.TariffSchedule, error) {
	s, ok := f.schedules[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeTariffStore) GetActive(context.Context) (*models.TariffSchedule, error) {
	for _, s := range f.schedules {
		if s.IsActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTariffStore) Count(context.Context) (int64, error) {
	return int64(len(f.schedules)), nil
}

func (f *fakeTariffStore) deactivateOthers(id int64) {
	for _, s := range f.schedules {
		if s.ID != id {
			s.IsActive = false
		}
	}
}

func (f *fakeTariffStore) Create(_ context.Context, s *models.TariffSchedule) error {
	f.nextID++
	s.ID = f.nextID
	if s.IsActive {
		f.deactivateOthers(s.ID)
	}
	cp := *s
	f.schedules[s.ID] = &cp
	return nil
}

func (f *fakeTariffStore) Update(_ context.Context, s *models.TariffSchedule) error {
	if _, ok := f.schedules[s.ID]; !ok {
		return repository.ErrNotFound
	}
	if s.IsActive {
		f.deactivateOthers(s.ID)
	}
	cp := *s
	f.schedules[s.ID] = &cp
	return nil
}

func (f *fakeTariffStore) Delete(_ context.Context, id int64) error {
	if _, ok := f.schedules[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.schedules, id)
	return nil
}

type fakeReadingStore struct {
	readings map[int64]*models.MeterReading
	nextID   int64
}

func newFakeReadingStore() *fakeReadingStore {
	return &fakeReadingStore{readings: make(map[int64]*models.MeterReading)}
}

func (f *fakeReadingStore) sorted(userID int64) []*models.MeterReading {
	var out []*models.MeterReading
	for _, m := range f.readings {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReadingDate.Equal(out[j].ReadingDate) {
			return out[i].ReadingDate.After(out[j].ReadingDate)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (f *fakeReadingStore) Create(_ context.Context, m *models.MeterReading) error {
	f.nextID++
	m.ID = f.nextID
	for _, d := range m.BillingDetails {
		d.MeterReadingID = m.ID
	}
	cp := *m
	f.readings[m.ID] = &cp
	return nil
}

func (f *fakeReadingStore) Update(_ context.Context, m *models.MeterReading) error {
	old, ok := f.readings[m.ID]
	if !ok || old.UserID != m.UserID {
		return repository.ErrNotFound
	}
	cp := *m
	f.readings[m.ID] = &cp
	return nil
}

func (f *fakeReadingStore) Delete(_ context.Context, userID, id int64) error {
	m, ok := f.readings[id]
	if !ok || m.UserID != userID {
		return repository.ErrNotFound
	}
	delete(f.readings, id)
	return nil
}

func (f *fakeReadingStore) GetByID(_ context.Context, userID, id int64) (*models.MeterReading, error) {
	m, ok := f.readings[id]
	if !ok || m.UserID != userID {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeReadingStore) List(_ context.Context, userID int64, limit, offset int) ([]*models.MeterReading, error) {
	all := f.sorted(userID)
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeReadingStore) Count(_ context.Context, userID int64) (int64, error) {
	return int64(len(f.sorted(userID))), nil
}

func (f *fakeReadingStore) Latest(_ context.Context, userID int64) (*models.MeterReading, error) {
	all := f.sorted(userID)
	if len(all) == 0 {
		return nil, repository.ErrNotFound
	}
	return all[0], nil
}

func (f *fakeReadingStore) PreviousBefore(_ context.Context, userID, excludeID int64, before time.Time) (*models.MeterReading, error) {
	for _, m := range f.sorted(userID) {
		if m.ID != excludeID && m.ReadingDate.Before(before) {
			return m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeReadingStore) SumBetween(_ context.Context, userID int64, from, to time.Time) (float64, float64, error) {
	var usage, cost float64
	for _, m := range f.sorted(userID) {
		if !m.ReadingDate.Before(from) && m.ReadingDate.Before(to) {
			usage += m.UsageKwh
			cost += m.TotalCost
		}
	}
	return usage, cost, nil
}

type fakeBudgetStore struct {
	plans    map[int64]*models.BudgetPlan
	tracking map[string]*models.BudgetTracking
	alerts   map[int64]*models.BudgetAlert
	nextID   int64
}

func newFakeBudgetStore() *fakeBudgetStore {
	return &fakeBudgetStore{
		plans:    make(map[int64]*models.BudgetPlan),
		tracking: make(map[string]*models.BudgetTracking),
		alerts:   make(map[int64]*models.BudgetAlert),
	}
}

func (f *fakeBudgetStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeBudgetStore) CreatePlan(_ context.Context, p *models.BudgetPlan, alerts []*models.BudgetAlert) error {
	p.ID = f.id()
	cp := *p
	f.plans[p.ID] = &cp
	for _, a := range alerts {
		a.ID = f.id()
		a.BudgetPlanID = p.ID
		ac := *a
		f.alerts[a.ID] = &ac
	}
	return nil
}

func (f *fakeBudgetStore) GetPlan(_ context.Context, userID, id int64) (*models.BudgetPlan, error) {
	p, ok := f.plans[id]
	if !ok || p.UserID != userID {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeBudgetStore) ListPlans(_ context.Context, userID int64) ([]*models.BudgetPlan, error) {
	var out []*models.BudgetPlan
	for _, p := range f.plans {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeBudgetStore) ActivePlans(ctx context.Context, userID int64) ([]*models.BudgetPlan, error) {
	all, _ := f.ListPlans(ctx, userID)
	var out []*models.BudgetPlan
	for _, p := range all {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeBudgetStore) UpdatePlan(_ context.Context, p *models.BudgetPlan) error {
	old, ok := f.plans[p.ID]
	if !ok || old.UserID != p.UserID {
		return repository.ErrNotFound
	}
	cp := *p
	f.plans[p.ID] = &cp
	return nil
}

func (f *fakeBudgetStore) DeletePlan(_ context.Context, userID, id int64) error {
	p, ok := f.plans[id]
	if !ok || p.UserID != userID {
		return repository.ErrNotFound
	}
	delete(f.plans, id)
	return nil
}

func trackingKey(planID int64, month string) string {
	return fmt.Sprintf("%d/%s", planID, month)
}

func (f *fakeBudgetStore) UpsertTracking(_ context.Context, t *models.BudgetTracking) error {
	key := trackingKey(t.BudgetPlanID, t.MonthYear)
	if old, ok := f.tracking[key]; ok {
		t.ID = old.ID
		if t.Notes == nil {
			t.Notes = old.Notes
		}
	} else {
		t.ID = f.id()
	}
	cp := *t
	f.tracking[key] = &cp
	return nil
}

func (f *fakeBudgetStore) ListTracking(_ context.Context, userID int64, filter repository.TrackingFilter) ([]*models.BudgetTracking, error) {
	var out []*models.BudgetTracking
	for _, t := range f.tracking {
		p, ok := f.plans[t.BudgetPlanID]
		if !ok || p.UserID != userID {
			continue
		}
		if filter.PlanID != 0 && t.BudgetPlanID != filter.PlanID {
			continue
		}
		if filter.MonthYear != "" && t.MonthYear != filter.MonthYear {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return strings.Compare(out[i].MonthYear, out[j].MonthYear) > 0 })
	return out, nil
}

func (f *fakeBudgetStore) ListAlerts(_ context.Context, userID, planID int64) ([]*models.BudgetAlert, error) {
	var out []*models.BudgetAlert
	for _, a := range f.alerts {
		p, ok := f.plans[a.BudgetPlanID]
		if !ok || p.UserID != userID || !a.IsEnabled {
			continue
		}
		if planID != 0 && a.BudgetPlanID != planID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBudgetStore) GetAlert(_ context.Context, userID, id int64) (*models.BudgetAlert, error) {
	a, ok := f.alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p, ok := f.plans[a.BudgetPlanID]; !ok || p.UserID != userID {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeBudgetStore) UpdateAlert(_ context.Context, a *models.BudgetAlert) error {
	if _, ok := f.alerts[a.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *a
	f.alerts[a.ID] = &cp
	return nil
}

type fakeUserStore struct {
	users  map[int64]*models.User
	prefs  map[int64]*models.UserPreferences
	nextID int64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users: make(map[int64]*models.User),
		prefs: make(map[int64]*models.UserPreferences),
	}
}

func (f *fakeUserStore) Create(_ context.Context, u *models.User, prefs *models.UserPreferences) error {
	for _, existing := range f.users {
		if existing.Email == strings.ToLower(u.Email) {
			return repository.ErrDuplicate
		}
	}
	f.nextID++
	u.ID = f.nextID
	cp := *u
	f.users[u.ID] = &cp
	if prefs != nil {
		prefs.UserID = u.ID
		pc := *prefs
		f.prefs[u.ID] = &pc
	}
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserStore) UpdateProfile(_ context.Context, u *models.User) error {
	if _, ok := f.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, userID int64, hash string) error {
	u, ok := f.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUserStore) TouchLastLogin(_ context.Context, userID int64, at time.Time) error {
	if u, ok := f.users[userID]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (f *fakeUserStore) GetPreferences(_ context.Context, userID int64) (*models.UserPreferences, error) {
	p, ok := f.prefs[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeUserStore) CreatePreferences(_ context.Context, p *models.UserPreferences) error {
	cp := *p
	f.prefs[p.UserID] = &cp
	return nil
}

func (f *fakeUserStore) UpdatePreferences(_ context.Context, p *models.UserPreferences) error {
	if _, ok := f.prefs[p.UserID]; !ok {
		return repository.ErrNotFound
	}
	cp := *p
	f.prefs[p.UserID] = &cp
	return nil
}

type sentMessage struct {
	userID  int64
	msgType string
	data    interface{}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) SendToUser(userID int64, msgType string, data interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{userID: userID, msgType: msgType, data: data})
}

func (n *recordingNotifier) BroadcastMessage(msgType string, data interface{}) {
	n.SendToUser(0, msgType, data)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.sent {
		out = append(out, m.msgType)
	}
	return out
}
