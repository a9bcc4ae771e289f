package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/langchou/meterbook/internal/models"
)

// 事件常量
const (
	EventFallUnder = "fall_under"
	EventReachPace = "reach_pace"
	EventExceed    = "exceed"
)

// eventFor 目标状态对应的事件
func eventFor(status models.BudgetStatus) string {
	switch status {
	case models.BudgetOverBudget:
		return EventExceed
	case models.BudgetOnTrack:
		return EventReachPace
	default:
		return EventFallUnder
	}
}

// Snapshot 预算计划当前状态
type Snapshot struct {
	PlanID         int64               `json:"budget_plan_id"`
	Status         models.BudgetStatus `json:"status"`
	MonthYear      string              `json:"month_year"`
	CostPercentage float64             `json:"cost_percentage"`
	Since          time.Time           `json:"since"`
}

// Machine 预算状态机
type Machine struct {
	mu            sync.RWMutex
	planID        int64
	fsm           *fsm.FSM
	snap          *Snapshot
	onStateChange func(planID int64, from, to string)
}

// NewMachine 创建状态机
func NewMachine(planID int64, initial models.BudgetStatus, onStateChange func(planID int64, from, to string)) *Machine {
	if initial == "" {
		initial = models.BudgetUnderBudget
	}

	m := &Machine{
		planID:        planID,
		onStateChange: onStateChange,
		snap: &Snapshot{
			PlanID: planID,
			Status: initial,
			Since:  time.Now(),
		},
	}

	m.fsm = fsm.NewFSM(
		string(initial),
		fsm.Events{
			{Name: EventFallUnder, Src: []string{string(models.BudgetOnTrack), string(models.BudgetOverBudget)}, Dst: string(models.BudgetUnderBudget)},
			{Name: EventReachPace, Src: []string{string(models.BudgetUnderBudget), string(models.BudgetOverBudget)}, Dst: string(models.BudgetOnTrack)},
			{Name: EventExceed, Src: []string{string(models.BudgetUnderBudget), string(models.BudgetOnTrack)}, Dst: string(models.BudgetOverBudget)},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(m.planID, e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// Current 获取当前状态
func (m *Machine) Current() models.BudgetStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.BudgetStatus(m.fsm.Current())
}

// Snapshot 获取状态副本
func (m *Machine) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapCopy := *m.snap
	snapCopy.Status = models.BudgetStatus(m.fsm.Current())
	return &snapCopy
}

// Apply 将状态推进到最新评估结果，返回状态是否发生变化
func (m *Machine) Apply(t *models.BudgetTracking) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snap.MonthYear = t.MonthYear
	m.snap.CostPercentage = t.CostPercentage

	if m.fsm.Current() == string(t.Status) {
		return false, nil
	}

	event := eventFor(t.Status)
	if err := m.fsm.Event(context.Background(), event); err != nil {
		return false, fmt.Errorf("trigger event %s: %w", event, err)
	}

	m.snap.Status = t.Status
	m.snap.Since = time.Now()
	return true, nil
}

// Manager 状态机管理器
type Manager struct {
	mu       sync.RWMutex
	machines map[int64]*Machine
	onChange func(planID int64, from, to string)
}

// NewManager 创建管理器
func NewManager(onChange func(planID int64, from, to string)) *Manager {
	return &Manager{
		machines: make(map[int64]*Machine),
		onChange: onChange,
	}
}

// GetOrCreate 获取或创建状态机
func (m *Manager) GetOrCreate(planID int64, initial models.BudgetStatus) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if machine, ok := m.machines[planID]; ok {
		return machine
	}

	machine := NewMachine(planID, initial, m.onChange)
	m.machines[planID] = machine
	return machine
}

// Remove 删除计划对应的状态机
func (m *Manager) Remove(planID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.machines, planID)
}

// GetAllSnapshots 获取所有计划状态
func (m *Manager) GetAllSnapshots() map[int64]*Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snaps := make(map[int64]*Snapshot)
	for planID, machine := range m.machines {
		snaps[planID] = machine.Snapshot()
	}
	return snaps
}
