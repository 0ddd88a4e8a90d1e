package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"wattwise/internal/models"
)

// memRepo is an in-memory Repository for tests.
type memRepo struct {
	mu         sync.Mutex
	readings   map[string]map[string]models.MeterReading
	usage      map[string]map[string]models.DailyUsage
	cycles     map[string]models.BillingCycle
	settings   map[string]models.UserSettings
	budgets    map[string]models.Budget
	appliances map[string][]models.Appliance
}

func newMemRepo() *memRepo {
	return &memRepo{
		readings:   map[string]map[string]models.MeterReading{},
		usage:      map[string]map[string]models.DailyUsage{},
		cycles:     map[string]models.BillingCycle{},
		settings:   map[string]models.UserSettings{},
		budgets:    map[string]models.Budget{},
		appliances: map[string][]models.Appliance{},
	}
}

func slotKey(r models.MeterReading) string {
	return r.Date.String() + "/" + string(r.TimeOfDay)
}

func inRange(d, from, to models.Date) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}

func (m *memRepo) InsertReading(ctx context.Context, userID string, r models.MeterReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readings[userID] == nil {
		m.readings[userID] = map[string]models.MeterReading{}
	}
	if _, ok := m.readings[userID][slotKey(r)]; ok {
		return fmt.Errorf("%s: %w", slotKey(r), models.ErrConflict)
	}
	m.readings[userID][slotKey(r)] = r
	return nil
}

func (m *memRepo) UpdateReading(ctx context.Context, userID string, r models.MeterReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.readings[userID][slotKey(r)]; !ok {
		return fmt.Errorf("%s: %w", slotKey(r), models.ErrNotFound)
	}
	m.readings[userID][slotKey(r)] = r
	return nil
}

func (m *memRepo) ReadingsForDate(ctx context.Context, userID string, date models.Date) ([]models.MeterReading, error) {
	return m.ListReadings(ctx, userID, date, date)
}

func (m *memRepo) ListReadings(ctx context.Context, userID string, from, to models.Date) ([]models.MeterReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.MeterReading{}
	for _, r := range m.readings[userID] {
		if inRange(r.Date, from, to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return slotKey(out[i]) < slotKey(out[j]) })
	return out, nil
}

func (m *memRepo) SaveDailyUsage(ctx context.Context, userID string, u models.DailyUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.usage[userID] == nil {
		m.usage[userID] = map[string]models.DailyUsage{}
	}
	m.usage[userID][u.Date.String()] = u
	return nil
}

func (m *memRepo) SaveDailyUsages(ctx context.Context, userID string, usages []models.DailyUsage) error {
	for _, u := range usages {
		if err := m.SaveDailyUsage(ctx, userID, u); err != nil {
			return err
		}
	}
	return nil
}

func (m *memRepo) ListDailyUsage(ctx context.Context, userID string, from, to models.Date) ([]models.DailyUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.DailyUsage{}
	for _, u := range m.usage[userID] {
		if inRange(u.Date, from, to) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memRepo) ListUsers(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []string
	for id := range m.usage {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

func (m *memRepo) GetBillingCycle(ctx context.Context, userID string) (*models.BillingCycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cycles[userID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memRepo) SaveBillingCycle(ctx context.Context, userID string, c models.BillingCycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles[userID] = c
	return nil
}

func (m *memRepo) GetSettings(ctx context.Context, userID string) (models.UserSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.settings[userID]; ok {
		return s, nil
	}
	return models.DefaultSettings(), nil
}

func (m *memRepo) SaveSettings(ctx context.Context, userID string, s models.UserSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[userID] = s
	return nil
}

func (m *memRepo) GetBudget(ctx context.Context, userID string) (*models.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[userID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *memRepo) SaveBudget(ctx context.Context, userID string, b models.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budgets[userID] = b
	return nil
}

func (m *memRepo) AddAppliance(ctx context.Context, userID string, a models.Appliance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appliances[userID] = append(m.appliances[userID], a)
	return nil
}

func (m *memRepo) ListAppliances(ctx context.Context, userID string) ([]models.Appliance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Appliance{}, m.appliances[userID]...), nil
}

func (m *memRepo) DeleteAppliance(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.appliances[userID]
	for i, a := range list {
		if a.ID == id {
			m.appliances[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("appliance %s: %w", id, models.ErrNotFound)
}

var _ Repository = (*memRepo)(nil)
