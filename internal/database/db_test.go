package database

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"wattwise/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(DriverSQLite, filepath.Join(t.TempDir(), "wattwise.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_UnsupportedDriver(t *testing.T) {
	if _, err := NewDB("postgres", "x"); err == nil {
		t.Error("NewDB() expected error for unsupported driver")
	}
}

func TestUpsertSQL(t *testing.T) {
	cols := []string{"user_id", "theme"}

	tests := []struct {
		dialect string
		want    string
	}{
		{DriverMySQL, "INSERT INTO user_settings (user_id, theme) VALUES (?, ?) ON DUPLICATE KEY UPDATE theme = VALUES(theme)"},
		{DriverSQLite, "INSERT INTO user_settings (user_id, theme) VALUES (?, ?) ON CONFLICT (user_id) DO UPDATE SET theme = excluded.theme"},
	}

	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			db := &DB{dialect: tt.dialect}
			if got := db.upsertSQL("user_settings", cols, []string{"user_id"}, cols[1:]); got != tt.want {
				t.Errorf("upsertSQL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDuplicate(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("UNIQUE constraint failed: readings.user_id"), true},
		{errors.New("Error 1062: Duplicate entry 'u1-2024-03-01-morning'"), true},
		{errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		if got := isDuplicate(tt.err); got != tt.want {
			t.Errorf("isDuplicate(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestReadings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	day := models.NewDate(2024, 3, 1)

	morning := models.MeterReading{Date: day, TimeOfDay: models.Morning, ReadingKWh: 1000}
	if err := db.InsertReading(ctx, "u1", morning); err != nil {
		t.Fatalf("InsertReading() error = %v", err)
	}

	err := db.InsertReading(ctx, "u1", morning)
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("InsertReading() duplicate error = %v, want ErrConflict", err)
	}

	// another user may use the same slot
	if err := db.InsertReading(ctx, "u2", morning); err != nil {
		t.Errorf("InsertReading() other user error = %v", err)
	}

	night := models.MeterReading{Date: day, TimeOfDay: models.Night, ReadingKWh: 1012}
	if err := db.InsertReading(ctx, "u1", night); err != nil {
		t.Fatalf("InsertReading() error = %v", err)
	}

	readings, err := db.ReadingsForDate(ctx, "u1", day)
	if err != nil {
		t.Fatalf("ReadingsForDate() error = %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("ReadingsForDate() = %d readings, want 2", len(readings))
	}
	if readings[0].TimeOfDay != models.Morning || !readings[0].Date.Equal(day) {
		t.Errorf("ReadingsForDate()[0] = %+v, want the morning reading", readings[0])
	}

	night.ReadingKWh = 1015
	if err := db.UpdateReading(ctx, "u1", night); err != nil {
		t.Fatalf("UpdateReading() error = %v", err)
	}
	readings, _ = db.ReadingsForDate(ctx, "u1", day)
	if readings[1].ReadingKWh != 1015 {
		t.Errorf("UpdateReading() stored %v, want 1015", readings[1].ReadingKWh)
	}

	missing := models.MeterReading{Date: day.AddDays(1), TimeOfDay: models.Night, ReadingKWh: 1}
	if err := db.UpdateReading(ctx, "u1", missing); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("UpdateReading() missing error = %v, want ErrNotFound", err)
	}
}

func TestListReadings_Range(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	start := models.NewDate(2024, 3, 1)

	for i := 0; i < 5; i++ {
		r := models.MeterReading{Date: start.AddDays(i), TimeOfDay: models.Morning, ReadingKWh: float64(100 + i*10)}
		if err := db.InsertReading(ctx, "u1", r); err != nil {
			t.Fatalf("InsertReading() error = %v", err)
		}
	}

	readings, err := db.ListReadings(ctx, "u1", start.AddDays(1), start.AddDays(3))
	if err != nil {
		t.Fatalf("ListReadings() error = %v", err)
	}
	if len(readings) != 3 {
		t.Errorf("ListReadings() = %d readings, want 3", len(readings))
	}

	all, _ := db.ListReadings(ctx, "u1", models.Date{}, models.Date{})
	if len(all) != 5 {
		t.Errorf("ListReadings() open range = %d readings, want 5", len(all))
	}
}

func TestDailyUsage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	day := models.NewDate(2024, 3, 1)

	u := models.DailyUsage{Date: day, ConsumptionKWh: 12, Cost: 28.2, ReadingsCount: 2}
	if err := db.SaveDailyUsage(ctx, "u1", u); err != nil {
		t.Fatalf("SaveDailyUsage() error = %v", err)
	}

	u.IsAnomaly = true
	u.ConsumptionKWh = 15
	if err := db.SaveDailyUsage(ctx, "u1", u); err != nil {
		t.Fatalf("SaveDailyUsage() upsert error = %v", err)
	}

	batch := []models.DailyUsage{
		{Date: day.AddDays(1), ConsumptionKWh: 10, ReadingsCount: 2},
		{Date: day.AddDays(2), ConsumptionKWh: 0, ReadingsCount: 1},
	}
	if err := db.SaveDailyUsages(ctx, "u1", batch); err != nil {
		t.Fatalf("SaveDailyUsages() error = %v", err)
	}

	usages, err := db.ListDailyUsage(ctx, "u1", models.Date{}, models.Date{})
	if err != nil {
		t.Fatalf("ListDailyUsage() error = %v", err)
	}
	if len(usages) != 3 {
		t.Fatalf("ListDailyUsage() = %d rows, want 3", len(usages))
	}
	if !usages[0].IsAnomaly || usages[0].ConsumptionKWh != 15 {
		t.Errorf("ListDailyUsage()[0] = %+v, want the upserted row", usages[0])
	}
	if usages[2].ReadingsCount != 1 {
		t.Errorf("ListDailyUsage()[2].ReadingsCount = %d, want 1", usages[2].ReadingsCount)
	}

	users, err := db.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 1 || users[0] != "u1" {
		t.Errorf("ListUsers() = %v, want [u1]", users)
	}
}

func TestBillingCycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c, err := db.GetBillingCycle(ctx, "u1")
	if err != nil || c != nil {
		t.Fatalf("GetBillingCycle() = %v, %v, want nil, nil", c, err)
	}

	amount := 470.0
	cycle := models.BillingCycle{
		LastBillDate:       models.NewDate(2024, 3, 1),
		LastBillReading:    1000,
		LastBillAmount:     &amount,
		CurrentReading:     1120,
		CurrentReadingDate: models.NewDate(2024, 3, 11),
		BillingPeriodDays:  60,
	}
	if err := db.SaveBillingCycle(ctx, "u1", cycle); err != nil {
		t.Fatalf("SaveBillingCycle() error = %v", err)
	}

	got, err := db.GetBillingCycle(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBillingCycle() error = %v", err)
	}
	if got.LastBillAmount == nil || *got.LastBillAmount != 470 {
		t.Errorf("GetBillingCycle().LastBillAmount = %v, want 470", got.LastBillAmount)
	}
	if got.CurrentReading != 1120 || !got.CurrentReadingDate.Equal(cycle.CurrentReadingDate) {
		t.Errorf("GetBillingCycle() = %+v", got)
	}

	cycle.LastBillAmount = nil
	if err := db.SaveBillingCycle(ctx, "u1", cycle); err != nil {
		t.Fatalf("SaveBillingCycle() error = %v", err)
	}
	got, _ = db.GetBillingCycle(ctx, "u1")
	if got.LastBillAmount != nil {
		t.Errorf("GetBillingCycle().LastBillAmount = %v, want nil", *got.LastBillAmount)
	}
}

func TestSettingsAndBudget(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s, err := db.GetSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSettings() error = %v", err)
	}
	if s != models.DefaultSettings() {
		t.Errorf("GetSettings() = %+v, want defaults", s)
	}

	s.ElectricityRate = 6.5
	s.Theme = "light"
	s.NotificationsEnabled = false
	if err := db.SaveSettings(ctx, "u1", s); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	got, _ := db.GetSettings(ctx, "u1")
	if got != s {
		t.Errorf("GetSettings() = %+v, want %+v", got, s)
	}

	b, err := db.GetBudget(ctx, "u1")
	if err != nil || b != nil {
		t.Fatalf("GetBudget() = %v, %v, want nil, nil", b, err)
	}
	budget := models.Budget{MonthlyKWhGoal: 300, MonthlyCostGoal: 900, AlertThreshold: 75}
	if err := db.SaveBudget(ctx, "u1", budget); err != nil {
		t.Fatalf("SaveBudget() error = %v", err)
	}
	b, _ = db.GetBudget(ctx, "u1")
	if b == nil || *b != budget {
		t.Errorf("GetBudget() = %v, want %+v", b, budget)
	}
}

func TestAppliances(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ac := models.Appliance{ID: "a1", Name: "AC", PowerRatingWatts: 1500, UsageHoursPerDay: 8, Category: "cooling"}
	fan := models.Appliance{ID: "a2", Name: "Fan", PowerRatingWatts: 75, UsageHoursPerDay: 12, Category: "cooling"}

	for _, a := range []models.Appliance{ac, fan} {
		if err := db.AddAppliance(ctx, "u1", a); err != nil {
			t.Fatalf("AddAppliance() error = %v", err)
		}
	}
	if err := db.AddAppliance(ctx, "u1", ac); !errors.Is(err, models.ErrConflict) {
		t.Errorf("AddAppliance() duplicate error = %v, want ErrConflict", err)
	}

	list, err := db.ListAppliances(ctx, "u1")
	if err != nil {
		t.Fatalf("ListAppliances() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListAppliances() = %d, want 2", len(list))
	}

	if err := db.DeleteAppliance(ctx, "u1", "a1"); err != nil {
		t.Fatalf("DeleteAppliance() error = %v", err)
	}
	if err := db.DeleteAppliance(ctx, "u1", "a1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("DeleteAppliance() twice error = %v, want ErrNotFound", err)
	}
	if err := db.DeleteAppliance(ctx, "u2", "a2"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("DeleteAppliance() other user error = %v, want ErrNotFound", err)
	}

	list, _ = db.ListAppliances(ctx, "u1")
	if len(list) != 1 || !strings.EqualFold(list[0].Name, "fan") {
		t.Errorf("ListAppliances() after delete = %+v", list)
	}
}
