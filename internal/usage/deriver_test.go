package usage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wattwise/internal/billing"
	"wattwise/internal/models"
)

var jan15 = models.NewDate(2024, time.January, 15)

func reading(d models.Date, tod models.TimeOfDay, kwh float64) models.MeterReading {
	return models.MeterReading{Date: d, TimeOfDay: tod, ReadingKWh: kwh}
}

func TestDeriveDailyUsage(t *testing.T) {
	tests := []struct {
		name      string
		readings  []models.MeterReading
		wantKWh   float64
		wantCount int
	}{
		{
			name:      "morning and night",
			readings:  []models.MeterReading{reading(jan15, models.Morning, 1000), reading(jan15, models.Night, 1012.5)},
			wantKWh:   12.5,
			wantCount: 2,
		},
		{
			name:      "night before morning in input order",
			readings:  []models.MeterReading{reading(jan15, models.Night, 1012.5), reading(jan15, models.Morning, 1000)},
			wantKWh:   12.5,
			wantCount: 2,
		},
		{
			name:      "fractional readings",
			readings:  []models.MeterReading{reading(jan15, models.Morning, 1540.5), reading(jan15, models.Night, 1552.8)},
			wantKWh:   12.3,
			wantCount: 2,
		},
		{
			name:      "fractional readings reversed",
			readings:  []models.MeterReading{reading(jan15, models.Morning, 1552.8), reading(jan15, models.Night, 1540.5)},
			wantKWh:   0,
			wantCount: 2,
		},
		{
			name:      "meter went backwards clamps to zero",
			readings:  []models.MeterReading{reading(jan15, models.Morning, 1000), reading(jan15, models.Night, 990)},
			wantKWh:   0,
			wantCount: 2,
		},
		{
			name:      "morning only",
			readings:  []models.MeterReading{reading(jan15, models.Morning, 1000)},
			wantKWh:   0,
			wantCount: 1,
		},
		{
			name:      "night only",
			readings:  []models.MeterReading{reading(jan15, models.Night, 1000)},
			wantKWh:   0,
			wantCount: 1,
		},
		{
			name:      "no readings",
			readings:  nil,
			wantKWh:   0,
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveDailyUsage(jan15, tt.readings)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKWh, got.ConsumptionKWh)
			assert.Equal(t, tt.wantCount, got.ReadingsCount)
			assert.True(t, got.Date.Equal(jan15))
		})
	}
}

func TestDeriveDailyUsage_Errors(t *testing.T) {
	tests := []struct {
		name     string
		readings []models.MeterReading
		wantErr  error
	}{
		{
			name:     "duplicate morning",
			readings: []models.MeterReading{reading(jan15, models.Morning, 1000), reading(jan15, models.Morning, 1001)},
			wantErr:  models.ErrConflict,
		},
		{
			name:     "other date",
			readings: []models.MeterReading{reading(jan15.AddDays(1), models.Morning, 1000)},
			wantErr:  models.ErrInvalidInput,
		},
		{
			name:     "negative reading",
			readings: []models.MeterReading{reading(jan15, models.Morning, -1)},
			wantErr:  models.ErrInvalidInput,
		},
		{
			name:     "unknown time of day",
			readings: []models.MeterReading{reading(jan15, "noon", 10)},
			wantErr:  models.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveDailyUsage(jan15, tt.readings)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "DeriveDailyUsage() error = %v, want %v", err, tt.wantErr)
		})
	}
}

func TestDeriveAll(t *testing.T) {
	jan16 := jan15.AddDays(1)
	readings := []models.MeterReading{
		reading(jan16, models.Night, 1030),
		reading(jan15, models.Morning, 1000),
		reading(jan16, models.Morning, 1020),
		reading(jan15, models.Night, 1010),
	}

	usages, err := DeriveAll(readings)
	require.NoError(t, err)
	require.Len(t, usages, 2)
	assert.True(t, usages[0].Date.Equal(jan15))
	assert.Equal(t, 10.0, usages[0].ConsumptionKWh)
	assert.True(t, usages[1].Date.Equal(jan16))
	assert.Equal(t, 10.0, usages[1].ConsumptionKWh)

	_, err = DeriveAll(append(readings, reading(jan16, models.Night, 1031)))
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestDailyCost(t *testing.T) {
	table := billing.TamilNaduDomestic()

	tests := []struct {
		name  string
		table *billing.Table
		kwh   float64
		basis CostBasis
		want  float64
	}{
		{name: "flat", table: table, kwh: 12.5, basis: CostBasis{Mode: CostFlat, FlatRate: 8}, want: 100},
		{name: "nil table is flat", table: nil, kwh: 3, basis: CostBasis{Mode: CostCycle, FlatRate: 6.5}, want: 19.5},
		{name: "cycle inside free slab", table: table, kwh: 10, basis: CostBasis{Mode: CostCycle, CyclePosition: 40}, want: 0},
		{name: "cycle crossing slab", table: table, kwh: 20, basis: CostBasis{Mode: CostCycle, CyclePosition: 90}, want: 23.5},
		{name: "estimate", table: table, kwh: 5, basis: CostBasis{Mode: CostEstimate, EstimatedMonthlyKWh: 150}, want: 11.75},
		{name: "zero consumption", table: table, kwh: 0, basis: CostBasis{Mode: CostFlat, FlatRate: 8}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DailyCost(tt.table, tt.kwh, tt.basis))
		})
	}
}

func TestCyclePosition(t *testing.T) {
	cycle := models.BillingCycle{LastBillReading: 1500}
	assert.Equal(t, 120.0, CyclePosition(1620, cycle))
	assert.Equal(t, 0.0, CyclePosition(1400, cycle))
}
