package cycle

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wattwise/internal/billing"
	"wattwise/internal/models"
)

var billDate = models.NewDate(2024, time.March, 1)

func TestImportBill(t *testing.T) {
	tracker := NewTracker(billing.TamilNaduDomestic(), 0)
	amount := 1250.0

	c, err := tracker.ImportBill(billDate, 1500, &amount)
	require.NoError(t, err)

	assert.Equal(t, 1500.0, c.LastBillReading)
	assert.Equal(t, 1500.0, c.CurrentReading)
	assert.Equal(t, 0.0, c.CycleConsumption)
	assert.Equal(t, 0, c.DaysInCycle)
	assert.True(t, c.EstimatedCycleEnd.Equal(billDate.AddDays(60)))
	assert.Equal(t, 60, c.BillingPeriodDays)
	assert.Equal(t, models.CycleActive, c.Status)
	assert.Equal(t, "0-100", c.CurrentSlab)
	require.NotNil(t, c.LastBillAmount)
	assert.Equal(t, 1250.0, *c.LastBillAmount)

	amount = 1
	assert.Equal(t, 1250.0, *c.LastBillAmount, "ImportBill() must copy the amount")
}

func TestImportBill_Invalid(t *testing.T) {
	tracker := NewTracker(nil, 60)
	negative := -5.0

	_, err := tracker.ImportBill(models.Date{}, 100, nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = tracker.ImportBill(billDate, -1, nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = tracker.ImportBill(billDate, 100, &negative)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestRefresh(t *testing.T) {
	tracker := NewTracker(billing.TamilNaduDomestic(), 60)
	c, err := tracker.ImportBill(billDate, 1500, nil)
	require.NoError(t, err)

	c = tracker.Refresh(c, 1620, billDate.AddDays(10))
	assert.Equal(t, 120.0, c.CycleConsumption)
	assert.Equal(t, 10, c.DaysInCycle)
	assert.True(t, c.EstimatedCycleEnd.Equal(billDate.AddDays(60)))
	assert.Equal(t, "101-200", c.CurrentSlab)
	assert.Equal(t, 2.35, c.CurrentRate)
	assert.Equal(t, 81.0, c.UnitsToNextSlab)
	// 20 units @2.35
	assert.Equal(t, 47.0, c.CostSoFar)
	assert.Equal(t, 720.0, c.ProjectedConsumption)
	assert.Equal(t, StateActive, tracker.State(&c))
}

func TestRefresh_IgnoresStaleReadings(t *testing.T) {
	tracker := NewTracker(nil, 60)
	c, _ := tracker.ImportBill(billDate, 1500, nil)
	c = tracker.Refresh(c, 1620, billDate.AddDays(10))

	before := tracker.Refresh(c, 1400, billDate.AddDays(-3))
	assert.Equal(t, 120.0, before.CycleConsumption)

	older := tracker.Refresh(c, 1550, billDate.AddDays(5))
	assert.Equal(t, 120.0, older.CycleConsumption)
	assert.Equal(t, 10, older.DaysInCycle)
}

func TestRefresh_MeterBelowBillClampsToZero(t *testing.T) {
	tracker := NewTracker(nil, 60)
	c, _ := tracker.ImportBill(billDate, 1500, nil)

	c = tracker.Refresh(c, 1490, billDate.AddDays(2))
	assert.Equal(t, 0.0, c.CycleConsumption)
	assert.Equal(t, 2, c.DaysInCycle)
}

func TestRefresh_EndsCycle(t *testing.T) {
	tracker := NewTracker(nil, 60)
	c, _ := tracker.ImportBill(billDate, 1500, nil)

	c = tracker.Refresh(c, 1900, billDate.AddDays(60))
	assert.Equal(t, models.CycleActive, c.Status)
	assert.Equal(t, StateActive, tracker.State(&c))

	c = tracker.Refresh(c, 1910, billDate.AddDays(61))
	assert.Equal(t, models.CycleEnded, c.Status)
	assert.Equal(t, StateEnded, tracker.State(&c))
	assert.Equal(t, 410.0, c.ProjectedConsumption)
}

func TestRefreshFromReadings(t *testing.T) {
	tracker := NewTracker(nil, 60)
	c, _ := tracker.ImportBill(billDate, 1500, nil)

	readings := []models.MeterReading{
		{Date: billDate.AddDays(-1), TimeOfDay: models.Night, ReadingKWh: 1499},
		{Date: billDate.AddDays(3), TimeOfDay: models.Morning, ReadingKWh: 1530},
		{Date: billDate.AddDays(3), TimeOfDay: models.Night, ReadingKWh: 1542},
		{Date: billDate.AddDays(1), TimeOfDay: models.Night, ReadingKWh: 1510},
	}

	c = tracker.RefreshFromReadings(c, readings)
	assert.Equal(t, 42.0, c.CycleConsumption)
	assert.Equal(t, 3, c.DaysInCycle)
}

func TestAsOf(t *testing.T) {
	tracker := NewTracker(nil, 60)
	c, _ := tracker.ImportBill(billDate, 1000, nil)

	stale := tracker.AsOf(c, billDate.AddDays(92))
	assert.Equal(t, 92, stale.DaysInCycle)
	assert.Equal(t, models.CycleEnded, stale.Status)
	assert.Equal(t, StateEnded, tracker.State(&stale))
	assert.Equal(t, 0.0, stale.CycleConsumption)

	// a reading newer than asOf keeps its own day count
	c = tracker.Refresh(c, 1120, billDate.AddDays(10))
	kept := tracker.AsOf(c, billDate.AddDays(5))
	assert.Equal(t, 10, kept.DaysInCycle)
	assert.Equal(t, models.CycleActive, kept.Status)

	aged := tracker.AsOf(c, billDate.AddDays(20))
	assert.Equal(t, 20, aged.DaysInCycle)
	assert.Equal(t, 120.0, aged.CycleConsumption)
	assert.Equal(t, 720.0, aged.ProjectedConsumption)
	assert.Equal(t, StateActive, tracker.State(&aged))
}

func TestBillingCycle_JSONRoundTrip(t *testing.T) {
	tracker := NewTracker(nil, 60)
	amount := 470.0
	c, err := tracker.ImportBill(billDate, 1500, &amount)
	require.NoError(t, err)
	c = tracker.Refresh(c, 1620, billDate.AddDays(10))

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded models.BillingCycle
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, c, decoded)
}

func TestState_NoCycle(t *testing.T) {
	tracker := NewTracker(nil, 60)
	assert.Equal(t, StateNoCycle, tracker.State(nil))
}

func TestCustomCycleLength(t *testing.T) {
	tracker := NewTracker(nil, 30)
	c, _ := tracker.ImportBill(billDate, 0, nil)
	assert.True(t, c.EstimatedCycleEnd.Equal(billDate.AddDays(30)))

	c = tracker.Refresh(c, 50, billDate.AddDays(31))
	assert.Equal(t, StateEnded, tracker.State(&c))
}

func TestDescribe(t *testing.T) {
	tracker := NewTracker(nil, 60)
	c, _ := tracker.ImportBill(billDate, 1500, nil)
	c = tracker.Refresh(c, 1620, billDate.AddDays(10))

	assert.Equal(t, "120.00 units in 10 days since 2024-03-01 (slab 101-200 @ ₹2.35, ends 2024-04-30)", Describe(c))
}
