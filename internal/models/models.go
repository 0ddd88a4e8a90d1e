package models

import "fmt"

// TimeOfDay identifies which of the two daily meter readings a value is.
type TimeOfDay string

const (
	Morning TimeOfDay = "morning"
	Night   TimeOfDay = "night"
)

func (t TimeOfDay) Valid() bool {
	return t == Morning || t == Night
}

// MeterReading is a cumulative meter value taken once in the morning and once at night
type MeterReading struct {
	Date       Date      `json:"date" csv:"date"`
	TimeOfDay  TimeOfDay `json:"time_of_day" csv:"time_of_day"`
	ReadingKWh float64   `json:"reading_kwh" csv:"reading_kwh"`
}

func (r MeterReading) Validate() error {
	if r.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "is required"}
	}
	if !r.TimeOfDay.Valid() {
		return &ValidationError{Field: "time_of_day", Message: fmt.Sprintf("%q must be morning or night", r.TimeOfDay)}
	}
	if r.ReadingKWh < 0 {
		return &ValidationError{Field: "reading_kwh", Message: "must not be negative"}
	}
	return nil
}

// DailyUsage is the consumption derived from one day's reading pair
type DailyUsage struct {
	Date           Date    `json:"date" csv:"date"`
	ConsumptionKWh float64 `json:"consumption_kwh" csv:"consumption_kwh"`
	Cost           float64 `json:"cost" csv:"cost"`
	IsAnomaly      bool    `json:"is_anomaly" csv:"is_anomaly"`
	ReadingsCount  int     `json:"readings_count" csv:"-"`
}

// Complete reports whether both readings of the day were present.
func (u DailyUsage) Complete() bool {
	return u.ReadingsCount >= 2
}

// SlabRate is one tier of a tiered tariff. A nil MaxUnit means the tier is unbounded.
type SlabRate struct {
	MinUnit     float64  `json:"min_unit" yaml:"min_unit"`
	MaxUnit     *float64 `json:"max_unit" yaml:"max_unit"`
	RatePerUnit float64  `json:"rate_per_unit" yaml:"rate_per_unit"`
}

func (s SlabRate) Unbounded() bool {
	return s.MaxUnit == nil
}

// Label renders the tier as "101-200" or "1001-∞".
func (s SlabRate) Label() string {
	if s.MaxUnit == nil {
		return fmt.Sprintf("%g-∞", s.MinUnit)
	}
	return fmt.Sprintf("%g-%g", s.MinUnit, *s.MaxUnit)
}

// SlabCharge is one line of a bill breakdown
type SlabCharge struct {
	Slab   string  `json:"slab"`
	Units  float64 `json:"units"`
	Rate   float64 `json:"rate"`
	Amount float64 `json:"amount"`
}

// BillCalculation is the result of pricing a unit count against a slab table.
type BillCalculation struct {
	TotalUnits  float64      `json:"total_units"`
	TotalAmount float64      `json:"total_amount"`
	AverageRate float64      `json:"average_rate"`
	Breakdown   []SlabCharge `json:"breakdown"`
}

// MonthlyEstimate is a bi-monthly bill of twice the monthly units, halved.
type MonthlyEstimate struct {
	BillCalculation
	BimonthlyUnits  float64 `json:"bimonthly_units"`
	BimonthlyAmount float64 `json:"bimonthly_amount"`
}

// SlabPosition locates a cumulative unit count within the slab table
type SlabPosition struct {
	CurrentSlab     string   `json:"current_slab"`
	CurrentRate     float64  `json:"current_rate"`
	NextSlabAt      *float64 `json:"next_slab_at"`
	UnitsToNextSlab float64  `json:"units_to_next_slab"`
}

// SlabInfo is a displayable tariff tier
type SlabInfo struct {
	Range string  `json:"range"`
	Rate  float64 `json:"rate"`
	Note  string  `json:"note"`
}

type CycleStatus string

const (
	CycleActive CycleStatus = "active"
	CycleEnded  CycleStatus = "ended"
)

// BillingCycle tracks consumption since the last bill anchored by a meter reading.
type BillingCycle struct {
	LastBillDate         Date        `json:"last_bill_date"`
	LastBillReading      float64     `json:"last_bill_reading"`
	LastBillAmount       *float64    `json:"last_bill_amount"`
	CurrentReading       float64     `json:"current_reading"`
	CurrentReadingDate   Date        `json:"current_reading_date"`
	CycleConsumption     float64     `json:"cycle_consumption"`
	DaysInCycle          int         `json:"days_in_cycle"`
	EstimatedCycleEnd    Date        `json:"estimated_cycle_end"`
	BillingPeriodDays    int         `json:"billing_period_days"`
	Status               CycleStatus `json:"status"`
	CurrentSlab          string      `json:"current_slab"`
	CurrentRate          float64     `json:"current_rate"`
	UnitsToNextSlab      float64     `json:"units_to_next_slab"`
	CostSoFar            float64     `json:"cost_so_far"`
	ProjectedConsumption float64     `json:"projected_consumption"`
	ProjectedAmount      float64     `json:"projected_amount"`
}

// Contains reports whether the day falls inside the cycle window.
func (c BillingCycle) Contains(d Date) bool {
	return !d.Before(c.LastBillDate) && !d.After(c.EstimatedCycleEnd)
}

// MonthlyStats summarizes the recorded days of a month
type MonthlyStats struct {
	DaysRecorded int     `json:"days_recorded"`
	TotalKWh     float64 `json:"total_kwh"`
	TotalCost    float64 `json:"total_cost"`
	AvgDailyKWh  float64 `json:"avg_daily_kwh"`
	PeakKWh      float64 `json:"peak_kwh"`
	MinKWh       float64 `json:"min_kwh"`
	AnomalyDays  int     `json:"anomaly_days"`
}

type MonthlyReport struct {
	Month     string       `json:"month"`
	Stats     MonthlyStats `json:"stats"`
	DailyData []DailyUsage `json:"daily_data"`
}

// MonthTotal is one month's row of a yearly summary
type MonthTotal struct {
	Month        string  `json:"month"`
	DaysRecorded int     `json:"days_recorded"`
	TotalKWh     float64 `json:"total_kwh"`
	TotalCost    float64 `json:"total_cost"`
	AvgDailyKWh  float64 `json:"avg_daily_kwh"`
	AnomalyDays  int     `json:"anomaly_days"`
}

type YearlySummary struct {
	Year         int          `json:"year"`
	MonthlyData  []MonthTotal `json:"monthly_data"`
	TotalKWh     float64      `json:"total_kwh"`
	TotalCost    float64      `json:"total_cost"`
	AvgDailyKWh  float64      `json:"avg_daily_kwh"`
	DaysRecorded int          `json:"days_recorded"`
}

// MonthProgress is the running total of the current calendar month
type MonthProgress struct {
	Month           string  `json:"month"`
	KWhSoFar        float64 `json:"kwh_so_far"`
	CostSoFar       float64 `json:"cost_so_far"`
	DaysRecorded    int     `json:"days_recorded"`
	DaysElapsed     int     `json:"days_elapsed"`
	ProgressPercent float64 `json:"progress_percent"`
}

type BillPrediction struct {
	PredictedMonthlyKWh  float64       `json:"predicted_monthly_kwh"`
	PredictedMonthlyCost float64       `json:"predicted_monthly_cost"`
	AvgDailyKWh          float64       `json:"avg_daily_kwh"`
	AvgDailyCost         float64       `json:"avg_daily_cost"`
	DaysUsed             int           `json:"days_used"`
	SlabBreakdown        []SlabCharge  `json:"slab_breakdown"`
	CurrentMonth         MonthProgress `json:"current_month"`
}

// UserSettings holds per-user preferences. ElectricityRate is the flat fallback rate.
type UserSettings struct {
	ElectricityRate      float64 `json:"electricity_rate"`
	NotificationsEnabled bool    `json:"notifications_enabled"`
	WeeklyDigestEnabled  bool    `json:"weekly_digest_enabled"`
	Theme                string  `json:"theme"`
}

func DefaultSettings() UserSettings {
	return UserSettings{
		ElectricityRate:      8.0,
		NotificationsEnabled: true,
		WeeklyDigestEnabled:  true,
		Theme:                "dark",
	}
}

// Appliance is a household device with its nominal draw and daily runtime
type Appliance struct {
	ID               string  `json:"id" csv:"id"`
	Name             string  `json:"name" csv:"name"`
	PowerRatingWatts float64 `json:"power_rating_watts" csv:"power_rating_watts"`
	UsageHoursPerDay float64 `json:"usage_hours_per_day" csv:"usage_hours_per_day"`
	Category         string  `json:"category" csv:"category"`
}

// DailyKWh is the appliance's estimated consumption per day.
func (a Appliance) DailyKWh() float64 {
	return a.PowerRatingWatts * a.UsageHoursPerDay / 1000
}

// Budget is a user's monthly consumption goal
type Budget struct {
	MonthlyKWhGoal  float64 `json:"monthly_kwh_goal"`
	MonthlyCostGoal float64 `json:"monthly_cost_goal"`
	AlertThreshold  float64 `json:"alert_threshold"`
}

type BudgetStatus struct {
	Budget          Budget  `json:"budget"`
	Month           string  `json:"month"`
	CurrentKWh      float64 `json:"current_kwh"`
	CurrentCost     float64 `json:"current_cost"`
	KWhPercent      float64 `json:"kwh_percent"`
	CostPercent     float64 `json:"cost_percent"`
	ProjectedKWh    float64 `json:"projected_kwh"`
	ProjectedCost   float64 `json:"projected_cost"`
	DaysRemaining   int     `json:"days_remaining"`
	ApproachingGoal bool    `json:"approaching_goal"`
	OverGoal        bool    `json:"over_goal"`
}

// Anomaly is a flagged day with the statistics that flagged it.
type Anomaly struct {
	Date           Date     `json:"date"`
	ConsumptionKWh float64  `json:"consumption_kwh"`
	Mean           float64  `json:"mean"`
	StdDev         float64  `json:"std_dev"`
	ZScore         float64  `json:"z_score"`
	Severity       string   `json:"severity"` // "low", "medium", "high"
	MaxTempC       *float64 `json:"max_temp_c,omitempty"`
}

type TrendDirection string

const (
	TrendIncreasing   TrendDirection = "increasing"
	TrendDecreasing   TrendDirection = "decreasing"
	TrendStable       TrendDirection = "stable"
	TrendInsufficient TrendDirection = "insufficient_data"
)

type Trend struct {
	Direction     TrendDirection `json:"trend"`
	ChangePercent float64        `json:"change_percent"`
	FirstHalfAvg  float64        `json:"first_half_avg"`
	SecondHalfAvg float64        `json:"second_half_avg"`
}

type UsagePatterns struct {
	WeekdayAvg   float64            `json:"weekday_avg"`
	WeekendAvg   float64            `json:"weekend_avg"`
	PeakDay      string             `json:"peak_day"`
	LowDay       string             `json:"low_day"`
	ByWeekday    map[string]float64 `json:"by_weekday"`
	DaysAnalyzed int                `json:"days_analyzed"`
}

type WeeklyDigest struct {
	WeekStart       Date           `json:"week_start"`
	WeekEnd         Date           `json:"week_end"`
	TotalKWh        float64        `json:"total_kwh"`
	TotalCost       float64        `json:"total_cost"`
	AvgDailyKWh     float64        `json:"avg_daily_kwh"`
	PreviousWeekKWh float64        `json:"previous_week_kwh"`
	ChangePercent   float64        `json:"change_percent"`
	Trend           TrendDirection `json:"trend"`
	AnomalyDays     int            `json:"anomaly_days"`
	DaysRecorded    int            `json:"days_recorded"`
}

type DashboardSummary struct {
	Today      *DailyUsage    `json:"today"`
	WeekKWh    float64        `json:"week_kwh"`
	WeekCost   float64        `json:"week_cost"`
	Prediction BillPrediction `json:"prediction"`
	Recent     []DailyUsage   `json:"recent"`
	Cycle      *BillingCycle  `json:"billing_cycle"`
}

// Tip is one energy-saving recommendation
type Tip struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Savings  string `json:"savings,omitempty"`
	Priority string `json:"priority"` // "low", "medium", "high"
}

// TipsReport groups recommendations by where they came from
type TipsReport struct {
	ApplianceSpecific    []Tip   `json:"appliance_specific"`
	UsageBased           []Tip   `json:"usage_based"`
	General              []Tip   `json:"general_tips"`
	AvgDailyKWh          float64 `json:"avg_daily_kwh"`
	TotalRecommendations int     `json:"total_recommendations"`
	HighPriorityCount    int     `json:"high_priority_count"`
}
