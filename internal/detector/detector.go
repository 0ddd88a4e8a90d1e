package detector

import (
	"math"
	"sort"

	"wattwise/internal/models"
)

// AnomalyDetector flags days whose consumption is far above the trailing
// average of the days before them
type AnomalyDetector struct {
	zScoreThreshold float64 // Spreads above the mean to flag a day
	windowDays      int     // Prior days considered
	minHistory      int     // Below this many prior days nothing is flagged
	spreadFloor     float64 // Minimum spread as a fraction of the mean
}

// Option configures an AnomalyDetector
type Option func(*AnomalyDetector)

func WithThreshold(k float64) Option {
	return func(ad *AnomalyDetector) {
		if k > 0 {
			ad.zScoreThreshold = k
		}
	}
}

func WithWindow(days int) Option {
	return func(ad *AnomalyDetector) {
		if days > 0 {
			ad.windowDays = days
		}
	}
}

func WithMinHistory(days int) Option {
	return func(ad *AnomalyDetector) {
		if days > 0 {
			ad.minHistory = days
		}
	}
}

// NewAnomalyDetector creates a new anomaly detector
func NewAnomalyDetector(opts ...Option) *AnomalyDetector {
	ad := &AnomalyDetector{
		zScoreThreshold: 2.0,
		windowDays:      14,
		minHistory:      3,
		spreadFloor:     0.1,
	}
	for _, opt := range opts {
		opt(ad)
	}
	return ad
}

func (ad *AnomalyDetector) Threshold() float64 {
	return ad.zScoreThreshold
}

func (ad *AnomalyDetector) WindowDays() int {
	return ad.windowDays
}

// Assessment is the statistics behind one anomaly decision
type Assessment struct {
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	ZScore    float64 `json:"z_score"`
	Limit     float64 `json:"limit"`
	Samples   int     `json:"samples"`
	Severity  string  `json:"severity"`
	IsAnomaly bool    `json:"is_anomaly"`
}

// Assess scores value against history, the chronological consumption of the
// days before it. Only the last windowDays positive values are used.
func (ad *AnomalyDetector) Assess(value float64, history []float64) Assessment {
	values := make([]float64, 0, len(history))
	for _, v := range history {
		if v > 0 {
			values = append(values, v)
		}
	}
	if len(values) > ad.windowDays {
		values = values[len(values)-ad.windowDays:]
	}

	a := Assessment{Samples: len(values)}
	if len(values) < ad.minHistory {
		return a
	}

	a.Mean = calculateMean(values)
	a.StdDev = calculateStdDev(values, a.Mean)
	spread := math.Max(a.StdDev, a.Mean*ad.spreadFloor)
	a.Limit = a.Mean + ad.zScoreThreshold*spread
	a.ZScore = CalculateZScore(value, a.Mean, spread)

	if value > 0 && value > a.Limit {
		a.IsAnomaly = true
		a.Severity = ad.severity(a.ZScore)
	}
	return a
}

// IsAnomaly reports whether value is unusually high for history.
func (ad *AnomalyDetector) IsAnomaly(value float64, history []float64) bool {
	return ad.Assess(value, history).IsAnomaly
}

// HistoryBefore returns the consumption of the complete days in the window
// ending the day before date, oldest first.
func (ad *AnomalyDetector) HistoryBefore(date models.Date, usages []models.DailyUsage) []float64 {
	from := date.AddDays(-ad.windowDays)
	sorted := sortedByDate(usages)

	var history []float64
	for _, u := range sorted {
		if !u.Complete() || u.Date.Before(from) || !u.Date.Before(date) {
			continue
		}
		history = append(history, u.ConsumptionKWh)
	}
	return history
}

// Rescore recomputes IsAnomaly for every day against its own trailing window.
// It returns the rescored days in date order and the flagged days.
func (ad *AnomalyDetector) Rescore(usages []models.DailyUsage) ([]models.DailyUsage, []models.Anomaly) {
	sorted := sortedByDate(usages)
	var anomalies []models.Anomaly

	for i := range sorted {
		u := &sorted[i]
		if !u.Complete() {
			u.IsAnomaly = false
			continue
		}

		a := ad.Assess(u.ConsumptionKWh, ad.HistoryBefore(u.Date, sorted[:i]))
		u.IsAnomaly = a.IsAnomaly
		if a.IsAnomaly {
			anomalies = append(anomalies, models.Anomaly{
				Date:           u.Date,
				ConsumptionKWh: u.ConsumptionKWh,
				Mean:           roundTo(a.Mean, 2),
				StdDev:         roundTo(a.StdDev, 2),
				ZScore:         roundTo(a.ZScore, 2),
				Severity:       a.Severity,
			})
		}
	}

	return sorted, anomalies
}

// severity buckets how far past the threshold a z-score is
func (ad *AnomalyDetector) severity(zScore float64) string {
	return calculateSeverityFromZScore(zScore - ad.zScoreThreshold)
}

// calculateSeverityFromZScore determines severity from the excess over the threshold
func calculateSeverityFromZScore(excess float64) string {
	if excess > 1.0 {
		return "high"
	} else if excess > 0.5 {
		return "medium"
	}
	return "low"
}

// CalculateZScore calculates the Z-score for a value given mean and standard deviation
func CalculateZScore(value, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (value - mean) / stdDev
}

// IsOutlier checks if a Z-score is beyond k standard deviations in either direction
func IsOutlier(zScore, k float64) bool {
	return math.Abs(zScore) > k
}

func sortedByDate(usages []models.DailyUsage) []models.DailyUsage {
	sorted := make([]models.DailyUsage, len(usages))
	copy(sorted, usages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

// calculateMean calculates the mean of values
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateStdDev calculates the sample standard deviation of values
func calculateStdDev(values []float64, mean float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
