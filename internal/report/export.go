package report

import (
	"io"
	"sort"

	"github.com/gocarina/gocsv"

	"wattwise/internal/billing"
	"wattwise/internal/models"
)

type usageRow struct {
	Date          string  `csv:"Date"`
	KWh           float64 `csv:"Consumption (kWh)"`
	Cost          float64 `csv:"Cost (₹)"`
	Anomaly       string  `csv:"Anomaly"`
	ReadingsCount int     `csv:"Readings Count"`
}

type applianceRow struct {
	Name     string  `csv:"Name"`
	Watts    float64 `csv:"Power Rating (W)"`
	Hours    float64 `csv:"Daily Usage (Hours)"`
	DailyKWh float64 `csv:"Est. Daily kWh"`
	Category string  `csv:"Category"`
}

// WriteCSV writes daily usage, newest first, as CSV.
func WriteCSV(w io.Writer, usages []models.DailyUsage) error {
	sorted := make([]models.DailyUsage, len(usages))
	copy(sorted, usages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})

	rows := make([]*usageRow, 0, len(sorted))
	for _, u := range sorted {
		anomaly := "No"
		if u.IsAnomaly {
			anomaly = "Yes"
		}
		rows = append(rows, &usageRow{
			Date:          u.Date.String(),
			KWh:           u.ConsumptionKWh,
			Cost:          u.Cost,
			Anomaly:       anomaly,
			ReadingsCount: u.ReadingsCount,
		})
	}
	return gocsv.Marshal(&rows, w)
}

// WriteAppliancesCSV writes the appliance inventory with estimated daily kWh.
func WriteAppliancesCSV(w io.Writer, appliances []models.Appliance) error {
	rows := make([]*applianceRow, 0, len(appliances))
	for _, a := range appliances {
		rows = append(rows, &applianceRow{
			Name:     a.Name,
			Watts:    a.PowerRatingWatts,
			Hours:    a.UsageHoursPerDay,
			DailyKWh: billing.Round2(a.DailyKWh()),
			Category: a.Category,
		})
	}
	return gocsv.Marshal(&rows, w)
}
