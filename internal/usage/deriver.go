package usage

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"wattwise/internal/billing"
	"wattwise/internal/models"
)

// Pair holds the morning and night readings of one day. Either may be nil.
type Pair struct {
	Morning *models.MeterReading
	Night   *models.MeterReading
}

func (p Pair) Count() int {
	n := 0
	if p.Morning != nil {
		n++
	}
	if p.Night != nil {
		n++
	}
	return n
}

// PairReadings splits one day's readings into morning and night. A second
// reading for the same time of day is an inconsistent state and returns ErrConflict.
func PairReadings(date models.Date, readings []models.MeterReading) (Pair, error) {
	var pair Pair
	for i := range readings {
		r := readings[i]
		if err := r.Validate(); err != nil {
			return Pair{}, err
		}
		if !r.Date.Equal(date) {
			return Pair{}, &models.ValidationError{
				Field:   "date",
				Message: fmt.Sprintf("reading dated %s passed for %s", r.Date, date),
			}
		}

		slot := &pair.Morning
		if r.TimeOfDay == models.Night {
			slot = &pair.Night
		}
		if *slot != nil {
			return Pair{}, fmt.Errorf("%w: duplicate %s reading for %s", models.ErrConflict, r.TimeOfDay, date)
		}
		*slot = &r
	}
	return pair, nil
}

// DeriveDailyUsage turns a day's readings into its consumption. With both
// readings the consumption is max(0, night - morning); otherwise it is 0 and
// ReadingsCount tells how many readings were seen.
func DeriveDailyUsage(date models.Date, readings []models.MeterReading) (models.DailyUsage, error) {
	pair, err := PairReadings(date, readings)
	if err != nil {
		return models.DailyUsage{}, err
	}

	usage := models.DailyUsage{Date: date, ReadingsCount: pair.Count()}
	if pair.Morning != nil && pair.Night != nil {
		consumption := pair.Night.ReadingKWh - pair.Morning.ReadingKWh
		if consumption < 0 {
			consumption = 0
		}
		usage.ConsumptionKWh = billing.Round2(consumption)
	}
	return usage, nil
}

// DeriveAll groups readings by date and derives one DailyUsage per date in ascending order.
func DeriveAll(readings []models.MeterReading) ([]models.DailyUsage, error) {
	byDate := lo.GroupBy(readings, func(r models.MeterReading) string {
		return r.Date.String()
	})

	keys := lo.Keys(byDate)
	sort.Strings(keys)

	usages := make([]models.DailyUsage, 0, len(keys))
	for _, key := range keys {
		dayReadings := byDate[key]
		usage, err := DeriveDailyUsage(dayReadings[0].Date, dayReadings)
		if err != nil {
			return nil, err
		}
		usages = append(usages, usage)
	}
	return usages, nil
}
