package service

import (
	"fmt"

	"wattwise/internal/config"
	"wattwise/internal/detector"
	"wattwise/internal/weather"
)

// OptionsFromConfig maps the billing, anomaly, prediction and weather
// sections of cfg onto tracker options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	tariff, err := cfg.Tariff()
	if err != nil {
		return Options{}, fmt.Errorf("failed to build tariff: %w", err)
	}

	opts := Options{
		Tariff:    tariff,
		CycleDays: cfg.Billing.CycleDays,
		Detector: detector.NewAnomalyDetector(
			detector.WithThreshold(cfg.Anomaly.Multiplier),
			detector.WithWindow(cfg.Anomaly.WindowDays),
			detector.WithMinHistory(cfg.Anomaly.MinHistoryDays),
		),
		PredictionWindow: cfg.Prediction.WindowDays,
	}
	if cfg.Weather.Enabled {
		opts.Weather = weather.NewOpenMeteoClient()
		opts.Latitude = cfg.Weather.Latitude
		opts.Longitude = cfg.Weather.Longitude
	}
	return opts, nil
}
