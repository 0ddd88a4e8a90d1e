package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wattwise/internal/models"
)

const baseURL = "https://api.open-meteo.com/v1/forecast"

// OpenMeteoClient is a client for the Open-Meteo API
type OpenMeteoClient struct {
	client  *http.Client
	baseURL string
}

type ForecastParams struct {
	Latitude        float64
	Longitude       float64
	DailyFields     []string
	StartDate       models.Date
	EndDate         models.Date
	Timezone        string
	TemperatureUnit string
}

// DailyForecast is the "daily" block of an Open-Meteo response. Missing
// values arrive as null.
type DailyForecast struct {
	Daily struct {
		Time             []string   `json:"time"`
		Temperature2mMax []*float64 `json:"temperature_2m_max"`
	} `json:"daily"`
}

// NewOpenMeteoClient creates a new Open-Meteo API client
func NewOpenMeteoClient() *OpenMeteoClient {
	return NewOpenMeteoClientWithURL(baseURL)
}

func NewOpenMeteoClientWithURL(url string) *OpenMeteoClient {
	return &OpenMeteoClient{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: url,
	}
}

// Builds URL for OpenMeteoClient request
func (c *OpenMeteoClient) BuildURL(p ForecastParams) string {
	if p.Timezone == "" {
		p.Timezone = "auto"
	}

	if p.TemperatureUnit == "" {
		p.TemperatureUnit = "celsius"
	}

	url := fmt.Sprintf("%s?latitude=%.4f&longitude=%.4f&timezone=%s&temperature_unit=%s",
		c.baseURL, p.Latitude, p.Longitude, p.Timezone, p.TemperatureUnit)

	if !p.StartDate.IsZero() {
		url += "&start_date=" + p.StartDate.String()
	}

	if !p.EndDate.IsZero() {
		url += "&end_date=" + p.EndDate.String()
	}

	if len(p.DailyFields) > 0 {
		url += "&daily=" + strings.Join(p.DailyFields, ",")
	}

	return url
}

func (c *OpenMeteoClient) GetDailyForecast(ctx context.Context, p ForecastParams) (*DailyForecast, error) {
	if len(p.DailyFields) == 0 {
		return nil, fmt.Errorf("GetDailyForecast: no weather fields provided")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BuildURL(p), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch forecast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var forecast DailyForecast
	if err := json.NewDecoder(resp.Body).Decode(&forecast); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &forecast, nil
}

// DailyMaxTemperature returns the maximum temperature in °C keyed by
// "2006-01-02" for each day from..to that has a value.
func (c *OpenMeteoClient) DailyMaxTemperature(ctx context.Context, lat, lon float64, from, to models.Date) (map[string]float64, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("DailyMaxTemperature: end %s before start %s", to, from)
	}

	forecast, err := c.GetDailyForecast(ctx, ForecastParams{
		Latitude:    lat,
		Longitude:   lon,
		DailyFields: []string{"temperature_2m_max"},
		StartDate:   from,
		EndDate:     to,
	})
	if err != nil {
		return nil, err
	}

	temps := make(map[string]float64, len(forecast.Daily.Time))
	for i, day := range forecast.Daily.Time {
		if i >= len(forecast.Daily.Temperature2mMax) || forecast.Daily.Temperature2mMax[i] == nil {
			continue
		}
		temps[day] = *forecast.Daily.Temperature2mMax[i]
	}
	return temps, nil
}
