package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wattwise/internal/models"
)

func TestNewOpenMeteoClient(t *testing.T) {
	client := NewOpenMeteoClient()
	if client == nil {
		t.Fatal("NewOpenMeteoClient() returned nil")
	}

	if client.client == nil {
		t.Error("OpenMeteoClient.client should not be nil")
	}
}

func TestBuildURL(t *testing.T) {
	client := NewOpenMeteoClient()

	tests := []struct {
		name   string
		params ForecastParams
		want   string
	}{
		{
			name: "daily max for a date range",
			params: ForecastParams{
				Latitude:    13.0827,
				Longitude:   80.2707,
				DailyFields: []string{"temperature_2m_max"},
				StartDate:   models.NewDate(2024, 4, 1),
				EndDate:     models.NewDate(2024, 4, 7),
			},
			want: "https://api.open-meteo.com/v1/forecast?latitude=13.0827&longitude=80.2707&timezone=auto&temperature_unit=celsius&start_date=2024-04-01&end_date=2024-04-07&daily=temperature_2m_max",
		},
		{
			name: "custom timezone and temperature unit",
			params: ForecastParams{
				Latitude:        51.5074,
				Longitude:       -0.1278,
				DailyFields:     []string{"temperature_2m_max", "temperature_2m_min"},
				Timezone:        "Europe/London",
				TemperatureUnit: "fahrenheit",
			},
			want: "https://api.open-meteo.com/v1/forecast?latitude=51.5074&longitude=-0.1278&timezone=Europe/London&temperature_unit=fahrenheit&daily=temperature_2m_max,temperature_2m_min",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := client.BuildURL(tt.params)
			if got != tt.want {
				t.Errorf("BuildURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetDailyForecast_NoFields(t *testing.T) {
	client := NewOpenMeteoClient()

	_, err := client.GetDailyForecast(context.Background(), ForecastParams{Latitude: 13, Longitude: 80})
	if err == nil {
		t.Fatal("GetDailyForecast() expected error for empty fields, got nil")
	}

	expectedMsg := "GetDailyForecast: no weather fields provided"
	if err.Error() != expectedMsg {
		t.Errorf("GetDailyForecast() error = %v, want %v", err.Error(), expectedMsg)
	}
}

func TestDailyMaxTemperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("start_date"); got != "2024-04-01" {
			t.Errorf("start_date = %v, want 2024-04-01", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"daily":{"time":["2024-04-01","2024-04-02","2024-04-03"],"temperature_2m_max":[34.5,null,36.1]}}`))
	}))
	defer srv.Close()

	client := NewOpenMeteoClientWithURL(srv.URL)
	temps, err := client.DailyMaxTemperature(context.Background(), 13.08, 80.27, models.NewDate(2024, 4, 1), models.NewDate(2024, 4, 3))
	if err != nil {
		t.Fatalf("DailyMaxTemperature() error = %v", err)
	}

	if len(temps) != 2 {
		t.Errorf("DailyMaxTemperature() = %v, want 2 days", temps)
	}
	if temps["2024-04-01"] != 34.5 || temps["2024-04-03"] != 36.1 {
		t.Errorf("DailyMaxTemperature() = %v", temps)
	}
	if _, ok := temps["2024-04-02"]; ok {
		t.Error("DailyMaxTemperature() should skip null values")
	}
}

func TestDailyMaxTemperature_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"reason":"bad range"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewOpenMeteoClientWithURL(srv.URL)
	_, err := client.DailyMaxTemperature(context.Background(), 13.08, 80.27, models.NewDate(2024, 4, 1), models.NewDate(2024, 4, 3))
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Errorf("DailyMaxTemperature() error = %v, want status 400", err)
	}
}

func TestDailyMaxTemperature_BadRange(t *testing.T) {
	client := NewOpenMeteoClient()
	_, err := client.DailyMaxTemperature(context.Background(), 0, 0, models.NewDate(2024, 4, 3), models.NewDate(2024, 4, 1))
	if err == nil {
		t.Error("DailyMaxTemperature() expected error for reversed range")
	}
}
