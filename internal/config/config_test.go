package config

import (
	"os"
	"sync"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	if _, err := tmpFile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func reset() {
	instance = nil
	once = *new(sync.Once)
}

func TestLoad(t *testing.T) {
	tempConfig := `server:
  addr: ":9090"
database:
  driver: sqlite
  dsn: "wattwise-test.db"
redis:
  addr: "localhost:6379"
  stream: "meter_readings"
billing:
  cost_mode: slab
  cycle_days: 61
anomaly:
  window_days: 21
  min_history_days: 5
  multiplier: 2.5
`
	reset()

	cfg, err := Load(writeTempConfig(t, tempConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("Expected server addr ':9090', got '%s'", cfg.Server.Addr)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Expected driver 'sqlite', got '%s'", cfg.Database.Driver)
	}

	if cfg.Billing.CycleDays != 61 {
		t.Errorf("Expected 61 cycle days, got %d", cfg.Billing.CycleDays)
	}

	if cfg.Anomaly.Multiplier != 2.5 {
		t.Errorf("Expected multiplier 2.5, got %v", cfg.Anomaly.Multiplier)
	}

	// untouched sections keep their defaults
	if cfg.Prediction.WindowDays != 30 {
		t.Errorf("Expected default prediction window 30, got %d", cfg.Prediction.WindowDays)
	}

	if cfg.Redis.Group != "wattwise_ingest" {
		t.Errorf("Expected default group 'wattwise_ingest', got '%s'", cfg.Redis.Group)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	reset()

	_, err := Load(writeTempConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Expected error for invalid YAML, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	reset()

	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}

func TestLoad_InvalidCostMode(t *testing.T) {
	reset()

	_, err := Load(writeTempConfig(t, "billing:\n  cost_mode: hourly\n"))
	if err == nil {
		t.Error("Expected validation error for unknown cost_mode, got nil")
	}
}

func TestLoad_CustomSlabs(t *testing.T) {
	tempConfig := `billing:
  state: "Test State"
  tariff_version: "v1"
  slabs:
    - min_unit: 0
      max_unit: 50
      rate_per_unit: 1.5
    - min_unit: 51
      rate_per_unit: 3.0
`
	reset()

	cfg, err := Load(writeTempConfig(t, tempConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	table, err := cfg.Tariff()
	if err != nil {
		t.Fatalf("Tariff() error = %v", err)
	}
	if len(table.Slabs()) != 2 {
		t.Errorf("Expected 2 slabs, got %d", len(table.Slabs()))
	}
	if table.Name() != "Test State" {
		t.Errorf("Tariff().Name() = %v, want %v", table.Name(), "Test State")
	}
}

func TestLoad_GappedSlabs(t *testing.T) {
	tempConfig := `billing:
  slabs:
    - min_unit: 0
      max_unit: 50
      rate_per_unit: 1.5
    - min_unit: 80
      rate_per_unit: 3.0
`
	reset()

	_, err := Load(writeTempConfig(t, tempConfig))
	if err == nil {
		t.Error("Expected error for slabs with a gap, got nil")
	}
}

func TestLoadOrDefault(t *testing.T) {
	reset()

	cfg, err := LoadOrDefault("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("LoadOrDefault().Server.Addr = %v, want %v", cfg.Server.Addr, ":8080")
	}
	again, err := LoadOrDefault("/nonexistent/path/config.yaml")
	if err != nil || again != cfg {
		t.Error("LoadOrDefault() should return the same instance on every call")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "flat cost mode",
			mutate:  func(c *Config) { c.Billing.CostMode = "flat" },
			wantErr: false,
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "postgres" },
			wantErr: true,
		},
		{
			name:    "zero cycle days",
			mutate:  func(c *Config) { c.Billing.CycleDays = 0 },
			wantErr: true,
		},
		{
			name:    "window too small",
			mutate:  func(c *Config) { c.Anomaly.WindowDays = 2 },
			wantErr: true,
		},
		{
			name: "min history above window",
			mutate: func(c *Config) {
				c.Anomaly.WindowDays = 7
				c.Anomaly.MinHistoryDays = 10
			},
			wantErr: true,
		},
		{
			name:    "non-positive multiplier",
			mutate:  func(c *Config) { c.Anomaly.Multiplier = 0 },
			wantErr: true,
		},
		{
			name:    "latitude out of range",
			mutate:  func(c *Config) { c.Weather.Latitude = 120 },
			wantErr: true,
		},
		{
			name:    "empty server addr",
			mutate:  func(c *Config) { c.Server.Addr = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTariff(t *testing.T) {
	c := Default()

	table, err := c.Tariff()
	if err != nil {
		t.Fatalf("Tariff() error = %v", err)
	}
	if len(table.Slabs()) != 8 {
		t.Errorf("Tariff() slabs = %d, want 8", len(table.Slabs()))
	}

	c.Billing.CostMode = "flat"
	table, err = c.Tariff()
	if err != nil || table != nil {
		t.Errorf("Tariff() in flat mode = %v, %v, want nil, nil", table, err)
	}
}
