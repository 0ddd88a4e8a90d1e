package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"wattwise/internal/billing"
	"wattwise/internal/models"
)

var (
	instance *Config
	once     sync.Once
)

// Config is the YAML configuration shared by every binary
type Config struct {
	Server struct {
		Addr string `yaml:"addr" validate:"required"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver" validate:"oneof=mysql sqlite"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Stream   string `yaml:"stream"`
		Group    string `yaml:"group"`
	} `yaml:"redis"`
	Billing struct {
		State         string            `yaml:"state"`
		TariffVersion string            `yaml:"tariff_version"`
		CostMode      string            `yaml:"cost_mode" validate:"oneof=slab flat"`
		CycleDays     int               `yaml:"cycle_days" validate:"gte=1,lte=366"`
		Slabs         []models.SlabRate `yaml:"slabs"`
	} `yaml:"billing"`
	Anomaly struct {
		WindowDays     int     `yaml:"window_days" validate:"gte=3,lte=60"`
		MinHistoryDays int     `yaml:"min_history_days" validate:"gte=1"`
		Multiplier     float64 `yaml:"multiplier" validate:"gt=0"`
	} `yaml:"anomaly"`
	Prediction struct {
		WindowDays int `yaml:"window_days" validate:"gte=1,lte=365"`
	} `yaml:"prediction"`
	Weather struct {
		Enabled   bool    `yaml:"enabled"`
		Latitude  float64 `yaml:"latitude" validate:"gte=-90,lte=90"`
		Longitude float64 `yaml:"longitude" validate:"gte=-180,lte=180"`
	} `yaml:"weather"`
	Ingest struct {
		Async bool `yaml:"async"`
	} `yaml:"ingest"`
	Logging struct {
		Debug bool `yaml:"debug"`
	} `yaml:"logging"`
}

// Default returns the configuration used when a field is left out of the file.
func Default() *Config {
	c := &Config{}
	c.Server.Addr = ":8080"
	c.Database.Driver = "mysql"
	c.Redis.Addr = "localhost:6379"
	c.Redis.Stream = "meter_readings"
	c.Redis.Group = "wattwise_ingest"
	c.Billing.State = "Tamil Nadu"
	c.Billing.TariffVersion = "TNEB domestic bi-monthly"
	c.Billing.CostMode = "slab"
	c.Billing.CycleDays = 60
	c.Anomaly.WindowDays = 14
	c.Anomaly.MinHistoryDays = 3
	c.Anomaly.Multiplier = 2.0
	c.Prediction.WindowDays = 30
	// Chennai
	c.Weather.Latitude = 13.0827
	c.Weather.Longitude = 80.2707
	return c
}

func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		instance = Default()

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file %s: %w", configPath, readErr)
			return
		}

		if parseErr := yaml.Unmarshal(data, instance); parseErr != nil {
			err = fmt.Errorf("failed to parse config: %w", parseErr)
			return
		}

		if validateErr := instance.validate(); validateErr != nil {
			err = validateErr
			return
		}
	})

	return instance, err
}

// LoadOrDefault loads configPath, falling back to Default when the file does not exist.
func LoadOrDefault(configPath string) (*Config, error) {
	if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
		once.Do(func() {
			instance = Default()
		})
		return instance, nil
	}
	return Load(configPath)
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Anomaly.MinHistoryDays > c.Anomaly.WindowDays {
		return fmt.Errorf("anomaly.min_history_days cannot exceed anomaly.window_days")
	}
	if _, err := c.Tariff(); err != nil {
		return fmt.Errorf("invalid billing.slabs: %w", err)
	}
	return nil
}

// Tariff builds the slab table. With no slabs configured the TNEB domestic
// table is used. In flat cost mode it returns nil and callers price with the
// user's flat electricity rate.
func (c *Config) Tariff() (*billing.Table, error) {
	if c.Billing.CostMode == "flat" {
		return nil, nil
	}
	if len(c.Billing.Slabs) == 0 {
		return billing.TamilNaduDomestic(), nil
	}
	return billing.NewTable(c.Billing.State, c.Billing.TariffVersion, c.Billing.Slabs)
}
