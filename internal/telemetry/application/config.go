package application

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config tunes the ingestion pipeline. Values come from an optional YAML
// file pointed at by THERMOBAND_CONFIG, with env fallbacks for the common
// knobs.
type Config struct {
	ThrottleWindowSeconds int `yaml:"throttle_window_seconds"`
	ResetQueueSize        int `yaml:"reset_queue_size"`
	ReadingsPageLimit     int `yaml:"readings_page_limit"`
}

// LoadConfig loads ingestion tuning from yaml or defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		ThrottleWindowSeconds: int(DefaultThrottleWindow / time.Second),
		ResetQueueSize:        64,
		ReadingsPageLimit:     500,
	}

	if path := os.Getenv("THERMOBAND_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.ThrottleWindowSeconds <= 0 {
		cfg.ThrottleWindowSeconds = int(DefaultThrottleWindow / time.Second)
	}
	if cfg.ResetQueueSize <= 0 {
		cfg.ResetQueueSize = 64
	}
	if cfg.ReadingsPageLimit <= 0 {
		cfg.ReadingsPageLimit = 500
	}
	return cfg, nil
}

// ThrottleWindow returns the configured window as a duration.
func (c Config) ThrottleWindow() time.Duration {
	return time.Duration(c.ThrottleWindowSeconds) * time.Second
}
