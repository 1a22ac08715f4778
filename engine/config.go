package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/becomeliminal/recall/memory/weights"
)

// Config is the YAML-loadable manager configuration. Zero fields keep their
// defaults, so a partial file is fine.
type Config struct {
	// DataDir is where the flat-file store keeps its per-type files.
	DataDir string `yaml:"data_dir"`

	// SearchThreshold is the minimum semantic similarity for results.
	SearchThreshold float64 `yaml:"search_threshold"`

	// CacheSize is the query cache capacity.
	CacheSize int `yaml:"cache_size"`

	// MaintenanceMinutes is the background maintenance period.
	MaintenanceMinutes int `yaml:"maintenance_minutes"`

	// Weights tunes the importance scoring.
	Weights WeightSettings `yaml:"weights"`
}

// WeightSettings mirrors weights.Config with hour-granularity durations for
// readable YAML.
type WeightSettings struct {
	InitialWeight    float64 `yaml:"initial_weight"`
	AccessBoost      float64 `yaml:"access_boost"`
	MaxWeight        float64 `yaml:"max_weight"`
	HalfLifeHours    float64 `yaml:"half_life_hours"`
	ExpireAfterHours float64 `yaml:"expire_after_hours"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	w := weights.DefaultConfig()
	return Config{
		SearchThreshold:    DefaultSearchThreshold,
		CacheSize:          DefaultCacheSize,
		MaintenanceMinutes: int(defaultMaintenanceInterval / time.Minute),
		Weights: WeightSettings{
			InitialWeight:    w.InitialWeight,
			AccessBoost:      w.AccessBoost,
			MaxWeight:        w.MaxWeight,
			HalfLifeHours:    w.HalfLife.Hours(),
			ExpireAfterHours: w.ExpireAfter.Hours(),
		},
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// WeightConfig converts the YAML settings to the collaborator's form.
func (c Config) WeightConfig() weights.Config {
	return weights.Config{
		InitialWeight: c.Weights.InitialWeight,
		AccessBoost:   c.Weights.AccessBoost,
		MaxWeight:     c.Weights.MaxWeight,
		HalfLife:      time.Duration(c.Weights.HalfLifeHours * float64(time.Hour)),
		ExpireAfter:   time.Duration(c.Weights.ExpireAfterHours * float64(time.Hour)),
	}
}

// Options expands the configuration into manager options.
func (c Config) Options() []Option {
	opts := []Option{
		WithSearchThreshold(c.SearchThreshold),
		WithCacheSize(c.CacheSize),
		WithWeightConfig(c.WeightConfig()),
	}
	if c.MaintenanceMinutes > 0 {
		opts = append(opts, WithMaintenanceInterval(time.Duration(c.MaintenanceMinutes)*time.Minute))
	}
	return opts
}
