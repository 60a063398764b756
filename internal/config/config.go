package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/petems/rate-tray/internal/rate"
	"gopkg.in/yaml.v3"
)

const (
	MinDebounceMs     = 100
	MaxDebounceMs     = 1000
	DefaultDebounceMs = 300
)

type Config struct {
	LogLevel            string   `yaml:"log_level"`
	AutoSwitch          bool     `yaml:"auto_switch"`
	DebounceMs          int      `yaml:"debounce_ms"`
	PreferHigherFamily  bool     `yaml:"prefer_higher_family"`
	UseFixedFamilyRates bool     `yaml:"use_fixed_family_rates"`
	Fixed44_1FamilyRate int      `yaml:"fixed_44_1_family_rate"`
	Fixed48FamilyRate   int      `yaml:"fixed_48_family_rate"`
	DeviceID            string   `yaml:"device_id"` // "" = default output
	LogSubsystems       []string `yaml:"log_subsystems"`
	TrackInfo           bool     `yaml:"track_info"`

	path string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:            "info",
		AutoSwitch:          true,
		DebounceMs:          DefaultDebounceMs,
		PreferHigherFamily:  true,
		UseFixedFamilyRates: false,
		Fixed44_1FamilyRate: int(rate.R88200),
		Fixed48FamilyRate:   int(rate.R96000),
		LogSubsystems:       defaultSubsystems(),
		TrackInfo:           true,
		path:                configPath(),
	}
}

func defaultSubsystems() []string {
	if runtime.GOOS == "darwin" {
		return []string{"com.apple.Music", "com.apple.coremedia"}
	}
	return []string{"mpd", "pipewire", "wireplumber"}
}

// Load reads the config from the platform config dir or returns defaults
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads the config from path, falling back to the platform path
// when path is empty.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		cfg.path = path
	}

	data, err := os.ReadFile(cfg.path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", cfg.path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate clamps the debounce window and rejects non-canonical fixed rates.
// A zero fixed rate means unset.
func (c *Config) Validate() error {
	if c.DebounceMs < MinDebounceMs {
		c.DebounceMs = MinDebounceMs
	}
	if c.DebounceMs > MaxDebounceMs {
		c.DebounceMs = MaxDebounceMs
	}
	for name, v := range map[string]int{
		"fixed_44_1_family_rate": c.Fixed44_1FamilyRate,
		"fixed_48_family_rate":   c.Fixed48FamilyRate,
	} {
		if v != 0 && !rate.Hz(v).IsCanonical() {
			return fmt.Errorf("%s: %d is not one of %v", name, v, rate.Canonical)
		}
	}
	return nil
}

// Policy projects the preferences the rate pipeline reads.
func (c *Config) Policy() rate.Policy {
	return rate.Policy{
		AutoSwitch:          c.AutoSwitch,
		DebounceWindow:      time.Duration(c.DebounceMs) * time.Millisecond,
		PreferHigherFamily:  c.PreferHigherFamily,
		UseFixedFamilyRates: c.UseFixedFamilyRates,
		Fixed44_1FamilyRate: rate.Hz(c.Fixed44_1FamilyRate),
		Fixed48FamilyRate:   rate.Hz(c.Fixed48FamilyRate),
	}
}

// Path returns the file the config is loaded from and saved to.
func (c *Config) Path() string {
	if c.path == "" {
		return configPath()
	}
	return c.path
}

// Save writes the config to disk
func (c *Config) Save() error {
	path := c.Path()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "rate-tray", "config.yaml")
}
