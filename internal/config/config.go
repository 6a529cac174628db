package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Fan      FanConfig      `yaml:"fan"`
	Tach     TachConfig     `yaml:"tach"`
	SelfTest SelfTestConfig `yaml:"selftest"`
}

type FanConfig struct {
	// ThermalZone is the sysfs thermal zone exposing temp and policy files.
	ThermalZone string `yaml:"thermal_zone"`
	// CoolingDevice is the cur_state file used when no PWM chip matches.
	CoolingDevice string `yaml:"cooling_device"`
	// PWMNodeAddr is the device-tree address token identifying the fan PWM
	// controller (PWM14/15 on Rock 5 ITX).
	PWMNodeAddr string `yaml:"pwm_node_addr"`
	// PWMPeriodNS is the PWM period in nanoseconds; 40000 => 25kHz.
	PWMPeriodNS  uint64        `yaml:"pwm_period_ns"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// RPMLogDelta is the absolute RPM change that makes a tick worth logging
	// even when the speed level did not move.
	RPMLogDelta float64 `yaml:"rpm_log_delta"`
}

type TachConfig struct {
	// GPIO is the global GPIO number of the tach input (GPIO4_B3 = 139).
	GPIO int `yaml:"gpio"`
	// Backend selects the edge source: auto, gpiod or sysfs.
	Backend string `yaml:"backend"`
	// PulsesPerRev is fan-specific; most 4-wire fans emit 2 pulses per turn.
	PulsesPerRev int `yaml:"pulses_per_rev"`
}

type SelfTestConfig struct {
	Enable         bool          `yaml:"enable"`
	Dwell          time.Duration `yaml:"dwell"`
	SampleInterval time.Duration `yaml:"sample_interval"`
}

// Default returns the compiled-in configuration for a stock Rock 5 ITX.
func Default() Config {
	return Config{
		Fan: FanConfig{
			ThermalZone:   "/sys/class/thermal/thermal_zone0",
			CoolingDevice: "/sys/class/thermal/cooling_device5/cur_state",
			PWMNodeAddr:   "febf0020",
			PWMPeriodNS:   40000,
			PollInterval:  3 * time.Second,
			RPMLogDelta:   100,
		},
		Tach: TachConfig{
			GPIO:         139,
			Backend:      "auto",
			PulsesPerRev: 2,
		},
		SelfTest: SelfTestConfig{
			Enable:         true,
			Dwell:          10 * time.Second,
			SampleInterval: 2 * time.Second,
		},
	}
}

// Load reads a YAML config from path. An empty path yields Default(); a
// partial file is filled in with defaults so a one-line override works.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	def := Default()

	if cfg.Fan.ThermalZone == "" {
		cfg.Fan.ThermalZone = def.Fan.ThermalZone
	}
	if cfg.Fan.CoolingDevice == "" {
		cfg.Fan.CoolingDevice = def.Fan.CoolingDevice
	}
	if cfg.Fan.PWMNodeAddr == "" {
		cfg.Fan.PWMNodeAddr = def.Fan.PWMNodeAddr
	}
	if cfg.Fan.PWMPeriodNS == 0 {
		cfg.Fan.PWMPeriodNS = def.Fan.PWMPeriodNS
	}
	if cfg.Fan.PollInterval <= 0 {
		cfg.Fan.PollInterval = def.Fan.PollInterval
	}
	if cfg.Fan.RPMLogDelta <= 0 {
		cfg.Fan.RPMLogDelta = def.Fan.RPMLogDelta
	}

	if cfg.Tach.GPIO == 0 {
		cfg.Tach.GPIO = def.Tach.GPIO
	}
	if cfg.Tach.GPIO < 0 {
		return Config{}, fmt.Errorf("tach.gpio must be >= 0")
	}
	if cfg.Tach.Backend == "" {
		cfg.Tach.Backend = def.Tach.Backend
	}
	switch cfg.Tach.Backend {
	case "auto", "gpiod", "sysfs":
	default:
		return Config{}, fmt.Errorf("tach.backend must be auto, gpiod or sysfs (got %q)", cfg.Tach.Backend)
	}
	if cfg.Tach.PulsesPerRev == 0 {
		cfg.Tach.PulsesPerRev = def.Tach.PulsesPerRev
	}
	if cfg.Tach.PulsesPerRev < 1 {
		return Config{}, fmt.Errorf("tach.pulses_per_rev must be >= 1")
	}

	if cfg.SelfTest.Dwell <= 0 {
		cfg.SelfTest.Dwell = def.SelfTest.Dwell
	}
	if cfg.SelfTest.SampleInterval <= 0 {
		cfg.SelfTest.SampleInterval = def.SelfTest.SampleInterval
	}
	if cfg.SelfTest.SampleInterval > cfg.SelfTest.Dwell {
		return Config{}, fmt.Errorf("selftest.sample_interval must not exceed selftest.dwell")
	}

	return cfg, nil
}
