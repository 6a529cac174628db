package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_EmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("cfg=%+v want defaults", cfg)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "fan:\n  poll_interval: 1s\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Fan.PollInterval != 1*time.Second {
		t.Fatalf("poll_interval=%s want 1s", cfg.Fan.PollInterval)
	}
	if cfg.Fan.ThermalZone == "" || cfg.Fan.CoolingDevice == "" || cfg.Fan.PWMNodeAddr == "" {
		t.Fatalf("expected fan path defaults applied, got %+v", cfg.Fan)
	}
	if cfg.Fan.PWMPeriodNS != 40000 {
		t.Fatalf("pwm_period_ns=%d want 40000", cfg.Fan.PWMPeriodNS)
	}
	if cfg.Tach.GPIO != 139 || cfg.Tach.PulsesPerRev != 2 || cfg.Tach.Backend != "auto" {
		t.Fatalf("expected tach defaults applied, got %+v", cfg.Tach)
	}
	if cfg.SelfTest.Dwell != 10*time.Second || cfg.SelfTest.SampleInterval != 2*time.Second {
		t.Fatalf("expected selftest defaults applied, got %+v", cfg.SelfTest)
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := writeTempConfig(t, "fan:\n  pwm_node_addr: 'fd8b0020'\ntach:\n  gpio: 35\n  pulses_per_rev: 4\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Fan.PWMNodeAddr != "fd8b0020" {
		t.Fatalf("pwm_node_addr=%q want fd8b0020", cfg.Fan.PWMNodeAddr)
	}
	if cfg.Tach.GPIO != 35 || cfg.Tach.PulsesPerRev != 4 {
		t.Fatalf("tach=%+v want gpio 35 ppr 4", cfg.Tach)
	}
}

func TestLoad_RejectsBadBackend(t *testing.T) {
	path := writeTempConfig(t, "tach:\n  backend: epoll\n")
	_, err := Load(path)
	requireErrEq(t, err, `tach.backend must be auto, gpiod or sysfs (got "epoll")`)
}

func TestLoad_RejectsNegativeGPIO(t *testing.T) {
	path := writeTempConfig(t, "tach:\n  gpio: -3\n")
	_, err := Load(path)
	requireErrEq(t, err, "tach.gpio must be >= 0")
}

func TestLoad_RejectsSampleIntervalAboveDwell(t *testing.T) {
	path := writeTempConfig(t, "selftest:\n  dwell: 1s\n  sample_interval: 5s\n")
	_, err := Load(path)
	requireErrEq(t, err, "selftest.sample_interval must not exceed selftest.dwell")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}
