package fancontrol

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// failSafeTempC is substituted when the sensor cannot be read; it maps to the
// highest speed level so a dead sensor errs toward full cooling.
const failSafeTempC = 75.0

// parseTempC handles both milli-degree (52345) and plain-degree (52) zones.
func parseTempC(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("temp empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse temp %q: %w", s, err)
	}
	if n > 1000 {
		return float64(n) / 1000.0, nil
	}
	return float64(n), nil
}

func readTempCFromPath(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read temp: %w", err)
	}
	return parseTempC(string(b))
}

// ReadTempC returns the thermal zone temperature in degrees Celsius. Any
// failure resolves to the fail-safe value rather than an error: a bad sensor
// must never halt the control loop.
func ReadTempC(zonePath string) float64 {
	v, err := readTempCFromPath(filepath.Join(zonePath, "temp"))
	if err != nil {
		log.Printf("fancontrol: temp read failed, assuming %.1fC: %v", failSafeTempC, err)
		return failSafeTempC
	}
	return v
}

// AssertUserSpaceGovernor switches the zone's governor to user_space when it
// is not already there. Idempotent; a zone without a policy file is fine.
// Failures are ignorable since the write is re-asserted on every tick.
func AssertUserSpaceGovernor(zonePath string) error {
	p := filepath.Join(zonePath, "policy")
	cur, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &WriteError{Op: OpGovernor, Path: p, Err: err}
	}
	if strings.TrimSpace(string(cur)) == "user_space" {
		return nil
	}
	if err := writeSysfs(p, "user_space"); err != nil {
		return &WriteError{Op: OpGovernor, Path: p, Err: err}
	}
	return nil
}
