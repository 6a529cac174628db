package fancontrol

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var pwmSysfsBase = "/sys/class/pwm"
var platformDriversBase = "/sys/bus/platform/drivers"

// findPWMChip returns the pwmchip whose device-tree node path contains the
// given address token, or "" when none matches. Matching by OF node address
// survives chip renumbering across kernel versions.
func findPWMChip(addrToken string) string {
	entries, err := os.ReadDir(pwmSysfsBase)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "pwmchip") {
			continue
		}
		chip := filepath.Join(pwmSysfsBase, name)
		node := filepath.Join(chip, "device", "of_node")
		real, err := filepath.EvalSymlinks(node)
		if err != nil {
			continue
		}
		if strings.Contains(real, addrToken) {
			return chip
		}
	}
	return ""
}

// releaseKernelDriver unbinds the generic pwm-fan platform driver from any
// device it holds, so the PWM channel can be claimed directly. Best-effort.
func releaseKernelDriver() {
	dir := filepath.Join(platformDriversBase, "pwm-fan")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.Type()&fs.ModeSymlink == 0 {
			continue
		}
		log.Printf("fancontrol: unbinding pwm-fan driver from %s", e.Name())
		p := filepath.Join(dir, "unbind")
		if err := writeSysfs(p, e.Name()); err != nil {
			log.Printf("%v", &WriteError{Op: OpUnbind, Path: p, Err: err})
		}
	}
}

// pwmChannel drives channel 0 of a sysfs pwmchip.
type pwmChannel struct {
	chipPath string // /sys/class/pwm/pwmchipN
	pwmPath  string // /sys/class/pwm/pwmchipN/pwm0
	periodNS uint64
}

func newPWMChannel(chipPath string, periodNS uint64) *pwmChannel {
	return &pwmChannel{
		chipPath: chipPath,
		pwmPath:  filepath.Join(chipPath, "pwm0"),
		periodNS: periodNS,
	}
}

func (p *pwmChannel) ensureExported() error {
	if _, err := os.Stat(p.pwmPath); err == nil {
		return nil
	}
	err := writeSysfs(filepath.Join(p.chipPath, "export"), "0")
	// Export by another process is fine as long as the node exists.
	if waitForPath(p.pwmPath, 500*time.Millisecond) {
		return nil
	}
	if err == nil {
		err = errors.New("pwm0 not present after export")
	}
	return err
}

// init configures the channel: disable so the period change is accepted, set
// the period, attempt polarity (some firmware locks it), then enable. Every
// failure is degraded-mode, not fatal; duty writes are still attempted later.
func (p *pwmChannel) init() error {
	if err := p.ensureExported(); err != nil {
		return &WriteError{Op: OpExport, Path: p.chipPath, Err: err}
	}

	var errs []error
	// Failure here is uninteresting when the channel was never enabled.
	_ = p.writeAttr("enable", "0")

	if err := p.writeAttr("period", strconv.FormatUint(p.periodNS, 10)); err != nil {
		errs = append(errs, &WriteError{Op: OpPeriod, Path: p.pwmPath, Err: err})
	}
	if err := p.writeAttr("polarity", "normal"); err != nil {
		errs = append(errs, &WriteError{Op: OpPolarity, Path: p.pwmPath, Err: err})
	}
	if err := p.writeAttr("enable", "1"); err != nil {
		errs = append(errs, &WriteError{Op: OpEnable, Path: p.pwmPath, Err: err})
	}
	return errors.Join(errs...)
}

func (p *pwmChannel) setLevel(level int) error {
	// Integer math: level 0 stays at exactly 0 regardless of period, no
	// floating-point rounding for the rest.
	var duty uint64
	if level > 0 {
		duty = p.periodNS * uint64(level) / maxSpeedLevel
	}
	if err := p.writeAttr("duty_cycle", strconv.FormatUint(duty, 10)); err != nil {
		return &WriteError{Op: OpDuty, Path: p.pwmPath, Err: err}
	}
	return nil
}

func (p *pwmChannel) writeAttr(name, value string) error {
	return writeSysfs(filepath.Join(p.pwmPath, name), value)
}
