package fancontrol

import (
	"context"
	"log"
	"strconv"
	"time"
)

// maxSpeedLevel is the top of the discrete 0..4 level range. Level 4 maps to
// full duty; level 0 exists only for explicit off/self-test states.
const maxSpeedLevel = 4

// RateSource yields the current RPM estimate, consuming the measurement
// window (tach.Monitor satisfies this).
type RateSource interface {
	Rate() float64
}

// Actuator is the hardware surface the control loop drives.
type Actuator interface {
	Init() error
	SetSpeed(level int) error
}

// Controller translates a discrete speed level into a concrete actuation
// write. The path (direct PWM or cooling-device fallback) is resolved once by
// Discover and immutable afterwards.
type Controller struct {
	pwm         *pwmChannel // nil => fallback
	coolingPath string
}

// Discover resolves the actuation path: it unbinds the generic pwm-fan
// kernel driver, then scans sysfs PWM chips for the one whose device-tree
// node matches addrToken. No match selects the cooling-device fallback.
func Discover(addrToken string, periodNS uint64, coolingPath string) *Controller {
	releaseKernelDriver()
	c := &Controller{coolingPath: coolingPath}
	if chip := findPWMChip(addrToken); chip != "" {
		log.Printf("fancontrol: found pwm chip for %s: %s", addrToken, chip)
		c.pwm = newPWMChannel(chip, periodNS)
	} else {
		log.Printf("fancontrol: pwm chip for %s not found, using cooling device fallback", addrToken)
	}
	return c
}

// UsesPWM reports whether direct PWM actuation was selected.
func (c *Controller) UsesPWM() bool { return c.pwm != nil }

// Init configures the PWM channel; a no-op on the fallback path. Returned
// errors mean degraded operation, never a reason to stop.
func (c *Controller) Init() error {
	if c.pwm == nil {
		return nil
	}
	return c.pwm.init()
}

// SetSpeed drives a level in 0..maxSpeedLevel (clamped). Failures come back
// as *WriteError for the caller to log; actuation is best-effort.
func (c *Controller) SetSpeed(level int) error {
	if level < 0 {
		level = 0
	}
	if level > maxSpeedLevel {
		level = maxSpeedLevel
	}
	if c.pwm != nil {
		return c.pwm.setLevel(level)
	}
	if err := writeSysfs(c.coolingPath, strconv.Itoa(level)); err != nil {
		return &WriteError{Op: OpCooling, Path: c.coolingPath, Err: err}
	}
	return nil
}

var afterFn = time.After

// runSelfTest steps through every speed level in order, holding each for
// dwell while sampling RPM every sampleInterval, so a human (or the log) can
// confirm the levels produce distinguishable fan speeds before the thermal
// policy takes over.
func runSelfTest(ctx context.Context, w Actuator, dwell, sampleInterval time.Duration, rpm RateSource) {
	log.Printf("fancontrol: self-test start (%s per level)", dwell)
	for level := 0; level <= maxSpeedLevel; level++ {
		log.Printf("fancontrol: self-test level %d", level)
		if err := w.SetSpeed(level); err != nil {
			log.Printf("fancontrol: self-test set speed: %v", err)
		}
		for remaining := dwell; remaining > 0; remaining -= sampleInterval {
			step := sampleInterval
			if step > remaining {
				step = remaining
			}
			select {
			case <-ctx.Done():
				return
			case <-afterFn(step):
			}
			if rpm != nil {
				log.Printf("fancontrol: self-test level %d rpm %.0f", level, rpm.Rate())
			}
		}
	}
	log.Printf("fancontrol: self-test complete, handing over to thermal policy")
}
