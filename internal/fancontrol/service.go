// Package fancontrol regulates the fan: it maps the thermal zone temperature
// to a discrete speed level and drives it through a sysfs PWM channel or the
// cooling-device fallback, logging the measured RPM alongside.
package fancontrol

import (
	"context"
	"log"
	"math"
	"sync"
	"time"
)

type Config struct {
	// ThermalZone is the sysfs thermal zone exposing temp and policy files.
	ThermalZone  string
	PollInterval time.Duration
	// RPMLogDelta is the absolute RPM change worth a log line on its own.
	RPMLogDelta float64

	SelfTest               bool
	SelfTestDwell          time.Duration
	SelfTestSampleInterval time.Duration

	// TestOnly runs startup and self-test, restores the level implied by the
	// current temperature, then returns instead of entering the steady loop.
	TestOnly bool
}

type Snapshot struct {
	TempC        float64   `json:"temp_c"`
	Level        int       `json:"level"`
	RPM          float64   `json:"rpm"`
	LastUpdateAt time.Time `json:"last_update_utc,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

var readTempFn = ReadTempC

// Service is the control loop: Startup (init, self-test) followed by the
// steady polling loop. All loop state is owned by the Run goroutine; only the
// snapshot is shared.
type Service struct {
	cfg Config
	act Actuator
	rpm RateSource

	mu   sync.Mutex
	snap Snapshot
}

func New(cfg Config, act Actuator, rpm RateSource) *Service {
	if cfg.ThermalZone == "" {
		cfg.ThermalZone = "/sys/class/thermal/thermal_zone0"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.RPMLogDelta <= 0 {
		cfg.RPMLogDelta = 100
	}
	if cfg.SelfTestDwell <= 0 {
		cfg.SelfTestDwell = 10 * time.Second
	}
	if cfg.SelfTestSampleInterval <= 0 {
		cfg.SelfTestSampleInterval = 2 * time.Second
	}
	return &Service{cfg: cfg, act: act, rpm: rpm}
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Service) setState(update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.snap)
	s.snap.LastUpdateAt = time.Now().UTC()
}

// Run blocks until ctx is canceled. Cancellation exits immediately with no
// hardware cleanup: the fan stays at its last commanded level.
func (s *Service) Run(ctx context.Context) error {
	if err := AssertUserSpaceGovernor(s.cfg.ThermalZone); err != nil {
		log.Printf("fancontrol: governor: %v", err)
	}
	if err := s.act.Init(); err != nil {
		log.Printf("fancontrol: hardware init degraded: %v", err)
	}

	if s.cfg.SelfTest {
		runSelfTest(ctx, s.act, s.cfg.SelfTestDwell, s.cfg.SelfTestSampleInterval, s.rpm)
	}
	if ctx.Err() != nil {
		return nil
	}

	if s.cfg.TestOnly {
		temp := readTempFn(s.cfg.ThermalZone)
		level := SpeedLevelForTemp(temp)
		log.Printf("fancontrol: test complete, temp %.1fC -> restoring level %d", temp, level)
		if err := s.act.SetSpeed(level); err != nil {
			log.Printf("fancontrol: set speed: %v", err)
		}
		s.setState(func(sn *Snapshot) {
			sn.TempC = temp
			sn.Level = level
		})
		return nil
	}

	return s.runLoop(ctx)
}

func (s *Service) runLoop(ctx context.Context) error {
	t := time.NewTicker(s.cfg.PollInterval)
	defer t.Stop()

	lastLevel := -1
	lastRPM := -1.0
	for {
		s.tick(&lastLevel, &lastRPM)
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (s *Service) tick(lastLevel *int, lastRPM *float64) {
	// The governor write is idempotent and re-asserted every tick, so a
	// failing one is not worth a log line.
	_ = AssertUserSpaceGovernor(s.cfg.ThermalZone)

	temp := readTempFn(s.cfg.ThermalZone)
	target := SpeedLevelForTemp(temp)
	var rpm float64
	if s.rpm != nil {
		rpm = s.rpm.Rate()
	}

	levelChanged := target != *lastLevel
	var errMsg string
	if levelChanged || math.Abs(rpm-*lastRPM) > s.cfg.RPMLogDelta {
		log.Printf("fancontrol: temp %.1fC -> level %d (rpm %.0f)", temp, target, rpm)
		if levelChanged {
			if err := s.act.SetSpeed(target); err != nil {
				log.Printf("fancontrol: set speed: %v", err)
				errMsg = err.Error()
			}
			*lastLevel = target
		}
		*lastRPM = rpm
	}

	s.setState(func(sn *Snapshot) {
		sn.TempC = temp
		sn.Level = *lastLevel
		sn.RPM = rpm
		if levelChanged {
			sn.LastError = errMsg
		}
	})
}
