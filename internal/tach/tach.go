// Package tach measures fan RPM from tachometer pulses.
//
// A background goroutine counts falling edges delivered by an EdgeSource;
// the control loop samples the count through Rate, an atomic read-and-reset
// over the window since the previous call.
package tach

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// EdgeSource delivers falling-edge notifications from the tach line.
//
// WaitEdge blocks until an edge fires or the timeout elapses; it must never
// block past the timeout so the monitor can observe shutdown promptly.
type EdgeSource interface {
	WaitEdge(timeout time.Duration) (fired bool, err error)
	Close() error
}

type Config struct {
	// GPIO is the global GPIO number of the tach input.
	GPIO int
	// Backend is "auto", "gpiod" or "sysfs".
	Backend string
	// PulsesPerRev is fan-specific; common 4-wire fans emit 2 per revolution.
	PulsesPerRev int
}

var edgeWaitTimeout = 1 * time.Second

var nowFn = time.Now

var openGpiodEdgeFn = openGpiodEdge
var openSysfsEdgeFn = openSysfsEdge

// Monitor owns the pulse counter. The counter and its window timestamp are
// touched only under mu: by the background goroutine on each edge and by
// Rate's read-and-reset.
type Monitor struct {
	src          EdgeSource
	pulsesPerRev int

	mu     sync.Mutex
	pulses uint64
	lastAt time.Time

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// Open selects an edge source per cfg and wraps it in a Monitor. When no
// source can be opened the monitor still works and permanently reports 0;
// RPM is diagnostic, not safety-critical.
func Open(cfg Config) *Monitor {
	src, err := openEdgeSource(cfg)
	if err != nil {
		log.Printf("tach: no edge source for gpio %d, rpm will read 0: %v", cfg.GPIO, err)
		src = nil
	}
	return New(src, cfg.PulsesPerRev)
}

func New(src EdgeSource, pulsesPerRev int) *Monitor {
	if pulsesPerRev < 1 {
		pulsesPerRev = 1
	}
	return &Monitor{
		src:          src,
		pulsesPerRev: pulsesPerRev,
		lastAt:       nowFn(),
		stopCh:       make(chan struct{}),
	}
}

func openEdgeSource(cfg Config) (EdgeSource, error) {
	switch cfg.Backend {
	case "gpiod":
		return openGpiodEdgeFn(cfg.GPIO)
	case "sysfs":
		return openSysfsEdgeFn(cfg.GPIO)
	default:
		src, err := openGpiodEdgeFn(cfg.GPIO)
		if err == nil {
			return src, nil
		}
		log.Printf("tach: gpiod edge source unavailable, trying sysfs: %v", err)
		src, serr := openSysfsEdgeFn(cfg.GPIO)
		if serr != nil {
			return nil, fmt.Errorf("gpiod: %v; sysfs: %w", err, serr)
		}
		return src, nil
	}
}

// Start launches the acquisition goroutine. A monitor without a source stays
// idle and Rate keeps returning 0.
func (m *Monitor) Start() {
	if m == nil || m.src == nil {
		return
	}
	m.mu.Lock()
	m.lastAt = nowFn()
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run()
}

func (m *Monitor) run() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}
		fired, err := m.src.WaitEdge(edgeWaitTimeout)
		if err != nil {
			log.Printf("tach: edge wait failed, rpm will read 0: %v", err)
			return
		}
		if fired {
			m.mu.Lock()
			m.pulses++
			m.mu.Unlock()
		}
	}
}

// Rate returns the RPM estimate over the window since the previous call and
// resets the window. The capture and reset happen in one critical section so
// consecutive calls neither lose nor double-count a pulse; the division runs
// outside the lock. A sub-resolution window yields 0.
func (m *Monitor) Rate() float64 {
	m.mu.Lock()
	now := nowFn()
	pulses := m.pulses
	dt := now.Sub(m.lastAt)
	m.pulses = 0
	m.lastAt = now
	m.mu.Unlock()

	if dt <= 0 {
		return 0
	}
	return float64(pulses) / float64(m.pulsesPerRev) * 60.0 / dt.Seconds()
}

// Close stops the acquisition goroutine and releases the edge source. Safe to
// call more than once.
func (m *Monitor) Close() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
	if m.src != nil {
		_ = m.src.Close()
	}
}
