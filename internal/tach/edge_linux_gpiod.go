//go:build linux

package tach

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// gpiodEdge counts falling edges via the Linux GPIO character device.
//
// Rockchip numbers GPIOs in banks of 32, so global number N lives on
// gpiochip(N/32) at line offset N%32 (GPIO4_B3 = 139 = gpiochip4 line 11).
type gpiodEdge struct {
	line   *gpiocdev.Line
	events chan struct{}
}

func openGpiodEdge(gpio int) (EdgeSource, error) {
	if gpio < 0 {
		return nil, fmt.Errorf("tach: invalid gpio %d", gpio)
	}
	chip := fmt.Sprintf("gpiochip%d", gpio/32)
	offset := gpio % 32

	e := &gpiodEdge{events: make(chan struct{}, 256)}
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithConsumer("rock5-fanctl-tach"),
		gpiocdev.WithEventHandler(e.handle))
	if err != nil {
		return nil, fmt.Errorf("tach: request %s line %d: %w", chip, offset, err)
	}
	e.line = line
	return e, nil
}

// handle runs on the gpiocdev event goroutine and must not block: a full
// buffer drops the event rather than stalling the kernel event stream.
func (e *gpiodEdge) handle(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventFallingEdge {
		return
	}
	select {
	case e.events <- struct{}{}:
	default:
	}
}

func (e *gpiodEdge) WaitEdge(timeout time.Duration) (bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-e.events:
		return true, nil
	case <-timer.C:
		return false, nil
	}
}

func (e *gpiodEdge) Close() error {
	if e == nil || e.line == nil {
		return nil
	}
	err := e.line.Close()
	e.line = nil
	return err
}
