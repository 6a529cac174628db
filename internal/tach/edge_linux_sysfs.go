//go:build linux

package tach

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

var gpioSysfsBase = "/sys/class/gpio"

// sysfsEdge counts falling edges through the legacy sysfs GPIO interface:
// the value file asserts POLLPRI when the configured edge fires, and reading
// it back clears the pending interrupt.
type sysfsEdge struct {
	f *os.File
}

func openSysfsEdge(gpio int) (EdgeSource, error) {
	if gpio < 0 {
		return nil, fmt.Errorf("tach: invalid gpio %d", gpio)
	}
	base := gpioSysfsBase
	dir := filepath.Join(base, fmt.Sprintf("gpio%d", gpio))

	if _, err := os.Stat(dir); err != nil {
		// Export may fail with EBUSY when another process already holds the
		// line; that is fine as long as the node exists afterwards.
		werr := writeGPIOAttr(filepath.Join(base, "export"), strconv.Itoa(gpio))
		if !waitForPath(dir, 500*time.Millisecond) {
			if werr != nil {
				return nil, fmt.Errorf("tach: export gpio %d: %w", gpio, werr)
			}
			return nil, fmt.Errorf("tach: gpio %d not present after export", gpio)
		}
	}

	if err := writeGPIOAttr(filepath.Join(dir, "direction"), "in"); err != nil {
		return nil, fmt.Errorf("tach: set direction: %w", err)
	}
	if err := writeGPIOAttr(filepath.Join(dir, "edge"), "falling"); err != nil {
		return nil, fmt.Errorf("tach: set edge: %w", err)
	}

	f, err := os.Open(filepath.Join(dir, "value"))
	if err != nil {
		return nil, fmt.Errorf("tach: open value: %w", err)
	}
	e := &sysfsEdge{f: f}
	e.clear()
	return e, nil
}

// clear consumes the pending interrupt state so the next poll blocks until a
// fresh edge.
func (e *sysfsEdge) clear() {
	var buf [8]byte
	_, _ = unix.Pread(int(e.f.Fd()), buf[:], 0)
}

func (e *sysfsEdge) WaitEdge(timeout time.Duration) (bool, error) {
	if e == nil || e.f == nil {
		return false, fmt.Errorf("tach: sysfs edge source closed")
	}
	fds := []unix.PollFd{{
		Fd:     int32(e.f.Fd()),
		Events: unix.POLLPRI | unix.POLLERR,
	}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, fmt.Errorf("tach: poll value: %w", err)
	}
	if n == 0 || fds[0].Revents&unix.POLLPRI == 0 {
		return false, nil
	}
	e.clear()
	return true, nil
}

func (e *sysfsEdge) Close() error {
	if e == nil || e.f == nil {
		return nil
	}
	err := e.f.Close()
	e.f = nil
	return err
}

// writeGPIOAttr writes a sysfs GPIO attribute. O_WRONLY without truncation
// flags: some attributes reject O_TRUNC at open() time. Immediately after an
// export, udev may still be adjusting permissions, so permission and
// not-found errors are retried briefly.
func writeGPIOAttr(path, value string) error {
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := func() error {
			f, err := os.OpenFile(path, os.O_WRONLY, 0)
			if err != nil {
				return err
			}
			_, werr := f.WriteString(value)
			cerr := f.Close()
			if werr != nil {
				return werr
			}
			return cerr
		}()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) || !(os.IsPermission(err) || os.IsNotExist(err)) {
			return err
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func waitForPath(path string, wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	for {
		if _, err := os.Stat(path); err == nil {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}
