package fancontrol

import (
	"errors"
	"os"
	"syscall"
	"time"
)

var sysfsWriteRetry = 2 * time.Second

// writeSysfs writes a sysfs attribute value.
//
// O_WRONLY without O_TRUNC/O_CREATE: some sysfs attributes reject truncation
// flags even when mode bits allow writes, resulting in confusing EACCES at
// open() time. Immediately after exporting a PWM/GPIO node the kernel creates
// new files and udev may adjust permissions asynchronously, so there is a
// short window where open() returns EACCES or ENOENT even though steady-state
// permissions are correct; those errors are retried briefly.
func writeSysfs(path string, value string) error {
	deadline := time.Now().Add(sysfsWriteRetry)
	var lastErr error
	for {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			lastErr = err
			if time.Now().Before(deadline) && isRetryableSysfsErr(err) {
				time.Sleep(25 * time.Millisecond)
				continue
			}
			return err
		}
		_, werr := f.WriteString(value)
		cerr := f.Close()
		if werr == nil && cerr == nil {
			return nil
		}
		if werr != nil {
			lastErr = werr
		} else {
			lastErr = cerr
		}
		if time.Now().Before(deadline) && isRetryableSysfsErr(lastErr) {
			time.Sleep(25 * time.Millisecond)
			continue
		}
		if werr != nil && cerr != nil {
			return errors.Join(werr, cerr)
		}
		if werr != nil {
			return werr
		}
		return cerr
	}
}

func isRetryableSysfsErr(err error) bool {
	return os.IsPermission(err) || os.IsNotExist(err) ||
		errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.ENOENT)
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
