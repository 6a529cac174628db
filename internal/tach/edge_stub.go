//go:build !linux

package tach

import "fmt"

// Stub sources for non-Linux platforms; the monitor degrades to reporting 0.

func openGpiodEdge(gpio int) (EdgeSource, error) {
	return nil, fmt.Errorf("tach: gpiod unsupported on this platform")
}

func openSysfsEdge(gpio int) (EdgeSource, error) {
	return nil, fmt.Errorf("tach: sysfs gpio unsupported on this platform")
}
