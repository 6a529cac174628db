//go:build linux

package tach

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fakeGPIOTree(t *testing.T, gpio string) string {
	t.Helper()
	base := t.TempDir()
	dir := filepath.Join(base, "gpio"+gpio)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, name := range []string{"direction", "edge", "value"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("0\n"), 0o644); err != nil {
			t.Fatalf("WriteFile %s: %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(base, "export"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile export: %v", err)
	}
	old := gpioSysfsBase
	gpioSysfsBase = base
	t.Cleanup(func() { gpioSysfsBase = old })
	return base
}

func TestOpenSysfsEdge_ConfiguresFallingEdgeInput(t *testing.T) {
	base := fakeGPIOTree(t, "139")

	src, err := openSysfsEdge(139)
	if err != nil {
		t.Fatalf("openSysfsEdge: %v", err)
	}
	defer src.Close()

	dir := filepath.Join(base, "gpio139")
	if b, _ := os.ReadFile(filepath.Join(dir, "direction")); string(b) != "in" {
		t.Fatalf("direction=%q want in", b)
	}
	if b, _ := os.ReadFile(filepath.Join(dir, "edge")); string(b) != "falling" {
		t.Fatalf("edge=%q want falling", b)
	}
}

func TestOpenSysfsEdge_ExportsMissingGPIO(t *testing.T) {
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "export"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile export: %v", err)
	}
	old := gpioSysfsBase
	gpioSysfsBase = base
	t.Cleanup(func() { gpioSysfsBase = old })

	// No kernel behind the fake tree, so the node never appears.
	_, err := openSysfsEdge(139)
	if err == nil {
		t.Fatalf("expected error when gpio node never appears")
	}
	if b, _ := os.ReadFile(filepath.Join(base, "export")); string(b) != "139" {
		t.Fatalf("export=%q want 139", b)
	}
}

func TestSysfsEdge_WaitEdgeTimesOutOnQuietLine(t *testing.T) {
	fakeGPIOTree(t, "139")

	src, err := openSysfsEdge(139)
	if err != nil {
		t.Fatalf("openSysfsEdge: %v", err)
	}
	defer src.Close()

	start := time.Now()
	fired, err := src.WaitEdge(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("WaitEdge: %v", err)
	}
	if fired {
		t.Fatalf("unexpected edge on regular file")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("WaitEdge blocked past its timeout")
	}
}
