package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultNamesAreComplete(t *testing.T) {
	iface := Default()
	for _, name := range []string{StrapRomBootstrap, StrapTapLc, StrapTapRiscv} {
		if _, err := iface.Strap(name); err != nil {
			t.Errorf("Strap(%q): %v", name, err)
		}
	}
	for _, name := range []string{ChannelBootstrap, ChannelConsole} {
		if _, err := iface.Channel(name); err != nil {
			t.Errorf("Channel(%q): %v", name, err)
		}
	}
	if _, err := iface.Strap("NO_SUCH_STRAP"); err == nil {
		t.Error("Strap accepted an unknown name")
	}
	if _, err := iface.Channel("NO_SUCH_CHANNEL"); err == nil {
		t.Error("Channel accepted an unknown name")
	}
}

func TestTapStrapsAreMutuallyExclusive(t *testing.T) {
	iface := Default()
	lc, _ := iface.Strap(StrapTapLc)
	riscv, _ := iface.Strap(StrapTapRiscv)

	pins := make(map[string]bool)
	for _, pl := range lc {
		pins[pl.Pin] = pl.Level
	}
	shared := 0
	for _, pl := range riscv {
		if level, ok := pins[pl.Pin]; ok {
			shared++
			if level == pl.Level {
				t.Errorf("pin %s has the same level in both TAP straps", pl.Pin)
			}
		}
	}
	if shared == 0 {
		t.Error("TAP straps share no pins; they cannot select between TAPs")
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	overlay := `
usb:
  vendor_id: 0x1209
  product_id: 0x0001
  serial: "ABC123"
straps:
  ROM_BOOTSTRAP:
    - {pin: "GPIO7", level: true}
channels:
  console:
    kind: uart
    device: /dev/ttyUSB3
    baudrate: 1500000
`
	path := filepath.Join(t.TempDir(), "station.yaml")
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatal(err)
	}

	iface, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if iface.USB.VendorID != 0x1209 || iface.USB.Serial != "ABC123" {
		t.Errorf("USB not overridden: %+v", iface.USB)
	}

	strap, err := iface.Strap(StrapRomBootstrap)
	if err != nil {
		t.Fatalf("Strap: %v", err)
	}
	want := Strap{{Pin: "GPIO7", Level: true}}
	if diff := cmp.Diff(want, strap); diff != "" {
		t.Errorf("strap replaced wholesale mismatch (-want +got):\n%s", diff)
	}

	ch, err := iface.Channel(ChannelConsole)
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	if ch.Device != "/dev/ttyUSB3" || ch.Baudrate != 1500000 {
		t.Errorf("console channel not overridden: %+v", ch)
	}

	// Entries absent from the overlay keep their defaults.
	if _, err := iface.Strap(StrapTapLc); err != nil {
		t.Errorf("default strap lost in overlay: %v", err)
	}
	if _, err := iface.Channel(ChannelBootstrap); err != nil {
		t.Errorf("default channel lost in overlay: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load accepted a missing file")
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("straps: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted malformed YAML")
	}
}
