package loader

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/siliconforge/dutlink/internal/config"
	"github.com/siliconforge/dutlink/pkg/transport"
)

func TestBootstrap(t *testing.T) {
	image := bytes.Repeat([]byte{0xA5}, 2*flashPageSize+88)
	path := filepath.Join(t.TempDir(), "firmware.bin")
	require.NoError(t, os.WriteFile(path, image, 0o644))

	sim := transport.NewSimBackend()
	sess := newSimSession(t, sim)

	require.NoError(t, Bootstrap(sess, path))

	dev := sim.SPIs[config.Default().Channels[config.ChannelBootstrap].Device]
	require.NotNil(t, dev, "bootstrap must use the BOOTSTRAP SPI channel")

	var pages [][]byte
	sawErase := false
	for _, tx := range dev.Sent() {
		switch tx[0] {
		case opChipErase:
			sawErase = true
		case opPageProgram:
			require.True(t, sawErase, "pages must not be programmed before the erase")
			pages = append(pages, tx)
		}
	}
	require.True(t, sawErase, "chip erase must be issued")
	require.Len(t, pages, 3)

	// Second page carries a 24-bit address of 0x000100 and a full page.
	require.Equal(t, []byte{opPageProgram, 0x00, 0x01, 0x00}, pages[1][:4])
	require.Equal(t, image[flashPageSize:2*flashPageSize], pages[1][4:])
	// Last page is the 88-byte tail.
	require.Len(t, pages[2][4:], 88)

	require.Empty(t, sim.DrivenPins(), "bootstrap strap must be removed")
	require.Len(t, sim.Resets, 2, "reset into bootstrap and reset to boot")
	require.Equal(t, bootstrapResetDelay, sim.Resets[0].Pulse)
}

func TestBootstrapMissingImage(t *testing.T) {
	sim := transport.NewSimBackend()
	sess := newSimSession(t, sim)

	err := Bootstrap(sess, filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
	require.Empty(t, sim.DrivenPins())
	require.Empty(t, sim.Resets)
}
