package loader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/siliconforge/dutlink/internal/config"
	"github.com/siliconforge/dutlink/pkg/console"
	"github.com/siliconforge/dutlink/pkg/transport"
)

func checkBootSim(t *testing.T, output string) (*transport.SimBackend, *transport.Session) {
	t.Helper()
	sim := transport.NewSimBackend()
	device := config.Default().Channels[config.ChannelConsole].Device
	sim.Consoles[device] = console.NewScriptLink([]byte(output))
	return sim, newSimSession(t, sim)
}

func TestCheckBootWithMarker(t *testing.T) {
	_, sess := checkBootSim(t, "\nROM_EXT:0.1\r\nrunning owner firmware\r\nPROVISIONED\r\n")
	require.NoError(t, CheckBoot(sess, "PROVISIONED", 100*time.Millisecond))
}

func TestCheckBootQuietConsoleIsSuccess(t *testing.T) {
	sim, sess := checkBootSim(t, "\nROM_EXT:0.1\r\n")
	require.NoError(t, CheckBoot(sess, "", 50*time.Millisecond))
	require.Len(t, sim.Resets, 1)
}

func TestCheckBootMarkerNeverArrives(t *testing.T) {
	_, sess := checkBootSim(t, "\nROM_EXT:0.1\r\n")
	err := CheckBoot(sess, "PROVISIONED", 50*time.Millisecond)
	require.ErrorIs(t, err, console.ErrTimeout)
}

func TestCheckBootCertificateRejected(t *testing.T) {
	_, sess := checkBootSim(t, "\nROM_EXT:0.1\r\nUDS certificate not valid\r\n")
	err := CheckBoot(sess, "", 100*time.Millisecond)
	require.ErrorContains(t, err, "UDS certificate not valid")
}

func TestCheckBootFaultValue(t *testing.T) {
	_, sess := checkBootSim(t, "\nROM_EXT:0.1\r\nBFV:0142500d\r\n")
	err := CheckBoot(sess, "PROVISIONED", 100*time.Millisecond)
	require.ErrorContains(t, err, "BFV:0142500d")
}

func TestCheckBootMultiLineFaultValue(t *testing.T) {
	_, sess := checkBootSim(t, "\nROM_EXT:0.1\r\nBFV:0142500d\nextra fault detail\r\n")
	err := CheckBoot(sess, "PROVISIONED", 100*time.Millisecond)
	require.ErrorContains(t, err, "BFV:0142500d")
}

func TestCheckBootNoBanner(t *testing.T) {
	_, sess := checkBootSim(t, "boot ROM says hello but nothing follows")
	err := CheckBoot(sess, "", 50*time.Millisecond)
	require.ErrorIs(t, err, console.ErrTimeout)
	require.ErrorContains(t, err, "ROM_EXT")
}
