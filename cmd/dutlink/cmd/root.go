package cmd

import (
	goflag "flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/siliconforge/dutlink/internal/config"
	"github.com/siliconforge/dutlink/pkg/jtag"
	"github.com/siliconforge/dutlink/pkg/transport"
)

var (
	// Global flags
	interfaceKind string
	confPath      string
	usbSerial     string
	openocdPath   string
	adapterSpeed  int
)

var rootCmd = &cobra.Command{
	Use:   "dutlink",
	Short: "Silicon provisioning harness",
	Long: `dutlink drives a device under test through its manufacturing flow:
loading FPGA bitstreams and firmware images, talking to the test firmware
over the framed console protocol, and moving the chip between life-cycle
states over the debug port.

Examples:
  dutlink load-bitstream design.bit                  # Program the FPGA
  dutlink bootstrap firmware.bin                     # Push a flash image via the ROM
  dutlink lc transition test_unlocked0 --token s3cr3t
  dutlink console recv --sync "CP:" --quiet          # One console interaction
  dutlink check-boot --marker PROVISIONED`,
	Version:       "0.9.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&interfaceKind, "interface", "i", string(transport.KindCW310),
		"debug interface backend (cw310, sim)")
	rootCmd.PersistentFlags().StringVar(&confPath, "conf", "",
		"interface wiring description (YAML); built-in station defaults when empty")
	rootCmd.PersistentFlags().StringVar(&usbSerial, "serial", "",
		"USB serial of the debug adapter, when several are attached")
	rootCmd.PersistentFlags().StringVar(&openocdPath, "openocd", "openocd",
		"path to the openocd binary")
	rootCmd.PersistentFlags().IntVar(&adapterSpeed, "adapter-speed-khz", 0,
		"JTAG clock in kHz; 0 selects the default")

	// Logging flags (-v, -logtostderr, ...).
	rootCmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine)
}

// openSession builds the transport session selected by the global flags.
func openSession() (*transport.Session, error) {
	kind, err := transport.ParseKind(interfaceKind)
	if err != nil {
		return nil, err
	}
	cfg := transport.Config{Kind: kind}
	if confPath != "" {
		iface, err := config.Load(confPath)
		if err != nil {
			return nil, err
		}
		cfg.Interface = iface
	}
	if kind == transport.KindCW310 {
		cfg.CW310 = &transport.CW310Options{Serial: usbSerial}
	}
	return transport.Open(cfg)
}

func jtagParams() jtag.Params {
	return jtag.Params{
		OpenOCDPath:     openocdPath,
		AdapterSpeedKHz: adapterSpeed,
	}
}
