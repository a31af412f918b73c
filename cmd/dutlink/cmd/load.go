package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/siliconforge/dutlink/pkg/loader"
)

var (
	sramWait       bool
	sramTimeout    time.Duration
	sramSkipVerify bool
)

var loadBitstreamCmd = &cobra.Command{
	Use:   "load-bitstream <file>",
	Short: "Program an FPGA bitstream and wait for the ROM",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoadBitstream,
}

var loadSramCmd = &cobra.Command{
	Use:   "load-sram <elf>",
	Short: "Load a program into SRAM over the debug port and run it",
	Long: `Load a test program into the DUT's main SRAM over the RISC-V debug
port and start it at its entry point.

Examples:
  dutlink load-sram sram_cp.elf                      # Fire and forget
  dutlink load-sram sram_cp.elf --wait --timeout 30s # Wait for pass/fail`,
	Args: cobra.ExactArgs(1),
	RunE: runLoadSram,
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap <image>",
	Short: "Push a flash image through the ROM's serial bootstrap",
	Args:  cobra.ExactArgs(1),
	RunE:  runBootstrap,
}

func init() {
	rootCmd.AddCommand(loadBitstreamCmd)
	rootCmd.AddCommand(loadSramCmd)
	rootCmd.AddCommand(bootstrapCmd)

	loadSramCmd.Flags().BoolVar(&sramWait, "wait", false,
		"block until the program reports pass or fail")
	loadSramCmd.Flags().DurationVar(&sramTimeout, "timeout", 30*time.Second,
		"completion deadline with --wait")
	loadSramCmd.Flags().BoolVar(&sramSkipVerify, "skip-verify", false,
		"skip the CRC readback of written segments")
}

func runLoadBitstream(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()
	return loader.LoadBitstream(sess, args[0])
}

func runLoadSram(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	mode := loader.Jump
	if sramWait {
		mode = loader.JumpAndWait
	}
	prog := loader.SramProgram{ElfPath: args[0], SkipVerify: sramSkipVerify}
	return loader.LoadSramProgram(sess, jtagParams(), prog, mode, sramTimeout)
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()
	return loader.Bootstrap(sess, args[0])
}
