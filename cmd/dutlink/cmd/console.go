package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/siliconforge/dutlink/internal/config"
	"github.com/siliconforge/dutlink/pkg/console"
)

var (
	consoleChannel string
	consoleSync    string
	consoleTimeout time.Duration

	recvSkipCRC bool
	recvQuiet   bool
	recvFrames  int
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Talk to the DUT test firmware console",
}

var consoleWaitCmd = &cobra.Command{
	Use:   "wait <marker>",
	Short: "Block until a marker appears on the console",
	Args:  cobra.ExactArgs(1),
	RunE:  runConsoleWait,
}

var consoleSendCmd = &cobra.Command{
	Use:   "send <data>",
	Short: "Write data to the console, optionally after a sync marker",
	Args:  cobra.ExactArgs(1),
	RunE:  runConsoleSend,
}

var consoleRecvCmd = &cobra.Command{
	Use:   "recv",
	Short: "Read one CRC-validated response from the console",
	Long: `Read console output until the test firmware emits a RESP_OK or
RESP_ERR line, validate its CRC, and print the payload to stdout.

Examples:
  dutlink console recv --sync "CP:" --quiet
  dutlink console recv --skip-crc --timeout 5m`,
	Args: cobra.NoArgs,
	RunE: runConsoleRecv,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.AddCommand(consoleWaitCmd)
	consoleCmd.AddCommand(consoleSendCmd)
	consoleCmd.AddCommand(consoleRecvCmd)

	consoleCmd.PersistentFlags().StringVar(&consoleChannel, "channel", config.ChannelConsole,
		"logical console channel name")
	consoleCmd.PersistentFlags().StringVar(&consoleSync, "sync", "",
		"marker to wait for before the operation")
	consoleCmd.PersistentFlags().DurationVar(&consoleTimeout, "timeout", time.Minute,
		"deadline for the whole interaction")

	consoleRecvCmd.Flags().BoolVar(&recvSkipCRC, "skip-crc", false,
		"accept a success payload even when its CRC does not match")
	consoleRecvCmd.Flags().BoolVar(&recvQuiet, "quiet", false,
		"suppress echoing of raw console bytes")
	consoleRecvCmd.Flags().IntVar(&recvFrames, "max-frames", 16,
		"maximum number of response frames to accept")
}

func runConsoleWait(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	link, err := sess.OpenConsole(consoleChannel)
	if err != nil {
		return err
	}
	return console.Wait(link, args[0], consoleTimeout)
}

func runConsoleSend(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	link, err := sess.OpenConsole(consoleChannel)
	if err != nil {
		return err
	}
	return console.Send(link, consoleSync, []byte(args[0]), consoleTimeout)
}

func runConsoleRecv(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	link, err := sess.OpenConsole(consoleChannel)
	if err != nil {
		return err
	}

	frames := make([]console.Frame, recvFrames)
	n, err := console.Receive(link, consoleSync, frames, console.ReceiveOptions{
		SkipCRC: recvSkipCRC,
		Quiet:   recvQuiet,
		Timeout: consoleTimeout,
	})
	if err != nil {
		return err
	}
	for _, f := range frames[:n] {
		if _, err := os.Stdout.Write(f.Payload); err != nil {
			return err
		}
	}
	fmt.Println()
	return nil
}
