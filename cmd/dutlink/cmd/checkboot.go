package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/siliconforge/dutlink/pkg/loader"
)

var (
	bootMarker  string
	bootTimeout time.Duration
)

var checkBootCmd = &cobra.Command{
	Use:   "check-boot",
	Short: "Reset the DUT and verify the loaded image boots",
	RunE:  runCheckBoot,
}

func init() {
	rootCmd.AddCommand(checkBootCmd)

	checkBootCmd.Flags().StringVar(&bootMarker, "marker", "",
		"success marker to require on the console; empty accepts a quiet boot")
	checkBootCmd.Flags().DurationVar(&bootTimeout, "timeout", 30*time.Second,
		"deadline for each console wait")
}

func runCheckBoot(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()
	return loader.CheckBoot(sess, bootMarker, bootTimeout)
}
