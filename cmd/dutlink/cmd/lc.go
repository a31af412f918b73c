package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siliconforge/dutlink/pkg/lifecycle"
)

var (
	lcTokenSecret string
	lcTokenHex    string
)

var lcCmd = &cobra.Command{
	Use:   "lc",
	Short: "Life-cycle state operations",
}

var lcTransitionCmd = &cobra.Command{
	Use:   "transition <state>",
	Short: "Move the DUT into a life-cycle state",
	Long: `Move the DUT into the named life-cycle state over the LC TAP and
verify the new state after a reset. Unlock states need a token: either a
secret that is hashed into the token (--token) or the raw 128-bit token
itself (--token-hex).

Examples:
  dutlink lc transition test_unlocked0 --token s3cr3t
  dutlink lc transition dev
  dutlink lc transition rma --token-hex 000102030405060708090a0b0c0d0e0f`,
	Args: cobra.ExactArgs(1),
	RunE: runLcTransition,
}

var lcLockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Reset the DUT and confirm it came back locked",
	Args:  cobra.NoArgs,
	RunE:  runLcLock,
}

func init() {
	rootCmd.AddCommand(lcCmd)
	lcCmd.AddCommand(lcTransitionCmd)
	lcCmd.AddCommand(lcLockCmd)

	lcTransitionCmd.Flags().StringVar(&lcTokenSecret, "token", "",
		"unlock secret, hashed into the transition token")
	lcTransitionCmd.Flags().StringVar(&lcTokenHex, "token-hex", "",
		"raw 128-bit transition token as 32 hex digits")
	lcTransitionCmd.MarkFlagsMutuallyExclusive("token", "token-hex")
}

func parseToken() (*lifecycle.Token, error) {
	switch {
	case lcTokenSecret != "":
		t := lifecycle.DeriveToken([]byte(lcTokenSecret))
		return &t, nil
	case lcTokenHex != "":
		raw, err := hex.DecodeString(lcTokenHex)
		if err != nil {
			return nil, fmt.Errorf("invalid --token-hex: %w", err)
		}
		if len(raw) != lifecycle.TokenBytes {
			return nil, fmt.Errorf("--token-hex must be %d hex digits, got %d", 2*lifecycle.TokenBytes, len(lcTokenHex))
		}
		t := lifecycle.TokenFromBytes(raw)
		return &t, nil
	}
	return nil, nil
}

func runLcTransition(cmd *cobra.Command, args []string) error {
	target, err := lifecycle.ParseState(args[0])
	if err != nil {
		return err
	}
	token, err := parseToken()
	if err != nil {
		return err
	}

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := lifecycle.Transition(sess, jtagParams(), token, target); err != nil {
		return err
	}
	fmt.Printf("DUT is now in state %s\n", target)
	return nil
}

func runLcLock(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()
	return lifecycle.ResetAndLock(sess, jtagParams())
}
