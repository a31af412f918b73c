package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/siliconforge/dutlink/internal/config"
	"github.com/siliconforge/dutlink/pkg/jtag"
	"github.com/siliconforge/dutlink/pkg/transport"
)

const (
	resetPulse = 50 * time.Millisecond

	claimAttempts      = 10
	claimRetryInterval = 10 * time.Millisecond

	transitionTimeout      = 3 * time.Second
	transitionPollInterval = 10 * time.Millisecond
)

// ErrTokenRequired is returned before any hardware is touched when the
// target state needs an unlock token the caller did not supply.
var ErrTokenRequired = errors.New("lifecycle: target state requires an unlock token")

// VerificationError reports that the controller's state register did not
// read back the expected redundant encoding after the transition. The
// orchestrator never retries: a life-cycle transition may be irreversible.
type VerificationError struct {
	Target State
	Want   uint32
	Got    uint32
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("lifecycle: DUT reports state 0x%08X after transition to %s, want 0x%08X",
		e.Got, e.Target, e.Want)
}

// Transition moves the DUT into the target life-cycle state. It applies the
// bootstrap and LC TAP straps, resets, connects to the LC TAP, programs and
// triggers the transition, then reconnects and verifies the new state via
// its redundant encoding. Straps and the JTAG connection are released on
// every exit path; teardown failures never mask an earlier error.
func Transition(sess *transport.Session, params jtag.Params, token *Token, target State) error {
	// Validate before touching any hardware.
	if target.RequiresToken() && token == nil {
		return fmt.Errorf("%w (target %s)", ErrTokenRequired, target)
	}
	if token != nil && !target.RequiresToken() {
		glog.Warningf("lifecycle: target %s takes no token; ignoring the one provided", target)
		token = nil
	}

	straps := []string{config.StrapRomBootstrap, config.StrapTapLc}
	return sess.WithStraps(straps, func() (err error) {
		if err := sess.ResetTarget(resetPulse, true); err != nil {
			return err
		}

		h, err := sess.OpenJtag(params, jtag.TapLc)
		if err != nil {
			return err
		}
		// h is swapped for a fresh connection mid-flow; always release
		// whichever one is live.
		defer func() {
			if h == nil {
				return
			}
			if derr := h.Disconnect(); derr != nil {
				glog.Warningf("lifecycle: disconnecting JTAG: %v", derr)
				if err == nil {
					err = derr
				}
			}
		}()

		if err := trigger(h, token, target); err != nil {
			return err
		}

		// The transition invalidates the debug connection. Reset with the
		// straps still applied and reconnect before verifying.
		if derr := h.Disconnect(); derr != nil {
			h = nil
			return derr
		}
		h = nil
		if err := sess.ResetTarget(resetPulse, true); err != nil {
			return err
		}
		h, err = sess.OpenJtag(params, jtag.TapLc)
		if err != nil {
			return err
		}

		got, err := h.ReadLcReg(jtag.LcRegLcState)
		if err != nil {
			return err
		}
		if want := target.RedundantEncoding(); got != want {
			return &VerificationError{Target: target, Want: want, Got: got}
		}
		glog.V(1).Infof("lifecycle: DUT now in state %s", target)
		return nil
	})
}

// trigger claims the transition interface, programs the token and target,
// starts the transition, and polls the controller until it reports success.
func trigger(h jtag.Handle, token *Token, target State) error {
	claimed := false
	for i := 0; i < claimAttempts; i++ {
		if err := h.WriteLcReg(jtag.LcRegClaimTransitionIf, jtag.Mubi8True); err != nil {
			return err
		}
		v, err := h.ReadLcReg(jtag.LcRegClaimTransitionIf)
		if err != nil {
			return err
		}
		if v == jtag.Mubi8True {
			claimed = true
			break
		}
		time.Sleep(claimRetryInterval)
	}
	if !claimed {
		return fmt.Errorf("lifecycle: could not claim the transition interface")
	}

	if token != nil {
		tokenRegs := []jtag.LcReg{
			jtag.LcRegTransitionToken0, jtag.LcRegTransitionToken1,
			jtag.LcRegTransitionToken2, jtag.LcRegTransitionToken3,
		}
		for i, reg := range tokenRegs {
			if err := h.WriteLcReg(reg, token[i]); err != nil {
				return err
			}
		}
	}

	enc := target.RedundantEncoding()
	if err := h.WriteLcReg(jtag.LcRegTransitionTarget, enc); err != nil {
		return err
	}
	readback, err := h.ReadLcReg(jtag.LcRegTransitionTarget)
	if err != nil {
		return err
	}
	if readback != enc {
		return fmt.Errorf("lifecycle: transition target readback 0x%08X, want 0x%08X", readback, enc)
	}

	if err := h.WriteLcReg(jtag.LcRegTransitionCmd, jtag.TransitionCmdStart); err != nil {
		return err
	}

	deadline := time.Now().Add(transitionTimeout)
	for {
		status, err := h.ReadLcReg(jtag.LcRegStatus)
		if err != nil {
			return err
		}
		if jtag.LcStatusHasError(status) {
			return fmt.Errorf("lifecycle: transition to %s failed, status 0x%08X", target, status)
		}
		if status&jtag.LcStatusTransitionSuccessful != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("lifecycle: transition to %s did not complete within %s", target, transitionTimeout)
		}
		time.Sleep(transitionPollInterval)
	}
}

// ResetAndLock resets the DUT and confirms it came back locked. A volatile
// test unlock does not survive reset, so a plain reset under the LC TAP
// strap relocks the chip; the state register must read back as Raw.
func ResetAndLock(sess *transport.Session, params jtag.Params) error {
	return sess.WithStraps([]string{config.StrapTapLc}, func() (err error) {
		if err := sess.ResetTarget(resetPulse, true); err != nil {
			return err
		}
		h, err := sess.OpenJtag(params, jtag.TapLc)
		if err != nil {
			return err
		}
		defer func() {
			if derr := h.Disconnect(); derr != nil {
				glog.Warningf("lifecycle: disconnecting JTAG: %v", derr)
				if err == nil {
					err = derr
				}
			}
		}()

		got, err := h.ReadLcReg(jtag.LcRegLcState)
		if err != nil {
			return err
		}
		if want := Raw.RedundantEncoding(); got != want {
			return &VerificationError{Target: Raw, Want: want, Got: got}
		}
		return nil
	})
}
