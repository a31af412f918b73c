package loader

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/siliconforge/dutlink/internal/config"
	"github.com/siliconforge/dutlink/pkg/console"
	"github.com/siliconforge/dutlink/pkg/transport"
)

// romExtBanner matches the second-stage boot banner the ROM extension
// prints on the UART console.
var romExtBanner = regexp.MustCompile(`(?:\n| )ROM_EXT[: ](.*)\r\n`)

// bootFailurePattern matches the known fatal boot messages: an identity
// certificate the owner firmware rejected, or a boot fault value from the
// ROM.
const bootFailurePattern = `UDS certificate not valid|BFV:.*\r\n`

// CheckBoot resets the DUT and watches the UART console for a healthy boot:
// the ROM_EXT banner must appear, and no failure message may follow. When
// successMarker is non-empty, that marker must also appear within timeout;
// when it is empty, a console that stays quiet after the banner counts as a
// good boot.
func CheckBoot(sess *transport.Session, successMarker string, timeout time.Duration) error {
	if err := sess.ResetTarget(resetPulse, true); err != nil {
		return err
	}
	link, err := sess.OpenConsole(config.ChannelConsole)
	if err != nil {
		return err
	}

	watcher := console.NewWatcher(link)
	banner, err := watcher.WaitMatch(romExtBanner, timeout)
	if err != nil {
		return fmt.Errorf("loader: waiting for ROM_EXT banner: %w", err)
	}
	glog.V(1).Infof("loader: %s", strings.TrimSpace(banner))

	pattern := bootFailurePattern
	if successMarker != "" {
		pattern += "|" + regexp.QuoteMeta(successMarker)
	}
	// Dotall: a boot fault value may spill across lines before its \r\n.
	re, err := regexp.Compile("(?s)(" + pattern + ")")
	if err != nil {
		return fmt.Errorf("loader: compiling boot check pattern: %w", err)
	}

	match, err := watcher.WaitMatch(re, timeout)
	if err != nil {
		if errors.Is(err, console.ErrTimeout) && successMarker == "" {
			return nil
		}
		return fmt.Errorf("loader: checking boot: %w", err)
	}
	if strings.Contains(match, "UDS certificate not valid") || strings.HasPrefix(match, "BFV:") {
		return fmt.Errorf("loader: boot failure: %q", strings.TrimSpace(match))
	}
	return nil
}
