package console

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"time"
)

// Response markers emitted by the DUT test firmware. The payload is
// arbitrary text (typically JSON) and the CRC is the decimal CRC-32
// (ISO-HDLC) of the raw payload bytes.
var (
	respOK  = regexp.MustCompile(`RESP_OK:(.*) CRC:([0-9]+)\n`)
	respErr = regexp.MustCompile(`RESP_ERR:(.*) CRC:([0-9]+)\n`)
)

// pollInterval is the idle backoff between bounded link reads. Timeouts are
// cooperative: once a wait begins it runs until data arrives or the deadline
// passes.
const pollInterval = 2 * time.Millisecond

const readChunk = 256

// scanner accumulates console bytes from bounded reads and optionally echoes
// them to an observability sink.
type scanner struct {
	link     Link
	echo     io.Writer
	deadline time.Time
	buf      []byte
}

// fill performs one bounded read. It reports whether new data arrived and
// sleeps briefly when the link was idle.
func (s *scanner) fill() (bool, error) {
	chunk := make([]byte, readChunk)
	n, err := s.link.Read(chunk)
	if err != nil {
		return false, err
	}
	if n == 0 {
		time.Sleep(pollInterval)
		return false, nil
	}
	s.buf = append(s.buf, chunk[:n]...)
	if s.echo != nil {
		s.echo.Write(chunk[:n])
	}
	return true, nil
}

func (s *scanner) expired() bool {
	return time.Now().After(s.deadline)
}

// Wait blocks until marker appears as an exact substring in the console
// stream, or fails with ErrSyncTimeout once timeout elapses.
func Wait(link Link, marker string, timeout time.Duration) error {
	s := &scanner{link: link, deadline: time.Now().Add(timeout)}
	return s.waitText(marker)
}

func (s *scanner) waitText(marker string) error {
	needle := []byte(marker)
	for {
		if idx := bytes.Index(s.buf, needle); idx >= 0 {
			// Discard through the marker so response matching starts
			// on fresh bytes.
			s.buf = s.buf[idx+len(needle):]
			return nil
		}
		if s.expired() {
			return fmt.Errorf("%w (marker %q)", ErrSyncTimeout, marker)
		}
		if _, err := s.fill(); err != nil {
			return err
		}
	}
}

// WaitMatch blocks until re matches the console stream and returns the full
// match, or fails with ErrTimeout once timeout elapses.
func WaitMatch(link Link, re *regexp.Regexp, timeout time.Duration) (string, error) {
	s := &scanner{link: link, deadline: time.Now().Add(timeout)}
	return s.waitMatch(re)
}

func (s *scanner) waitMatch(re *regexp.Regexp) (string, error) {
	for {
		if loc := re.FindIndex(s.buf); loc != nil {
			m := string(s.buf[loc[0]:loc[1]])
			s.buf = s.buf[loc[1]:]
			return m, nil
		}
		if s.expired() {
			return "", fmt.Errorf("%w (pattern %q)", ErrTimeout, re.String())
		}
		if _, err := s.fill(); err != nil {
			return "", err
		}
	}
}

// Watcher matches successive patterns against one console stream. Unlike the
// one-shot Wait/WaitMatch helpers it keeps bytes read past an earlier match
// buffered for later waits, so a fast-printing target cannot outrun the
// caller between waits.
type Watcher struct {
	s *scanner
}

// NewWatcher returns a Watcher over link.
func NewWatcher(link Link) *Watcher {
	return &Watcher{s: &scanner{link: link}}
}

// WaitText blocks until marker appears in the stream, discarding through it.
func (w *Watcher) WaitText(marker string, timeout time.Duration) error {
	w.s.deadline = time.Now().Add(timeout)
	return w.s.waitText(marker)
}

// WaitMatch blocks until re matches the stream, discarding through the match.
func (w *Watcher) WaitMatch(re *regexp.Regexp, timeout time.Duration) (string, error) {
	w.s.deadline = time.Now().Add(timeout)
	return w.s.waitMatch(re)
}

// ReceiveOptions tune one Receive interaction.
type ReceiveOptions struct {
	// SkipCRC accepts a success payload even when its declared CRC does
	// not match. Failure payloads are always validated.
	SkipCRC bool
	// Quiet suppresses echoing of raw console bytes.
	Quiet bool
	// Echo receives raw console bytes as they arrive. Defaults to stdout
	// unless Quiet is set.
	Echo io.Writer
	// Timeout bounds the whole interaction, sync included.
	Timeout time.Duration
}

// Receive performs one console interaction: optionally waits for syncMarker,
// then reads until the DUT emits a RESP_OK or RESP_ERR line, validates the
// CRC, and chunks a success payload into the caller's frames. It returns the
// number of frames used.
//
// The frame capacity check happens before any frame is written; on error the
// caller's frames are untouched.
func Receive(link Link, syncMarker string, frames []Frame, opts ReceiveOptions) (int, error) {
	s := &scanner{link: link, deadline: time.Now().Add(opts.Timeout)}
	if !opts.Quiet {
		s.echo = opts.Echo
		if s.echo == nil {
			s.echo = os.Stdout
		}
	}

	if syncMarker != "" {
		if err := s.waitText(syncMarker); err != nil {
			return 0, err
		}
	}

	for {
		if m := respErr.FindSubmatch(s.buf); m != nil {
			payload, declared, err := parseResponse(m)
			if err != nil {
				return 0, err
			}
			if computed := Checksum(payload); computed != declared {
				return 0, &CRCMismatchError{Declared: declared, Computed: computed}
			}
			return 0, &RemoteError{Payload: string(payload)}
		}
		if m := respOK.FindSubmatch(s.buf); m != nil {
			payload, declared, err := parseResponse(m)
			if err != nil {
				return 0, err
			}
			if !opts.SkipCRC {
				if computed := Checksum(payload); computed != declared {
					return 0, &CRCMismatchError{Declared: declared, Computed: computed}
				}
			}
			return SplitFrames(payload, frames)
		}
		if s.expired() {
			return 0, ErrTimeout
		}
		if _, err := s.fill(); err != nil {
			return 0, err
		}
	}
}

func parseResponse(m [][]byte) ([]byte, uint32, error) {
	declared, err := strconv.ParseUint(string(m[2]), 10, 32)
	if err != nil {
		return nil, 0, fmt.Errorf("console: parsing response CRC %q: %w", m[2], err)
	}
	return m[1], uint32(declared), nil
}

// Send optionally waits for syncMarker, then writes data verbatim to the
// link. No chunking is performed; the caller owns transport size limits.
func Send(link Link, syncMarker string, data []byte, timeout time.Duration) error {
	if syncMarker != "" {
		if err := Wait(link, syncMarker, timeout); err != nil {
			return err
		}
	}
	for len(data) > 0 {
		n, err := link.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
