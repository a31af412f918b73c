package console

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"
)

func respLine(marker, payload string) string {
	return fmt.Sprintf("%s:%s CRC:%d\n", marker, payload, Checksum([]byte(payload)))
}

func TestReceiveSuccess(t *testing.T) {
	payload := `{"id":42}`
	link := NewScriptLink([]byte("boot noise\nCP:\n" + respLine("RESP_OK", payload)))
	link.ChunkSize = 3 // force accumulation across short reads

	frames := make([]Frame, 4)
	n, err := Receive(link, "CP:", frames, ReceiveOptions{Quiet: true, Timeout: time.Second})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if n != 1 {
		t.Fatalf("Receive used %d frames, want 1", n)
	}
	if got := string(frames[0].Payload); got != payload {
		t.Fatalf("frame payload = %q, want %q", got, payload)
	}
}

func TestReceiveRemoteRejected(t *testing.T) {
	link := NewScriptLink([]byte(respLine("RESP_ERR", "bad_input")))

	_, err := Receive(link, "", make([]Frame, 1), ReceiveOptions{Quiet: true, Timeout: time.Second})
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Receive error = %v, want RemoteError", err)
	}
	if remote.Payload != "bad_input" {
		t.Fatalf("RemoteError payload = %q, want %q", remote.Payload, "bad_input")
	}
}

func TestReceiveTimeoutLeavesLinkReusable(t *testing.T) {
	link := NewScriptLink([]byte("nothing interesting here"))

	_, err := Receive(link, "", make([]Frame, 1), ReceiveOptions{Quiet: true, Timeout: 30 * time.Millisecond})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Receive error = %v, want ErrTimeout", err)
	}

	// The link must remain usable after a timeout.
	link.Feed([]byte(respLine("RESP_OK", "ok")))
	frames := make([]Frame, 1)
	n, err := Receive(link, "", frames, ReceiveOptions{Quiet: true, Timeout: time.Second})
	if err != nil || n != 1 {
		t.Fatalf("Receive after timeout = (%d, %v), want (1, nil)", n, err)
	}
	if got := string(frames[0].Payload); got != "ok" {
		t.Fatalf("payload after timeout = %q, want %q", got, "ok")
	}
}

func TestReceiveSyncTimeout(t *testing.T) {
	link := NewScriptLink([]byte(respLine("RESP_OK", "never delivered")))

	_, err := Receive(link, "CP:", make([]Frame, 1), ReceiveOptions{Quiet: true, Timeout: 30 * time.Millisecond})
	if !errors.Is(err, ErrSyncTimeout) {
		t.Fatalf("Receive error = %v, want ErrSyncTimeout", err)
	}
}

func TestReceiveCRCMismatch(t *testing.T) {
	line := fmt.Sprintf("RESP_OK:%s CRC:%d\n", "tampered", Checksum([]byte("original")))

	_, err := Receive(NewScriptLink([]byte(line)), "", make([]Frame, 1),
		ReceiveOptions{Quiet: true, Timeout: time.Second})
	var mismatch *CRCMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Receive error = %v, want CRCMismatchError", err)
	}
	if mismatch.Computed != Checksum([]byte("tampered")) {
		t.Fatalf("CRCMismatchError computed = %d, want %d", mismatch.Computed, Checksum([]byte("tampered")))
	}

	// The same response must pass with the check skipped, payload unmodified.
	frames := make([]Frame, 1)
	n, err := Receive(NewScriptLink([]byte(line)), "", frames,
		ReceiveOptions{SkipCRC: true, Quiet: true, Timeout: time.Second})
	if err != nil || n != 1 {
		t.Fatalf("Receive with SkipCRC = (%d, %v), want (1, nil)", n, err)
	}
	if got := string(frames[0].Payload); got != "tampered" {
		t.Fatalf("payload = %q, want %q", got, "tampered")
	}
}

func TestReceiveFailureCRCAlwaysValidated(t *testing.T) {
	// SkipCRC relaxes the check for success payloads only; a corrupted
	// failure response must still surface as a CRC mismatch, not as a
	// remote rejection.
	line := fmt.Sprintf("RESP_ERR:%s CRC:%d\n", "tampered", Checksum([]byte("original")))

	_, err := Receive(NewScriptLink([]byte(line)), "", make([]Frame, 1),
		ReceiveOptions{SkipCRC: true, Quiet: true, Timeout: time.Second})
	var mismatch *CRCMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Receive error = %v, want CRCMismatchError", err)
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		t.Fatalf("corrupted failure response surfaced as RemoteError: %v", err)
	}
}

func TestReceiveEmptyPayload(t *testing.T) {
	link := NewScriptLink([]byte("RESP_OK: CRC:0\n"))

	frames := make([]Frame, 1)
	n, err := Receive(link, "", frames, ReceiveOptions{Quiet: true, Timeout: time.Second})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if n != 1 || len(frames[0].Payload) != 0 {
		t.Fatalf("empty payload: n=%d len=%d, want one empty frame", n, len(frames[0].Payload))
	}
}

func TestReceiveCapacityCheckedBeforeWrite(t *testing.T) {
	payload := strings.Repeat("x", FrameCapacity+1)
	link := NewScriptLink([]byte(respLine("RESP_OK", payload)))

	frames := []Frame{{Payload: []byte("sentinel")}}
	_, err := Receive(link, "", frames, ReceiveOptions{Quiet: true, Timeout: time.Second})
	var capErr *FrameCapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("Receive error = %v, want FrameCapacityError", err)
	}
	if got := string(frames[0].Payload); got != "sentinel" {
		t.Fatalf("frame written despite capacity error: %q", got)
	}
}

func TestReceiveEchoesConsoleBytes(t *testing.T) {
	script := "CP:\n" + respLine("RESP_OK", "hello")
	link := NewScriptLink([]byte(script))

	var echo bytes.Buffer
	_, err := Receive(link, "CP:", make([]Frame, 1), ReceiveOptions{Echo: &echo, Timeout: time.Second})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !strings.Contains(echo.String(), "RESP_OK:hello") {
		t.Fatalf("echo sink missing console bytes: %q", echo.String())
	}
}

func TestSend(t *testing.T) {
	link := NewScriptLink([]byte("waiting CP:done"))

	msg := []byte(`{"command":"PersoBlob"}`)
	if err := Send(link, "CP:", msg, time.Second); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !bytes.Equal(link.Written(), msg) {
		t.Fatalf("link received %q, want %q", link.Written(), msg)
	}
}

func TestSendSyncTimeout(t *testing.T) {
	link := NewScriptLink([]byte("no marker"))

	err := Send(link, "CP:", []byte("payload"), 30*time.Millisecond)
	if !errors.Is(err, ErrSyncTimeout) {
		t.Fatalf("Send error = %v, want ErrSyncTimeout", err)
	}
	if len(link.Written()) != 0 {
		t.Fatalf("Send wrote %q before sync completed", link.Written())
	}
}

func TestSendNoSyncMarker(t *testing.T) {
	link := NewScriptLink(nil)
	if err := Send(link, "", []byte("raw"), time.Second); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(link.Written()) != "raw" {
		t.Fatalf("link received %q, want %q", link.Written(), "raw")
	}
}

func TestWaitAcrossChunkBoundaries(t *testing.T) {
	link := NewScriptLink([]byte("aaaa MARKER bbbb"))
	link.ChunkSize = 2

	if err := Wait(link, "MARKER", time.Second); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestWaitMatch(t *testing.T) {
	link := NewScriptLink([]byte("junk\nROM_EXT:0.1.2\r\nmore"))

	got, err := WaitMatch(link, regexp.MustCompile(`(?:\n| )ROM_EXT[: ](.*)\r\n`), time.Second)
	if err != nil {
		t.Fatalf("WaitMatch: %v", err)
	}
	if !strings.Contains(got, "ROM_EXT:0.1.2") {
		t.Fatalf("WaitMatch = %q, want ROM_EXT line", got)
	}

	idle := NewScriptLink(nil)
	if _, err := WaitMatch(idle, regexp.MustCompile("never"), 30*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("WaitMatch error = %v, want ErrTimeout", err)
	}
}

func TestWatcherKeepsBytesBetweenWaits(t *testing.T) {
	// The whole script is served in one read; a second one-shot wait would
	// miss bytes already consumed by the first.
	link := NewScriptLink([]byte("\nROM_EXT:0.1\r\nPASS!\r\n"))

	w := NewWatcher(link)
	if _, err := w.WaitMatch(regexp.MustCompile(`ROM_EXT[: ](.*)\r\n`), time.Second); err != nil {
		t.Fatalf("WaitMatch(banner): %v", err)
	}
	if err := w.WaitText("PASS!", time.Second); err != nil {
		t.Fatalf("WaitText(marker): %v", err)
	}
}

func TestWatcherDiscardsThroughMatch(t *testing.T) {
	link := NewScriptLink([]byte("tick\ntick\n"))

	w := NewWatcher(link)
	re := regexp.MustCompile(`tick\n`)
	if _, err := w.WaitMatch(re, time.Second); err != nil {
		t.Fatalf("first WaitMatch: %v", err)
	}
	if _, err := w.WaitMatch(re, time.Second); err != nil {
		t.Fatalf("second WaitMatch: %v", err)
	}
	if _, err := w.WaitMatch(re, 30*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("third WaitMatch = %v, want ErrTimeout", err)
	}
}
