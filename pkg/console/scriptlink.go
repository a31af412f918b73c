package console

import "sync"

// ScriptLink is an in-memory Link that serves a scripted byte stream and
// records writes. It backs the simulator transport and unit tests, the same
// way hardware adapters ship next to an in-memory stand-in elsewhere in this
// repo.
type ScriptLink struct {
	mu sync.Mutex

	script  []byte
	written []byte

	// ChunkSize bounds how many bytes one Read returns, to exercise the
	// protocol layer's accumulation across short reads. Zero means
	// unbounded.
	ChunkSize int

	// ReadErr, when set, is returned by the next Read.
	ReadErr error
	// WriteErr, when set, is returned by every Write.
	WriteErr error
}

// NewScriptLink returns a link that will serve script and then go idle.
func NewScriptLink(script []byte) *ScriptLink {
	return &ScriptLink{script: append([]byte(nil), script...)}
}

// Feed appends more bytes for subsequent reads to serve.
func (l *ScriptLink) Feed(p []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.script = append(l.script, p...)
}

// Read serves scripted bytes, or (0, nil) once the script is exhausted.
func (l *ScriptLink) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ReadErr != nil {
		err := l.ReadErr
		l.ReadErr = nil
		return 0, err
	}
	if len(l.script) == 0 {
		return 0, nil
	}
	limit := len(p)
	if l.ChunkSize > 0 && l.ChunkSize < limit {
		limit = l.ChunkSize
	}
	n := copy(p[:limit], l.script)
	l.script = l.script[n:]
	return n, nil
}

// Write records p and reports it fully written.
func (l *ScriptLink) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.WriteErr != nil {
		return 0, l.WriteErr
	}
	l.written = append(l.written, p...)
	return len(p), nil
}

// Written returns a copy of everything written to the link.
func (l *ScriptLink) Written() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.written...)
}

// Pending reports how many scripted bytes remain unread.
func (l *ScriptLink) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.script)
}
