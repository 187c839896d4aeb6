package threadstream

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Transport is the byte source/sink driven by an Engine. Implementations
// must guarantee that Close unblocks any in-flight Read promptly; that is
// the engine's only mechanism for interrupting the background reader.
//
// Adapters in transport/serial, transport/tcp and transport/ssh all satisfy
// this contract. Connecting/opening is the adapter constructor's job; an
// Engine receives a ready-to-use transport.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// State is the lifecycle state of an Engine.
type State int32

const (
	// StateCreated indicates the engine has been created but not started.
	StateCreated State = iota
	// StateRunning indicates the background reader is active.
	StateRunning
	// StateStopping indicates Stop was requested and the reader is winding down.
	StateStopping
	// StateStopped indicates a clean shutdown (terminal state).
	StateStopped
	// StateErrored indicates the transport failed fatally (terminal state).
	StateErrored
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Config holds configuration parameters for an Engine. The zero value is
// usable; every field has a default.
type Config struct {
	// ChunkSize is the maximum number of bytes requested per transport read.
	// Default 4096.
	ChunkSize int
	// Delimiter is the line terminator used by ReadLine. Default "\n".
	Delimiter string
	// StopTimeout bounds how long Stop waits for the background reader to
	// exit after the transport is closed. Default 1s.
	StopTimeout time.Duration
	// Logger receives debug output. Default discards.
	Logger *log.Logger
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 4096
	}
	if c.Delimiter == "" {
		c.Delimiter = "\n"
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = time.Second
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard)
	}
}

// Engine decouples a continuously running background reader from foreground
// callers that write commands and inspect or drain accumulated output.
// It is safe for concurrent use by multiple goroutines.
//
// An Engine is single-use: once stopped or errored, create a new Engine with
// a fresh transport. There is no automatic reconnect.
type Engine struct {
	transport Transport
	cfg       Config

	mu      sync.Mutex
	cond    *sync.Cond
	state   State
	readBuf []byte
	history []byte
	lastErr *StreamError

	// wmu serializes transport writes together with their history append,
	// so concurrent Write calls land in history in call order without the
	// buffer lock being held across blocking I/O.
	wmu sync.Mutex

	readerDone chan struct{}
}

// New creates an Engine over an already-connected transport. Call Start to
// begin reading.
func New(t Transport, cfg Config) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		transport:  t,
		cfg:        cfg,
		state:      StateCreated,
		readerDone: make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Start spawns the background reader. Valid only once, on a freshly created
// engine; any further call fails with ErrAlreadyStarted and does not affect
// the running reader.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateCreated {
		return fmt.Errorf("start in state %s: %w", e.state, ErrAlreadyStarted)
	}
	e.state = StateRunning
	go e.readLoop()
	return nil
}

// readLoop is the sole owner of the StateErrored transition and of
// StreamError construction. It exits on the first transport error.
func (e *Engine) readLoop() {
	defer close(e.readerDone)
	buf := make([]byte, e.cfg.ChunkSize)
	for {
		n, err := e.transport.Read(buf)
		e.mu.Lock()
		if e.state == StateStopped {
			// Stop's bounded wait expired and finalized the state before
			// the read returned. Terminal buffers are immutable, so drop
			// whatever came back and exit.
			e.mu.Unlock()
			return
		}
		if n > 0 {
			// Bytes handed back alongside an error are still kept.
			e.readBuf = append(e.readBuf, buf[:n]...)
			e.cfg.Logger.Debug("received", "bytes", n, "buffered", len(e.readBuf))
			e.cond.Broadcast()
		}
		if err == nil {
			e.mu.Unlock()
			continue
		}
		if e.state == StateStopping {
			e.state = StateStopped
			e.cfg.Logger.Debug("reader exited after stop")
			e.cond.Broadcast()
			e.mu.Unlock()
			return
		}
		e.lastErr = &StreamError{
			ReadSnapshot:  append([]byte(nil), e.readBuf...),
			WriteSnapshot: append([]byte(nil), e.history...),
			Err:           err,
		}
		e.state = StateErrored
		e.cfg.Logger.Error("transport failed", "err", err, "buffered", len(e.readBuf))
		e.cond.Broadcast()
		e.mu.Unlock()
		// The reader owns transport teardown on the error path; Stop is a
		// no-op once the engine is terminal. Adapters make Close idempotent.
		_ = e.transport.Close()
		return
	}
}

// Write hands data to the transport and records the successfully written
// prefix in the write history. Valid while running or stopping; otherwise it
// fails with a lifecycle error.
//
// A transport failure here is reported to the caller only. It does not move
// the engine to StateErrored; that transition belongs to the background
// reader, which observes the same broken transport independently.
func (e *Engine) Write(p []byte) error {
	e.mu.Lock()
	if e.state != StateRunning && e.state != StateStopping {
		st := e.state
		e.mu.Unlock()
		return fmt.Errorf("write in state %s: %w", st, ErrNotRunning)
	}
	e.mu.Unlock()

	e.wmu.Lock()
	defer e.wmu.Unlock()
	n, err := e.transport.Write(p)
	if n > 0 {
		e.mu.Lock()
		e.history = append(e.history, p[:n]...)
		e.mu.Unlock()
	}
	if err != nil {
		return fmt.Errorf("transport write: %w", err)
	}
	return nil
}

// ReadUntil blocks until the read buffer contains marker, then removes and
// returns the buffer prefix up to and including its first occurrence. The
// remainder stays buffered for later calls.
//
// The call fails with the stored *StreamError once the engine is errored
// (every subsequent call observes the same payload), with ErrStopped after a
// clean stop, or with ErrReadTimeout when timeout elapses first. A timeout
// leaves the buffer untouched. timeout <= 0 means wait forever.
func (e *Engine) ReadUntil(marker []byte, timeout time.Duration) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var timedOut bool
	if timeout > 0 {
		tm := time.AfterFunc(timeout, func() {
			e.mu.Lock()
			timedOut = true
			e.mu.Unlock()
			e.cond.Broadcast()
		})
		defer tm.Stop()
	}

	for {
		if i := bytes.Index(e.readBuf, marker); i >= 0 {
			end := i + len(marker)
			out := make([]byte, end)
			copy(out, e.readBuf[:end])
			e.readBuf = e.readBuf[end:]
			return out, nil
		}
		switch e.state {
		case StateErrored:
			return nil, e.lastErr
		case StateStopped:
			return nil, fmt.Errorf("read until %q: %w", marker, ErrStopped)
		}
		if timedOut {
			return nil, fmt.Errorf("read until %q after %s: %w", marker, timeout, ErrReadTimeout)
		}
		e.cond.Wait()
	}
}

// ReadLine reads up to and including the configured delimiter and returns
// the line with the delimiter stripped. It blocks like ReadUntil.
func (e *Engine) ReadLine(timeout time.Duration) (string, error) {
	line, err := e.ReadUntil([]byte(e.cfg.Delimiter), timeout)
	if err != nil {
		return "", err
	}
	return string(line[:len(line)-len(e.cfg.Delimiter)]), nil
}

// ConsumeBuffer drains and returns the entire read buffer, possibly empty.
// It succeeds in every state, including after an error or stop, so callers
// can always recover whatever accumulated.
func (e *Engine) ConsumeBuffer() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.readBuf
	e.readBuf = nil
	return out
}

// Peek returns a copy of up to n leading bytes of the read buffer without
// consuming them.
func (e *Engine) Peek(n int) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > len(e.readBuf) {
		n = len(e.readBuf)
	}
	return append([]byte(nil), e.readBuf[:n]...)
}

// Buffered returns the number of bytes currently in the read buffer.
func (e *Engine) Buffered() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.readBuf)
}

// Contains reports whether marker is currently in the read buffer. Bytes
// already consumed by ReadUntil or ConsumeBuffer are not considered.
func (e *Engine) Contains(marker []byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return bytes.Contains(e.readBuf, marker)
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the stored *StreamError after a fatal transport failure, or
// nil while the engine is healthy or cleanly stopped.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastErr == nil {
		return nil
	}
	return e.lastErr
}

// Stop terminates the background reader by closing the transport, which
// unblocks its in-flight read, and waits up to Config.StopTimeout for the
// loop to exit. Safe to call multiple times; calls on an already-terminal
// engine are no-ops. Buffered data remains available via ConsumeBuffer.
func (e *Engine) Stop() error {
	e.mu.Lock()
	switch e.state {
	case StateStopped, StateErrored:
		e.mu.Unlock()
		return nil
	case StateCreated:
		// Reader never started; mirror the Running path's ordering so no
		// concurrent caller can observe StateStopped while the transport
		// is still open.
		e.state = StateStopping
		e.mu.Unlock()
		closeErr := e.transport.Close()
		e.mu.Lock()
		e.state = StateStopped
		e.cond.Broadcast()
		e.mu.Unlock()
		close(e.readerDone)
		return closeErr
	case StateStopping:
		e.mu.Unlock()
		select {
		case <-e.readerDone:
		case <-time.After(e.cfg.StopTimeout):
		}
		return nil
	}
	e.state = StateStopping
	e.mu.Unlock()

	closeErr := e.transport.Close()

	select {
	case <-e.readerDone:
	case <-time.After(e.cfg.StopTimeout):
		e.cfg.Logger.Warn("reader did not exit before stop timeout")
	}

	e.mu.Lock()
	if e.state == StateStopping {
		e.state = StateStopped
		e.cond.Broadcast()
	}
	e.mu.Unlock()
	return closeErr
}
