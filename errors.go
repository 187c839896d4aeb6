package threadstream

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrAlreadyStarted indicates Start was called on an engine that has
	// already left StateCreated.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrNotRunning indicates an operation that requires a live reader was
	// called on an engine that is not running or stopping.
	ErrNotRunning = errors.New("engine not running")

	// ErrStopped indicates a blocking read observed a clean stop before its
	// marker arrived.
	ErrStopped = errors.New("engine stopped")

	// ErrReadTimeout indicates a ReadUntil deadline elapsed. The read buffer
	// is left untouched and the engine remains usable.
	ErrReadTimeout = errors.New("read timeout")
)

// StreamError is the terminal error of an engine whose transport failed.
// It carries atomic snapshots of both buffers taken at the instant the
// background reader detected the failure, so no accumulated data is lost to
// the error. Only the background reader constructs a StreamError, exactly
// once per engine; it is immutable afterward.
//
// Match with errors.As to recover the snapshots, or errors.Is against the
// wrapped transport error.
type StreamError struct {
	// ReadSnapshot is the read buffer content at the moment of failure.
	ReadSnapshot []byte
	// WriteSnapshot is every byte successfully handed to the transport
	// before the failure.
	WriteSnapshot []byte
	// Err is the underlying transport error.
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream failed: %v (%d bytes buffered, %d bytes written)",
		e.Err, len(e.ReadSnapshot), len(e.WriteSnapshot))
}

func (e *StreamError) Unwrap() error { return e.Err }
