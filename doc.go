// Package threadstream provides a thread-safe buffered stream over a
// blocking byte transport, for command/response style interaction with
// devices and remote shells (serial ports, TCP sockets, SSH sessions).
//
// A background goroutine continuously reads the transport into an internal
// buffer while any number of foreground goroutines write commands and then
// block on a marker, drain the buffer, or poll for new output. When the
// transport fails, everything accumulated so far is snapshotted into the
// resulting *StreamError, so a disconnect never discards the data that led
// up to it.
//
// Features:
//   - One background reader per engine, interrupted by closing the transport
//   - Blocking ReadUntil with optional timeout; timeouts leave the buffer intact
//   - ConsumeBuffer drains in every state, including after an error
//   - *StreamError carries (read buffer, write history) snapshots
//   - Cursor for incremental "what's new since last time" reads
//   - Transport adapters for serial (Linux), TCP and SSH under transport/
//
// Example usage:
//
//	conn, err := tcp.Dial("device.local:4001", 5*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	eng := threadstream.New(conn, threadstream.Config{Delimiter: "\r\n"})
//	if err := eng.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
//	if err := eng.Write([]byte("C,INFO\r\n")); err != nil {
//	    log.Println("Write failed:", err)
//	}
//	out, err := eng.ReadUntil([]byte("OK\r\n"), 2*time.Second)
//	if err != nil {
//	    var serr *threadstream.StreamError
//	    if errors.As(err, &serr) {
//	        // serr.ReadSnapshot holds everything received before the failure
//	    }
//	    log.Fatal(err)
//	}
//	fmt.Printf("device said: %s", out)
package threadstream
