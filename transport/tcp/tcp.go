// Package tcp provides a TCP socket transport for threadstream. net.Conn
// already satisfies the transport contract, including Close unblocking an
// in-flight Read; this package only standardizes dialing.
package tcp

import (
	"fmt"
	"net"
	"time"
)

// Conn is an established TCP connection implementing threadstream.Transport.
type Conn struct {
	net.Conn
}

// Dial connects to addr (host:port) within timeout. Nagle's algorithm is
// disabled so short command writes reach the device immediately.
func Dial(addr string, timeout time.Duration) (*Conn, error) {
	c, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if tc, ok := c.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return &Conn{Conn: c}, nil
}
