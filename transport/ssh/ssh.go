// Package ssh provides an SSH session transport for threadstream.
//
// Dial connects to a host, opens a session and starts an initial command
// (default "sh"). The session then stays open: Write feeds the command's
// stdin and Read delivers its stdout, so the initial command acts as the
// interpreter for everything written afterwards. Stderr is collected on the
// side and available via StderrBytes.
package ssh

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// Config holds configuration parameters for dialing an SSH target.
type Config struct {
	Host string
	Port int // default 22
	User string

	// Password is used when non-empty. Signer, when set, adds public key
	// authentication; both may be supplied.
	Password string
	Signer   ssh.Signer

	// Command is executed once at session start and acts as the
	// interpreter for subsequent writes. Default "sh".
	Command string

	// Timeout bounds the TCP connect. Default 10s.
	Timeout time.Duration

	// HostKeyCallback verifies the server key. Required unless
	// InsecureIgnoreHostKey is set.
	HostKeyCallback       ssh.HostKeyCallback
	InsecureIgnoreHostKey bool
}

// Session is a live SSH session implementing threadstream.Transport.
type Session struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
	stderr  *stderrBuffer

	closeOnce sync.Once
	closeErr  error
}

// Dial connects, authenticates and starts cfg.Command on a fresh session.
func Dial(cfg Config) (*Session, error) {
	clientCfg, err := clientConfig(&cfg)
	if err != nil {
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("new session: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &stderrBuffer{}
	sess.Stderr = stderr

	if err := sess.Start(cfg.Command); err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("start %q: %w", cfg.Command, err)
	}

	return &Session{
		client:  client,
		session: sess,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
	}, nil
}

// clientConfig validates cfg, applies defaults and builds the ssh client
// configuration.
func clientConfig(cfg *Config) (*ssh.ClientConfig, error) {
	if cfg.Host == "" {
		return nil, errors.New("ssh: host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Command == "" {
		cfg.Command = "sh"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	hostKey := cfg.HostKeyCallback
	if hostKey == nil {
		if !cfg.InsecureIgnoreHostKey {
			return nil, errors.New("ssh: HostKeyCallback is required unless InsecureIgnoreHostKey is set")
		}
		hostKey = ssh.InsecureIgnoreHostKey() // #nosec G106 -- explicit opt-in
	}

	var auth []ssh.AuthMethod
	if cfg.Signer != nil {
		auth = append(auth, ssh.PublicKeys(cfg.Signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("ssh: no authentication method configured")
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         cfg.Timeout,
	}, nil
}

// Read delivers the remote command's stdout. Blocks until output arrives or
// the session is torn down.
func (s *Session) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Write feeds the remote command's stdin.
func (s *Session) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

// Close tears down the session and the client connection, which unblocks
// any in-flight Read. Safe to call multiple times.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.stdin.Close()
		_ = s.session.Close()
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

// StderrBytes returns a copy of everything the remote command wrote to
// stderr so far.
func (s *Session) StderrBytes() []byte {
	return s.stderr.bytes()
}

// stderrBuffer accumulates stderr output; ssh writes to it from the
// session's own goroutine while callers read snapshots.
type stderrBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *stderrBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *stderrBuffer) bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf...)
}
