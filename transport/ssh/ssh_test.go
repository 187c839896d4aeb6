package ssh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClientConfig_Defaults(t *testing.T) {
	cfg := Config{
		Host:                  "example.com",
		User:                  "root",
		Password:              "secret",
		InsecureIgnoreHostKey: true,
	}
	cc, err := clientConfig(&cfg)
	require.NoError(t, err)

	require.Equal(t, 22, cfg.Port)
	require.Equal(t, "sh", cfg.Command)
	require.Equal(t, 10*time.Second, cfg.Timeout)
	require.Equal(t, "root", cc.User)
	require.Len(t, cc.Auth, 1)
	require.NotNil(t, cc.HostKeyCallback)
}

func TestClientConfig_RequiresHost(t *testing.T) {
	_, err := clientConfig(&Config{User: "root", Password: "x", InsecureIgnoreHostKey: true})
	require.Error(t, err)
}

func TestClientConfig_RequiresHostKeyCallback(t *testing.T) {
	_, err := clientConfig(&Config{Host: "example.com", User: "root", Password: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "HostKeyCallback")
}

func TestClientConfig_RequiresAuth(t *testing.T) {
	_, err := clientConfig(&Config{Host: "example.com", User: "root", InsecureIgnoreHostKey: true})
	require.Error(t, err)
	require.Contains(t, err.Error(), "authentication")
}

func TestStderrBuffer_CopiesOut(t *testing.T) {
	b := &stderrBuffer{}
	n, err := b.Write([]byte("warning: "))
	require.NoError(t, err)
	require.Equal(t, 9, n)
	_, _ = b.Write([]byte("late\n"))

	snap := b.bytes()
	require.Equal(t, "warning: late\n", string(snap))

	// Mutating the snapshot must not leak back into the buffer.
	snap[0] = 'X'
	require.Equal(t, "warning: late\n", string(b.bytes()))
}
