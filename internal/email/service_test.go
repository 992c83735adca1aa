package email

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// silentServer accepts connections and never sends the SMTP greeting.
func silentServer(t *testing.T) (host, port string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	host, port, err = net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return host, port
}

func TestService_SendTimesOutOnSilentServer(t *testing.T) {
	host, port := silentServer(t)
	s := NewService(host, port, "noreply@example.com").WithTimeout(100 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- s.Send("jane@example.com", "subject", "<p>body</p>") }()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "send mail to jane@example.com")
	case <-time.After(3 * time.Second):
		t.Fatal("Send did not give up on a server that never greets")
	}
}

func TestService_WithTimeoutIgnoresNonPositive(t *testing.T) {
	s := NewService("localhost", "1025", "noreply@example.com").WithTimeout(0)
	assert.Equal(t, DefaultTimeout, s.timeout)

	s.WithTimeout(-time.Second)
	assert.Equal(t, DefaultTimeout, s.timeout)
}
